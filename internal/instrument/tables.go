package instrument

import "github.com/lynxgpu/lynx/ptx"

// tables are the static classification tables consulted by the specifier matcher.
// They are built once by newTables and never modified afterwards.
type tables struct {
	// opcodeClasses maps an opcode to its instruction class name.
	opcodeClasses map[ptx.Opcode]string
	// addressSpaces maps an address space name to the address space.
	addressSpaces map[string]ptx.AddressSpace
	// typeClasses maps an operand type to its type class name.
	typeClasses map[ptx.DataType]string
}

func newTables() *tables {
	t := &tables{
		opcodeClasses: make(map[ptx.Opcode]string),
		addressSpaces: map[string]ptx.AddressSpace{
			SpaceGlobal:  ptx.AddressSpaceGlobal,
			SpaceLocal:   ptx.AddressSpaceLocal,
			SpaceShared:  ptx.AddressSpaceShared,
			SpaceConst:   ptx.AddressSpaceConst,
			SpaceParam:   ptx.AddressSpaceParam,
			SpaceTexture: ptx.AddressSpaceTexture,
		},
		typeClasses: make(map[ptx.DataType]string),
	}

	t.opcodeClasses[ptx.OpcodeLd] = ClassMemoryRead
	t.opcodeClasses[ptx.OpcodeSt] = ClassMemoryWrite
	t.opcodeClasses[ptx.OpcodeBra] = ClassBranch
	t.opcodeClasses[ptx.OpcodeCall] = ClassCall
	t.opcodeClasses[ptx.OpcodeBar] = ClassBarrier
	t.opcodeClasses[ptx.OpcodeMembar] = ClassBarrier
	t.opcodeClasses[ptx.OpcodeAtom] = ClassAtomic
	for _, op := range []ptx.Opcode{
		ptx.OpcodeAbs, ptx.OpcodeAdd, ptx.OpcodeAddC, ptx.OpcodeBfe, ptx.OpcodeBfi, ptx.OpcodeBfind,
		ptx.OpcodeBrev, ptx.OpcodeClz, ptx.OpcodeDiv, ptx.OpcodeMad24, ptx.OpcodeMax, ptx.OpcodeMin,
		ptx.OpcodeMul24, ptx.OpcodeMul, ptx.OpcodePopc, ptx.OpcodePrmt, ptx.OpcodeSad, ptx.OpcodeRem,
		ptx.OpcodeSub, ptx.OpcodeSubC, ptx.OpcodeNeg,
	} {
		t.opcodeClasses[op] = ClassArithmetic
	}
	// sqrt, sin and cos are floating-point only.
	// tex counts as a floating-point operation; only tld4 and txq are texture queries.
	for _, op := range []ptx.Opcode{
		ptx.OpcodeTestP, ptx.OpcodeCopySign, ptx.OpcodeLg2, ptx.OpcodeEx2, ptx.OpcodeFma, ptx.OpcodeRcp,
		ptx.OpcodeSqrt, ptx.OpcodeRsqrt, ptx.OpcodeSin, ptx.OpcodeCos, ptx.OpcodeTex,
	} {
		t.opcodeClasses[op] = ClassFloatingPoint
	}
	for _, op := range []ptx.Opcode{ptx.OpcodeTld4, ptx.OpcodeTxq} {
		t.opcodeClasses[op] = ClassTexture
	}

	for _, typ := range []ptx.DataType{
		ptx.TypeS8, ptx.TypeS16, ptx.TypeS32, ptx.TypeS64, ptx.TypeU8, ptx.TypeU16, ptx.TypeU32, ptx.TypeU64,
	} {
		t.typeClasses[typ] = TypeInteger
	}
	for _, typ := range []ptx.DataType{ptx.TypeF16, ptx.TypeF32, ptx.TypeF64} {
		t.typeClasses[typ] = TypeFloat
	}
	return t
}

// instructionClass returns the class name of the opcode, or "" if it has none.
func (t *tables) instructionClass(op ptx.Opcode) string {
	return t.opcodeClasses[op]
}

// addressSpace returns the address space of the name.
func (t *tables) addressSpace(name string) (ptx.AddressSpace, bool) {
	s, ok := t.addressSpaces[name]
	return s, ok
}

// typeClass returns the type class name of the type, or "" if it has none.
func (t *tables) typeClass(typ ptx.DataType) string {
	return t.typeClasses[typ]
}
