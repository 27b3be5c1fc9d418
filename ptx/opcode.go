package ptx

// Opcode represents a virtual ISA instruction.
type Opcode uint32

const (
	OpcodeInvalid Opcode = iota

	// OpcodeAbs ...
	// `abs.type d, a`.
	OpcodeAbs
	// OpcodeAdd ...
	// `add.type d, a, b`.
	OpcodeAdd
	// OpcodeAddC adds with carry-in.
	OpcodeAddC
	// OpcodeAnd ...
	// `and.type d, a, b`.
	OpcodeAnd
	// OpcodeAtom performs an atomic read-modify-write on memory: `atom.space.op.type d, [a], b`.
	OpcodeAtom
	// OpcodeBar is a barrier across the threads of a block: `bar.sync a`.
	OpcodeBar
	// OpcodeBfe extracts a bit field.
	OpcodeBfe
	// OpcodeBfi inserts a bit field.
	OpcodeBfi
	// OpcodeBfind finds the most significant non-sign bit.
	OpcodeBfind
	// OpcodeBra branches to the label `d`: `@p bra d`.
	OpcodeBra
	// OpcodeBrev reverses bits.
	OpcodeBrev
	// OpcodeCall calls the function `a`.
	OpcodeCall
	// OpcodeClz counts leading zeros.
	OpcodeClz
	// OpcodeCopySign ...
	OpcodeCopySign
	// OpcodeCos ...
	OpcodeCos
	// OpcodeCvt converts `a` of the source type into `d` of the destination type: `cvt.dtype.atype d, a`.
	OpcodeCvt
	// OpcodeDiv ...
	OpcodeDiv
	// OpcodeEx2 ...
	OpcodeEx2
	// OpcodeExit terminates the thread.
	OpcodeExit
	// OpcodeFma ...
	// `fma.type d, a, b, c`.
	OpcodeFma
	// OpcodeLd loads from the address `a` into `d`: `ld.space.type d, [a]`.
	OpcodeLd
	// OpcodeLg2 ...
	OpcodeLg2
	// OpcodeMad multiplies and adds: `mad.type d, a, b, c` computes `a*b+c`.
	OpcodeMad
	// OpcodeMad24 ...
	OpcodeMad24
	// OpcodeMax ...
	OpcodeMax
	// OpcodeMembar is a memory barrier.
	OpcodeMembar
	// OpcodeMin ...
	OpcodeMin
	// OpcodeMov ...
	// `mov.type d, a`.
	OpcodeMov
	// OpcodeMul ...
	// `mul.type d, a, b`.
	OpcodeMul
	// OpcodeMul24 ...
	OpcodeMul24
	// OpcodeNeg ...
	OpcodeNeg
	// OpcodeNop does nothing. Nop instructions are never inserted into a kernel.
	OpcodeNop
	// OpcodeNot ...
	OpcodeNot
	// OpcodeOr ...
	OpcodeOr
	// OpcodePopc counts the set bits of `a`: `popc.type d, a`.
	OpcodePopc
	// OpcodePrmt permutes bytes.
	OpcodePrmt
	// OpcodeRcp ...
	OpcodeRcp
	// OpcodeRem ...
	OpcodeRem
	// OpcodeRet returns from the function.
	OpcodeRet
	// OpcodeRsqrt ...
	OpcodeRsqrt
	// OpcodeSad ...
	OpcodeSad
	// OpcodeSelP selects `a` if the predicate `c` holds, `b` otherwise: `selp.type d, a, b, c`.
	OpcodeSelP
	// OpcodeSetP compares `a` and `b` and writes the result to the predicate `d`: `setp.cmp.type d, a, b`.
	OpcodeSetP
	// OpcodeShl ...
	OpcodeShl
	// OpcodeShr ...
	OpcodeShr
	// OpcodeSin ...
	OpcodeSin
	// OpcodeSqrt ...
	OpcodeSqrt
	// OpcodeSt stores `a` to the address `d`: `st.space.type [d], a`.
	OpcodeSt
	// OpcodeSub ...
	OpcodeSub
	// OpcodeSubC subtracts with borrow-in.
	OpcodeSubC
	// OpcodeTestP tests a floating-point property.
	OpcodeTestP
	// OpcodeTex fetches from a texture.
	OpcodeTex
	// OpcodeTld4 fetches four texels for bilinear interpolation.
	OpcodeTld4
	// OpcodeTxq queries a texture attribute.
	OpcodeTxq
	// OpcodeVote is a warp-wide vote on the predicate `a`: `vote.mode.type d, a`.
	OpcodeVote
	// OpcodeXor ...
	OpcodeXor

	// opcodeEnd marks the end of the opcode list.
	opcodeEnd
)

// String implements fmt.Stringer. The returned string is the mnemonic used by the text syntax.
func (o Opcode) String() (ret string) {
	switch o {
	case OpcodeInvalid:
		return "invalid"
	case OpcodeAbs:
		return "abs"
	case OpcodeAdd:
		return "add"
	case OpcodeAddC:
		return "addc"
	case OpcodeAnd:
		return "and"
	case OpcodeAtom:
		return "atom"
	case OpcodeBar:
		return "bar"
	case OpcodeBfe:
		return "bfe"
	case OpcodeBfi:
		return "bfi"
	case OpcodeBfind:
		return "bfind"
	case OpcodeBra:
		return "bra"
	case OpcodeBrev:
		return "brev"
	case OpcodeCall:
		return "call"
	case OpcodeClz:
		return "clz"
	case OpcodeCopySign:
		return "copysign"
	case OpcodeCos:
		return "cos"
	case OpcodeCvt:
		return "cvt"
	case OpcodeDiv:
		return "div"
	case OpcodeEx2:
		return "ex2"
	case OpcodeExit:
		return "exit"
	case OpcodeFma:
		return "fma"
	case OpcodeLd:
		return "ld"
	case OpcodeLg2:
		return "lg2"
	case OpcodeMad:
		return "mad"
	case OpcodeMad24:
		return "mad24"
	case OpcodeMax:
		return "max"
	case OpcodeMembar:
		return "membar"
	case OpcodeMin:
		return "min"
	case OpcodeMov:
		return "mov"
	case OpcodeMul:
		return "mul"
	case OpcodeMul24:
		return "mul24"
	case OpcodeNeg:
		return "neg"
	case OpcodeNop:
		return "nop"
	case OpcodeNot:
		return "not"
	case OpcodeOr:
		return "or"
	case OpcodePopc:
		return "popc"
	case OpcodePrmt:
		return "prmt"
	case OpcodeRcp:
		return "rcp"
	case OpcodeRem:
		return "rem"
	case OpcodeRet:
		return "ret"
	case OpcodeRsqrt:
		return "rsqrt"
	case OpcodeSad:
		return "sad"
	case OpcodeSelP:
		return "selp"
	case OpcodeSetP:
		return "setp"
	case OpcodeShl:
		return "shl"
	case OpcodeShr:
		return "shr"
	case OpcodeSin:
		return "sin"
	case OpcodeSqrt:
		return "sqrt"
	case OpcodeSt:
		return "st"
	case OpcodeSub:
		return "sub"
	case OpcodeSubC:
		return "subc"
	case OpcodeTestP:
		return "testp"
	case OpcodeTex:
		return "tex"
	case OpcodeTld4:
		return "tld4"
	case OpcodeTxq:
		return "txq"
	case OpcodeVote:
		return "vote"
	case OpcodeXor:
		return "xor"
	}
	panic("unknown opcode")
}

// opcodesByMnemonic is the reverse of Opcode.String, used by the parser.
var opcodesByMnemonic = func() map[string]Opcode {
	ret := make(map[string]Opcode, opcodeEnd)
	for o := OpcodeInvalid + 1; o < opcodeEnd; o++ {
		ret[o.String()] = o
	}
	return ret
}()

// IsBranching returns true if this opcode transfers control.
func (o Opcode) IsBranching() bool {
	switch o {
	case OpcodeBra, OpcodeCall, OpcodeRet, OpcodeExit:
		return true
	default:
		return false
	}
}
