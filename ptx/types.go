package ptx

import "fmt"

// RegisterID identifies a virtual register of a kernel.
type RegisterID uint32

// DataType is the type of an instruction or an operand.
type DataType byte

const (
	TypeInvalid DataType = iota
	TypePred
	TypeB8
	TypeB16
	TypeB32
	TypeB64
	TypeU8
	TypeU16
	TypeU32
	TypeU64
	TypeS8
	TypeS16
	TypeS32
	TypeS64
	TypeF16
	TypeF32
	TypeF64

	typeEnd
)

// String implements fmt.Stringer.
func (t DataType) String() string {
	switch t {
	case TypeInvalid:
		return "invalid"
	case TypePred:
		return "pred"
	case TypeB8:
		return "b8"
	case TypeB16:
		return "b16"
	case TypeB32:
		return "b32"
	case TypeB64:
		return "b64"
	case TypeU8:
		return "u8"
	case TypeU16:
		return "u16"
	case TypeU32:
		return "u32"
	case TypeU64:
		return "u64"
	case TypeS8:
		return "s8"
	case TypeS16:
		return "s16"
	case TypeS32:
		return "s32"
	case TypeS64:
		return "s64"
	case TypeF16:
		return "f16"
	case TypeF32:
		return "f32"
	case TypeF64:
		return "f64"
	}
	panic(fmt.Sprintf("unknown data type %d", t))
}

// IsSigned returns true if this is a signed integer type.
func (t DataType) IsSigned() bool {
	return t >= TypeS8 && t <= TypeS64
}

var typesByName = func() map[string]DataType {
	ret := make(map[string]DataType, typeEnd)
	for t := TypeInvalid + 1; t < typeEnd; t++ {
		ret[t.String()] = t
	}
	return ret
}()

// ParseDataType is the inverse of DataType.String.
func ParseDataType(name string) (DataType, error) {
	if t, ok := typesByName[name]; ok {
		return t, nil
	}
	return TypeInvalid, fmt.Errorf("invalid type %q", name)
}

// AddressMode tells how an Operand is to be interpreted.
type AddressMode byte

const (
	// AddressModeInvalid is the zero value; the operand slot is unused.
	AddressModeInvalid AddressMode = iota
	// AddressModeRegister is a register, either concrete (Reg) or symbolic (Identifier).
	AddressModeRegister
	// AddressModeIndirect is a register holding an address plus a constant Offset: `[%r1+8]`.
	AddressModeIndirect
	// AddressModeImmediate is the literal Imm.
	AddressModeImmediate
	// AddressModeAddress is a named variable plus a constant Offset: `[name+8]`.
	AddressModeAddress
	// AddressModeLabel is a branch target or function name.
	AddressModeLabel
	// AddressModeSpecial is a special register such as `%tid.x`.
	AddressModeSpecial
)

// String implements fmt.Stringer.
func (m AddressMode) String() string {
	switch m {
	case AddressModeInvalid:
		return "invalid"
	case AddressModeRegister:
		return "register"
	case AddressModeIndirect:
		return "indirect"
	case AddressModeImmediate:
		return "immediate"
	case AddressModeAddress:
		return "address"
	case AddressModeLabel:
		return "label"
	case AddressModeSpecial:
		return "special"
	}
	panic(fmt.Sprintf("unknown address mode %d", m))
}

// AddressSpace is the state space accessed by a memory instruction.
type AddressSpace byte

const (
	// AddressSpaceGeneric is the zero value, used by non-memory instructions too.
	AddressSpaceGeneric AddressSpace = iota
	AddressSpaceGlobal
	AddressSpaceLocal
	AddressSpaceShared
	AddressSpaceConst
	AddressSpaceParam
	AddressSpaceTexture
)

// String implements fmt.Stringer.
func (s AddressSpace) String() string {
	switch s {
	case AddressSpaceGeneric:
		return "generic"
	case AddressSpaceGlobal:
		return "global"
	case AddressSpaceLocal:
		return "local"
	case AddressSpaceShared:
		return "shared"
	case AddressSpaceConst:
		return "const"
	case AddressSpaceParam:
		return "param"
	case AddressSpaceTexture:
		return "tex"
	}
	panic(fmt.Sprintf("unknown address space %d", s))
}

var addressSpacesByName = map[string]AddressSpace{
	"global": AddressSpaceGlobal,
	"local":  AddressSpaceLocal,
	"shared": AddressSpaceShared,
	"const":  AddressSpaceConst,
	"param":  AddressSpaceParam,
	"tex":    AddressSpaceTexture,
}

// PredicateCondition tells how a guard predicate controls execution.
type PredicateCondition byte

const (
	// PredicatePT is "always true", the zero value: an unguarded instruction.
	PredicatePT PredicateCondition = iota
	// PredicateNPT is "always false".
	PredicateNPT
	// PredicatePred executes when the predicate register holds.
	PredicatePred
	// PredicateInvPred executes when the predicate register does not hold.
	PredicateInvPred
)

// String implements fmt.Stringer.
func (c PredicateCondition) String() string {
	switch c {
	case PredicatePT:
		return "pt"
	case PredicateNPT:
		return "npt"
	case PredicatePred:
		return "pred"
	case PredicateInvPred:
		return "invpred"
	}
	panic(fmt.Sprintf("unknown predicate condition %d", c))
}

// VoteMode is the reduction of a vote instruction.
type VoteMode byte

const (
	VoteInvalid VoteMode = iota
	VoteAll
	VoteAny
	VoteUni
	VoteBallot
)

// String implements fmt.Stringer.
func (v VoteMode) String() string {
	switch v {
	case VoteInvalid:
		return "invalid"
	case VoteAll:
		return "all"
	case VoteAny:
		return "any"
	case VoteUni:
		return "uni"
	case VoteBallot:
		return "ballot"
	}
	panic(fmt.Sprintf("unknown vote mode %d", v))
}

var voteModesByName = map[string]VoteMode{
	"all":    VoteAll,
	"any":    VoteAny,
	"uni":    VoteUni,
	"ballot": VoteBallot,
}

// CmpOp is the comparison operator of a setp instruction.
type CmpOp byte

const (
	CmpInvalid CmpOp = iota
	CmpEq
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

// String implements fmt.Stringer.
func (c CmpOp) String() string {
	switch c {
	case CmpInvalid:
		return "invalid"
	case CmpEq:
		return "eq"
	case CmpNe:
		return "ne"
	case CmpLt:
		return "lt"
	case CmpLe:
		return "le"
	case CmpGt:
		return "gt"
	case CmpGe:
		return "ge"
	}
	panic(fmt.Sprintf("unknown comparison %d", c))
}

var cmpOpsByName = map[string]CmpOp{
	"eq": CmpEq,
	"ne": CmpNe,
	"lt": CmpLt,
	"le": CmpLe,
	"gt": CmpGt,
	"ge": CmpGe,
}
