package ptx

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// OperandSlot indexes Instruction.Operands.
type OperandSlot int

const (
	// OperandD is the destination; for st, the address written to.
	OperandD OperandSlot = iota
	// OperandA is the first source.
	OperandA
	// OperandB is the second source.
	OperandB
	// OperandC is the third source.
	OperandC
	// OperandGuard is the guard predicate.
	OperandGuard

	// NumOperandSlots is the number of operand slots of an Instruction.
	NumOperandSlots
)

// SourceSlots are the slots holding source operands.
var SourceSlots = [...]OperandSlot{OperandA, OperandB, OperandC}

// String implements fmt.Stringer.
func (s OperandSlot) String() string {
	switch s {
	case OperandD:
		return "d"
	case OperandA:
		return "a"
	case OperandB:
		return "b"
	case OperandC:
		return "c"
	case OperandGuard:
		return "pg"
	}
	return fmt.Sprintf("slot%d", int(s))
}

// Operand is one operand of an Instruction. Which fields are meaningful depends on Mode.
//
// Identifier is non-empty for symbolic operands (a name standing for a register to be
// allocated or an immediate to be computed), for special registers, address symbols and labels.
type Operand struct {
	Mode       AddressMode
	Type       DataType
	Identifier string
	Reg        RegisterID
	// Imm holds the bits of an immediate; signed values are stored in two's complement.
	Imm    uint64
	Offset int64
	// Condition is only meaningful for predicate operands, including the guard.
	Condition PredicateCondition
}

// NewRegisterOperand returns a concrete register operand.
func NewRegisterOperand(reg RegisterID, typ DataType) Operand {
	return Operand{Mode: AddressModeRegister, Type: typ, Reg: reg}
}

// NewSymbolOperand returns a register operand still carrying the symbolic name.
func NewSymbolOperand(name string, typ DataType) Operand {
	return Operand{Mode: AddressModeRegister, Type: typ, Identifier: name}
}

// NewImmediateOperand returns an immediate operand.
func NewImmediateOperand(v uint64, typ DataType) Operand {
	return Operand{Mode: AddressModeImmediate, Type: typ, Imm: v}
}

// NewLabelOperand returns a label operand.
func NewLabelOperand(label string) Operand {
	return Operand{Mode: AddressModeLabel, Identifier: label}
}

// NewGuard returns a guard operand on the predicate register reg.
func NewGuard(reg RegisterID, inverted bool) Operand {
	ret := Operand{Mode: AddressModeRegister, Type: TypePred, Reg: reg, Condition: PredicatePred}
	if inverted {
		ret.Condition = PredicateInvPred
	}
	return ret
}

// IsGuarded returns true if this predicate operand is a register predicate, normal or inverted.
func (o *Operand) IsGuarded() bool {
	return o.Condition == PredicatePred || o.Condition == PredicateInvPred
}

// IsSymbolic returns true if this operand still carries a symbolic name.
func (o *Operand) IsSymbolic() bool {
	return o.Identifier != ""
}

// String implements fmt.Stringer.
func (o *Operand) String() string {
	switch o.Mode {
	case AddressModeInvalid:
		return ""
	case AddressModeRegister:
		if o.Condition == PredicateInvPred {
			return "!" + o.registerString()
		}
		return o.registerString()
	case AddressModeSpecial, AddressModeLabel:
		return o.Identifier
	case AddressModeImmediate:
		return o.immediateString()
	case AddressModeIndirect:
		return "[" + o.registerString() + offsetString(o.Offset) + "]"
	case AddressModeAddress:
		return "[" + o.Identifier + offsetString(o.Offset) + "]"
	}
	panic(fmt.Sprintf("unknown address mode %d", o.Mode))
}

func (o *Operand) registerString() string {
	if o.Identifier != "" {
		return o.Identifier
	}
	if o.Type == TypePred {
		return fmt.Sprintf("%%p%d", o.Reg)
	}
	return fmt.Sprintf("%%r%d", o.Reg)
}

func (o *Operand) immediateString() string {
	switch o.Type {
	case TypeF32:
		return fmt.Sprintf("0f%08X", uint32(o.Imm))
	case TypeF64:
		return fmt.Sprintf("0d%016X", o.Imm)
	}
	if o.Type.IsSigned() || o.Imm > math.MaxInt64 {
		return strconv.FormatInt(int64(o.Imm), 10)
	}
	return strconv.FormatUint(o.Imm, 10)
}

func offsetString(off int64) string {
	switch {
	case off > 0:
		return "+" + strconv.FormatInt(off, 10)
	case off < 0:
		return strconv.FormatInt(off, 10)
	}
	return ""
}

// Instruction is a single virtual ISA instruction. Since Go doesn't have union type, this
// is a flattened type for all instructions, and the meaning of each operand slot depends on
// Opcode. Operands are indexed by OperandSlot so that a rewrite can loop over slots.
type Instruction struct {
	Opcode       Opcode
	Type         DataType
	AddressSpace AddressSpace
	Vote         VoteMode
	Comparison   CmpOp
	// Modifiers are the remaining dotted suffixes of the mnemonic, e.g. "lo" of mul.lo.u32.
	Modifiers []string
	Operands  [NumOperandSlots]Operand
}

// NewInstruction returns an unguarded instruction of the given opcode and type.
func NewInstruction(op Opcode, typ DataType) Instruction {
	return Instruction{Opcode: op, Type: typ}
}

// D returns the destination operand.
func (i *Instruction) D() *Operand { return &i.Operands[OperandD] }

// A returns the first source operand.
func (i *Instruction) A() *Operand { return &i.Operands[OperandA] }

// B returns the second source operand.
func (i *Instruction) B() *Operand { return &i.Operands[OperandB] }

// C returns the third source operand.
func (i *Instruction) C() *Operand { return &i.Operands[OperandC] }

// Guard returns the guard predicate operand.
func (i *Instruction) Guard() *Operand { return &i.Operands[OperandGuard] }

// Operand returns the operand at the slot.
func (i *Instruction) Operand(s OperandSlot) *Operand { return &i.Operands[s] }

// Clone returns a deep copy of this instruction.
func (i *Instruction) Clone() Instruction {
	ret := *i
	if i.Modifiers != nil {
		ret.Modifiers = append([]string(nil), i.Modifiers...)
	}
	return ret
}

// String implements fmt.Stringer using the text syntax accepted by ParseInstruction.
func (i *Instruction) String() string {
	var sb strings.Builder
	switch g := i.Guard(); g.Condition {
	case PredicateNPT:
		sb.WriteString("@!%pt ")
	case PredicatePred:
		sb.WriteString("@" + g.registerString() + " ")
	case PredicateInvPred:
		sb.WriteString("@!" + g.registerString() + " ")
	}

	sb.WriteString(i.Opcode.String())
	if i.Opcode == OpcodeVote && i.Vote != VoteInvalid {
		sb.WriteString("." + i.Vote.String())
	}
	if i.Opcode == OpcodeSetP && i.Comparison != CmpInvalid {
		sb.WriteString("." + i.Comparison.String())
	}
	if i.AddressSpace != AddressSpaceGeneric {
		sb.WriteString("." + i.AddressSpace.String())
	}
	for _, m := range i.Modifiers {
		sb.WriteString("." + m)
	}
	if i.Type != TypeInvalid {
		sb.WriteString("." + i.Type.String())
	}
	if i.Opcode == OpcodeCvt && i.A().Type != TypeInvalid {
		sb.WriteString("." + i.A().Type.String())
	}

	first := true
	for s := OperandD; s < OperandGuard; s++ {
		op := &i.Operands[s]
		if op.Mode == AddressModeInvalid {
			continue
		}
		if first {
			sb.WriteByte(' ')
			first = false
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(op.String())
	}
	return sb.String()
}

// Directive is the kind of a Statement.
type Directive byte

const (
	DirectiveInvalid Directive = iota
	// DirectiveInstr is an instruction.
	DirectiveInstr
	// DirectiveParam declares a kernel parameter.
	DirectiveParam
	// DirectiveShared declares a shared-memory variable.
	DirectiveShared
	// DirectiveLabel is a label.
	DirectiveLabel
)

// String implements fmt.Stringer.
func (d Directive) String() string {
	switch d {
	case DirectiveInvalid:
		return "invalid"
	case DirectiveInstr:
		return "instr"
	case DirectiveParam:
		return "param"
	case DirectiveShared:
		return "shared"
	case DirectiveLabel:
		return "label"
	}
	panic(fmt.Sprintf("unknown directive %d", d))
}

// Statement is a directive or an instruction of an annotated statement stream.
type Statement struct {
	Directive Directive
	// Name is the label, parameter or variable name of a non-instruction statement.
	Name string
	// Type is the declared type of a parameter or variable.
	Type DataType
	// Elements is the array length of a declared variable, zero for scalars.
	Elements    int
	Instruction Instruction
}

// NewInstructionStatement wraps the instruction in a Statement.
func NewInstructionStatement(inst Instruction) Statement {
	return Statement{Directive: DirectiveInstr, Instruction: inst}
}

// NewLabelStatement returns a label Statement.
func NewLabelStatement(name string) Statement {
	return Statement{Directive: DirectiveLabel, Name: name}
}

// IsInstruction returns true if this statement is an instruction.
func (s *Statement) IsInstruction() bool {
	return s.Directive == DirectiveInstr
}

// String implements fmt.Stringer using the text syntax accepted by ParseStatement.
func (s *Statement) String() string {
	switch s.Directive {
	case DirectiveInstr:
		return s.Instruction.String()
	case DirectiveLabel:
		return s.Name + ":"
	case DirectiveParam, DirectiveShared:
		decl := fmt.Sprintf(".%s .%s %s", s.Directive, s.Type, s.Name)
		if s.Elements > 0 {
			decl += fmt.Sprintf("[%d]", s.Elements)
		}
		return decl
	}
	return "<invalid>"
}

// Translation is the output of lowering an instrumentation specification: the annotated
// statement stream, the symbolic registers to allocate, and parameter sizes by name.
type Translation struct {
	Statements []Statement
	Registers  []string
	Parameters map[string]int
}

// CloneStatements returns a deep copy of the statement stream.
func (t *Translation) CloneStatements() []Statement {
	ret := make([]Statement, len(t.Statements))
	for i := range t.Statements {
		ret[i] = t.Statements[i]
		ret[i].Instruction = t.Statements[i].Instruction.Clone()
	}
	return ret
}
