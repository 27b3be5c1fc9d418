package instrument

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/lynxgpu/lynx/ptx"
)

// Specifier is the eligibility filter of a TranslationBlock. An empty set in any dimension
// imposes no constraint in that dimension.
type Specifier struct {
	ID string
	// CheckForPredication requests per-thread counting of guarded instructions.
	CheckForPredication bool
	// IsPredicated is set by the matcher once the predicated pseudo-class has been evaluated;
	// from then on branches no longer match the branch class.
	IsPredicated       bool
	InstructionClasses []string
	AddressSpaces      []string
	DataTypes          []string
}

// inherit appends every filter value of from to s.
func (s *Specifier) inherit(from *Specifier) {
	s.InstructionClasses = append(s.InstructionClasses, from.InstructionClasses...)
	s.AddressSpaces = append(s.AddressSpaces, from.AddressSpaces...)
	s.DataTypes = append(s.DataTypes, from.DataTypes...)
}

// Target is where a TranslationBlock is spliced.
type Target byte

const (
	TargetKernel Target = iota
	TargetBasicBlock
	TargetInstruction
)

// String implements fmt.Stringer.
func (t Target) String() string {
	switch t {
	case TargetKernel:
		return "kernel"
	case TargetBasicBlock:
		return "basic-block"
	case TargetInstruction:
		return "instruction"
	}
	panic(fmt.Sprintf("unknown target %d", t))
}

// dispatchOrder is the rank of the target when translation blocks are dispatched.
func (t Target) dispatchOrder() int {
	switch t {
	case TargetInstruction:
		return 0
	case TargetBasicBlock:
		return 1
	default:
		return 2
	}
}

// TranslationBlock is one contiguous unit of instrumentation code, tagged with an insertion
// target and an eligibility filter.
type TranslationBlock struct {
	Target     Target
	Label      string
	Specifier  Specifier
	Statements []ptx.Statement
}

// conditionsMet returns true if inst satisfies every dimension of spec.
func (t *tables) conditionsMet(inst *ptx.Instruction, spec *Specifier) bool {
	return t.instructionClassMet(inst, spec) && t.addressSpaceMet(inst, spec) && t.dataTypeMet(inst, spec)
}

func (t *tables) instructionClassMet(inst *ptx.Instruction, spec *Specifier) bool {
	if len(spec.InstructionClasses) == 0 {
		return true
	}
	class := t.instructionClass(inst.Opcode)
	for _, c := range spec.InstructionClasses {
		if c == ClassPredicated {
			spec.IsPredicated = true
			if inst.Guard().IsGuarded() {
				return true
			}
			continue
		}
		if c == class {
			// A branch under a predicate filter is classified as predicated, never as a branch.
			return !(c == ClassBranch && spec.IsPredicated)
		}
	}
	return false
}

func (t *tables) addressSpaceMet(inst *ptx.Instruction, spec *Specifier) bool {
	if len(spec.AddressSpaces) == 0 {
		return true
	}
	return lo.ContainsBy(spec.AddressSpaces, func(name string) bool {
		s, ok := t.addressSpace(name)
		return ok && s == inst.AddressSpace
	})
}

func (t *tables) dataTypeMet(inst *ptx.Instruction, spec *Specifier) bool {
	if len(spec.DataTypes) == 0 {
		return true
	}
	class := t.typeClass(inst.Type)
	return class != "" && lo.Contains(spec.DataTypes, class)
}
