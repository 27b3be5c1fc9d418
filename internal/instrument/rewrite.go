package instrument

import (
	"github.com/lynxgpu/lynx/ptx"
)

// StaticAttributes are the per-site values that placeholders are replaced with.
type StaticAttributes struct {
	BasicBlockID                       int
	BasicBlockCount                    int
	BasicBlockInstructionCount         int
	BasicBlockExecutedInstructionCount int
	InstructionID                      int
	KernelInstructionCount             int
	// OriginalInstruction is the kernel instruction being instrumented, if any.
	OriginalInstruction ptx.Instruction
}

func (a *StaticAttributes) placeholderValue(name string) (uint64, bool) {
	var v int
	switch name {
	case PlaceholderBasicBlockCount:
		v = a.BasicBlockCount
	case PlaceholderBasicBlockID:
		v = a.BasicBlockID
	case PlaceholderBasicBlockInstructionCount:
		v = a.BasicBlockInstructionCount
	case PlaceholderBasicBlockExecutedInstructionCount, PlaceholderBasicBlockPredicatedInstCount:
		v = a.BasicBlockExecutedInstructionCount
	case PlaceholderInstructionID:
		v = a.InstructionID
	case PlaceholderInstructionCount:
		v = a.KernelInstructionCount
	default:
		return 0, false
	}
	return uint64(v), true
}

// prepareStatement lowers one instrumentation statement into an instruction ready to be
// inserted into the kernel under instrumentation.
func (p *Pass) prepareStatement(stmt *ptx.Statement, attrs *StaticAttributes) ptx.Instruction {
	inst := stmt.Instruction.Clone()

	if inst.Opcode == ptx.OpcodeCall {
		p.resolveIfSymbolic(inst.Guard())
		return inst
	}

	for _, s := range ptx.SourceSlots {
		op := inst.Operand(s)
		if v, ok := attrs.placeholderValue(op.Identifier); ok {
			*op = ptx.NewImmediateOperand(v, inst.Type)
		}
	}

	if inst.D().Identifier == ComputeBaseAddress {
		return p.computeBaseAddress(inst, &attrs.OriginalInstruction)
	}

	if inst.Opcode == ptx.OpcodeBra {
		p.resolveIfSymbolic(inst.Guard())
		if inst.D().Identifier == LabelExit {
			*inst.D() = ptx.NewLabelOperand(p.kernel.Block(p.kernel.Size() - 2).Label())
		}
		return inst
	}

	if d := inst.D(); d.Identifier == GetPredicateValue {
		p.lowerGetPredicateValue(&inst, &attrs.OriginalInstruction)
	}

	for s := range inst.Operands {
		if op := &inst.Operands[s]; resolvable(op) {
			p.resolve(op)
		}
	}

	if inst.Opcode == ptx.OpcodeVote && inst.Vote == ptx.VoteUni {
		if g := attrs.OriginalInstruction.Guard(); g.IsGuarded() {
			*inst.A() = *g
			inst.A().Type = ptx.TypePred
		} else {
			// Nothing to vote on: an unguarded instruction is uniform.
			inst.Opcode, inst.Vote, inst.Comparison, inst.Type = ptx.OpcodeSetP, ptx.VoteInvalid, ptx.CmpEq, ptx.TypeU64
			*inst.A() = ptx.NewImmediateOperand(0, ptx.TypeU64)
			*inst.B() = ptx.NewImmediateOperand(0, ptx.TypeU64)
		}
	}
	return inst
}

// lowerGetPredicateValue turns `op %getPredicateValue, ...` into
// `selp d, 1, 0, pg` where pg is the guard of the instrumented instruction.
func (p *Pass) lowerGetPredicateValue(inst *ptx.Instruction, original *ptx.Instruction) {
	name, typ := inst.D().Identifier, inst.Type
	reg := p.kernel.NewRegister()
	p.registers.Bind(name, reg)

	inst.Opcode = ptx.OpcodeSelP
	*inst.D() = ptx.NewRegisterOperand(reg, typ)
	*inst.A() = ptx.NewImmediateOperand(1, typ)
	*inst.B() = ptx.NewImmediateOperand(0, typ)

	switch g := original.Guard(); g.Condition {
	case ptx.PredicatePred, ptx.PredicateInvPred:
		*inst.C() = *g
		inst.C().Type = ptx.TypePred
	case ptx.PredicateNPT:
		*inst.C() = ptx.NewImmediateOperand(0, ptx.TypePred)
	default:
		*inst.C() = ptx.NewImmediateOperand(1, ptx.TypePred)
	}
}

// computeBaseAddress lowers an instruction whose destination is %computeBaseAddress.
//
// The first occurrence per kernel run binds a fresh register to the name and, when the
// instrumented instruction is a load or an indirect store, becomes the add computing its
// effective address. Later occurrences reuse that register in both d and a.
func (p *Pass) computeBaseAddress(inst ptx.Instruction, original *ptx.Instruction) ptx.Instruction {
	if inst.A().Identifier == ComputeBaseAddress {
		reg := p.lookup(ComputeBaseAddress)
		for _, op := range []*ptx.Operand{inst.D(), inst.A()} {
			op.Reg, op.Identifier = reg, ""
			op.Mode = ptx.AddressModeRegister
		}
		p.resolveIfSymbolic(inst.B())
		return inst
	}

	d := inst.D()
	reg := p.kernel.NewRegister()
	p.registers.Bind(d.Identifier, reg)
	d.Reg, d.Identifier = reg, ""

	var addr *ptx.Operand
	switch original.Opcode {
	case ptx.OpcodeSt:
		if original.D().Mode == ptx.AddressModeIndirect {
			addr = original.D()
		}
	case ptx.OpcodeLd:
		addr = original.A()
	}

	if addr != nil && addr.Mode == ptx.AddressModeIndirect {
		inst.Opcode = ptx.OpcodeAdd
		inst.Modifiers = nil
		// The base keeps its kernel name, if any: `%rd1` is not a register of this pass.
		*inst.A() = *addr
		inst.A().Mode = ptx.AddressModeRegister
		inst.A().Offset = 0
		inst.A().Type = inst.Type
		*inst.B() = ptx.NewImmediateOperand(uint64(addr.Offset), inst.Type)
		*inst.C() = ptx.Operand{}
		return inst
	}

	for _, s := range ptx.SourceSlots {
		if op := inst.Operand(s); resolvable(op) {
			p.resolve(op)
		}
	}
	return inst
}

// resolvable returns true if op is a symbolic register reference.
func resolvable(op *ptx.Operand) bool {
	if op.Identifier == "" {
		return false
	}
	switch op.Mode {
	case ptx.AddressModeRegister, ptx.AddressModeIndirect:
		return true
	case ptx.AddressModeInvalid:
		return op.Type == ptx.TypePred
	}
	return false
}

func (p *Pass) resolveIfSymbolic(op *ptx.Operand) {
	if op.Identifier != "" {
		p.resolve(op)
	}
}

// resolve replaces the symbolic name of op by its bound register.
func (p *Pass) resolve(op *ptx.Operand) {
	op.Reg = p.lookup(op.Identifier)
	op.Identifier = ""
	if op.Mode == ptx.AddressModeInvalid {
		op.Mode = ptx.AddressModeRegister
	}
}

// lookup returns the register bound to name. An unbound name gets a fresh register.
func (p *Pass) lookup(name string) ptx.RegisterID {
	if reg, ok := p.registers.Lookup(name); ok {
		return reg
	}
	reg := p.kernel.NewRegister()
	p.registers.Bind(name, reg)
	p.log.Debugf("bound undeclared register %s to %%r%d", name, reg)
	return reg
}
