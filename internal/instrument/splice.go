package instrument

import (
	"slices"

	"github.com/samber/lo"

	"github.com/lynxgpu/lynx/cfg"
	"github.com/lynxgpu/lynx/ptx"
)

// insertBefore lowers stmts and inserts them into blk starting at index loc, keeping their
// order. Labels, declarations and nop are skipped. Returns the number of inserted instructions.
func (p *Pass) insertBefore(stmts []ptx.Statement, attrs *StaticAttributes, blk *cfg.BasicBlock, loc int) (inserted int) {
	for i := range stmts {
		stmt := &stmts[i]
		if !stmt.IsInstruction() || stmt.Instruction.Opcode == ptx.OpcodeNop {
			continue
		}
		inst := p.prepareStatement(stmt, attrs)
		n := p.kernel.Insert(blk, inst, loc+inserted)
		p.log.Debugf("inserted %q into %s at %d", n.Instruction().String(), blk, loc+inserted)
		inserted++
	}
	p.stats.InsertedInstructions += inserted
	return
}

// instrumentKernel splices tb at the kernel entry, or right before the terminator of the last
// non-empty block for ON_KERNEL_EXIT.
func (p *Pass) instrumentKernel(tb *TranslationBlock) {
	k := p.kernel
	if k.Empty() {
		return
	}

	attrs := StaticAttributes{
		BasicBlockCount:        k.Size() - 2,
		KernelInstructionCount: p.kernelInstructionCount(&tb.Specifier),
	}

	blk, loc := k.Block(1), 0
	if tb.Label == LabelExitKernel {
		blk = nil
		for i := k.Size() - 1; i > 0; i-- {
			if b := k.Block(i); !b.Empty() {
				blk = b
				break
			}
		}
		if blk == nil {
			p.log.Debugf("no instruction to anchor %s", tb.Label)
			return
		}
		loc = blk.Len() - 1
	}
	p.insertBefore(tb.Statements, &attrs, blk, loc)
}

// instrumentBasicBlock splices tb at the start, or right before the terminator, of every
// non-empty block.
func (p *Pass) instrumentBasicBlock(tb *TranslationBlock) error {
	k := p.kernel
	attrs := StaticAttributes{BasicBlockCount: k.Size() - 2}

	for i := 1; i < k.Size(); i++ {
		blk := k.Block(i)
		if blk.Empty() {
			continue
		}
		attrs.BasicBlockInstructionCount = 0
		attrs.BasicBlockExecutedInstructionCount = 0

		// Counting idioms are synthesized into a per-block copy, so nothing of this block
		// leaks into the next one.
		stmts, copied := tb.Statements, false
		for n := blk.Root(); n != nil; n = n.Next() {
			inst := n.Instruction()
			if !p.tables.conditionsMet(inst, &tb.Specifier) {
				continue
			}
			attrs.BasicBlockInstructionCount++

			if tb.Specifier.CheckForPredication && inst.Guard().IsGuarded() {
				if !copied {
					stmts = (&ptx.Translation{Statements: stmts}).CloneStatements()
					copied = true
				}
				var err error
				if stmts, err = p.synthesizePredicateCounter(stmts, inst); err != nil {
					return &Error{Kernel: k.Name(), Block: blk.Label(), Target: tb.Label, Err: err}
				}
				continue
			}
			attrs.BasicBlockExecutedInstructionCount++
		}

		loc := 0
		if tb.Label == LabelExitBasicBlock {
			loc = blk.Len() - 1
		}
		p.insertBefore(stmts, &attrs, blk, loc)
		attrs.BasicBlockID++
	}
	return nil
}

// checkCountPlaceholders returns the error instrumentBasicBlock would fail with for any of
// blocks, without modifying the kernel.
func (p *Pass) checkCountPlaceholders(blocks []*TranslationBlock) error {
	for _, tb := range blocks {
		if tb.Target != TargetBasicBlock || !tb.Specifier.CheckForPredication {
			continue
		}
		if lo.ContainsBy(tb.Statements, func(stmt ptx.Statement) bool {
			return stmt.IsInstruction() && countPlaceholder(&stmt.Instruction) != ""
		}) {
			continue
		}
		// Matching sets IsPredicated, so it runs on a copy.
		spec := tb.Specifier
		for _, blk := range p.kernel.Blocks() {
			for n := blk.Root(); n != nil; n = n.Next() {
				inst := n.Instruction()
				if inst.Guard().IsGuarded() && p.tables.conditionsMet(inst, &spec) {
					return &Error{Kernel: p.kernel.Name(), Block: blk.Label(), Target: tb.Label, Err: ErrMissingCountPlaceholder}
				}
			}
		}
	}
	return nil
}

// synthesizePredicateCounter adds to stmts the instructions counting one execution of the
// guarded inst, right after the last statement naming a count placeholder.
//
// With %basicBlockExecutedInstructionCount, a per-thread scalar idiom is added:
//
//	selp.u64 t, 1, 0, pg
//	add.u64 acc, acc, t
//
// With %basicBlockPredicatedInstructionCount, a warp-level idiom gated by the guard of that
// statement is added:
//
//	@g vote.ballot.b32 t, pg
//	@g popc.b32 n, t
//	@g cvt.u64.u32 w, n
//	@g add.u64 acc, acc, w
func (p *Pass) synthesizePredicateCounter(stmts []ptx.Statement, inst *ptx.Instruction) ([]ptx.Statement, error) {
	position, warp := -1, false
	var outer ptx.Operand
	for i := range stmts {
		if !stmts[i].IsInstruction() {
			continue
		}
		switch countPlaceholder(&stmts[i].Instruction) {
		case PlaceholderBasicBlockExecutedInstructionCount:
			position = i
		case PlaceholderBasicBlockPredicatedInstCount:
			position, warp = i, true
			outer = *stmts[i].Instruction.Guard()
		}
	}
	if position < 0 {
		return stmts, ErrMissingCountPlaceholder
	}
	p.stats.PredicateCounters++

	const typ = ptx.TypeU64
	acc := *stmts[position].Instruction.D()
	pg := *inst.Guard()
	pg.Type = ptx.TypePred

	var synthesized []ptx.Instruction
	if warp {
		if outer.IsGuarded() {
			outer.Condition = ptx.PredicatePred
		}
		ballot := ptx.NewInstruction(ptx.OpcodeVote, ptx.TypeB32)
		ballot.Vote = ptx.VoteBallot
		*ballot.D() = ptx.NewRegisterOperand(p.kernel.NewRegister(), ptx.TypeB32)
		*ballot.A() = pg

		popc := ptx.NewInstruction(ptx.OpcodePopc, ptx.TypeB32)
		*popc.D() = ptx.NewRegisterOperand(p.kernel.NewRegister(), ptx.TypeU32)
		*popc.A() = *ballot.D()

		cvt := ptx.NewInstruction(ptx.OpcodeCvt, typ)
		*cvt.D() = ptx.NewRegisterOperand(p.kernel.NewRegister(), typ)
		*cvt.A() = ptx.NewRegisterOperand(popc.D().Reg, ptx.TypeU32)

		add := ptx.NewInstruction(ptx.OpcodeAdd, typ)
		*add.D(), *add.A() = acc, acc
		*add.B() = ptx.NewRegisterOperand(cvt.D().Reg, typ)

		synthesized = []ptx.Instruction{ballot, popc, cvt, add}
		for i := range synthesized {
			*synthesized[i].Guard() = outer
		}
	} else {
		selp := ptx.NewInstruction(ptx.OpcodeSelP, typ)
		*selp.D() = ptx.NewRegisterOperand(p.kernel.NewRegister(), typ)
		*selp.A() = ptx.NewImmediateOperand(1, typ)
		*selp.B() = ptx.NewImmediateOperand(0, typ)
		*selp.C() = pg

		add := ptx.NewInstruction(ptx.OpcodeAdd, typ)
		*add.D(), *add.A() = acc, acc
		*add.B() = ptx.NewRegisterOperand(selp.D().Reg, typ)

		synthesized = []ptx.Instruction{selp, add}
	}

	added := make([]ptx.Statement, len(synthesized))
	for i := range synthesized {
		added[i] = ptx.NewInstructionStatement(synthesized[i])
	}
	return slices.Insert(stmts, position+1, added...), nil
}

// instrumentInstruction splices tb right before every eligible instruction.
func (p *Pass) instrumentInstruction(tb *TranslationBlock) {
	k := p.kernel
	attrs := StaticAttributes{
		BasicBlockCount:        k.Size() - 2,
		KernelInstructionCount: p.kernelInstructionCount(&tb.Specifier),
	}

	for i := 1; i < k.Size(); i++ {
		blk := k.Block(i)
		if blk.Empty() {
			continue
		}
		attrs.BasicBlockInstructionCount = blk.Len()
		attrs.InstructionID = 0

		loc := 0
		for n := blk.Root(); n != nil; n = n.Next() {
			inst := n.Instruction()
			if p.tables.conditionsMet(inst, &tb.Specifier) {
				attrs.OriginalInstruction = inst.Clone()
				loc += p.insertBefore(tb.Statements, &attrs, blk, loc)
				attrs.InstructionID++
				p.stats.MatchedInstructions++
			}
			loc++
		}
		attrs.BasicBlockID++
	}
}

// kernelInstructionCount counts the instructions of the kernel satisfying spec.
func (p *Pass) kernelInstructionCount(spec *Specifier) (ret int) {
	for _, blk := range p.kernel.Blocks() {
		for n := blk.Root(); n != nil; n = n.Next() {
			if p.tables.conditionsMet(n.Instruction(), spec) {
				ret++
			}
		}
	}
	return
}

// insertBlockIndexProbe adds `add.u32 d, d, 64` right after the first instruction reading
// %ctaid.x into d. Returns false if there is no such instruction.
func (p *Pass) insertBlockIndexProbe() bool {
	for _, blk := range p.kernel.Blocks() {
		for n := blk.Root(); n != nil; n = n.Next() {
			inst := n.Instruction()
			if inst.A().Identifier != blockIndexRegister {
				continue
			}
			d := *inst.D()
			d.Type = ptx.TypeU32
			add := ptx.NewInstruction(ptx.OpcodeAdd, ptx.TypeU32)
			*add.D(), *add.A() = d, d
			*add.B() = ptx.NewImmediateOperand(blockIndexProbeOffset, ptx.TypeU32)
			p.kernel.InsertAfter(n, add)
			p.stats.InsertedInstructions++
			return true
		}
	}
	return false
}
