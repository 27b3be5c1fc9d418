package instrument

import (
	"sort"

	"github.com/samber/lo"

	"github.com/lynxgpu/lynx/cfg"
	"github.com/lynxgpu/lynx/ptx"
)

// partition splits the optimized statement stream into translation blocks.
//
// Statements before the first target marker belong to initial, which is spliced at kernel
// entry after every other block, and whose filters apply to every other block as well.
// Parameter and shared-memory declarations are added to the kernel instead of to a block.
func (p *Pass) partition(stmts []ptx.Statement) (blocks []*TranslationBlock, initial *TranslationBlock) {
	initial = &TranslationBlock{Target: TargetKernel}
	current := initial

	for i := range stmts {
		stmt := &stmts[i]
		switch stmt.Directive {
		case ptx.DirectiveParam:
			p.kernel.AddParameter(cfg.Parameter{Name: stmt.Name, Type: stmt.Type, Size: p.translation.Parameters[stmt.Name]})
			continue
		case ptx.DirectiveShared:
			p.kernel.AddLocal(cfg.Local{Name: stmt.Name, Type: stmt.Type, Space: ptx.AddressSpaceShared, Elements: stmt.Elements})
			continue
		case ptx.DirectiveInstr:
			if countPlaceholder(&stmt.Instruction) != "" {
				current.Specifier.CheckForPredication = true
			}
		case ptx.DirectiveLabel:
			spec := &current.Specifier
			switch name := stmt.Name; {
			case lo.Contains(instructionClasses, name):
				spec.InstructionClasses = append(spec.InstructionClasses, name)
			case lo.Contains(addressSpaceNames, name):
				spec.AddressSpaces = append(spec.AddressSpaces, name)
			case lo.Contains(typeClassNames, name):
				spec.DataTypes = append(spec.DataTypes, name)
			case lo.Contains(targetLabels, name):
				current = &TranslationBlock{Target: targetOf(name), Label: name, Specifier: Specifier{ID: name}}
				blocks = append(blocks, current)
				p.log.Debugf("opened %s translation block %s", current.Target, name)
			}
		}
		current.Statements = append(current.Statements, *stmt)
	}

	for _, tb := range blocks {
		tb.Specifier.inherit(&initial.Specifier)
	}

	// Dispatch instruction blocks first, then basic-block blocks, then kernel blocks.
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].Target.dispatchOrder() < blocks[j].Target.dispatchOrder()
	})
	return
}

func targetOf(label string) Target {
	switch label {
	case LabelOnInstruction:
		return TargetInstruction
	case LabelEnterBasicBlock, LabelExitBasicBlock:
		return TargetBasicBlock
	default:
		return TargetKernel
	}
}

// countPlaceholder returns the executed or predicated instruction count placeholder named by
// a source operand of inst, or "" if there is none.
func countPlaceholder(inst *ptx.Instruction) string {
	for _, s := range ptx.SourceSlots {
		switch id := inst.Operand(s).Identifier; id {
		case PlaceholderBasicBlockExecutedInstructionCount, PlaceholderBasicBlockPredicatedInstCount:
			return id
		}
	}
	return ""
}
