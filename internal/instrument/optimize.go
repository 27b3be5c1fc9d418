package instrument

import (
	"github.com/samber/lo"

	"github.com/lynxgpu/lynx/ptx"
)

// Optimize runs the peephole optimizer over an annotated statement stream and returns the
// optimized copy; stmts is left untouched.
//
// The passes share one forward walk:
//   - constant propagation: `mov d, imm` into a symbolic d (not a pseudo-function) is removed,
//     and later source operands naming d become the immediate.
//   - fusion: `mul d, a, b` directly followed by `add d, d, x` becomes `mad d, a, b, x`.
//     Statements removed earlier do not separate the two.
//   - base-address short-circuit: when a fused mad feeds a ld, a later fused mad feeding a st
//     is removed and the st reuses the address computed for the ld.
//
// Statements are removed by position, never by comparing their contents. The walk is
// repeated until it removes nothing, since a removal can make two statements adjacent.
func Optimize(stmts []ptx.Statement) []ptx.Statement {
	t := ptx.Translation{Statements: stmts}
	stmts = t.CloneStatements()
	for {
		var removed bool
		if stmts, removed = optimizeOnce(stmts); !removed {
			return stmts
		}
	}
}

// optimizeOnce runs a single forward walk over stmts in place.
func optimizeOnce(stmts []ptx.Statement) ([]ptx.Statement, bool) {
	o := optimizer{constants: make(map[string]uint64), removed: make([]bool, len(stmts))}
	for i := range stmts {
		if !stmts[i].IsInstruction() {
			continue
		}
		o.propagateConstant(stmts, i)
		o.fuse(stmts, i)
	}

	var cur int
	for i := range stmts {
		if !o.removed[i] {
			stmts[cur] = stmts[i]
			cur++
		}
	}
	return stmts[:cur], cur < len(stmts)
}

// optimizer is the state of one Optimize call.
type optimizer struct {
	// constants maps a symbolic name to the immediate it was moved from.
	constants map[string]uint64
	removed   []bool

	// savedAddress is the destination of the last mad that fed a ld.
	savedAddress ptx.Operand
	haveAddress  bool
}

func (o *optimizer) propagateConstant(stmts []ptx.Statement, i int) {
	inst := &stmts[i].Instruction
	if inst.Opcode == ptx.OpcodeMov && inst.A().Mode == ptx.AddressModeImmediate {
		if d := inst.D().Identifier; d != "" && !lo.Contains(functionNames, d) {
			o.constants[d] = inst.A().Imm
			o.removed[i] = true
		}
	}

	switch inst.Opcode {
	case ptx.OpcodeMad, ptx.OpcodeAdd, ptx.OpcodeSub, ptx.OpcodeDiv, ptx.OpcodeMul,
		ptx.OpcodeShr, ptx.OpcodeShl, ptx.OpcodeSetP:
		for _, s := range ptx.SourceSlots {
			o.fold(inst.Operand(s))
		}
	}
}

// fold turns op into an immediate if it names a recorded constant.
func (o *optimizer) fold(op *ptx.Operand) {
	if op.Identifier == "" {
		return
	}
	if v, ok := o.constants[op.Identifier]; ok {
		op.Mode = ptx.AddressModeImmediate
		op.Imm = v
		op.Identifier = ""
	}
}

func (o *optimizer) fuse(stmts []ptx.Statement, i int) {
	if i+1 >= len(stmts) || o.removed[i] {
		return
	}
	mul, add := &stmts[i].Instruction, &stmts[i+1].Instruction
	if mul.Opcode != ptx.OpcodeMul || !stmts[i+1].IsInstruction() || add.Opcode != ptx.OpcodeAdd {
		return
	}
	if d := mul.D().Identifier; d == "" || d != add.D().Identifier || d != add.A().Identifier {
		return
	}

	mul.Opcode = ptx.OpcodeMad
	*mul.C() = *add.B()
	o.fold(mul.C())
	o.removed[i+1] = true

	if i+2 >= len(stmts) || !stmts[i+2].IsInstruction() {
		return
	}
	switch next := &stmts[i+2].Instruction; {
	case next.Opcode == ptx.OpcodeLd:
		o.savedAddress, o.haveAddress = *mul.D(), true
	case next.Opcode == ptx.OpcodeSt && o.haveAddress:
		next.D().Identifier = o.savedAddress.Identifier
		o.removed[i] = true
		o.haveAddress = false
	}
}
