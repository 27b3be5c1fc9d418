package instrument

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lynxgpu/lynx/cfg"
)

func TestRunOnKernel_singleLoad(t *testing.T) {
	k := newTestKernel(t, "k", testBlock{label: "BB_1", insts: []string{
		"ld.global.u32 %r1, [%r2+4]",
		"exit",
	}})
	p := newTestPass(t, []string{"%count", "%id", "%bb"},
		"ON_INSTRUCTION:",
		"ON_MEM_READ:",
		"mov.u32 %id, %instructionId",
		"mov.u32 %bb, %basicBlockId",
		"add.u64 %count, %count, 1",
	)

	require.NoError(t, p.RunOnKernel(k))
	require.Equal(t, []string{
		"mov.u32 %r4, 0",
		"mov.u32 %r5, 0",
		"add.u64 %r3, %r3, 1",
		"ld.global.u32 %r1, [%r2+4]",
		"exit",
	}, blockStrings(k.Block(1)))
	require.Equal(t, Stats{Kernels: 1, InsertedInstructions: 3, MatchedInstructions: 1}, p.Stats())
}

func TestRunOnKernel_computeBaseAddressNamedRegister(t *testing.T) {
	k := newTestKernel(t, "k", testBlock{label: "BB_1", insts: []string{
		"ld.global.u32 %r2, [%rd1+8]",
		"exit",
	}})
	p := newTestPass(t, nil,
		"ON_INSTRUCTION:",
		"ON_MEM_READ:",
		"add.u64 %computeBaseAddress, %x, %y",
	)

	require.NoError(t, p.RunOnKernel(k))
	require.Equal(t, []string{
		"add.u64 %r3, %rd1, 8",
		"ld.global.u32 %r2, [%rd1+8]",
		"exit",
	}, blockStrings(k.Block(1)))
}

func TestRunOnKernel_instructionAttributes(t *testing.T) {
	k := newTestKernel(t, "k",
		testBlock{label: "BB_1", insts: []string{
			"ld.global.u32 %r1, [%r2]",
			"add.u32 %r1, %r1, 1",
			"ld.global.u32 %r3, [%r2+4]",
			"bra BB_3",
		}},
		testBlock{label: "BB_2"},
		testBlock{label: "BB_3", insts: []string{
			"ld.shared.u32 %r4, [%r2]",
			"exit",
		}},
	)
	p := newTestPass(t, []string{"%t"},
		"ON_INSTRUCTION:",
		"ON_MEM_READ:",
		"GLOBAL:",
		"mad.lo.u32 %t, %basicBlockId, 100, %instructionId",
		"add.u32 %t, %t, %instructionCount",
	)

	require.NoError(t, p.RunOnKernel(k))
	require.Equal(t, []string{
		"mad.lo.u32 %r5, 0, 100, 0",
		"add.u32 %r5, %r5, 2",
		"ld.global.u32 %r1, [%r2]",
		"add.u32 %r1, %r1, 1",
		"mad.lo.u32 %r5, 0, 100, 1",
		"add.u32 %r5, %r5, 2",
		"ld.global.u32 %r3, [%r2+4]",
		"bra BB_3",
	}, blockStrings(k.Block(1)))
	require.True(t, k.Block(2).Empty())
	// The shared load does not match and the empty block is not numbered.
	require.Equal(t, []string{"ld.shared.u32 %r4, [%r2]", "exit"}, blockStrings(k.Block(3)))
}

func TestRunOnKernel_kernelEntryAndExit(t *testing.T) {
	newKernel := func() *cfg.Kernel {
		return newTestKernel(t, "k",
			testBlock{label: "BB_1", insts: []string{"add.u32 %r1, %r1, 1", "bra BB_2"}},
			testBlock{label: "BB_2", insts: []string{"mov.u32 %r2, 7", "exit"}},
			testBlock{label: "BB_3"},
		)
	}

	t.Run("exit", func(t *testing.T) {
		k := newKernel()
		p := newTestPass(t, []string{"%count"},
			"ON_KERNEL_EXIT:",
			"add.u64 %count, %count, %instructionCount",
		)
		require.NoError(t, p.RunOnKernel(k))
		require.Equal(t, []string{"add.u32 %r1, %r1, 1", "bra BB_2"}, blockStrings(k.Block(1)))
		require.Equal(t, []string{"mov.u32 %r2, 7", "add.u64 %r3, %r3, 4", "exit"}, blockStrings(k.Block(2)))
		require.True(t, k.Block(3).Empty())
	})

	t.Run("entry", func(t *testing.T) {
		k := newKernel()
		p := newTestPass(t, []string{"%count"},
			"ON_KERNEL_ENTRY:",
			"mov.u64 %count, %basicBlockCount",
		)
		require.NoError(t, p.RunOnKernel(k))
		require.Equal(t, []string{"mov.u64 %r3, 3", "add.u32 %r1, %r1, 1", "bra BB_2"}, blockStrings(k.Block(1)))
	})

	t.Run("no labels", func(t *testing.T) {
		k := newKernel()
		p := newTestPass(t, []string{"%count"},
			"mov.u64 %count, %basicBlockCount",
		)
		require.NoError(t, p.RunOnKernel(k))
		require.Equal(t, []string{"mov.u64 %r3, 3", "add.u32 %r1, %r1, 1", "bra BB_2"}, blockStrings(k.Block(1)))
		require.Equal(t, []string{"mov.u32 %r2, 7", "exit"}, blockStrings(k.Block(2)))
	})

	t.Run("initial block last", func(t *testing.T) {
		k := newKernel()
		p := newTestPass(t, []string{"%count"},
			"mov.u64 %count, %basicBlockCount",
			"ON_KERNEL_ENTRY:",
			"add.u64 %count, %count, 1",
		)
		require.NoError(t, p.RunOnKernel(k))
		require.Equal(t, []string{
			"mov.u64 %r3, 3",
			"add.u64 %r3, %r3, 1",
			"add.u32 %r1, %r1, 1",
			"bra BB_2",
		}, blockStrings(k.Block(1)))
	})
}

func TestRunOnKernel_emptyKernel(t *testing.T) {
	k := newTestKernel(t, "k")
	p := newTestPass(t, []string{"%count"},
		"ON_KERNEL_EXIT:",
		"add.u64 %count, %count, 1",
		"ON_KERNEL_ENTRY:",
		"add.u64 %count, %count, 1",
	)
	require.NoError(t, p.RunOnKernel(k))
	require.Zero(t, k.InstructionCount())
}

func TestRunOnKernel_basicBlock(t *testing.T) {
	k := newTestKernel(t, "k",
		testBlock{label: "BB_1", insts: []string{"add.u32 %r1, %r1, 1", "bra BB_2"}},
		testBlock{label: "BB_2", insts: []string{"exit"}},
	)
	p := newTestPass(t, []string{"%count"},
		"ON_BASIC_BLOCK_EXIT:",
		"add.u64 %count, %count, %basicBlockInstructionCount",
		"ON_BASIC_BLOCK_ENTRY:",
		"mov.u32 %count, %basicBlockId",
	)
	require.NoError(t, p.RunOnKernel(k))
	require.Equal(t, []string{
		"mov.u32 %r2, 0",
		"add.u32 %r1, %r1, 1",
		"add.u64 %r2, %r2, 2",
		"bra BB_2",
	}, blockStrings(k.Block(1)))
	require.Equal(t, []string{
		"mov.u32 %r2, 1",
		"add.u64 %r2, %r2, 1",
		"exit",
	}, blockStrings(k.Block(2)))
}

func TestRunOnKernel_scalarPredicateCount(t *testing.T) {
	k := newTestKernel(t, "k",
		testBlock{label: "BB_1", insts: []string{"@!%p1 add.u32 %r1, %r1, 1", "exit"}},
		testBlock{label: "BB_2", insts: []string{"exit"}},
	)
	p := newTestPass(t, []string{"%count"},
		"ON_BASIC_BLOCK_ENTRY:",
		"add.u64 %count, %count, %basicBlockExecutedInstructionCount",
	)
	require.NoError(t, p.RunOnKernel(k))
	require.Equal(t, []string{
		"add.u64 %r2, %r2, 1",
		"selp.u64 %r3, 1, 0, !%p1",
		"add.u64 %r2, %r2, %r3",
		"@!%p1 add.u32 %r1, %r1, 1",
		"exit",
	}, blockStrings(k.Block(1)))
	// The idiom synthesized for BB_1 is not carried over into BB_2.
	require.Equal(t, []string{"add.u64 %r2, %r2, 1", "exit"}, blockStrings(k.Block(2)))
	require.Equal(t, 1, p.Stats().PredicateCounters)
}

func TestRunOnKernel_warpPredicateCount(t *testing.T) {
	k := newTestKernel(t, "k", testBlock{label: "BB_1", insts: []string{
		"@%p1 add.u32 %r1, %r1, 1",
		"exit",
	}})
	p := newTestPass(t, []string{"%count", "%outer"},
		"ON_BASIC_BLOCK_ENTRY:",
		"@%outer add.u64 %count, %count, %basicBlockPredicatedInstructionCount",
	)
	require.NoError(t, p.RunOnKernel(k))
	require.Equal(t, []string{
		"@%p3 add.u64 %r2, %r2, 1",
		"@%p3 vote.ballot.b32 %r4, %p1",
		"@%p3 popc.b32 %r5, %r4",
		"@%p3 cvt.u64.u32 %r6, %r5",
		"@%p3 add.u64 %r2, %r2, %r6",
		"@%p1 add.u32 %r1, %r1, 1",
		"exit",
	}, blockStrings(k.Block(1)))
}

func TestRunOnKernel_missingCountPlaceholder(t *testing.T) {
	k := newTestKernel(t, "k", testBlock{label: "BB_1", insts: []string{"@%p1 add.u32 %r1, %r1, 1"}})
	p := newTestPass(t, nil)
	p.kernel = k

	tb := &TranslationBlock{
		Target:     TargetBasicBlock,
		Label:      LabelEnterBasicBlock,
		Specifier:  Specifier{CheckForPredication: true},
		Statements: parseStatements(t, "add.u64 %count, %count, 1"),
	}
	err := p.instrumentBasicBlock(tb)
	require.ErrorIs(t, err, ErrMissingCountPlaceholder)

	var ierr *Error
	require.True(t, errors.As(err, &ierr))
	require.Equal(t, &Error{Kernel: "k", Block: "BB_1", Target: LabelEnterBasicBlock, Err: ErrMissingCountPlaceholder}, ierr)
	require.Equal(t, "kernel k, block BB_1, target ON_BASIC_BLOCK_ENTRY: "+ErrMissingCountPlaceholder.Error(), err.Error())
	// Nothing was inserted.
	require.Equal(t, 1, k.InstructionCount())
}

func TestCheckCountPlaceholders(t *testing.T) {
	newPass := func() *Pass {
		p := newTestPass(t, nil)
		p.kernel = newTestKernel(t, "k",
			testBlock{label: "BB_1", insts: []string{"add.u32 %r1, %r1, 1", "bra BB_2"}},
			testBlock{label: "BB_2", insts: []string{"@%p1 add.u32 %r1, %r1, 1", "exit"}},
		)
		return p
	}
	block := func(lines ...string) *TranslationBlock {
		return &TranslationBlock{
			Target:     TargetBasicBlock,
			Label:      LabelEnterBasicBlock,
			Specifier:  Specifier{CheckForPredication: true},
			Statements: parseStatements(t, lines...),
		}
	}

	t.Run("missing", func(t *testing.T) {
		p := newPass()
		instructions := &TranslationBlock{Target: TargetInstruction, Statements: parseStatements(t, "add.u32 %c, %c, 1")}
		err := p.checkCountPlaceholders([]*TranslationBlock{instructions, block("add.u64 %count, %count, 1")})
		require.Equal(t, &Error{Kernel: "k", Block: "BB_2", Target: LabelEnterBasicBlock, Err: ErrMissingCountPlaceholder}, err)
		require.Equal(t, 4, p.kernel.InstructionCount())
	})
	t.Run("present", func(t *testing.T) {
		p := newPass()
		require.NoError(t, p.checkCountPlaceholders([]*TranslationBlock{
			block("add.u64 %count, %count, %basicBlockExecutedInstructionCount"),
		}))
	})
	t.Run("nothing guarded", func(t *testing.T) {
		p := newPass()
		tb := block("add.u64 %count, %count, 1")
		tb.Specifier.InstructionClasses = []string{ClassBranch}
		require.NoError(t, p.checkCountPlaceholders([]*TranslationBlock{tb}))
	})
}

func TestRunOnKernel_blockIndexProbe(t *testing.T) {
	lines := []string{
		"ON_INSTRUCTION:",
		"ON_BARRIER:",
		"add.u32 %count, %count, 1",
	}
	newKernel := func() *cfg.Kernel {
		return newTestKernel(t, "k", testBlock{label: "BB_1", insts: []string{
			"mov.u32 %r1, %ctaid.x",
			"mov.u32 %r2, %ctaid.x",
			"exit",
		}})
	}

	t.Run("disabled", func(t *testing.T) {
		k := newKernel()
		require.NoError(t, newTestPass(t, nil, lines...).RunOnKernel(k))
		require.Equal(t, []string{"mov.u32 %r1, %ctaid.x", "mov.u32 %r2, %ctaid.x", "exit"}, blockStrings(k.Block(1)))
	})

	t.Run("enabled", func(t *testing.T) {
		k := newKernel()
		p := newTestPass(t, nil, lines...)
		p.opts.BlockIndexProbe = true
		require.NoError(t, p.RunOnKernel(k))
		require.Equal(t, []string{
			"mov.u32 %r1, %ctaid.x",
			"add.u32 %r1, %r1, 64",
			"mov.u32 %r2, %ctaid.x",
			"exit",
		}, blockStrings(k.Block(1)))
	})

	t.Run("without instruction target", func(t *testing.T) {
		k := newKernel()
		p := newTestPass(t, nil, "ON_KERNEL_ENTRY:")
		p.opts.BlockIndexProbe = true
		require.NoError(t, p.RunOnKernel(k))
		require.Equal(t, 3, k.InstructionCount())
	})
}
