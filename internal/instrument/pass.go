// Package instrument splices a lowered instrumentation specification into the kernels of a
// Module.
//
// A Pass takes a ptx.Translation, the statement stream an instrumentation specification is
// lowered to, and for every kernel it is run on:
//  1. optimizes a copy of the stream with Optimize.
//  2. splits it into TranslationBlocks, one per target label (ON_KERNEL_ENTRY, ...).
//  3. splices every block at its target sites, rewriting symbolic operands, placeholders
//     and pseudo-functions into concrete kernel registers and immediates.
package instrument

import (
	"fmt"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/lynxgpu/lynx/cfg"
	"github.com/lynxgpu/lynx/ptx"
)

// Options configures a Pass.
type Options struct {
	RegisterScope RegisterScope
	// BlockIndexProbe enables the insertion of `add.u32 d, d, 64` after the first read of
	// %ctaid.x when the translation has an ON_INSTRUCTION block.
	BlockIndexProbe bool
	// SkipOptimize disables Optimize.
	SkipOptimize bool
	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger
}

// Stats are cumulative counters of a Pass.
type Stats struct {
	Kernels              int
	InsertedInstructions int
	// MatchedInstructions is the number of kernel instructions an ON_INSTRUCTION block was
	// spliced before.
	MatchedInstructions int
	// PredicateCounters is the number of predicate counting idioms synthesized.
	PredicateCounters int
}

// Pass is the instrumentation pass. It is not safe for concurrent use.
type Pass struct {
	translation ptx.Translation
	opts        Options
	tables      *tables
	registers   *RegisterMap
	module      *cfg.Module
	// instrumented records the kernels RunOnKernel was called with.
	instrumented map[*cfg.Kernel]struct{}
	stats        Stats

	// kernel and log belong to the in-progress RunOnKernel.
	kernel *cfg.Kernel
	log    logrus.FieldLogger
}

// NewPass returns a Pass splicing t.
func NewPass(t ptx.Translation, opts Options) *Pass {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Pass{
		translation:  t,
		opts:         opts,
		tables:       newTables(),
		registers:    NewRegisterMap(opts.RegisterScope),
		instrumented: make(map[*cfg.Kernel]struct{}),
		log:          opts.Logger,
	}
}

// Initialize is called once before the pass runs on the kernels of m.
func (p *Pass) Initialize(m *cfg.Module) {
	p.module = m
	p.log.WithField("module", m.Name).Debugf("initialized pass over %d kernels", len(m.Kernels))
}

// Finalize is called once after the pass ran on every kernel.
func (p *Pass) Finalize() {
	p.log.WithFields(logrus.Fields{
		"kernels":  p.stats.Kernels,
		"inserted": p.stats.InsertedInstructions,
	}).Debug("finalized pass")
	p.module = nil
}

// Stats returns the counters accumulated so far.
func (p *Pass) Stats() Stats {
	return p.stats
}

// Registers returns the symbolic register bindings of this pass.
func (p *Pass) Registers() *RegisterMap {
	return p.registers
}

// RunOnKernel instruments k. Each kernel can only be instrumented once per Pass.
func (p *Pass) RunOnKernel(k *cfg.Kernel) (err error) {
	if _, ok := p.instrumented[k]; ok {
		return &Error{Kernel: k.Name(), Err: ErrAlreadyInstrumented}
	}
	p.instrumented[k] = struct{}{}

	base := p.log
	p.kernel = k
	p.log = base.WithFields(logrus.Fields{"kernel": k.Name(), "run": uuid.New().String()})
	defer func() {
		if r := recover(); r != nil {
			err = pkgerrors.Wrap(fmt.Errorf("%v", r), "instrumenting kernel "+k.Name())
		}
		p.kernel, p.log = nil, base
	}()

	p.registers.enterKernel(k.Name())
	for _, name := range p.translation.Registers {
		p.registers.Bind(name, k.NewRegister())
	}

	stmts := p.translation.CloneStatements()
	if !p.opts.SkipOptimize {
		stmts = Optimize(stmts)
	}
	blocks, initial := p.partition(stmts)

	// Fail before anything is inserted.
	if err = p.checkCountPlaceholders(blocks); err != nil {
		return
	}

	hasInstructionTarget := lo.ContainsBy(blocks, func(tb *TranslationBlock) bool { return tb.Target == TargetInstruction })
	if p.opts.BlockIndexProbe && hasInstructionTarget {
		if !p.insertBlockIndexProbe() {
			p.log.Debugf("no %s read to probe", blockIndexRegister)
		}
	}

	before := p.stats.InsertedInstructions
	for _, tb := range blocks {
		switch tb.Target {
		case TargetInstruction:
			p.instrumentInstruction(tb)
		case TargetBasicBlock:
			if err = p.instrumentBasicBlock(tb); err != nil {
				return
			}
		case TargetKernel:
			p.instrumentKernel(tb)
		}
	}
	p.instrumentKernel(initial)

	p.stats.Kernels++
	p.log.WithField("inserted", p.stats.InsertedInstructions-before).Info("instrumented kernel")
	return
}
