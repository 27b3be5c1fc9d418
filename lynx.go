// Package lynx instruments GPU kernels with user-supplied measurement code.
//
// An Instrumentor takes a ptx.Translation, the statement stream an instrumentation
// specification is lowered to, and splices it into every kernel of a cfg.Module:
//
//	i := lynx.NewInstrumentor(translation, lynx.NewPassConfig().WithRegisterScope(lynx.RegisterScopeKernel))
//	if err := i.InstrumentModule(ctx, module); err != nil {
//		return err
//	}
package lynx

import (
	"context"

	"github.com/lynxgpu/lynx/cfg"
	"github.com/lynxgpu/lynx/internal/instrument"
	"github.com/lynxgpu/lynx/ptx"
)

// Stats are the cumulative counters of an Instrumentor.
type Stats = instrument.Stats

var (
	// ErrMissingCountPlaceholder is returned when a block requests predicate counting but
	// has no count placeholder to count into.
	ErrMissingCountPlaceholder = instrument.ErrMissingCountPlaceholder
	// ErrAlreadyInstrumented is returned when a kernel is instrumented twice by the same
	// Instrumentor.
	ErrAlreadyInstrumented = instrument.ErrAlreadyInstrumented
)

// Instrumentor runs the instrumentation pass over modules. It is not safe for concurrent
// use.
type Instrumentor struct {
	pass *instrument.Pass
}

// NewInstrumentor returns an Instrumentor splicing t. A nil config is NewPassConfig.
func NewInstrumentor(t ptx.Translation, config PassConfig) *Instrumentor {
	if config == nil {
		config = NewPassConfig()
	}
	return &Instrumentor{pass: instrument.NewPass(t, config.(*passConfig).options())}
}

// InstrumentModule instruments every kernel of m in order. It stops at the first kernel
// that fails, or when ctx is done; kernels already instrumented stay instrumented.
func (i *Instrumentor) InstrumentModule(ctx context.Context, m *cfg.Module) error {
	if ctx == nil {
		ctx = context.Background()
	}
	i.pass.Initialize(m)
	defer i.pass.Finalize()

	for _, k := range m.Kernels {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := i.pass.RunOnKernel(k); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns the counters accumulated over every InstrumentModule call.
func (i *Instrumentor) Stats() Stats {
	return i.pass.Stats()
}
