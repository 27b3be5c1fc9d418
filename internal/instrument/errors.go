package instrument

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCountPlaceholder is returned when predication counting is requested for a
	// block whose statements contain neither the executed nor the predicated instruction
	// count placeholder.
	ErrMissingCountPlaceholder = errors.New("unable to locate " + PlaceholderBasicBlockExecutedInstructionCount +
		" or " + PlaceholderBasicBlockPredicatedInstCount + " statement")

	// ErrAlreadyInstrumented is returned when RunOnKernel is called twice for one kernel.
	ErrAlreadyInstrumented = errors.New("kernel already instrumented")
)

// Error is an instrumentation failure located in a kernel.
type Error struct {
	Kernel string
	// Block is the label of the basic block being instrumented, empty if not applicable.
	Block string
	// Target is the label of the translation block being spliced.
	Target string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("kernel %s", e.Kernel)
	if e.Block != "" {
		msg += fmt.Sprintf(", block %s", e.Block)
	}
	if e.Target != "" {
		msg += fmt.Sprintf(", target %s", e.Target)
	}
	return msg + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}
