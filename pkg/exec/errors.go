package exec

import (
	"fmt"

	"github.com/pkg/errors"
)

// Tree construction and preparation errors. A tree that returned one of these
// must be discarded and rebuilt from its IR.
var (
	ErrInvalidState     = errors.New("invalid tree state")
	ErrEmptyBuildResult = errors.New("node built zero operators")
	ErrPassFailure      = errors.New("optimization pass failed")
	ErrEmptyPipeline    = errors.New("pipeline has no operators left")
)

// PassError reports which pass failed. It matches ErrPassFailure with
// errors.Is and unwraps to the pass's own error.
type PassError struct {
	Pass string
	Err  error
}

func (e *PassError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrPassFailure, e.Pass, e.Err)
}

// Unwrap returns the pass's own error.
func (e *PassError) Unwrap() error { return e.Err }

// Is reports whether target is ErrPassFailure.
func (e *PassError) Is(target error) bool { return target == ErrPassFailure }
