package engine

import (
	"errors"
	"fmt"
)

// ErrNotStarted marks a task the engine never ran because the batch context
// ended first.
var ErrNotStarted = errors.New("task not started")

// PanicError is a recovered panic from Task.Run.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// IsPanic reports whether err came from a recovered panic.
func IsPanic(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}

func notStarted(cause error) error {
	if cause == nil {
		return ErrNotStarted
	}
	return fmt.Errorf("%w: %w", ErrNotStarted, cause)
}
