package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrSendToSelf is returned when Send is called from the goroutine that
	// is draining the executor. Waiting there would deadlock the drain loop.
	ErrSendToSelf = errors.New("bridge: send from the draining goroutine")

	// ErrStopped is returned when work is offered to an executor whose
	// loop has already been torn down.
	ErrStopped = errors.New("bridge: executor stopped")

	// ErrDraining is returned when Drain is called on an executor that is
	// already being drained.
	ErrDraining = errors.New("bridge: executor already draining")
)

// PanicError carries a panic recovered from a work item or task function.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
