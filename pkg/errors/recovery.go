package errors

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic converts a recovered panic into an error carrying the stack
// trace. Used by the engine so a panic while evaluating one message never
// takes down the event loop.
func RecoverPanic(r interface{}) error {
	if r == nil {
		return nil
	}

	var err error
	switch v := r.(type) {
	case error:
		err = v
	case string:
		err = fmt.Errorf("panic: %s", v)
	default:
		err = fmt.Errorf("panic: %v", v)
	}

	return ErrInternal.
		WithMessage(fmt.Sprintf("panic recovered: %v (stack: %s)", err, debug.Stack())).
		WithCause(err).
		AsFatal()
}
