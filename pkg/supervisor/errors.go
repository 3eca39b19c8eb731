package supervisor

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds delivered through callbacks, events and stats.
var (
	// ErrShuttingDown rejects a start-up requested while a shut-down is in progress.
	ErrShuttingDown = &Error{
		Code:    "SHUTTING_DOWN",
		Message: "resource is shutting down",
	}

	// ErrTimeout is synthesized when a handler does not complete within the action timeout.
	ErrTimeout = &Error{
		Code:    "TIMEOUT",
		Message: "action timed out",
	}

	// ErrDropped is delivered to every queued caller when the resource is lost
	// without having been asked to shut down.
	ErrDropped = &Error{
		Code:    "DROPPED",
		Message: "resource dropped",
	}

	// ErrHandlerFailure wraps an error reported by an adaptor handler.
	ErrHandlerFailure = &Error{
		Code:    "HANDLER_FAILURE",
		Message: "handler failed",
	}

	// ErrRestartExhausted marks the terminal give-up state after too many
	// consecutive restart attempts. It is never delivered to a callback.
	ErrRestartExhausted = &Error{
		Code:    "RESTART_EXHAUSTED",
		Message: "restart attempts exhausted",
	}

	// ErrNoHandler is attached to the diagnostic event emitted when an action
	// runs without a registered handler.
	ErrNoHandler = &Error{
		Code:    "NO_HANDLER",
		Message: "no handler registered",
	}

	// ErrInvalidOptions reports a rejected Options value.
	ErrInvalidOptions = &Error{
		Code:    "INVALID_OPTIONS",
		Message: "invalid supervisor options",
	}
)

// Error is a supervisor error carrying a machine-readable code.
// Two errors match under errors.Is when their codes are equal.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy of the error with a different message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{
		Code:    e.Code,
		Message: msg,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Cause:   cause,
	}
}

// GetError extracts an *Error from err's chain.
func GetError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func handlerFailure(action Action, cause error) error {
	// Keep supervisor errors a handler chose to report as they are.
	if _, ok := GetError(cause); ok {
		return cause
	}
	return ErrHandlerFailure.
		WithMessage(fmt.Sprintf("%s handler failed", action)).
		WithCause(cause)
}

func timeoutError(action Action, after time.Duration) error {
	return ErrTimeout.WithMessage(fmt.Sprintf("%s timed out after %s", action, after))
}
