package hook

import (
	"errors"
	"fmt"
)

// Sentinel errors for the hook package.
var (
	// ErrRegistrationNotFound is returned for an unknown registration id.
	ErrRegistrationNotFound = errors.New("hook registration not found")

	// ErrInvalidPriority is returned for an unknown priority token.
	ErrInvalidPriority = errors.New("invalid hook priority")

	// ErrInvalidPoint is returned for a malformed hook point name.
	ErrInvalidPoint = errors.New("invalid hook point")

	// ErrInvalidResult is returned when a result cannot be decoded.
	ErrInvalidResult = errors.New("invalid hook result")

	// ErrCallbackFailure matches every *CallbackError.
	ErrCallbackFailure = errors.New("hook callback failure")
)

// CallbackError describes a callback that returned an error or panicked
// instead of producing a result.
type CallbackError struct {
	RegistrationID string
	Name           string
	Point          Point
	Err            error
	Panicked       bool
	PanicValue     any
	Stack          []byte
}

// Error implements the error interface.
func (e *CallbackError) Error() string {
	label := e.RegistrationID
	if e.Name != "" {
		label = e.Name + " (" + e.RegistrationID + ")"
	}
	if e.Panicked {
		return fmt.Sprintf("hook %s at %s panicked: %v", label, e.Point, e.PanicValue)
	}
	return fmt.Sprintf("hook %s at %s failed: %v", label, e.Point, e.Err)
}

// Unwrap returns the callback's error.
func (e *CallbackError) Unwrap() error {
	return e.Err
}

// Is matches ErrCallbackFailure.
func (e *CallbackError) Is(target error) bool {
	return target == ErrCallbackFailure
}
