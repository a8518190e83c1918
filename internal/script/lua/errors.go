package lua

import "errors"

// Errors for Lua engines.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrNoBus is raised in scripts that use events on an engine without a bus.
	ErrNoBus = errors.New("no event bus attached")
)
