package hook

import (
	"time"

	"github.com/dshills/hookbus/internal/payload"
)

// Result is the control decision returned by a callback. It is one of
// Continue, Modified, Cancel, Retry or Redirect.
type Result interface {
	// Action returns the wire action name.
	Action() string
	hookResult()
}

// Continue has no effect; the run proceeds.
type Continue struct{}

// Modified merges Patch into the working data for every later callback and
// for the final decision.
type Modified struct {
	Patch payload.Data
}

// Cancel aborts the remaining callbacks and the underlying operation.
type Cancel struct {
	Reason string
}

// Retry asks the caller to retry the underlying operation. Backoff is an
// advisory fixed delay per attempt; the pipeline never retries itself.
type Retry struct {
	MaxAttempts uint32
	Backoff     time.Duration
}

// Redirect asks the caller to execute Target instead.
type Redirect struct {
	Target string
}

func (Continue) hookResult() {}
func (Modified) hookResult() {}
func (Cancel) hookResult()   {}
func (Retry) hookResult()    {}
func (Redirect) hookResult() {}

// Action names used on the wire.
const (
	ActionContinue = "continue"
	ActionModified = "modified"
	ActionCancel   = "cancel"
	ActionRetry    = "retry"
	ActionRedirect = "redirect"
)

func (Continue) Action() string { return ActionContinue }
func (Modified) Action() string { return ActionModified }
func (Cancel) Action() string   { return ActionCancel }
func (Retry) Action() string    { return ActionRetry }
func (Redirect) Action() string { return ActionRedirect }

// IsTerminal reports whether r stops a pipeline run.
func IsTerminal(r Result) bool {
	switch r.(type) {
	case Cancel, Retry, Redirect:
		return true
	default:
		return false
	}
}

// MarshalJSON encodes the result in its wire shape.
func (r Continue) MarshalJSON() ([]byte, error) { return MarshalResult(r) }

// MarshalJSON encodes the result in its wire shape.
func (r Modified) MarshalJSON() ([]byte, error) { return MarshalResult(r) }

// MarshalJSON encodes the result in its wire shape.
func (r Cancel) MarshalJSON() ([]byte, error) { return MarshalResult(r) }

// MarshalJSON encodes the result in its wire shape.
func (r Retry) MarshalJSON() ([]byte, error) { return MarshalResult(r) }

// MarshalJSON encodes the result in its wire shape.
func (r Redirect) MarshalJSON() ([]byte, error) { return MarshalResult(r) }
