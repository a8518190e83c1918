package hook

import (
	"context"
	"maps"

	"github.com/dshills/hookbus/internal/payload"
)

// ExecutionContext is passed to every callback in a run.
type ExecutionContext struct {
	// ComponentID identifies the agent, tool or workflow being intercepted.
	ComponentID string

	// Point is the hook point being run. The pipeline sets it.
	Point Point

	// Data is the working payload. Callbacks change it by returning Modified.
	Data payload.Data

	// Metadata carries caller-supplied string attributes.
	Metadata map[string]string

	// Language tags the calling runtime. It is opaque to the pipeline.
	Language string

	// CorrelationID links the run to events it causes.
	CorrelationID string
}

// clone returns a copy whose Metadata map is independent of ec's.
func (ec ExecutionContext) clone() *ExecutionContext {
	ec.Metadata = maps.Clone(ec.Metadata)
	return &ec
}

// Meta returns a metadata value or "".
func (ec *ExecutionContext) Meta(key string) string {
	if ec == nil || ec.Metadata == nil {
		return ""
	}
	return ec.Metadata[key]
}

// Callback is invoked by the pipeline. Returning an error (or panicking)
// instead of a result is a callback failure handled by the FailurePolicy. A
// nil Result means Continue.
type Callback interface {
	Call(ctx context.Context, ec *ExecutionContext) (Result, error)
}

// CallbackFunc is a function adapter for Callback.
type CallbackFunc func(ctx context.Context, ec *ExecutionContext) (Result, error)

// Call implements Callback.
func (f CallbackFunc) Call(ctx context.Context, ec *ExecutionContext) (Result, error) {
	if f == nil {
		return Continue{}, nil
	}
	return f(ctx, ec)
}
