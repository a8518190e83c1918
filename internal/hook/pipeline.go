package hook

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/hookbus/internal/metrics"
	"github.com/dshills/hookbus/internal/payload"
)

// DiagnosticEventType is the event type used for callback failure reports.
const DiagnosticEventType = "hook.error"

// Diagnostic reports one absorbed callback failure.
type Diagnostic struct {
	RegistrationID string
	Name           string
	Point          Point
	ComponentID    string
	CorrelationID  string
	Language       string
	Err            error
	Panicked       bool
	Policy         FailurePolicy
}

// Data returns the diagnostic as an event payload.
func (d Diagnostic) Data() payload.Data {
	msg := ""
	if d.Err != nil {
		msg = d.Err.Error()
	}
	return payload.Object(map[string]any{
		"registration_id": d.RegistrationID,
		"name":            d.Name,
		"hook_point":      string(d.Point),
		"component_id":    d.ComponentID,
		"error":           msg,
		"panic":           d.Panicked,
		"policy":          d.Policy.String(),
	})
}

// Notifier receives diagnostics for callback failures. Implementations must
// not block for long: they run inline in the pipeline.
type Notifier interface {
	Notify(ctx context.Context, d Diagnostic)
}

// NotifierFunc is a function adapter for Notifier.
type NotifierFunc func(ctx context.Context, d Diagnostic)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, d Diagnostic) {
	f(ctx, d)
}

// Decision is the outcome of a run.
type Decision struct {
	// Result is the terminal result, or Continue if no callback stopped the run.
	Result Result

	// Data is the working payload after every applied Modified patch.
	Data payload.Data

	// Executed is the number of callbacks invoked.
	Executed int

	// DecidedBy is the id of the registration that produced a terminal
	// result, or "" for Continue.
	DecidedBy string

	// Failures lists callback failures absorbed during the run.
	Failures []*CallbackError

	// Duration is the wall time of the run.
	Duration time.Duration
}

// Proceed reports whether the caller should go ahead with the operation.
func (d Decision) Proceed() bool {
	_, ok := d.Result.(Continue)
	return ok
}

// Pipeline runs the callbacks registered for a point.
type Pipeline struct {
	registry      *Registry
	policy        FailurePolicy
	notifier      Notifier
	slowThreshold time.Duration
	logger        zerolog.Logger
	metrics       metrics.Recorder
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithFailurePolicy sets how callback failures are treated.
func WithFailurePolicy(p FailurePolicy) PipelineOption {
	return func(pl *Pipeline) {
		if p != nil {
			pl.policy = p
		}
	}
}

// WithNotifier sets the receiver of failure diagnostics.
func WithNotifier(n Notifier) PipelineOption {
	return func(pl *Pipeline) {
		pl.notifier = n
	}
}

// WithSlowThreshold logs a warning for callbacks slower than d. Zero disables
// the check.
func WithSlowThreshold(d time.Duration) PipelineOption {
	return func(pl *Pipeline) {
		pl.slowThreshold = d
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l zerolog.Logger) PipelineOption {
	return func(pl *Pipeline) {
		pl.logger = l
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) PipelineOption {
	return func(pl *Pipeline) {
		pl.metrics = metrics.OrNop(r)
	}
}

// NewPipeline creates a pipeline over registry.
func NewPipeline(registry *Registry, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		registry:      registry,
		policy:        FailOpen{},
		slowThreshold: 100 * time.Millisecond,
		logger:        zerolog.Nop(),
		metrics:       metrics.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Registry returns the registry the pipeline reads.
func (p *Pipeline) Registry() *Registry {
	return p.registry
}

// Policy returns the configured failure policy.
func (p *Pipeline) Policy() FailurePolicy {
	return p.policy
}

// Run executes the callbacks registered at point in (priority, sequence)
// order on the calling goroutine.
//
// Continue advances and Modified merges its patch into the working data.
// Cancel, Retry and Redirect stop the run and become the decision. Callback
// failures follow the failure policy and are never returned. Run only fails
// if ctx is done between callbacks.
func (p *Pipeline) Run(ctx context.Context, point Point, ec ExecutionContext) (Decision, error) {
	start := time.Now()
	ec.Point = point
	d := Decision{Result: Continue{}, Data: ec.Data}

	for _, reg := range p.registry.snapshot(point) {
		if !reg.enabled.Load() {
			continue
		}
		if err := ctx.Err(); err != nil {
			d.Duration = time.Since(start)
			return d, err
		}

		call := ec.clone()
		call.Data = d.Data
		res, cbErr := p.invoke(ctx, reg, call)
		d.Executed++

		if m, ok := res.(Modified); ok && cbErr == nil {
			merged, err := d.Data.Merge(m.Patch)
			if err == nil {
				d.Data = merged
				continue
			}
			cbErr = &CallbackError{RegistrationID: reg.id, Name: reg.name, Point: point, Err: err}
		}
		if cbErr != nil {
			p.fail(ctx, reg, &ec, cbErr)
			d.Failures = append(d.Failures, cbErr)
			if _, closed := p.policy.(FailClosed); !closed {
				continue
			}
			res = Cancel{Reason: cbErr.Error()}
		}

		if IsTerminal(res) {
			d.Result = res
			d.DecidedBy = reg.id
			p.logger.Debug().
				Str("point", string(point)).
				Str("component", ec.ComponentID).
				Str("action", res.Action()).
				Str("decided_by", reg.id).
				Msg("hook run stopped")
			break
		}
	}

	d.Duration = time.Since(start)
	return d, nil
}

// RunRegistration invokes a single registration directly, outside of any
// ordering. It returns ErrRegistrationNotFound for an unknown id and the
// callback failure, if any, as a *CallbackError.
func (p *Pipeline) RunRegistration(ctx context.Context, id string, ec ExecutionContext) (Result, error) {
	reg, ok := p.registry.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRegistrationNotFound, id)
	}
	ec.Point = reg.point
	res, cbErr := p.invoke(ctx, reg, ec.clone())
	if cbErr != nil {
		return nil, cbErr
	}
	return res, nil
}

// invoke calls one callback with panic recovery, timing and metrics.
func (p *Pipeline) invoke(ctx context.Context, reg *registration, ec *ExecutionContext) (res Result, cbErr *CallbackError) {
	start := time.Now()
	defer func() {
		if v := recover(); v != nil {
			res = nil
			cbErr = &CallbackError{
				RegistrationID: reg.id,
				Name:           reg.name,
				Point:          reg.point,
				Err:            fmt.Errorf("panic: %v", v),
				Panicked:       true,
				PanicValue:     v,
				Stack:          debug.Stack(),
			}
		}

		elapsed := time.Since(start)
		p.metrics.IncCounter(metrics.HookExecutions, 1, "point", string(reg.point))
		p.metrics.RecordTimer(metrics.HookDuration, elapsed, "point", string(reg.point))
		if p.slowThreshold > 0 && elapsed > p.slowThreshold {
			p.logger.Warn().
				Str("id", reg.id).
				Str("name", reg.name).
				Str("point", string(reg.point)).
				Dur("elapsed", elapsed).
				Dur("threshold", p.slowThreshold).
				Msg("slow hook callback")
		}
	}()

	r, err := reg.callback.Call(ctx, ec)
	if err != nil {
		return nil, &CallbackError{RegistrationID: reg.id, Name: reg.name, Point: reg.point, Err: err}
	}
	if r == nil {
		r = Continue{}
	}
	return r, nil
}

// fail records, logs and reports a callback failure.
func (p *Pipeline) fail(ctx context.Context, reg *registration, ec *ExecutionContext, cbErr *CallbackError) {
	p.metrics.IncCounter(metrics.HookFailures, 1, "point", string(reg.point), "policy", p.policy.String())
	p.logger.Warn().
		Err(cbErr.Err).
		Str("id", reg.id).
		Str("name", reg.name).
		Str("point", string(reg.point)).
		Str("component", ec.ComponentID).
		Bool("panic", cbErr.Panicked).
		Str("policy", p.policy.String()).
		Msg("hook callback failed")

	if p.notifier == nil {
		return
	}
	p.notifier.Notify(ctx, Diagnostic{
		RegistrationID: reg.id,
		Name:           reg.name,
		Point:          reg.point,
		ComponentID:    ec.ComponentID,
		CorrelationID:  ec.CorrelationID,
		Language:       reg.language,
		Err:            cbErr,
		Panicked:       cbErr.Panicked,
		Policy:         p.policy,
	})
}
