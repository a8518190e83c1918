package builtin

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/dshills/hookbus/internal/hook"
	"github.com/dshills/hookbus/internal/metrics"
)

// Retry hook metrics.
const (
	MetricRetries   = "hookbus.builtin.retry.attempts"
	MetricExhausted = "hookbus.builtin.retry.exhausted"
)

// DefaultRetryableErrors are matched when no retryable list is configured.
var DefaultRetryableErrors = []string{"connection", "timeout", "unavailable", "internal_server_error", "rate limit"}

// ErrorPoints are the points RetryHook handles.
var ErrorPoints = []hook.Point{hook.AgentError, hook.ToolError, hook.WorkflowError}

// RetryHook answers error points with Retry while a component's failure is
// retryable and attempts remain. Delays grow exponentially per component and
// point. The failing call counts as the first attempt, so MaxAttempts of 3
// yields two Retry answers before the hook gives up with Continue.
type RetryHook struct {
	maxAttempts  uint32
	initial      time.Duration
	maxInterval  time.Duration
	multiplier   float64
	jitter       float64
	maxElapsed   time.Duration
	retryable    []string
	nonRetryable []string
	clock        backoff.Clock
	recorder     metrics.Recorder
	logger       zerolog.Logger

	mu     sync.Mutex
	states map[string]*retryState
}

type retryState struct {
	attempts uint32
	backoff  backoff.BackOff
}

// RetryOption configures a RetryHook.
type RetryOption func(*RetryHook)

// WithBackoff sets the first delay, the delay cap and the growth factor.
func WithBackoff(initial, maxInterval time.Duration, multiplier float64) RetryOption {
	return func(h *RetryHook) {
		if initial > 0 {
			h.initial = initial
		}
		if maxInterval > 0 {
			h.maxInterval = maxInterval
		}
		if multiplier >= 1 {
			h.multiplier = multiplier
		}
	}
}

// WithJitter randomizes each delay by up to factor of its value.
func WithJitter(factor float64) RetryOption {
	return func(h *RetryHook) {
		if factor >= 0 && factor < 1 {
			h.jitter = factor
		}
	}
}

// WithMaxRetryDuration gives up once retrying a failure would run past d.
func WithMaxRetryDuration(d time.Duration) RetryOption {
	return func(h *RetryHook) {
		h.maxElapsed = d
	}
}

// WithRetryableErrors replaces the substrings that mark an error retryable.
func WithRetryableErrors(patterns ...string) RetryOption {
	return func(h *RetryHook) {
		if len(patterns) > 0 {
			h.retryable = lowerAll(patterns)
		}
	}
}

// WithNonRetryableErrors adds substrings that are never retried. They take
// precedence over retryable ones.
func WithNonRetryableErrors(patterns ...string) RetryOption {
	return func(h *RetryHook) {
		h.nonRetryable = append(h.nonRetryable, lowerAll(patterns)...)
	}
}

// WithRetryRecorder counts retries and exhausted failures.
func WithRetryRecorder(r metrics.Recorder) RetryOption {
	return func(h *RetryHook) {
		h.recorder = metrics.OrNop(r)
	}
}

// WithRetryLogger sets the logger.
func WithRetryLogger(l zerolog.Logger) RetryOption {
	return func(h *RetryHook) {
		h.logger = l
	}
}

func withRetryClock(c backoff.Clock) RetryOption {
	return func(h *RetryHook) {
		h.clock = c
	}
}

// NewRetryHook creates a retry hook. Zero maxAttempts means
// hook.DefaultRetryAttempts.
func NewRetryHook(maxAttempts uint32, opts ...RetryOption) *RetryHook {
	if maxAttempts == 0 {
		maxAttempts = hook.DefaultRetryAttempts
	}
	h := &RetryHook{
		maxAttempts: maxAttempts,
		initial:     100 * time.Millisecond,
		maxInterval: time.Minute,
		multiplier:  2,
		retryable:   lowerAll(DefaultRetryableErrors),
		clock:       backoff.SystemClock,
		recorder:    metrics.Nop(),
		logger:      zerolog.Nop(),
		states:      make(map[string]*retryState),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements Hook.
func (h *RetryHook) Name() string { return "retry" }

// Priority implements Hook.
func (h *RetryHook) Priority() hook.Priority { return hook.Low }

// Call implements hook.Callback. The error is read from the "error" metadata
// key, then the "error" and "result.error" data fields.
func (h *RetryHook) Call(_ context.Context, ec *hook.ExecutionContext) (hook.Result, error) {
	reason := failureOf(ec)
	if reason == "" || !h.isRetryable(reason) {
		return hook.Continue{}, nil
	}
	key := string(ec.Point) + ":" + componentOf(ec)

	h.mu.Lock()
	defer h.mu.Unlock()

	st, ok := h.states[key]
	if !ok {
		st = &retryState{backoff: h.newBackOff()}
		h.states[key] = st
	}
	st.attempts++

	if st.attempts >= h.maxAttempts {
		delete(h.states, key)
		h.exhausted(ec, reason, "max attempts reached")
		return hook.Continue{}, nil
	}
	delay := st.backoff.NextBackOff()
	if delay == backoff.Stop {
		delete(h.states, key)
		h.exhausted(ec, reason, "max retry duration reached")
		return hook.Continue{}, nil
	}

	h.recorder.IncCounter(MetricRetries, 1, "point", string(ec.Point))
	h.logger.Debug().
		Str("component", componentOf(ec)).
		Str("point", string(ec.Point)).
		Uint32("attempt", st.attempts).
		Dur("delay", delay).
		Str("reason", reason).
		Msg("retrying")
	return hook.Retry{MaxAttempts: h.maxAttempts - st.attempts, Backoff: delay}, nil
}

// Attempts returns the failures counted for component at point since the
// last reset.
func (h *RetryHook) Attempts(point hook.Point, component string) uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if st, ok := h.states[string(point)+":"+component]; ok {
		return st.attempts
	}
	return 0
}

// Reset forgets every failure of component, or of all components when
// component is "".
func (h *RetryHook) Reset(component string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if component == "" {
		clear(h.states)
		return
	}
	for key := range h.states {
		if strings.HasSuffix(key, ":"+component) {
			delete(h.states, key)
		}
	}
}

func (h *RetryHook) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.initial
	b.MaxInterval = h.maxInterval
	b.Multiplier = h.multiplier
	b.RandomizationFactor = h.jitter
	b.MaxElapsedTime = h.maxElapsed
	b.Clock = h.clock
	b.Reset()
	return b
}

func (h *RetryHook) isRetryable(reason string) bool {
	r := strings.ToLower(reason)
	for _, p := range h.nonRetryable {
		if strings.Contains(r, p) {
			return false
		}
	}
	for _, p := range h.retryable {
		if strings.Contains(r, p) {
			return true
		}
	}
	return false
}

func (h *RetryHook) exhausted(ec *hook.ExecutionContext, reason, why string) {
	h.recorder.IncCounter(MetricExhausted, 1, "point", string(ec.Point))
	h.logger.Warn().
		Str("component", componentOf(ec)).
		Str("point", string(ec.Point)).
		Str("reason", reason).
		Str("cause", why).
		Msg("giving up retry")
}

func failureOf(ec *hook.ExecutionContext) string {
	if s := ec.Meta("error"); s != "" {
		return s
	}
	if r := ec.Data.Get("error"); r.Exists() {
		return r.String()
	}
	return ec.Data.Get("result.error").String()
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
