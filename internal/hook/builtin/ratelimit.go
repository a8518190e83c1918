package builtin

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dshills/hookbus/internal/hook"
)

// RateLimitHook applies a token bucket per component. When a component's
// bucket is empty it answers Retry with the delay until the next token.
type RateLimitHook struct {
	limit       rate.Limit
	burst       int
	maxAttempts uint32
	now         func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimitHook allows perSecond calls per component with the given
// burst. maxAttempts is carried on the Retry result; zero means
// hook.DefaultRetryAttempts.
func NewRateLimitHook(perSecond float64, burst int, maxAttempts uint32) *RateLimitHook {
	if maxAttempts == 0 {
		maxAttempts = hook.DefaultRetryAttempts
	}
	return &RateLimitHook{
		limit:       rate.Limit(perSecond),
		burst:       max(burst, 1),
		maxAttempts: maxAttempts,
		now:         time.Now,
		limiters:    make(map[string]*rate.Limiter),
	}
}

// Name implements Hook.
func (h *RateLimitHook) Name() string { return "rate_limit" }

// Priority implements Hook.
func (h *RateLimitHook) Priority() hook.Priority { return hook.High }

// Call implements hook.Callback.
func (h *RateLimitHook) Call(_ context.Context, ec *hook.ExecutionContext) (hook.Result, error) {
	lim := h.limiter(componentOf(ec))
	now := h.now()

	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return hook.Retry{MaxAttempts: h.maxAttempts, Backoff: hook.DefaultRetryBackoff}, nil
	}
	delay := r.DelayFrom(now)
	if delay == 0 {
		return hook.Continue{}, nil
	}
	// Give the token back; the caller retries instead of waiting here.
	r.CancelAt(now)
	return hook.Retry{MaxAttempts: h.maxAttempts, Backoff: delay}, nil
}

// Reset drops the bucket for component, or every bucket when component is "".
func (h *RateLimitHook) Reset(component string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if component == "" {
		clear(h.limiters)
		return
	}
	delete(h.limiters, component)
}

func (h *RateLimitHook) limiter(component string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	lim, ok := h.limiters[component]
	if !ok {
		lim = rate.NewLimiter(h.limit, h.burst)
		h.limiters[component] = lim
	}
	return lim
}
