package builtin

import (
	"context"
	"maps"
	"sync"

	"github.com/dshills/hookbus/internal/hook"
	"github.com/dshills/hookbus/internal/metrics"
)

// MetricInvocations counts invocations seen by MetricsHook.
const MetricInvocations = "hookbus.builtin.invocations"

// MetricsHook counts invocations per point, locally and through a Recorder.
type MetricsHook struct {
	recorder metrics.Recorder

	mu     sync.Mutex
	counts map[hook.Point]uint64
}

// NewMetricsHook creates a metrics hook. A nil recorder only counts locally.
func NewMetricsHook(rec metrics.Recorder) *MetricsHook {
	return &MetricsHook{
		recorder: metrics.OrNop(rec),
		counts:   make(map[hook.Point]uint64),
	}
}

// Name implements Hook.
func (h *MetricsHook) Name() string { return "metrics" }

// Priority implements Hook.
func (h *MetricsHook) Priority() hook.Priority { return hook.Lowest }

// Call implements hook.Callback.
func (h *MetricsHook) Call(_ context.Context, ec *hook.ExecutionContext) (hook.Result, error) {
	h.mu.Lock()
	h.counts[ec.Point]++
	h.mu.Unlock()

	h.recorder.IncCounter(MetricInvocations, 1, "point", string(ec.Point))
	return hook.Continue{}, nil
}

// Count returns the invocations seen at point.
func (h *MetricsHook) Count(point hook.Point) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[point]
}

// Counts returns a copy of every per-point count.
func (h *MetricsHook) Counts() map[hook.Point]uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return maps.Clone(h.counts)
}
