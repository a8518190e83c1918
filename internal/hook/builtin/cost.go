package builtin

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dshills/hookbus/internal/event"
	"github.com/dshills/hookbus/internal/hook"
)

// CostThresholdExceeded is published when a component's accumulated cost
// first reaches the threshold.
const CostThresholdExceeded = "cost.threshold.exceeded"

// DefaultCostField is the data field holding the cost of one call.
const DefaultCostField = "cost"

// CostHook accumulates cost per component.
type CostHook struct {
	publisher *event.Publisher
	threshold float64
	field     string
	logger    zerolog.Logger

	mu     sync.Mutex
	totals map[string]float64
}

// CostOption configures a CostHook.
type CostOption func(*CostHook)

// WithCostField reads the cost from field instead of DefaultCostField.
func WithCostField(field string) CostOption {
	return func(h *CostHook) {
		if field != "" {
			h.field = field
		}
	}
}

// WithCostLogger sets the logger used for publish failures.
func WithCostLogger(l zerolog.Logger) CostOption {
	return func(h *CostHook) {
		h.logger = l
	}
}

// NewCostHook creates a cost hook publishing threshold crossings through pub.
// A nil publisher only accumulates.
func NewCostHook(pub *event.Publisher, threshold float64, opts ...CostOption) *CostHook {
	h := &CostHook{
		publisher: pub,
		threshold: threshold,
		field:     DefaultCostField,
		logger:    zerolog.Nop(),
		totals:    make(map[string]float64),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements Hook.
func (h *CostHook) Name() string { return "cost" }

// Priority implements Hook.
func (h *CostHook) Priority() hook.Priority { return hook.Low }

// Call implements hook.Callback.
func (h *CostHook) Call(ctx context.Context, ec *hook.ExecutionContext) (hook.Result, error) {
	cost := ec.Data.Get(h.field)
	if !cost.Exists() {
		return hook.Continue{}, nil
	}
	component := componentOf(ec)

	h.mu.Lock()
	before := h.totals[component]
	after := before + cost.Float()
	h.totals[component] = after
	h.mu.Unlock()

	if h.threshold > 0 && before < h.threshold && after >= h.threshold {
		h.publish(ctx, ec, component, after)
	}
	return hook.Continue{}, nil
}

func (h *CostHook) publish(ctx context.Context, ec *hook.ExecutionContext, component string, total float64) {
	if h.publisher == nil {
		return
	}
	data := map[string]any{
		"component": component,
		"cost":      total,
		"threshold": h.threshold,
	}
	if _, err := h.publisher.PublishWithCorrelation(ctx, CostThresholdExceeded, data, ec.CorrelationID); err != nil {
		h.logger.Warn().Err(err).Str("component", component).Msg("cost threshold event not delivered")
	}
}

// Total returns the accumulated cost for component.
func (h *CostHook) Total(component string) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.totals[component]
}

// Reset clears the total for component, or every total when component is "".
func (h *CostHook) Reset(component string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if component == "" {
		clear(h.totals)
		return
	}
	delete(h.totals, component)
}
