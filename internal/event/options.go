package event

import (
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/dshills/hookbus/internal/metrics"
)

// DefaultCapacity is the queue capacity used when none is configured.
const DefaultCapacity = 10000

// BusOption configures a Bus.
type BusOption func(*busConfig)

type busConfig struct {
	capacity int
	policy   OverflowPolicy
	limit    rate.Limit
	burst    int
	logger   zerolog.Logger
	recorder metrics.Recorder
}

func defaultBusConfig() busConfig {
	return busConfig{
		capacity: DefaultCapacity,
		policy:   DropOldest{},
		limit:    rate.Inf,
		logger:   zerolog.Nop(),
		recorder: metrics.Nop(),
	}
}

// WithDefaultCapacity sets the queue capacity for subscriptions that do not
// choose their own.
func WithDefaultCapacity(n int) BusOption {
	return func(c *busConfig) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithDefaultOverflowPolicy sets the policy for subscriptions that do not
// choose their own.
func WithDefaultOverflowPolicy(p OverflowPolicy) BusOption {
	return func(c *busConfig) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithRateLimit caps the publish rate with a token bucket. Publishes beyond
// the limit fail with ErrRateLimited. A non-positive perSecond disables it.
func WithRateLimit(perSecond float64, burst int) BusOption {
	return func(c *busConfig) {
		if perSecond <= 0 {
			c.limit = rate.Inf
			return
		}
		c.limit = rate.Limit(perSecond)
		c.burst = max(burst, 1)
	}
}

// WithLogger sets the bus logger.
func WithLogger(l zerolog.Logger) BusOption {
	return func(c *busConfig) {
		c.logger = l
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) BusOption {
	return func(c *busConfig) {
		c.recorder = metrics.OrNop(r)
	}
}

// SubscribeOption configures a single subscription.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	capacity int
	policy   OverflowPolicy
	filter   FilterFunc
	name     string
}

// WithCapacity sets the subscription's queue capacity.
func WithCapacity(n int) SubscribeOption {
	return func(c *subscribeConfig) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithOverflowPolicy sets the subscription's overflow policy.
func WithOverflowPolicy(p OverflowPolicy) SubscribeOption {
	return func(c *subscribeConfig) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithFilter adds a predicate evaluated after pattern matching. Events it
// rejects are not queued and do not count as deliveries.
func WithFilter(f FilterFunc) SubscribeOption {
	return func(c *subscribeConfig) {
		c.filter = f
	}
}

// WithName labels the subscription in logs and SubscriptionInfo.
func WithName(name string) SubscribeOption {
	return func(c *subscribeConfig) {
		c.name = name
	}
}

// PublishOption sets event metadata.
type PublishOption func(*Metadata)

// WithSource sets the publishing component.
func WithSource(source string) PublishOption {
	return func(m *Metadata) {
		m.Source = source
	}
}

// WithLanguage tags the publishing runtime.
func WithLanguage(lang string) PublishOption {
	return func(m *Metadata) {
		m.Language = lang
	}
}

// WithCorrelationID links the event to a correlation id.
func WithCorrelationID(id string) PublishOption {
	return func(m *Metadata) {
		m.CorrelationID = id
	}
}
