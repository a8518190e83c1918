package event

import (
	"context"

	"github.com/dshills/hookbus/internal/payload"
)

// Publisher publishes events on behalf of one component, stamping each with
// the component's source and language.
type Publisher struct {
	bus      *Bus
	source   string
	language string
}

// NewPublisher creates a Publisher for source. language may be empty.
func NewPublisher(bus *Bus, source, language string) *Publisher {
	return &Publisher{
		bus:      bus,
		source:   source,
		language: language,
	}
}

// Publish encodes data with payload.New and publishes it.
func (p *Publisher) Publish(ctx context.Context, eventType string, data any, opts ...PublishOption) (int, error) {
	d, err := payload.New(data)
	if err != nil {
		return 0, err
	}
	base := []PublishOption{WithSource(p.source), WithLanguage(p.language)}
	return p.bus.Publish(ctx, eventType, d, append(base, opts...)...)
}

// PublishWithCorrelation publishes data linked to correlationID.
func (p *Publisher) PublishWithCorrelation(ctx context.Context, eventType string, data any, correlationID string) (int, error) {
	return p.Publish(ctx, eventType, data, WithCorrelationID(correlationID))
}

// Source returns the component name stamped on events.
func (p *Publisher) Source() string {
	return p.source
}

// Bus returns the underlying bus.
func (p *Publisher) Bus() *Bus {
	return p.bus
}
