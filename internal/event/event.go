package event

import (
	"encoding/json"
	"time"

	"github.com/dshills/hookbus/internal/event/topic"
	"github.com/dshills/hookbus/internal/payload"
)

// Event is a published message. Events are immutable once published and the
// same value is handed to every matching subscription.
type Event struct {
	// ID uniquely identifies this publication.
	ID string

	// Type is the dot-delimited event type, e.g. "agent.error".
	Type string

	// Data is the event payload.
	Data payload.Data

	// Metadata describes where the event came from.
	Metadata Metadata
}

// Metadata is attached to every event. Language is opaque to the bus.
type Metadata struct {
	// Language tags the runtime that published the event ("go", "lua", ...).
	Language string

	// CorrelationID links related events and hook runs.
	CorrelationID string

	// Source names the publishing component.
	Source string

	// Timestamp is when the event was published.
	Timestamp time.Time
}

// Topic returns the event type as a topic.
func (e Event) Topic() topic.Topic {
	return topic.Topic(e.Type)
}

// Matches reports whether the event type matches pattern.
func (e Event) Matches(pattern string) bool {
	return topic.Match(pattern, e.Type)
}

type wireSource struct {
	Language      string `json:"language,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Component     string `json:"component,omitempty"`
}

type wireEvent struct {
	ID        string       `json:"id,omitempty"`
	EventType string       `json:"event_type"`
	Data      payload.Data `json:"data"`
	Source    wireSource   `json:"source"`
	Timestamp time.Time    `json:"timestamp"`
}

// MarshalJSON encodes the event in its wire shape:
//
//	{"event_type": ..., "data": ..., "source": {"language": ..., "correlation_id": ...}, "timestamp": ...}
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEvent{
		ID:        e.ID,
		EventType: e.Type,
		Data:      e.Data,
		Source: wireSource{
			Language:      e.Metadata.Language,
			CorrelationID: e.Metadata.CorrelationID,
			Component:     e.Metadata.Source,
		},
		Timestamp: e.Metadata.Timestamp,
	})
}

// UnmarshalJSON decodes the wire shape produced by MarshalJSON.
func (e *Event) UnmarshalJSON(b []byte) error {
	var w wireEvent
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*e = Event{
		ID:   w.ID,
		Type: w.EventType,
		Data: w.Data,
		Metadata: Metadata{
			Language:      w.Source.Language,
			CorrelationID: w.Source.CorrelationID,
			Source:        w.Source.Component,
			Timestamp:     w.Timestamp,
		},
	}
	return nil
}
