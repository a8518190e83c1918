package event

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// ErrSubscriberClosed is returned when subscribing through a closed Subscriber.
var ErrSubscriberClosed = errors.New("subscriber is closed")

// Subscriber tracks the subscriptions owned by one component so they can be
// released together on shutdown.
type Subscriber struct {
	bus *Bus

	mu     sync.Mutex
	ids    []string
	closed bool
}

// NewSubscriber creates a Subscriber on bus.
func NewSubscriber(bus *Bus) *Subscriber {
	return &Subscriber{bus: bus}
}

// Subscribe creates a tracked subscription.
func (s *Subscriber) Subscribe(pattern string, opts ...SubscribeOption) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrSubscriberClosed
	}
	id, err := s.bus.Subscribe(pattern, opts...)
	if err != nil {
		return "", err
	}
	s.ids = append(s.ids, id)
	return id, nil
}

// Owns reports whether id was created through s and is still tracked.
func (s *Subscriber) Owns(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.ids, id)
}

// Receive receives from a tracked subscription.
func (s *Subscriber) Receive(ctx context.Context, id string, timeout time.Duration) (Event, bool, error) {
	if !s.Owns(id) {
		return Event{}, false, ErrSubscriptionNotFound
	}
	return s.bus.Receive(ctx, id, timeout)
}

// ReceiveBatch receives a batch from a tracked subscription.
func (s *Subscriber) ReceiveBatch(ctx context.Context, id string, opts BatchOptions) ([]Event, error) {
	if !s.Owns(id) {
		return nil, ErrSubscriptionNotFound
	}
	return s.bus.ReceiveBatch(ctx, id, opts)
}

// Unsubscribe removes a tracked subscription.
func (s *Subscriber) Unsubscribe(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.Index(s.ids, id)
	if i < 0 {
		return ErrSubscriptionNotFound
	}
	s.ids = slices.Delete(s.ids, i, i+1)
	return s.bus.Unsubscribe(id)
}

// UnsubscribeAll removes every tracked subscription.
func (s *Subscriber) UnsubscribeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.ids {
		_ = s.bus.Unsubscribe(id)
	}
	s.ids = s.ids[:0]
}

// Close removes every tracked subscription and prevents new ones.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	for _, id := range s.ids {
		_ = s.bus.Unsubscribe(id)
	}
	s.ids = nil
	return nil
}

// Count returns the number of tracked subscriptions.
func (s *Subscriber) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Bus returns the underlying bus.
func (s *Subscriber) Bus() *Bus {
	return s.bus
}
