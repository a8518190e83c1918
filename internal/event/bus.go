package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/dshills/hookbus/internal/event/topic"
	"github.com/dshills/hookbus/internal/metrics"
	"github.com/dshills/hookbus/internal/payload"
)

// Bus is the pattern-matching publish/subscribe hub. Construct it with NewBus
// and release it with Close. Multiple independent buses may coexist.
type Bus struct {
	config  busConfig
	table   *table
	limiter *rate.Limiter
	logger  zerolog.Logger
	metrics metrics.Recorder

	closed atomic.Bool

	published   atomic.Uint64
	delivered   atomic.Uint64
	dropped     atomic.Uint64
	rejected    atomic.Uint64
	rateLimited atomic.Uint64
}

// NewBus creates a new event bus with the given options.
func NewBus(opts ...BusOption) *Bus {
	config := defaultBusConfig()
	for _, opt := range opts {
		opt(&config)
	}

	b := &Bus{
		config:  config,
		table:   newTable(),
		logger:  config.logger.With().Str("component", "event.bus").Logger(),
		metrics: config.recorder,
	}
	if config.limit != rate.Inf {
		b.limiter = rate.NewLimiter(config.limit, config.burst)
	}
	return b
}

// Subscribe registers a new subscription for pattern and returns its id.
// It fails with an error wrapping topic.ErrInvalidPattern if the pattern is
// malformed.
func (b *Bus) Subscribe(pattern string, opts ...SubscribeOption) (string, error) {
	if b.closed.Load() {
		return "", ErrBusClosed
	}
	if err := topic.ValidatePattern(pattern); err != nil {
		return "", err
	}

	cfg := subscribeConfig{
		capacity: b.config.capacity,
		policy:   b.config.policy,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	sub := &subscription{
		id:        uuid.NewString(),
		pattern:   pattern,
		name:      cfg.name,
		policy:    cfg.policy,
		filter:    cfg.filter,
		queue:     newQueue(cfg.capacity),
		createdAt: time.Now(),
	}
	b.table.add(sub)

	// Close may have raced with the insert above.
	if b.closed.Load() {
		b.table.remove(sub.id)
		sub.queue.close()
		return "", ErrBusClosed
	}

	b.logger.Debug().
		Str("subscription", sub.id).
		Str("pattern", pattern).
		Int("capacity", cfg.capacity).
		Str("policy", cfg.policy.String()).
		Msg("subscribed")
	return sub.id, nil
}

// Unsubscribe removes a subscription and discards its queued events. Any
// consumer blocked in Receive on it returns ErrSubscriptionClosed.
func (b *Bus) Unsubscribe(id string) error {
	sub, ok := b.table.remove(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSubscriptionNotFound, id)
	}
	sub.queue.close()
	b.logger.Debug().Str("subscription", id).Str("pattern", sub.pattern).Msg("unsubscribed")
	return nil
}

// Publish delivers a new event to every live subscription whose pattern
// matches eventType and returns how many queues accepted it.
//
// Subscriptions are visited in creation order. Queues with room accept the
// event immediately; full queues apply their overflow policy. Blocking
// policies wait concurrently so one stalled consumer never delays another.
// When any subscription rejects the event Publish returns a *DeliveryError
// together with the count of successful deliveries.
func (b *Bus) Publish(ctx context.Context, eventType string, data payload.Data, opts ...PublishOption) (int, error) {
	if b.closed.Load() {
		return 0, ErrBusClosed
	}
	if err := topic.ValidateType(eventType); err != nil {
		return 0, err
	}
	if b.limiter != nil && !b.limiter.Allow() {
		b.rateLimited.Add(1)
		b.metrics.IncCounter(metrics.EventRejected, 1, "type", eventType, "reason", "rate_limited")
		return 0, ErrRateLimited
	}

	meta := Metadata{Timestamp: time.Now()}
	for _, opt := range opts {
		opt(&meta)
	}
	ev := Event{
		ID:       uuid.NewString(),
		Type:     eventType,
		Data:     data,
		Metadata: meta,
	}

	b.published.Add(1)
	b.metrics.IncCounter(metrics.EventPublished, 1, "type", eventType)

	var (
		delivered int
		failures  []DeliveryFailure
		blocked   []*subscription
	)
	for _, sub := range b.table.match(eventType) {
		if !sub.accepts(ev) {
			continue
		}
		ok, err := sub.queue.tryPush(ev)
		if err != nil {
			continue // unsubscribed concurrently
		}
		if ok {
			b.recordDelivery(sub)
			delivered++
			continue
		}

		switch p := sub.policy.(type) {
		case DropOldest:
			evicted, err := sub.queue.pushDropOldest(ev)
			if err != nil {
				continue
			}
			if evicted {
				sub.dropped.Add(1)
				b.dropped.Add(1)
				b.metrics.IncCounter(metrics.EventDropped, 1, "pattern", sub.pattern)
				b.logger.Debug().Str("subscription", sub.id).Str("type", eventType).Msg("queue full, dropped oldest event")
			}
			b.recordDelivery(sub)
			delivered++
		case Block:
			if p.Timeout <= 0 {
				failures = append(failures, b.reject(sub, ErrQueueOverflow))
				continue
			}
			blocked = append(blocked, sub)
		case Fail:
			failures = append(failures, b.reject(sub, ErrQueueOverflow))
		}
	}

	if len(blocked) > 0 {
		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)
		for _, sub := range blocked {
			timeout := sub.policy.(Block).Timeout
			wg.Go(func() {
				err := sub.queue.pushWait(ctx, ev, timeout)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					b.recordDelivery(sub)
					delivered++
				case errors.Is(err, ErrSubscriptionClosed):
				case errors.Is(err, ErrQueueOverflow):
					failures = append(failures, b.reject(sub, fmt.Errorf("%w: no room after %s", ErrQueueOverflow, timeout)))
				default:
					failures = append(failures, b.reject(sub, err))
				}
			})
		}
		wg.Wait()
	}

	if len(failures) > 0 {
		return delivered, &DeliveryError{EventType: eventType, Failures: failures}
	}
	return delivered, nil
}

func (b *Bus) recordDelivery(sub *subscription) {
	sub.delivered.Add(1)
	b.delivered.Add(1)
	b.metrics.IncCounter(metrics.EventDelivered, 1, "pattern", sub.pattern)
}

func (b *Bus) reject(sub *subscription, err error) DeliveryFailure {
	sub.rejected.Add(1)
	b.rejected.Add(1)
	b.metrics.IncCounter(metrics.EventRejected, 1, "pattern", sub.pattern, "reason", "overflow")
	b.logger.Debug().Err(err).Str("subscription", sub.id).Msg("event rejected")
	return DeliveryFailure{SubscriptionID: sub.id, Pattern: sub.pattern, Err: err}
}

// Receive pops the oldest queued event, waiting up to timeout if the queue is
// empty. A timeout is not an error: it returns ok == false. A non-positive
// timeout never waits.
func (b *Bus) Receive(ctx context.Context, id string, timeout time.Duration) (Event, bool, error) {
	sub, err := b.lookup(id)
	if err != nil {
		return Event{}, false, err
	}
	events, err := sub.queue.wait(ctx, 1, time.Now().Add(timeout))
	if err != nil || len(events) == 0 {
		return Event{}, false, err
	}
	return events[0], true, nil
}

// BatchOptions bounds a ReceiveBatch call.
type BatchOptions struct {
	// MaxEvents is the largest number of events returned.
	MaxEvents int
	// Timeout bounds the total wait.
	Timeout time.Duration
}

// ReceiveBatch returns up to opts.MaxEvents events. It waits up to
// opts.Timeout for the first event, then returns everything available up to
// the limit without waiting further. The result may be empty.
func (b *Bus) ReceiveBatch(ctx context.Context, id string, opts BatchOptions) ([]Event, error) {
	sub, err := b.lookup(id)
	if err != nil {
		return nil, err
	}
	if opts.MaxEvents <= 0 {
		return nil, nil
	}
	return sub.queue.wait(ctx, opts.MaxEvents, time.Now().Add(opts.Timeout))
}

func (b *Bus) lookup(id string) (*subscription, error) {
	if b.closed.Load() {
		return nil, ErrBusClosed
	}
	sub, ok := b.table.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, id)
	}
	return sub, nil
}

// Subscription returns a snapshot of one subscription.
func (b *Bus) Subscription(id string) (SubscriptionInfo, error) {
	sub, err := b.lookup(id)
	if err != nil {
		return SubscriptionInfo{}, err
	}
	return sub.info(), nil
}

// Subscriptions returns snapshots of every live subscription in creation
// order.
func (b *Bus) Subscriptions() []SubscriptionInfo {
	subs := b.table.all()
	infos := make([]SubscriptionInfo, len(subs))
	for i, s := range subs {
		infos[i] = s.info()
	}
	return infos
}

// Stats returns aggregate bus statistics.
func (b *Bus) Stats() Stats {
	return Stats{
		Published:     b.published.Load(),
		Delivered:     b.delivered.Load(),
		Dropped:       b.dropped.Load(),
		Rejected:      b.rejected.Load(),
		RateLimited:   b.rateLimited.Load(),
		Subscriptions: b.table.len(),
	}
}

// Close removes every subscription, releasing blocked consumers and
// publishers. Later calls to any method return ErrBusClosed.
func (b *Bus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	subs := b.table.clear()
	for _, sub := range subs {
		sub.queue.close()
	}
	b.logger.Debug().Int("subscriptions", len(subs)).Msg("bus closed")
	return nil
}

// IsClosed reports whether Close has been called.
func (b *Bus) IsClosed() bool {
	return b.closed.Load()
}
