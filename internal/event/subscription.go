package event

import (
	"sync/atomic"
	"time"
)

// subscription pairs a pattern with its queue and counters.
type subscription struct {
	id        string
	pattern   string
	name      string
	seq       uint64
	policy    OverflowPolicy
	filter    FilterFunc
	queue     *queue
	createdAt time.Time

	delivered atomic.Uint64
	dropped   atomic.Uint64
	rejected  atomic.Uint64
}

func (s *subscription) accepts(ev Event) bool {
	return s.filter == nil || s.filter(ev)
}

func (s *subscription) info() SubscriptionInfo {
	return SubscriptionInfo{
		ID:        s.id,
		Pattern:   s.pattern,
		Name:      s.name,
		Capacity:  s.queue.capacity(),
		Policy:    s.policy.String(),
		Queued:    s.queue.len(),
		Delivered: s.delivered.Load(),
		Dropped:   s.dropped.Load(),
		Rejected:  s.rejected.Load(),
		CreatedAt: s.createdAt,
	}
}

// SubscriptionInfo is a point-in-time view of one subscription.
type SubscriptionInfo struct {
	ID       string
	Pattern  string
	Name     string
	Capacity int
	Policy   string

	// Queued is the number of events waiting to be received.
	Queued int
	// Delivered counts events accepted into the queue.
	Delivered uint64
	// Dropped counts events evicted by DropOldest.
	Dropped uint64
	// Rejected counts events refused by Block or Fail.
	Rejected uint64

	CreatedAt time.Time
}

// Stats contains aggregate bus statistics.
type Stats struct {
	// Published counts successful Publish calls.
	Published uint64
	// Delivered counts per-subscription queue insertions.
	Delivered uint64
	// Dropped counts events evicted by DropOldest.
	Dropped uint64
	// Rejected counts per-subscription rejections by Block or Fail.
	Rejected uint64
	// RateLimited counts publishes refused by the rate limiter.
	RateLimited uint64
	// Subscriptions is the number of live subscriptions.
	Subscriptions int
}
