package event

import (
	"context"
	"sync"
	"time"
)

// queue is a bounded FIFO ring of events. Waiters block on the changed
// channel, which is closed and replaced after every mutation.
type queue struct {
	mu      sync.Mutex
	buf     []Event
	head    int
	n       int
	closed  bool
	changed chan struct{}
}

func newQueue(capacity int) *queue {
	return &queue{
		buf:     make([]Event, capacity),
		changed: make(chan struct{}),
	}
}

// signal wakes every waiter. Caller must hold mu.
func (q *queue) signal() {
	close(q.changed)
	q.changed = make(chan struct{})
}

// appendLocked adds ev at the tail. Caller must hold mu and ensure room.
func (q *queue) appendLocked(ev Event) {
	q.buf[(q.head+q.n)%len(q.buf)] = ev
	q.n++
	q.signal()
}

// tryPush appends ev if there is room.
func (q *queue) tryPush(ev Event) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false, ErrSubscriptionClosed
	}
	if q.n == len(q.buf) {
		return false, nil
	}
	q.appendLocked(ev)
	return true, nil
}

// pushDropOldest appends ev, evicting the oldest event if the queue is full.
// It reports whether an event was evicted.
func (q *queue) pushDropOldest(ev Event) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false, ErrSubscriptionClosed
	}
	dropped := false
	if q.n == len(q.buf) {
		q.buf[q.head] = Event{}
		q.head = (q.head + 1) % len(q.buf)
		q.n--
		dropped = true
	}
	q.appendLocked(ev)
	return dropped, nil
}

// pushWait appends ev, waiting up to timeout for room.
func (q *queue) pushWait(ctx context.Context, ev Event, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return ErrSubscriptionClosed
		}
		if q.n < len(q.buf) {
			q.appendLocked(ev)
			q.mu.Unlock()
			return nil
		}
		changed := q.changed
		q.mu.Unlock()

		ok, err := waitChange(ctx, changed, deadline)
		if err != nil {
			return err
		}
		if !ok {
			return ErrQueueOverflow
		}
	}
}

// pop removes up to limit events from the head. The returned channel is valid
// for waiting when nothing was popped.
func (q *queue) pop(limit int) ([]Event, <-chan struct{}, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, nil, ErrSubscriptionClosed
	}
	if q.n == 0 {
		return nil, q.changed, nil
	}
	count := min(limit, q.n)
	out := make([]Event, count)
	for i := range count {
		out[i] = q.buf[q.head]
		q.buf[q.head] = Event{}
		q.head = (q.head + 1) % len(q.buf)
	}
	q.n -= count
	q.signal()
	return out, nil, nil
}

// wait pops up to limit events, blocking until at least one is available,
// the deadline passes or ctx is done.
func (q *queue) wait(ctx context.Context, limit int, deadline time.Time) ([]Event, error) {
	for {
		events, changed, err := q.pop(limit)
		if err != nil || len(events) > 0 {
			return events, err
		}
		ok, err := waitChange(ctx, changed, deadline)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
	}
}

// len returns the number of queued events.
func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

func (q *queue) capacity() int {
	return len(q.buf)
}

// close discards queued events and releases every waiter.
func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	clear(q.buf)
	q.n = 0
	q.signal()
}

// waitChange blocks until changed fires (true), the deadline passes (false)
// or ctx is done (error).
func waitChange(ctx context.Context, changed <-chan struct{}, deadline time.Time) (bool, error) {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return false, nil
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-changed:
		return true, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
