package event

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the event bus.
var (
	// ErrSubscriptionNotFound is returned for an unknown subscription id.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrSubscriptionClosed is returned to a consumer whose subscription was
	// removed while it was waiting.
	ErrSubscriptionClosed = errors.New("subscription closed")

	// ErrQueueOverflow is returned when a subscription's queue is full and its
	// overflow policy rejects the event.
	ErrQueueOverflow = errors.New("subscription queue overflow")

	// ErrRateLimited is returned when the publish rate limit is exhausted.
	ErrRateLimited = errors.New("publish rate limit exceeded")

	// ErrBusClosed is returned by every operation after Close.
	ErrBusClosed = errors.New("event bus is closed")
)

// DeliveryFailure records one subscription that did not accept an event.
type DeliveryFailure struct {
	SubscriptionID string
	Pattern        string
	Err            error
}

// DeliveryError is returned by Publish when one or more subscriptions rejected
// the event. Subscriptions that accepted it are unaffected.
type DeliveryError struct {
	EventType string
	Failures  []DeliveryFailure
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "event %q rejected by %d subscription(s)", e.EventType, len(e.Failures))
	for i, f := range e.Failures {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s (%s): %v", f.SubscriptionID, f.Pattern, f.Err)
	}
	return b.String()
}

// Unwrap returns the individual failure causes.
func (e *DeliveryError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}
