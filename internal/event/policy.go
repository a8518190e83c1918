package event

import (
	"fmt"
	"strings"
	"time"
)

// OverflowPolicy decides what Publish does when a subscription's queue is
// full. The set is closed: DropOldest, Block and Fail.
type OverflowPolicy interface {
	String() string
	overflowPolicy()
}

// DropOldest evicts the oldest queued event to make room and counts the
// eviction as a drop.
type DropOldest struct{}

// Block makes the publisher wait up to Timeout for room. A zero Timeout
// behaves like Fail.
type Block struct {
	Timeout time.Duration
}

// Fail rejects the event for this subscription immediately.
type Fail struct{}

func (DropOldest) overflowPolicy() {}
func (Block) overflowPolicy()      {}
func (Fail) overflowPolicy()       {}

func (DropOldest) String() string { return "drop_oldest" }
func (b Block) String() string    { return "block(" + b.Timeout.String() + ")" }
func (Fail) String() string       { return "fail" }

// ParseOverflowPolicy parses "drop_oldest", "block" or "fail". blockTimeout is
// used for "block".
func ParseOverflowPolicy(s string, blockTimeout time.Duration) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop_oldest", "drop-oldest", "dropoldest":
		return DropOldest{}, nil
	case "block":
		return Block{Timeout: blockTimeout}, nil
	case "fail":
		return Fail{}, nil
	default:
		return nil, fmt.Errorf("unknown overflow policy %q", s)
	}
}
