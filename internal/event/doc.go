// Package event provides the pattern-matching event bus.
//
// Components publish events identified by dot-delimited types such as
// "cost.threshold.exceeded". Consumers subscribe with a pattern and pull
// events from their own bounded queue with Receive or ReceiveBatch.
//
// # Architecture
//
//	                 ┌─────────────────────────────────────┐
//	   Publish ────▶ │                Bus                  │
//	                 │  - subscription table (trie index)  │
//	                 │  - per-subscription overflow policy │
//	                 └─────────────────────────────────────┘
//	                      │             │             │
//	                      ▼             ▼             ▼
//	                 ┌─────────┐   ┌─────────┐   ┌─────────┐
//	                 │ queue 1 │   │ queue 2 │   │ queue n │
//	                 └─────────┘   └─────────┘   └─────────┘
//	                      │             │             │
//	                   Receive    ReceiveBatch     Receive
//
// Matching happens synchronously inside Publish. Every matching subscription
// gets its own copy of the event; a full or stalled queue never holds back
// delivery to the others.
//
// # Patterns
//
// Patterns use the syntax of package topic:
//
//	user.*       one segment after "user"
//	*.error      any single segment followed by "error"
//	cost.**      "cost" and everything below it
//	**           every event type
//
// # Overflow
//
// Each subscription has a capacity and an OverflowPolicy applied when a
// publish finds its queue full:
//
//   - DropOldest (default) evicts the oldest queued event and counts it as dropped.
//   - Block waits up to a timeout for room, then rejects.
//   - Fail rejects immediately.
//
// Rejections are reported to the publisher as a *DeliveryError wrapping
// ErrQueueOverflow and counted in Stats.
//
// # Usage
//
//	bus := event.NewBus(event.WithDefaultCapacity(100))
//	defer bus.Close()
//
//	id, err := bus.Subscribe("cost.**")
//	if err != nil {
//	    return err
//	}
//	defer bus.Unsubscribe(id)
//
//	_, err = bus.Publish(ctx, "cost.threshold.exceeded",
//	    payload.Object(map[string]any{"component": "agentA", "cost": 12.5}))
//
//	ev, ok, err := bus.Receive(ctx, id, time.Second)
//
// # Thread Safety
//
// All Bus methods are safe for concurrent use. Published events are immutable
// and shared between subscribers.
package event
