package bridge

import (
	"context"
	"errors"

	"github.com/dshills/hookbus/internal/event"
	"github.com/dshills/hookbus/internal/event/dispatch"
	"github.com/dshills/hookbus/internal/hook"
)

// ErrNoComponent is returned by breaker listeners for events without a
// component.
var ErrNoComponent = errors.New("event has no component")

// ComponentField is the event data field naming the affected component.
const ComponentField = "component"

// GuardHook returns a callback that cancels with "circuit open: <component>"
// while the breaker is open for the call's component. The component is the
// context's component id, or the "component" data field when that is empty.
func GuardHook(b *Breaker) hook.Callback {
	return hook.CallbackFunc(func(_ context.Context, ec *hook.ExecutionContext) (hook.Result, error) {
		component := ec.ComponentID
		if component == "" {
			component = ec.Data.Get(ComponentField).String()
		}
		if component != "" && b.IsOpen(component) {
			return hook.Cancel{Reason: "circuit open: " + component}, nil
		}
		return hook.Continue{}, nil
	})
}

// TripOnEvent returns a listener that opens the breaker for the component
// named by each event matching pattern. The listener is not started.
func TripOnEvent(bus dispatch.Bus, b *Breaker, pattern string, opts ...dispatch.ListenerOption) *dispatch.Listener {
	handler := dispatch.HandlerFunc(func(_ context.Context, ev event.Event) error {
		component := ev.Data.Get(ComponentField).String()
		if component == "" {
			return ErrNoComponent
		}
		b.Open(component, ev.Type)
		return nil
	})
	opts = append([]dispatch.ListenerOption{dispatch.WithListenerName("breaker-trip")}, opts...)
	return dispatch.NewListener(bus, pattern, handler, opts...)
}

// ResetOnEvent returns a listener that closes the breaker for the component
// named by each event matching pattern. The listener is not started.
func ResetOnEvent(bus dispatch.Bus, b *Breaker, pattern string, opts ...dispatch.ListenerOption) *dispatch.Listener {
	handler := dispatch.HandlerFunc(func(_ context.Context, ev event.Event) error {
		component := ev.Data.Get(ComponentField).String()
		if component == "" {
			return ErrNoComponent
		}
		b.Close(component)
		return nil
	})
	opts = append([]dispatch.ListenerOption{dispatch.WithListenerName("breaker-reset")}, opts...)
	return dispatch.NewListener(bus, pattern, handler, opts...)
}
