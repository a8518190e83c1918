package bridge

import (
	"context"

	"github.com/dshills/hookbus/internal/event"
	"github.com/dshills/hookbus/internal/hook"
)

// PublishHook returns a callback that publishes the execution data as
// eventType and continues. The event carries the component as its source,
// plus the call's language and correlation id. A publish error is returned
// as the callback's error and handled by the pipeline's failure policy.
func PublishHook(bus *event.Bus, eventType string) hook.Callback {
	return hook.CallbackFunc(func(ctx context.Context, ec *hook.ExecutionContext) (hook.Result, error) {
		_, err := bus.Publish(ctx, eventType, ec.Data,
			event.WithSource(ec.ComponentID),
			event.WithLanguage(ec.Language),
			event.WithCorrelationID(ec.CorrelationID),
		)
		if err != nil {
			return nil, err
		}
		return hook.Continue{}, nil
	})
}
