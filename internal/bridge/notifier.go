package bridge

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dshills/hookbus/internal/event"
	"github.com/dshills/hookbus/internal/hook"
)

// DiagnosticSource is the event source stamped on diagnostics.
const DiagnosticSource = "hook.pipeline"

// Notifier implements hook.Notifier by publishing each diagnostic on a bus.
type Notifier struct {
	bus    *event.Bus
	logger zerolog.Logger
}

// NewNotifier creates a Notifier publishing on bus.
func NewNotifier(bus *event.Bus, logger zerolog.Logger) *Notifier {
	return &Notifier{bus: bus, logger: logger}
}

// Notify implements hook.Notifier. Publish failures are logged and dropped
// so a diagnostic can never fail a run.
func (n *Notifier) Notify(ctx context.Context, d hook.Diagnostic) {
	_, err := n.bus.Publish(ctx, hook.DiagnosticEventType, d.Data(),
		event.WithSource(DiagnosticSource),
		event.WithLanguage(d.Language),
		event.WithCorrelationID(d.CorrelationID),
	)
	if err != nil {
		n.logger.Debug().Err(err).Str("registration", d.RegistrationID).Msg("diagnostic not delivered")
	}
}
