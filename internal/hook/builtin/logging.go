package builtin

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dshills/hookbus/internal/hook"
)

// LoggingHook logs every invocation and continues.
type LoggingHook struct {
	logger zerolog.Logger
	level  zerolog.Level
}

// NewLoggingHook creates a logging hook writing at debug level.
func NewLoggingHook(logger zerolog.Logger) *LoggingHook {
	return &LoggingHook{logger: logger, level: zerolog.DebugLevel}
}

// WithLevel returns a copy of h logging at level.
func (h *LoggingHook) WithLevel(level zerolog.Level) *LoggingHook {
	c := *h
	c.level = level
	return &c
}

// Name implements Hook.
func (h *LoggingHook) Name() string { return "logging" }

// Priority implements Hook.
func (h *LoggingHook) Priority() hook.Priority { return hook.Normal }

// Call implements hook.Callback.
func (h *LoggingHook) Call(_ context.Context, ec *hook.ExecutionContext) (hook.Result, error) {
	e := h.logger.WithLevel(h.level).
		Str("point", string(ec.Point)).
		Str("component", ec.ComponentID).
		Int("data_bytes", len(ec.Data.Bytes()))
	if ec.CorrelationID != "" {
		e = e.Str("correlation_id", ec.CorrelationID)
	}
	if ec.Language != "" {
		e = e.Str("language", ec.Language)
	}
	e.Msg("hook invoked")
	return hook.Continue{}, nil
}
