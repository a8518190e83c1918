package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dshills/hookbus/internal/event"
	"github.com/dshills/hookbus/internal/event/topic"
	"github.com/dshills/hookbus/internal/hook"
)

// Validate checks every setting and returns all problems joined. Each is a
// *FieldError matching ErrValidationFailed.
func (c *Config) Validate() error {
	var errs []error
	bad := func(field, format string, args ...any) {
		errs = append(errs, &FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Logging.Level != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil {
			bad("logging.level", "unknown level %q", c.Logging.Level)
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "auto", "console", "json":
	default:
		bad("logging.format", "must be auto, console or json, got %q", c.Logging.Format)
	}

	if c.Bus.QueueCapacity < 1 || c.Bus.QueueCapacity > MaxQueueCapacity {
		bad("bus.queue_capacity", "must be between 1 and %d, got %d", MaxQueueCapacity, c.Bus.QueueCapacity)
	}
	if _, err := event.ParseOverflowPolicy(c.Bus.Overflow, c.Bus.BlockTimeout.D()); err != nil {
		bad("bus.overflow", "%v", err)
	}
	if c.Bus.BlockTimeout < 0 {
		bad("bus.block_timeout", "must not be negative")
	}
	if c.Bus.RateLimit.EventsPerSecond < 0 {
		bad("bus.rate_limit.events_per_second", "must not be negative")
	}
	if c.Bus.RateLimit.EventsPerSecond > 0 && c.Bus.RateLimit.Burst < 1 {
		bad("bus.rate_limit.burst", "must be at least 1 when a rate is set")
	}

	if _, err := hook.ParseFailurePolicy(c.Hooks.FailurePolicy); err != nil {
		bad("hooks.failure_policy", "%v", err)
	}
	if c.Hooks.SlowThreshold < 0 {
		bad("hooks.slow_threshold", "must not be negative")
	}

	if c.Builtins.Security.Enabled && len(c.Builtins.Security.DeniedTools) == 0 {
		bad("builtins.security.denied_tools", "required when security is enabled")
	}
	if c.Builtins.Cost.Enabled && c.Builtins.Cost.Threshold <= 0 {
		bad("builtins.cost.threshold", "must be positive when cost tracking is enabled")
	}
	if rl := c.Builtins.RateLimit; rl.Enabled && (rl.PerSecond <= 0 || rl.Burst < 1) {
		bad("builtins.rate_limit", "per_second must be positive and burst at least 1")
	}

	if r := c.Builtins.Retry; r.Enabled {
		if r.MaxAttempts < 1 {
			bad("builtins.retry.max_attempts", "must be at least 1")
		}
		if r.InitialBackoff <= 0 || r.MaxBackoff < r.InitialBackoff {
			bad("builtins.retry.initial_backoff", "must be positive and no larger than max_backoff")
		}
		if r.Multiplier < 1 {
			bad("builtins.retry.multiplier", "must be at least 1, got %g", r.Multiplier)
		}
		if r.Jitter < 0 || r.Jitter >= 1 {
			bad("builtins.retry.jitter", "must be in [0, 1), got %g", r.Jitter)
		}
		if r.MaxDuration < 0 {
			bad("builtins.retry.max_duration", "must not be negative")
		}
	}

	if c.Breaker.Enabled {
		for field, pattern := range map[string]string{
			"breaker.trip_pattern":  c.Breaker.TripPattern,
			"breaker.reset_pattern": c.Breaker.ResetPattern,
		} {
			if err := topic.ValidatePattern(pattern); err != nil {
				bad(field, "%v", err)
			}
		}
	}

	if c.Lua.Timeout < 0 {
		bad("lua.timeout", "must not be negative")
	}
	for i, s := range c.Scripts {
		if strings.TrimSpace(s) == "" {
			bad(fmt.Sprintf("scripts[%d]", i), "empty path")
		}
	}

	return errors.Join(errs...)
}
