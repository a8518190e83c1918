package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HOOKBUS_"

// envSetters maps HOOKBUS_* variables onto settings.
var envSetters = map[string]func(c *Config, v string) error{
	"LOG_LEVEL":  func(c *Config, v string) error { c.Logging.Level = v; return nil },
	"LOG_FORMAT": func(c *Config, v string) error { c.Logging.Format = v; return nil },
	"LOG_OUTPUT": func(c *Config, v string) error { c.Logging.Output = v; return nil },
	"QUEUE_CAPACITY": func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		c.Bus.QueueCapacity = n
		return err
	},
	"OVERFLOW":       func(c *Config, v string) error { c.Bus.Overflow = v; return nil },
	"BLOCK_TIMEOUT":  func(c *Config, v string) error { return c.Bus.BlockTimeout.UnmarshalText([]byte(v)) },
	"FAILURE_POLICY": func(c *Config, v string) error { c.Hooks.FailurePolicy = v; return nil },
	"SLOW_THRESHOLD": func(c *Config, v string) error { return c.Hooks.SlowThreshold.UnmarshalText([]byte(v)) },
	"DENIED_TOOLS": func(c *Config, v string) error {
		c.Builtins.Security.DeniedTools = splitList(v)
		c.Builtins.Security.Enabled = len(c.Builtins.Security.DeniedTools) > 0
		return nil
	},
	"COST_THRESHOLD": func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		c.Builtins.Cost.Threshold = f
		c.Builtins.Cost.Enabled = err == nil && f > 0
		return err
	},
	"RETRY_ATTEMPTS": func(c *Config, v string) error {
		n, err := strconv.ParseUint(v, 10, 32)
		c.Builtins.Retry.MaxAttempts = uint32(n)
		c.Builtins.Retry.Enabled = err == nil && n > 0
		return err
	},
	"SCRIPTS": func(c *Config, v string) error { c.Scripts = splitList(v); return nil },
}

// ApplyEnv overrides settings from HOOKBUS_* variables. Empty values are
// ignored.
func (c *Config) ApplyEnv() error {
	for name, set := range envSetters {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok || v == "" {
			continue
		}
		if err := set(c, v); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
