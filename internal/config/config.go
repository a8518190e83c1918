package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// MaxQueueCapacity bounds bus.queue_capacity.
const MaxQueueCapacity = 1_000_000

// Config is the complete hookbus configuration.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Bus      BusConfig      `yaml:"bus" toml:"bus"`
	Hooks    HooksConfig    `yaml:"hooks" toml:"hooks"`
	Builtins BuiltinsConfig `yaml:"builtins" toml:"builtins"`
	Breaker  BreakerConfig  `yaml:"breaker" toml:"breaker"`
	Lua      LuaConfig      `yaml:"lua" toml:"lua"`
	Scripts  []string       `yaml:"scripts" toml:"scripts"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`   // trace|debug|info|warn|error|disabled
	Format string `yaml:"format" toml:"format"` // auto|console|json
	Output string `yaml:"output" toml:"output"` // stderr|stdout|<file path>
}

// BusConfig configures the event bus.
type BusConfig struct {
	QueueCapacity int             `yaml:"queue_capacity" toml:"queue_capacity"`
	Overflow      string          `yaml:"overflow" toml:"overflow"`
	BlockTimeout  Duration        `yaml:"block_timeout" toml:"block_timeout"`
	RateLimit     RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
}

// RateLimitConfig is the optional publish rate limit. Zero disables it.
type RateLimitConfig struct {
	EventsPerSecond float64 `yaml:"events_per_second" toml:"events_per_second"`
	Burst           int     `yaml:"burst" toml:"burst"`
}

// HooksConfig configures the hook pipeline.
type HooksConfig struct {
	FailurePolicy      string   `yaml:"failure_policy" toml:"failure_policy"`
	SlowThreshold      Duration `yaml:"slow_threshold" toml:"slow_threshold"`
	PublishDiagnostics bool     `yaml:"publish_diagnostics" toml:"publish_diagnostics"`
}

// BuiltinsConfig selects and configures the builtin hooks.
type BuiltinsConfig struct {
	Security  SecurityConfig      `yaml:"security" toml:"security"`
	Logging   ToggleConfig        `yaml:"logging" toml:"logging"`
	Metrics   ToggleConfig        `yaml:"metrics" toml:"metrics"`
	Cost      CostConfig          `yaml:"cost" toml:"cost"`
	RateLimit HookRateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Retry     RetryConfig         `yaml:"retry" toml:"retry"`
}

// ToggleConfig enables a builtin that has no other settings.
type ToggleConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
}

// SecurityConfig configures the deny-list hook.
type SecurityConfig struct {
	Enabled     bool     `yaml:"enabled" toml:"enabled"`
	DeniedTools []string `yaml:"denied_tools" toml:"denied_tools"`
	ToolField   string   `yaml:"tool_field" toml:"tool_field"`
}

// CostConfig configures the cost tracking hook.
type CostConfig struct {
	Enabled   bool    `yaml:"enabled" toml:"enabled"`
	Threshold float64 `yaml:"threshold" toml:"threshold"`
	CostField string  `yaml:"cost_field" toml:"cost_field"`
}

// HookRateLimitConfig configures the per-component rate limit hook.
type HookRateLimitConfig struct {
	Enabled     bool    `yaml:"enabled" toml:"enabled"`
	PerSecond   float64 `yaml:"per_second" toml:"per_second"`
	Burst       int     `yaml:"burst" toml:"burst"`
	MaxAttempts uint32  `yaml:"max_attempts" toml:"max_attempts"`
}

// RetryConfig configures the retry hook on error points.
type RetryConfig struct {
	Enabled        bool     `yaml:"enabled" toml:"enabled"`
	MaxAttempts    uint32   `yaml:"max_attempts" toml:"max_attempts"`
	InitialBackoff Duration `yaml:"initial_backoff" toml:"initial_backoff"`
	MaxBackoff     Duration `yaml:"max_backoff" toml:"max_backoff"`
	Multiplier     float64  `yaml:"multiplier" toml:"multiplier"`
	Jitter         float64  `yaml:"jitter" toml:"jitter"`
	MaxDuration    Duration `yaml:"max_duration" toml:"max_duration"` // 0 = unbounded
	Retryable      []string `yaml:"retryable" toml:"retryable"`
	NonRetryable   []string `yaml:"non_retryable" toml:"non_retryable"`
}

// BreakerConfig configures the event-driven circuit breaker.
type BreakerConfig struct {
	Enabled      bool   `yaml:"enabled" toml:"enabled"`
	TripPattern  string `yaml:"trip_pattern" toml:"trip_pattern"`
	ResetPattern string `yaml:"reset_pattern" toml:"reset_pattern"`
}

// LuaConfig configures the script engine.
type LuaConfig struct {
	Timeout Duration `yaml:"timeout" toml:"timeout"`
	Watch   bool     `yaml:"watch" toml:"watch"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
			Output: "stderr",
		},
		Bus: BusConfig{
			QueueCapacity: 10000,
			Overflow:      "drop_oldest",
			BlockTimeout:  Duration(100 * time.Millisecond),
		},
		Hooks: HooksConfig{
			FailurePolicy:      "fail_open",
			SlowThreshold:      Duration(100 * time.Millisecond),
			PublishDiagnostics: true,
		},
		Builtins: BuiltinsConfig{
			Security:  SecurityConfig{ToolField: "tool_name"},
			Cost:      CostConfig{CostField: "cost"},
			RateLimit: HookRateLimitConfig{PerSecond: 10, Burst: 10, MaxAttempts: 3},
			Retry: RetryConfig{
				MaxAttempts:    3,
				InitialBackoff: Duration(100 * time.Millisecond),
				MaxBackoff:     Duration(time.Minute),
				Multiplier:     2,
			},
		},
		Breaker: BreakerConfig{
			TripPattern:  "cost.threshold.exceeded",
			ResetPattern: "breaker.reset",
		},
		Lua: LuaConfig{
			Timeout: Duration(5 * time.Second),
		},
	}
}

// Load reads path over the defaults, applies HOOKBUS_* overrides and
// validates the result. The format follows the extension: .yaml, .yml or
// .toml.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config file path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	cfg, err := parse(data, format)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	return finish(cfg)
}

// LoadFromBytes parses YAML data over the defaults, applies HOOKBUS_*
// overrides and validates the result.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg, err := parse(data, "yaml")
	if err != nil {
		return nil, err
	}
	return finish(cfg)
}

// LoadOrDefault loads path if it is non-empty, otherwise returns the
// validated defaults with HOOKBUS_* overrides applied.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	return finish(Default())
}

func finish(cfg *Config) (*Config, error) {
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func formatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml", nil
	case ".toml":
		return "toml", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func parse(data []byte, format string) (*Config, error) {
	expanded := []byte(ExpandEnv(string(data)))
	cfg := Default()

	var err error
	switch format {
	case "toml":
		err = toml.NewDecoder(bytes.NewReader(expanded)).DisallowUnknownFields().Decode(cfg)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(expanded))
		dec.KnownFields(true)
		err = dec.Decode(cfg)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	}
	if err != nil {
		return nil, &ParseError{Format: format, Err: err}
	}
	return cfg, nil
}
