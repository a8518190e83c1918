// Package app wires the event bus, the hook pipeline, the builtin hooks, the
// circuit breaker and the Lua script engine into one Application and manages
// their lifecycle.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/dshills/hookbus/internal/bridge"
	"github.com/dshills/hookbus/internal/config"
	"github.com/dshills/hookbus/internal/event"
	"github.com/dshills/hookbus/internal/event/dispatch"
	"github.com/dshills/hookbus/internal/hook"
	"github.com/dshills/hookbus/internal/hook/builtin"
	"github.com/dshills/hookbus/internal/metrics"
	"github.com/dshills/hookbus/internal/payload"
	"github.com/dshills/hookbus/internal/script/lua"
)

// Application owns every hookbus component.
type Application struct {
	mu sync.RWMutex

	cfg    *config.Config
	logger zerolog.Logger

	// Metrics
	memory   *metrics.Memory
	recorder metrics.Recorder

	// Core
	bus      *event.Bus
	registry *hook.Registry
	pipeline *hook.Pipeline

	// Builtins, nil when disabled
	security  *builtin.SecurityHook
	rateLimit *builtin.RateLimitHook
	cost      *builtin.CostHook
	counter   *builtin.MetricsHook
	retry     *builtin.RetryHook

	// Breaker
	breaker   *bridge.Breaker
	listeners []*dispatch.Listener

	// Scripts
	engine *lua.Engine

	// State
	done    chan struct{}
	cancel  context.CancelFunc
	stopped chan struct{}
	runErr  error
	closed  bool

	opts Options
}

// Options configures the application.
type Options struct {
	// Config is the configuration to apply. Nil means config.Default().
	Config *config.Config

	// Logger receives component logs. Nil means no logging.
	Logger *zerolog.Logger

	// Recorder receives metrics in addition to the in-memory recorder.
	Recorder metrics.Recorder

	// Meter, when set, also exports metrics through OpenTelemetry.
	Meter metric.Meter
}

// New creates an Application and initializes every enabled component.
func New(opts Options) (*Application, error) {
	app := &Application{opts: opts}
	if err := newBootstrapper(app, opts).bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// RunHooks runs the pipeline for point.
func (app *Application) RunHooks(ctx context.Context, point hook.Point, ec hook.ExecutionContext) (hook.Decision, error) {
	return app.pipeline.Run(ctx, point, ec)
}

// Publish encodes data with payload.New and publishes it on the bus.
func (app *Application) Publish(ctx context.Context, eventType string, data any, opts ...event.PublishOption) (int, error) {
	d, err := payload.New(data)
	if err != nil {
		return 0, err
	}
	return app.bus.Publish(ctx, eventType, d, opts...)
}

// Config returns the applied configuration.
func (app *Application) Config() *config.Config {
	return app.cfg
}

// Logger returns the application logger.
func (app *Application) Logger() zerolog.Logger {
	return app.logger
}

// Bus returns the event bus.
func (app *Application) Bus() *event.Bus {
	return app.bus
}

// Registry returns the hook registry.
func (app *Application) Registry() *hook.Registry {
	return app.registry
}

// Pipeline returns the hook pipeline.
func (app *Application) Pipeline() *hook.Pipeline {
	return app.pipeline
}

// Metrics returns the in-memory metrics recorder.
func (app *Application) Metrics() *metrics.Memory {
	return app.memory
}

// Breaker returns the circuit breaker, or nil when it is disabled.
func (app *Application) Breaker() *bridge.Breaker {
	return app.breaker
}

// Security returns the security hook, or nil when it is disabled.
func (app *Application) Security() *builtin.SecurityHook {
	return app.security
}

// RateLimit returns the rate limit hook, or nil when it is disabled.
func (app *Application) RateLimit() *builtin.RateLimitHook {
	return app.rateLimit
}

// Cost returns the cost hook, or nil when it is disabled.
func (app *Application) Cost() *builtin.CostHook {
	return app.cost
}

// Counter returns the per-point invocation counter, or nil when the metrics
// builtin is disabled.
func (app *Application) Counter() *builtin.MetricsHook {
	return app.counter
}

// Retry returns the retry hook, or nil when it is disabled.
func (app *Application) Retry() *builtin.RetryHook {
	return app.retry
}

// Engine returns the current script engine.
func (app *Application) Engine() *lua.Engine {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.engine
}
