package app

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dshills/hookbus/internal/bridge"
	"github.com/dshills/hookbus/internal/config"
	"github.com/dshills/hookbus/internal/event"
	"github.com/dshills/hookbus/internal/event/dispatch"
	"github.com/dshills/hookbus/internal/hook"
	"github.com/dshills/hookbus/internal/hook/builtin"
	"github.com/dshills/hookbus/internal/metrics"
	"github.com/dshills/hookbus/internal/script/lua"
)

// Points guarded by the circuit breaker and the rate limit hook.
var (
	guardedPoints = []hook.Point{
		hook.BeforeAgentExecution,
		hook.BeforeToolExecution,
		hook.BeforeWorkflowStage,
	}
	costPoints = []hook.Point{
		hook.AfterAgentExecution,
		hook.AfterToolExecution,
	}
)

// CostSource is the event source of cost threshold events.
const CostSource = "builtin.cost"

// bootstrapper handles component initialization with cleanup on failure.
type bootstrapper struct {
	app       *Application
	opts      Options
	initOrder []string
}

func newBootstrapper(app *Application, opts Options) *bootstrapper {
	return &bootstrapper{
		app:       app,
		opts:      opts,
		initOrder: make([]string, 0, 6),
	}
}

// bootstrap initializes all components in dependency order.
// On failure, it cleans up already-initialized components.
func (b *bootstrapper) bootstrap() error {
	steps := []func() error{
		b.initConfig,
		b.initMetrics,
		b.initEventBus,
		b.initPipeline,
		b.initBuiltins,
		b.initBreaker,
		b.initScripts,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			b.cleanup()
			return err
		}
	}
	return nil
}

func (b *bootstrapper) initConfig() error {
	cfg := b.opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return &InitError{Component: "config", Err: err}
	}
	b.app.cfg = cfg

	b.app.logger = zerolog.Nop()
	if b.opts.Logger != nil {
		b.app.logger = *b.opts.Logger
	}
	return nil
}

func (b *bootstrapper) initMetrics() error {
	b.app.memory = metrics.NewMemory()
	recorders := []metrics.Recorder{b.app.memory, b.opts.Recorder}
	if b.opts.Meter != nil {
		recorders = append(recorders, metrics.NewOTel(b.opts.Meter))
	}
	b.app.recorder = metrics.Multi(recorders...)
	return nil
}

func (b *bootstrapper) initEventBus() error {
	cfg := b.app.cfg.Bus
	overflow, err := event.ParseOverflowPolicy(cfg.Overflow, cfg.BlockTimeout.D())
	if err != nil {
		return &InitError{Component: "event bus", Err: err}
	}

	opts := []event.BusOption{
		event.WithDefaultCapacity(cfg.QueueCapacity),
		event.WithDefaultOverflowPolicy(overflow),
		event.WithLogger(b.app.logger.With().Str("component", "bus").Logger()),
		event.WithRecorder(b.app.recorder),
	}
	if cfg.RateLimit.EventsPerSecond > 0 {
		opts = append(opts, event.WithRateLimit(cfg.RateLimit.EventsPerSecond, cfg.RateLimit.Burst))
	}
	b.app.bus = event.NewBus(opts...)
	b.initOrder = append(b.initOrder, "eventBus")
	return nil
}

func (b *bootstrapper) initPipeline() error {
	cfg := b.app.cfg.Hooks
	policy, err := hook.ParseFailurePolicy(cfg.FailurePolicy)
	if err != nil {
		return &InitError{Component: "pipeline", Err: err}
	}

	logger := b.app.logger.With().Str("component", "hooks").Logger()
	b.app.registry = hook.NewRegistry(hook.WithRegistryLogger(logger))

	opts := []hook.PipelineOption{
		hook.WithFailurePolicy(policy),
		hook.WithSlowThreshold(cfg.SlowThreshold.D()),
		hook.WithLogger(logger),
		hook.WithRecorder(b.app.recorder),
	}
	if cfg.PublishDiagnostics {
		opts = append(opts, hook.WithNotifier(bridge.NewNotifier(b.app.bus, logger)))
	}
	b.app.pipeline = hook.NewPipeline(b.app.registry, opts...)
	b.initOrder = append(b.initOrder, "registry")
	return nil
}

func (b *bootstrapper) initBuiltins() error {
	cfg := b.app.cfg.Builtins
	reg := b.app.registry

	if cfg.Security.Enabled {
		b.app.security = builtin.NewSecurityHook(cfg.Security.ToolField, cfg.Security.DeniedTools...)
		builtin.Register(reg, b.app.security, hook.BeforeToolExecution)
	}
	if cfg.RateLimit.Enabled {
		b.app.rateLimit = builtin.NewRateLimitHook(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst, cfg.RateLimit.MaxAttempts)
		builtin.Register(reg, b.app.rateLimit, hook.BeforeAgentExecution, hook.BeforeToolExecution)
	}
	if cfg.Logging.Enabled {
		l := builtin.NewLoggingHook(b.app.logger.With().Str("component", "builtin.logging").Logger())
		builtin.Register(reg, l, hook.KnownPoints()...)
	}
	if cfg.Metrics.Enabled {
		b.app.counter = builtin.NewMetricsHook(b.app.recorder)
		builtin.Register(reg, b.app.counter, hook.KnownPoints()...)
	}
	if cfg.Cost.Enabled {
		pub := event.NewPublisher(b.app.bus, CostSource, "go")
		b.app.cost = builtin.NewCostHook(pub, cfg.Cost.Threshold,
			builtin.WithCostField(cfg.Cost.CostField),
			builtin.WithCostLogger(b.app.logger),
		)
		builtin.Register(reg, b.app.cost, costPoints...)
	}
	if cfg.Retry.Enabled {
		r := cfg.Retry
		b.app.retry = builtin.NewRetryHook(r.MaxAttempts,
			builtin.WithBackoff(r.InitialBackoff.D(), r.MaxBackoff.D(), r.Multiplier),
			builtin.WithJitter(r.Jitter),
			builtin.WithMaxRetryDuration(r.MaxDuration.D()),
			builtin.WithRetryableErrors(r.Retryable...),
			builtin.WithNonRetryableErrors(r.NonRetryable...),
			builtin.WithRetryRecorder(b.app.recorder),
			builtin.WithRetryLogger(b.app.logger.With().Str("component", "builtin.retry").Logger()),
		)
		builtin.Register(reg, b.app.retry, builtin.ErrorPoints...)
	}
	return nil
}

func (b *bootstrapper) initBreaker() error {
	cfg := b.app.cfg.Breaker
	if !cfg.Enabled {
		return nil
	}

	b.app.breaker = bridge.NewBreaker()
	guard := bridge.GuardHook(b.app.breaker)
	for _, p := range guardedPoints {
		b.app.registry.Register(p, hook.Highest, guard,
			hook.WithName("breaker"),
			hook.WithTag("breaker"),
			hook.WithLanguage("go"),
		)
	}

	logger := dispatch.WithLogger(b.app.logger.With().Str("component", "breaker").Logger())
	b.app.listeners = append(b.app.listeners,
		bridge.TripOnEvent(b.app.bus, b.app.breaker, cfg.TripPattern, logger),
		bridge.ResetOnEvent(b.app.bus, b.app.breaker, cfg.ResetPattern, logger),
	)
	return nil
}

func (b *bootstrapper) initScripts() error {
	engine, err := b.app.loadScripts(context.Background(), b.app.cfg.Scripts)
	if err != nil {
		return &InitError{Component: "scripts", Err: err}
	}
	b.app.engine = engine
	b.initOrder = append(b.initOrder, "scripts")
	return nil
}

// cleanup releases components in reverse initialization order.
func (b *bootstrapper) cleanup() {
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		b.cleanupComponent(b.initOrder[i])
	}
}

func (b *bootstrapper) cleanupComponent(component string) {
	switch component {
	case "eventBus":
		if b.app.bus != nil {
			_ = b.app.bus.Close()
		}
	case "registry":
		if b.app.registry != nil {
			b.app.registry.Clear()
		}
	case "scripts":
		if b.app.engine != nil {
			_ = b.app.engine.Close()
			b.app.engine = nil
		}
	}
}

// newEngine creates a script engine bound to the application's registry and
// bus.
func (app *Application) newEngine() *lua.Engine {
	return lua.NewEngine(app.registry,
		lua.WithName("scripts"),
		lua.WithExecutionTimeout(app.cfg.Lua.Timeout.D()),
		lua.WithBus(app.bus),
		lua.WithLogger(app.logger.With().Str("component", "lua").Logger()),
	)
}
