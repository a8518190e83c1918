package lua

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/hookbus/internal/event"
	"github.com/dshills/hookbus/internal/hook"
	"github.com/dshills/hookbus/internal/hook/builtin"
	"github.com/dshills/hookbus/internal/payload"
)

// Language is the language tag stamped on Lua registrations and events.
const Language = "lua"

// Engine runs Lua scripts against a hook registry and an event bus.
type Engine struct {
	name     string
	registry *hook.Registry
	bus      *event.Bus
	logger   zerolog.Logger
	timeout  time.Duration

	state      *State
	publisher  *event.Publisher
	subscriber *event.Subscriber

	mu  sync.Mutex
	ids []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithName sets the component name used as the event source and as the
// registration name prefix. The default is "lua".
func WithName(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.name = name
		}
	}
}

// WithExecutionTimeout bounds each call into the state. Zero disables it.
func WithExecutionTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithBus attaches a bus for the events module.
func WithBus(bus *event.Bus) Option {
	return func(e *Engine) {
		e.bus = bus
	}
}

// WithLogger sets the logger used by the log module and for diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an engine registering callbacks in registry.
func NewEngine(registry *hook.Registry, opts ...Option) *Engine {
	e := &Engine{
		name:     Language,
		registry: registry,
		logger:   zerolog.Nop(),
		timeout:  DefaultExecutionTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("script", e.name).Logger()
	if e.bus != nil {
		e.publisher = event.NewPublisher(e.bus, e.name, Language)
		e.subscriber = event.NewSubscriber(e.bus)
	}

	e.state = newState(e.timeout)
	e.installModules(e.state.l)
	return e
}

// Name returns the engine's component name.
func (e *Engine) Name() string {
	return e.name
}

// LoadString runs a chunk of Lua code.
func (e *Engine) LoadString(ctx context.Context, code string) error {
	return e.state.DoString(ctx, code)
}

// LoadFile runs the script at path.
func (e *Engine) LoadFile(ctx context.Context, path string) error {
	if err := e.state.DoFile(ctx, path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Registrations returns the ids of live registrations made by scripts.
func (e *Engine) Registrations() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.ids)
}

// Close unregisters every callback the scripts registered, releases their
// subscriptions and closes the state.
func (e *Engine) Close() error {
	e.mu.Lock()
	ids := e.ids
	e.ids = nil
	e.mu.Unlock()

	for _, id := range ids {
		_ = e.registry.Unregister(id)
	}
	if e.subscriber != nil {
		_ = e.subscriber.Close()
	}
	return e.state.Close()
}

func (e *Engine) installModules(l *lua.LState) {
	l.SetGlobal("hooks", l.SetFuncs(l.NewTable(), map[string]lua.LGFunction{
		"register":   e.luaRegister,
		"group":      e.luaGroup,
		"unregister": e.luaUnregister,
		"list":       e.luaList,
	}))
	l.SetGlobal("events", l.SetFuncs(l.NewTable(), map[string]lua.LGFunction{
		"publish":     e.luaPublish,
		"subscribe":   e.luaSubscribe,
		"receive":     e.luaReceive,
		"unsubscribe": e.luaUnsubscribe,
	}))
	l.SetGlobal("log", l.SetFuncs(l.NewTable(), map[string]lua.LGFunction{
		"debug": e.luaLog(zerolog.DebugLevel),
		"info":  e.luaLog(zerolog.InfoLevel),
		"warn":  e.luaLog(zerolog.WarnLevel),
		"error": e.luaLog(zerolog.ErrorLevel),
	}))
}

// hooks.register(point, priority, fn [, tag]) -> id
func (e *Engine) luaRegister(l *lua.LState) int {
	point, err := hook.ParsePoint(l.CheckString(1))
	if err != nil {
		l.ArgError(1, err.Error())
		return 0
	}
	priority, err := priorityArg(l.Get(2))
	if err != nil {
		l.ArgError(2, err.Error())
		return 0
	}
	fn := l.CheckFunction(3)
	tag := l.OptString(4, "")

	l.Push(lua.LString(e.register(point, priority, e.callback(fn), tag)))
	return 1
}

// hooks.group(point, priority, mode, {fn, ...} [, threshold]) -> id
func (e *Engine) luaGroup(l *lua.LState) int {
	point, err := hook.ParsePoint(l.CheckString(1))
	if err != nil {
		l.ArgError(1, err.Error())
		return 0
	}
	priority, err := priorityArg(l.Get(2))
	if err != nil {
		l.ArgError(2, err.Error())
		return 0
	}
	mode, err := builtin.ParseMode(l.CheckString(3))
	if err != nil {
		l.ArgError(3, err.Error())
		return 0
	}
	fns := l.CheckTable(4)
	threshold := float64(l.OptNumber(5, lua.LNumber(builtin.DefaultVoteThreshold)))

	members := make([]hook.Callback, 0, fns.Len())
	for i := 1; i <= fns.Len(); i++ {
		fn, ok := fns.RawGetInt(i).(*lua.LFunction)
		if !ok {
			l.ArgError(4, fmt.Sprintf("entry %d is not a function", i))
			return 0
		}
		members = append(members, e.callback(fn))
	}
	if len(members) == 0 {
		l.ArgError(4, "group needs at least one function")
		return 0
	}

	group := builtin.NewCompositeHook(e.name, mode, members, builtin.WithVoteThreshold(threshold))
	l.Push(lua.LString(e.register(point, priority, group, mode.String())))
	return 1
}

func (e *Engine) register(point hook.Point, priority hook.Priority, cb hook.Callback, tag string) string {
	id := e.registry.Register(point, priority, cb,
		hook.WithTag(tag),
		hook.WithLanguage(Language),
		hook.WithName(e.name),
	)
	e.mu.Lock()
	e.ids = append(e.ids, id)
	e.mu.Unlock()
	return id
}

func priorityArg(v lua.LValue) (hook.Priority, error) {
	switch p := v.(type) {
	case *lua.LNilType:
		return hook.Normal, nil
	case lua.LString:
		return hook.ParsePriority(string(p))
	case lua.LNumber:
		prio := hook.Priority(int(p))
		if !prio.Valid() {
			return hook.Normal, fmt.Errorf("%w: %d", hook.ErrInvalidPriority, int(p))
		}
		return prio, nil
	default:
		return hook.Normal, fmt.Errorf("%w: %s", hook.ErrInvalidPriority, v.Type())
	}
}

// hooks.unregister(id) -> bool
func (e *Engine) luaUnregister(l *lua.LState) int {
	id := l.CheckString(1)

	e.mu.Lock()
	i := slices.Index(e.ids, id)
	if i >= 0 {
		e.ids = slices.Delete(e.ids, i, i+1)
	}
	e.mu.Unlock()

	if i < 0 {
		l.Push(lua.LFalse)
		return 1
	}
	l.Push(lua.LBool(e.registry.Unregister(id) == nil))
	return 1
}

// hooks.list() -> array of this engine's registrations
func (e *Engine) luaList(l *lua.LState) int {
	out := l.NewTable()
	for _, id := range e.Registrations() {
		s, err := e.registry.Get(id)
		if err != nil {
			continue
		}
		row := l.CreateTable(0, 5)
		row.RawSetString("id", lua.LString(s.ID))
		row.RawSetString("point", lua.LString(s.Point))
		row.RawSetString("priority", lua.LString(s.Priority.String()))
		row.RawSetString("tag", lua.LString(s.Tag))
		row.RawSetString("enabled", lua.LBool(s.Enabled))
		out.Append(row)
	}
	l.Push(out)
	return 1
}

// callback adapts a Lua function to hook.Callback.
func (e *Engine) callback(fn *lua.LFunction) hook.Callback {
	return hook.CallbackFunc(func(ctx context.Context, ec *hook.ExecutionContext) (hook.Result, error) {
		var ret any
		err := e.state.do(ctx, func(l *lua.LState) error {
			if err := l.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, contextTable(l, ec)); err != nil {
				return err
			}
			ret = toGo(l.Get(-1))
			return nil
		})
		if err != nil {
			return nil, err
		}
		return hook.ResultFromValue(ret)
	})
}

func contextTable(l *lua.LState, ec *hook.ExecutionContext) *lua.LTable {
	t := l.CreateTable(0, 6)
	t.RawSetString("component_id", lua.LString(ec.ComponentID))
	t.RawSetString("hook_point", lua.LString(ec.Point))
	t.RawSetString("language", lua.LString(ec.Language))
	t.RawSetString("correlation_id", lua.LString(ec.CorrelationID))
	t.RawSetString("data", toLua(l, ec.Data.Value()))
	t.RawSetString("metadata", toLua(l, ec.Metadata))
	return t
}

// events.publish(type, data) -> delivered
func (e *Engine) luaPublish(l *lua.LState) int {
	if e.publisher == nil {
		l.RaiseError("%s", ErrNoBus)
		return 0
	}
	eventType := l.CheckString(1)
	data, err := payload.New(toGo(l.Get(2)))
	if err != nil {
		l.ArgError(2, err.Error())
		return 0
	}
	n, err := e.bus.Publish(l.Context(), eventType, data,
		event.WithSource(e.name),
		event.WithLanguage(Language),
	)
	if err != nil {
		l.RaiseError("publish %s: %s", eventType, err)
		return 0
	}
	l.Push(lua.LNumber(n))
	return 1
}

// events.subscribe(pattern[, filter]) -> id
func (e *Engine) luaSubscribe(l *lua.LState) int {
	if e.subscriber == nil {
		l.RaiseError("%s", ErrNoBus)
		return 0
	}
	pattern := l.CheckString(1)
	opts := []event.SubscribeOption{event.WithName(e.name)}
	if t := l.OptTable(2, nil); t != nil {
		fields, _ := toGo(t).(map[string]any)
		if fields == nil {
			l.ArgError(2, "filter must be a table of fields")
			return 0
		}
		f, err := buildFilter(fields)
		if err != nil {
			l.RaiseError("subscribe: %s", err)
			return 0
		}
		opts = append(opts, event.WithFilter(f))
	}
	id, err := e.subscriber.Subscribe(pattern, opts...)
	if err != nil {
		l.RaiseError("subscribe: %s", err)
		return 0
	}
	l.Push(lua.LString(id))
	return 1
}

// events.receive(id, timeout_ms) -> event | nil
func (e *Engine) luaReceive(l *lua.LState) int {
	if e.subscriber == nil {
		l.RaiseError("%s", ErrNoBus)
		return 0
	}
	id := l.CheckString(1)
	timeout := time.Duration(l.OptInt64(2, 0)) * time.Millisecond

	ev, ok, err := e.subscriber.Receive(l.Context(), id, timeout)
	if err != nil {
		l.RaiseError("receive: %s", err)
		return 0
	}
	if !ok {
		l.Push(lua.LNil)
		return 1
	}
	b, err := ev.MarshalJSON()
	if err != nil {
		l.RaiseError("receive: %s", err)
		return 0
	}
	l.Push(toLua(l, gjson.ParseBytes(b).Value()))
	return 1
}

// events.unsubscribe(id)
func (e *Engine) luaUnsubscribe(l *lua.LState) int {
	if e.subscriber == nil {
		l.RaiseError("%s", ErrNoBus)
		return 0
	}
	if err := e.subscriber.Unsubscribe(l.CheckString(1)); err != nil {
		l.RaiseError("unsubscribe: %s", err)
	}
	return 0
}

func (e *Engine) luaLog(level zerolog.Level) lua.LGFunction {
	return func(l *lua.LState) int {
		e.logger.WithLevel(level).Msg(l.CheckString(1))
		return 0
	}
}
