package lua

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hookbus/internal/event"
	"github.com/dshills/hookbus/internal/hook"
	"github.com/dshills/hookbus/internal/hook/builtin"
	"github.com/dshills/hookbus/internal/payload"
)

func newEngine(t *testing.T, opts ...Option) (*Engine, *hook.Registry) {
	t.Helper()
	reg := hook.NewRegistry()
	e := NewEngine(reg, opts...)
	t.Cleanup(func() { _ = e.Close() })
	return e, reg
}

func TestEngine_SecurityScript(t *testing.T) {
	e, reg := newEngine(t, WithName("security.lua"))
	err := e.LoadString(context.Background(), `
		hooks.register("BeforeToolExecution", "highest", function(ctx)
			if ctx.data.tool_name == "process_executor" then
				return {action = "cancel", reason = "unauthorized"}
			end
			return "continue"
		end, "security")
	`)
	require.NoError(t, err)
	require.Len(t, e.Registrations(), 1)

	list, err := reg.List(hook.Filter{Tag: "security"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, hook.Highest, list[0].Priority)
	assert.Equal(t, Language, list[0].Language)
	assert.Equal(t, "security.lua", list[0].Name)

	p := hook.NewPipeline(reg)
	d, err := p.Run(context.Background(), hook.BeforeToolExecution, hook.ExecutionContext{
		Data: payload.Object(map[string]any{"tool_name": "process_executor"}),
	})
	require.NoError(t, err)
	assert.Equal(t, hook.Cancel{Reason: "unauthorized"}, d.Result)

	d, err = p.Run(context.Background(), hook.BeforeToolExecution, hook.ExecutionContext{
		Data: payload.Object(map[string]any{"tool_name": "calculator"}),
	})
	require.NoError(t, err)
	assert.True(t, d.Proceed())
}

func TestEngine_ResultShapes(t *testing.T) {
	tests := []struct {
		name string
		ret  string
		want hook.Result
	}{
		{"nil", `nil`, hook.Continue{}},
		{"continue", `"continue"`, hook.Continue{}},
		{"type alias", `{type = "redirect", target = "agentB"}`, hook.Redirect{Target: "agentB"}},
		{"retry delay", `{type = "retry", max_attempts = 2, delay_ms = 100}`, hook.Retry{MaxAttempts: 2, Backoff: 100 * time.Millisecond}},
		{"retry defaults", `{action = "retry"}`, hook.Retry{MaxAttempts: hook.DefaultRetryAttempts, Backoff: hook.DefaultRetryBackoff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, reg := newEngine(t)
			require.NoError(t, e.LoadString(context.Background(),
				`hooks.register("AgentError", "normal", function(ctx) return `+tt.ret+` end)`))
			d, err := hook.NewPipeline(reg).Run(context.Background(), hook.AgentError, hook.ExecutionContext{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Result)
		})
	}
}

func TestEngine_ModifiedMergesData(t *testing.T) {
	e, reg := newEngine(t)
	require.NoError(t, e.LoadString(context.Background(), `
		hooks.register("BeforeAgentExecution", "high", function(ctx)
			return {action = "modified", modified_data = {seen_by = ctx.component_id, count = ctx.data.count + 1}}
		end)
		hooks.register("BeforeAgentExecution", "low", function(ctx)
			return {type = "modified", data = {lang = ctx.language, user = ctx.metadata.user}}
		end)
	`))

	d, err := hook.NewPipeline(reg).Run(context.Background(), hook.BeforeAgentExecution, hook.ExecutionContext{
		ComponentID: "agentA",
		Language:    "go",
		Metadata:    map[string]string{"user": "u1"},
		Data:        payload.Object(map[string]any{"count": 1}),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"count":2,"seen_by":"agentA","lang":"go","user":"u1"}`, d.Data.String())
}

func TestEngine_ScriptErrorIsCallbackFailure(t *testing.T) {
	e, reg := newEngine(t)
	require.NoError(t, e.LoadString(context.Background(), `
		hooks.register("ToolError", "normal", function(ctx) error("script exploded") end)
		hooks.register("ToolError", "low", function(ctx) return {action = "nonsense"} end)
	`))

	d, err := hook.NewPipeline(reg).Run(context.Background(), hook.ToolError, hook.ExecutionContext{})
	require.NoError(t, err)
	assert.True(t, d.Proceed())
	require.Len(t, d.Failures, 2)
	assert.Contains(t, d.Failures[0].Error(), "script exploded")
	assert.ErrorIs(t, d.Failures[1], hook.ErrInvalidResult)
}

func TestEngine_RegisterValidation(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	assert.Error(t, e.LoadString(ctx, `hooks.register("bad point", "normal", function() end)`))
	assert.Error(t, e.LoadString(ctx, `hooks.register("AgentError", "urgent", function() end)`))
	assert.Error(t, e.LoadString(ctx, `hooks.register("AgentError", 9, function() end)`))
	assert.Error(t, e.LoadString(ctx, `hooks.register("AgentError", "normal", "not a function")`))
	assert.NoError(t, e.LoadString(ctx, `hooks.register("AgentError", 0, function() end)`))
	assert.NoError(t, e.LoadString(ctx, `hooks.register("custom.point", nil, function() end)`))
	assert.Len(t, e.Registrations(), 2)
}

func TestEngine_Group(t *testing.T) {
	e, reg := newEngine(t)
	require.NoError(t, e.LoadString(context.Background(), `
		hooks.group("BeforeToolExecution", "high", "sequential", {
			function(ctx) return {action = "modified", data = {step = 1}} end,
			function(ctx) return {action = "modified", data = {seen = ctx.data.step}} end,
		})
		hooks.group("BeforeToolExecution", "low", "voting", {
			function() return {action = "cancel", reason = "deny"} end,
			function() return {action = "cancel", reason = "deny"} end,
			function() return nil end,
		}, 0.6)
	`))
	require.Len(t, e.Registrations(), 2)

	s, err := reg.Get(e.Registrations()[1])
	require.NoError(t, err)
	assert.Equal(t, "voting", s.Tag)

	d, err := hook.NewPipeline(reg).Run(context.Background(), hook.BeforeToolExecution, hook.ExecutionContext{
		Data: payload.Object(map[string]any{"tool": "x"}),
	})
	require.NoError(t, err)
	assert.Equal(t, hook.Cancel{Reason: "deny"}, d.Result)
	assert.JSONEq(t, `{"tool":"x","step":1,"seen":1}`, d.Data.String())
}

func TestEngine_GroupValidation(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	assert.ErrorContains(t, e.LoadString(ctx, `hooks.group("AgentError", "normal", "random", {function() end})`), builtin.ErrInvalidMode.Error())
	assert.Error(t, e.LoadString(ctx, `hooks.group("AgentError", "normal", "parallel", {})`))
	assert.Error(t, e.LoadString(ctx, `hooks.group("AgentError", "normal", "parallel", {"nope"})`))
	assert.Error(t, e.LoadString(ctx, `hooks.group("bad point", "normal", "parallel", {function() end})`))
	assert.Empty(t, e.Registrations())
}

func TestEngine_UnregisterAndList(t *testing.T) {
	e, reg := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.LoadString(ctx, `
		first = hooks.register("AgentError", "high", function() end, "a")
		second = hooks.register("ToolError", "low", function() end, "b")
		removed = hooks.unregister(first)
		again = hooks.unregister(first)
		listed = hooks.list()
		assert(removed == true)
		assert(again == false)
		assert(#listed == 1)
		assert(listed[1].id == second)
		assert(listed[1].priority == "low")
		assert(listed[1].tag == "b")
	`))
	assert.Equal(t, 1, reg.Count())
}

func TestEngine_CloseUnregistersEverything(t *testing.T) {
	reg := hook.NewRegistry()
	other := reg.Register(hook.AgentError, hook.Normal, nil)

	e := NewEngine(reg)
	require.NoError(t, e.LoadString(context.Background(), `
		for i = 1, 3 do
			hooks.register("AgentError", "normal", function() end)
		end
	`))
	assert.Equal(t, 4, reg.Count())

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.Equal(t, 1, reg.Count())
	_, err := reg.Get(other)
	assert.NoError(t, err)
	assert.ErrorIs(t, e.LoadString(context.Background(), `x = 1`), ErrStateClosed)
}

func TestEngine_Events(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()
	sub, err := bus.Subscribe("cost.threshold.*")
	require.NoError(t, err)

	e, _ := newEngine(t, WithBus(bus), WithName("tracker.lua"))
	require.NoError(t, e.LoadString(context.Background(), `
		delivered = events.publish("cost.threshold.exceeded", {component = "agentA", cost = 12.5})
		assert(delivered == 1)
	`))

	ev, ok, err := bus.Receive(context.Background(), sub, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cost.threshold.exceeded", ev.Type)
	assert.JSONEq(t, `{"component":"agentA","cost":12.5}`, ev.Data.String())
	assert.Equal(t, "tracker.lua", ev.Metadata.Source)
	assert.Equal(t, Language, ev.Metadata.Language)
}

func TestEngine_SubscribeAndReceive(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	e, _ := newEngine(t, WithBus(bus))
	ctx := context.Background()
	require.NoError(t, e.LoadString(ctx, `sub = events.subscribe("user.*")`))
	assert.Len(t, bus.Subscriptions(), 1)

	_, err := bus.Publish(ctx, "user.login", payload.Object(map[string]any{"name": "ada"}), event.WithCorrelationID("c-1"))
	require.NoError(t, err)

	require.NoError(t, e.LoadString(ctx, `
		local ev = events.receive(sub, 100)
		assert(ev ~= nil)
		assert(ev.event_type == "user.login")
		assert(ev.data.name == "ada")
		assert(ev.source.correlation_id == "c-1")
		assert(events.receive(sub, 0) == nil)
		events.unsubscribe(sub)
	`))
	assert.Empty(t, bus.Subscriptions())
}

func TestEngine_SubscribeWithFilter(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	e, _ := newEngine(t, WithBus(bus))
	ctx := context.Background()
	require.NoError(t, e.LoadString(ctx, `
		sub = events.subscribe("cost.**", {
			exclude_type = "cost.reset",
			above = {cost = 10},
			any = {{source = "tracker"}, {source_prefix = "agent:"}},
			["not"] = {equals = {component = "ignored"}},
		})
	`))

	publish := func(eventType, source string, data map[string]any) {
		_, err := bus.Publish(ctx, eventType, payload.Object(data), event.WithSource(source))
		require.NoError(t, err)
	}
	publish("cost.threshold.exceeded", "tracker", map[string]any{"component": "a", "cost": 5})
	publish("cost.threshold.exceeded", "other", map[string]any{"component": "a", "cost": 50})
	publish("cost.reset", "tracker", map[string]any{"component": "a", "cost": 50})
	publish("cost.threshold.exceeded", "tracker", map[string]any{"component": "ignored", "cost": 50})
	publish("cost.threshold.exceeded", "agent:b", map[string]any{"component": "b", "cost": 12.5})

	require.NoError(t, e.LoadString(ctx, `
		local ev = events.receive(sub, 100)
		assert(ev ~= nil)
		assert(ev.data.component == "b")
		assert(events.receive(sub, 0) == nil)
	`))
}

func TestEngine_SubscribeInvalidFilter(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	e, _ := newEngine(t, WithBus(bus))
	for _, code := range []string{
		`events.subscribe("a.*", {colour = "red"})`,
		`events.subscribe("a.*", {source = 1})`,
		`events.subscribe("a.*", {above = {cost = "high"}})`,
		`events.subscribe("a.*", {language = {1, 2}})`,
		`events.subscribe("a.*", {any = {"x"}})`,
	} {
		err := e.LoadString(context.Background(), code)
		require.Error(t, err, code)
		assert.Contains(t, err.Error(), ErrInvalidFilter.Error(), code)
	}
	assert.Empty(t, bus.Subscriptions())
}

func TestEngine_CloseReleasesSubscriptions(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	e := NewEngine(hook.NewRegistry(), WithBus(bus))
	require.NoError(t, e.LoadString(context.Background(), `events.subscribe("a.*") events.subscribe("b.**")`))
	assert.Len(t, bus.Subscriptions(), 2)
	require.NoError(t, e.Close())
	assert.Empty(t, bus.Subscriptions())
}

func TestEngine_EventsWithoutBus(t *testing.T) {
	e, _ := newEngine(t)
	err := e.LoadString(context.Background(), `events.publish("x", {})`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrNoBus.Error())
}

func TestEngine_Sandbox(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()
	for _, code := range []string{
		`dofile("/etc/passwd")`,
		`loadstring("return 1")()`,
		`io.write("x")`,
		`os.exit(1)`,
		`require("os")`,
	} {
		assert.Error(t, e.LoadString(ctx, code), code)
	}
	assert.NoError(t, e.LoadString(ctx, `local s = string.upper("x") .. table.concat({"a"}) .. math.floor(1.5)`))
}

func TestEngine_ExecutionTimeout(t *testing.T) {
	e, reg := newEngine(t, WithExecutionTimeout(50*time.Millisecond))
	require.NoError(t, e.LoadString(context.Background(), `
		hooks.register("AgentError", "normal", function() while true do end end)
	`))

	start := time.Now()
	d, err := hook.NewPipeline(reg, hook.WithFailurePolicy(hook.FailClosed{})).
		Run(context.Background(), hook.AgentError, hook.ExecutionContext{})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	_, cancelled := d.Result.(hook.Cancel)
	assert.True(t, cancelled)
}

func TestEngine_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hooks.lua")
	require.NoError(t, os.WriteFile(path, []byte(`hooks.register("AgentError", "low", function() return "cancel" end)`), 0o600))

	e, reg := newEngine(t)
	require.NoError(t, e.LoadFile(context.Background(), path))
	d, err := hook.NewPipeline(reg).Run(context.Background(), hook.AgentError, hook.ExecutionContext{})
	require.NoError(t, err)
	assert.Equal(t, hook.Cancel{Reason: "cancelled"}, d.Result)

	err = e.LoadFile(context.Background(), filepath.Join(dir, "missing.lua"))
	assert.ErrorContains(t, err, "missing.lua")
}
