package builtin

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hookbus/internal/event"
	"github.com/dshills/hookbus/internal/hook"
	"github.com/dshills/hookbus/internal/metrics"
	"github.com/dshills/hookbus/internal/payload"
)

func call(t *testing.T, h Hook, ec hook.ExecutionContext) hook.Result {
	t.Helper()
	res, err := h.Call(context.Background(), &ec)
	require.NoError(t, err)
	return res
}

func toolCall(tool string) hook.ExecutionContext {
	return hook.ExecutionContext{
		ComponentID: "tool:" + tool,
		Point:       hook.BeforeToolExecution,
		Data:        payload.Object(map[string]any{"tool_name": tool}),
	}
}

func TestSecurityHook(t *testing.T) {
	h := NewSecurityHook("", "process_executor", "shell")

	assert.Equal(t, hook.Cancel{Reason: UnauthorizedReason}, call(t, h, toolCall("process_executor")))
	assert.Equal(t, hook.Continue{}, call(t, h, toolCall("calculator")))
	assert.Equal(t, hook.Continue{}, call(t, h, hook.ExecutionContext{}))

	h.Allow("shell")
	assert.Equal(t, hook.Continue{}, call(t, h, toolCall("shell")))
	h.Deny("calculator")
	assert.Equal(t, []string{"calculator", "process_executor"}, h.Denied())
	assert.Equal(t, hook.Cancel{Reason: UnauthorizedReason}, call(t, h, toolCall("calculator")))
}

func TestSecurityHook_CustomField(t *testing.T) {
	h := NewSecurityHook("request.tool", "rm")
	ec := hook.ExecutionContext{Data: payload.MustNew(map[string]any{"request": map[string]any{"tool": "rm"}})}
	assert.Equal(t, hook.Cancel{Reason: UnauthorizedReason}, call(t, h, ec))
}

func TestSecurityHook_InPipeline(t *testing.T) {
	reg := hook.NewRegistry()
	m := NewMetricsHook(nil)
	Register(reg, NewSecurityHook("", "process_executor"), hook.BeforeToolExecution)
	Register(reg, m, hook.BeforeToolExecution)

	d, err := hook.NewPipeline(reg).Run(context.Background(), hook.BeforeToolExecution, toolCall("process_executor"))
	require.NoError(t, err)
	assert.Equal(t, hook.Cancel{Reason: "unauthorized"}, d.Result)
	assert.Zero(t, m.Count(hook.BeforeToolExecution))

	list, err := reg.List(hook.Filter{Tag: "security"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, hook.Highest, list[0].Priority)
	assert.Equal(t, "go", list[0].Language)
}

func TestLoggingHook(t *testing.T) {
	var buf bytes.Buffer
	h := NewLoggingHook(zerolog.New(&buf)).WithLevel(zerolog.InfoLevel)

	ec := toolCall("calculator")
	ec.CorrelationID = "corr-9"
	assert.Equal(t, hook.Continue{}, call(t, h, ec))

	out := buf.String()
	assert.Contains(t, out, `"point":"BeforeToolExecution"`)
	assert.Contains(t, out, `"component":"tool:calculator"`)
	assert.Contains(t, out, `"correlation_id":"corr-9"`)
	assert.Contains(t, out, `"data_bytes":`)
	assert.Contains(t, out, `"message":"hook invoked"`)
}

func TestMetricsHook(t *testing.T) {
	rec := metrics.NewMemory()
	h := NewMetricsHook(rec)
	reg := hook.NewRegistry()
	ids := Register(reg, h, hook.AgentError, hook.ToolError)
	assert.Len(t, ids, 2)

	p := hook.NewPipeline(reg)
	for range 3 {
		_, err := p.Run(context.Background(), hook.AgentError, hook.ExecutionContext{})
		require.NoError(t, err)
	}
	_, err := p.Run(context.Background(), hook.ToolError, hook.ExecutionContext{})
	require.NoError(t, err)

	assert.Equal(t, uint64(3), h.Count(hook.AgentError))
	assert.Equal(t, map[hook.Point]uint64{hook.AgentError: 3, hook.ToolError: 1}, h.Counts())
	assert.Equal(t, float64(4), rec.Counter(MetricInvocations))
	assert.Equal(t, float64(3), rec.Counter(MetricInvocations, "point", "AgentError"))
}

func TestRateLimitHook(t *testing.T) {
	h := NewRateLimitHook(1, 2, 0)
	now := time.Unix(1000, 0)
	h.now = func() time.Time { return now }

	ec := hook.ExecutionContext{ComponentID: "agentA"}
	assert.Equal(t, hook.Continue{}, call(t, h, ec))
	assert.Equal(t, hook.Continue{}, call(t, h, ec))

	res := call(t, h, ec)
	retry, ok := res.(hook.Retry)
	require.True(t, ok, "got %T", res)
	assert.Equal(t, uint32(hook.DefaultRetryAttempts), retry.MaxAttempts)
	assert.Equal(t, time.Second, retry.Backoff)

	// Other components have their own bucket.
	assert.Equal(t, hook.Continue{}, call(t, h, hook.ExecutionContext{ComponentID: "agentB"}))

	now = now.Add(time.Second)
	assert.Equal(t, hook.Continue{}, call(t, h, ec))

	h.Reset("agentA")
	assert.Equal(t, hook.Continue{}, call(t, h, ec))
	assert.Equal(t, hook.Continue{}, call(t, h, ec))
}

func TestRateLimitHook_ComponentFromData(t *testing.T) {
	h := NewRateLimitHook(0.001, 1, 5)
	ec := hook.ExecutionContext{Data: payload.Object(map[string]any{"component": "c1"})}
	assert.Equal(t, hook.Continue{}, call(t, h, ec))
	res := call(t, h, ec)
	retry, ok := res.(hook.Retry)
	require.True(t, ok)
	assert.Equal(t, uint32(5), retry.MaxAttempts)
	assert.Greater(t, retry.Backoff, time.Duration(0))
}

func TestCostHook(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()
	sub, err := bus.Subscribe("cost.**")
	require.NoError(t, err)

	h := NewCostHook(event.NewPublisher(bus, "cost-tracker", "go"), 10)
	ec := func(cost float64) hook.ExecutionContext {
		return hook.ExecutionContext{
			ComponentID:   "agentA",
			CorrelationID: "c-1",
			Data:          payload.Object(map[string]any{"cost": cost}),
		}
	}

	assert.Equal(t, hook.Continue{}, call(t, h, ec(4)))
	assert.Equal(t, hook.Continue{}, call(t, h, ec(4)))
	_, ok, err := bus.Receive(context.Background(), sub, 0)
	require.NoError(t, err)
	assert.False(t, ok, "no event below threshold")

	assert.Equal(t, hook.Continue{}, call(t, h, ec(3)))
	ev, ok, err := bus.Receive(context.Background(), sub, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, CostThresholdExceeded, ev.Type)
	assert.Equal(t, "agentA", ev.Data.Get("component").String())
	assert.InDelta(t, 11.0, ev.Data.Get("cost").Float(), 1e-9)
	assert.InDelta(t, 10.0, ev.Data.Get("threshold").Float(), 1e-9)
	assert.Equal(t, "cost-tracker", ev.Metadata.Source)
	assert.Equal(t, "c-1", ev.Metadata.CorrelationID)

	// Crossing is reported once.
	call(t, h, ec(5))
	_, ok, _ = bus.Receive(context.Background(), sub, 0)
	assert.False(t, ok)
	assert.InDelta(t, 16.0, h.Total("agentA"), 1e-9)

	h.Reset("agentA")
	assert.Zero(t, h.Total("agentA"))
}

func TestCostHook_IgnoresMissingCost(t *testing.T) {
	h := NewCostHook(nil, 1, WithCostField("usd"))
	assert.Equal(t, hook.Continue{}, call(t, h, hook.ExecutionContext{ComponentID: "a", Data: payload.Object(map[string]any{"cost": 5})}))
	assert.Zero(t, h.Total("a"))
	call(t, h, hook.ExecutionContext{ComponentID: "a", Data: payload.Object(map[string]any{"usd": 2.5})})
	assert.InDelta(t, 2.5, h.Total("a"), 1e-9)
}

func TestCostHook_Concurrent(t *testing.T) {
	h := NewCostHook(nil, 0)
	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			for range 100 {
				ec := hook.ExecutionContext{ComponentID: "a", Data: payload.Object(map[string]any{"cost": 1})}
				_, _ = h.Call(context.Background(), &ec)
			}
		})
	}
	wg.Wait()
	assert.InDelta(t, 1000.0, h.Total("a"), 1e-9)
}

func fixed(r hook.Result) hook.Callback {
	return hook.CallbackFunc(func(context.Context, *hook.ExecutionContext) (hook.Result, error) {
		return r, nil
	})
}

func patch(kv map[string]any) hook.Result {
	return hook.Modified{Patch: payload.Object(kv)}
}

func TestCompositeHook_Sequential(t *testing.T) {
	var seen []string
	readA := hook.CallbackFunc(func(_ context.Context, ec *hook.ExecutionContext) (hook.Result, error) {
		seen = append(seen, ec.Data.Get("a").String())
		return hook.Continue{}, nil
	})
	var afterCancel int
	tail := hook.CallbackFunc(func(context.Context, *hook.ExecutionContext) (hook.Result, error) {
		afterCancel++
		return hook.Continue{}, nil
	})

	c := NewCompositeHook("group", Sequential, []hook.Callback{
		fixed(patch(map[string]any{"a": "1"})),
		readA,
		fixed(patch(map[string]any{"b": 2})),
	})
	res := call(t, c, hook.ExecutionContext{Data: payload.Object(map[string]any{"a": "0"})})
	m, ok := res.(hook.Modified)
	require.True(t, ok, "got %T", res)
	assert.JSONEq(t, `{"a":"1","b":2}`, m.Patch.String())
	assert.Equal(t, []string{"1"}, seen)

	c = NewCompositeHook("group", Sequential, []hook.Callback{
		fixed(patch(map[string]any{"a": "1"})),
		fixed(hook.Cancel{Reason: "stop"}),
		tail,
	})
	assert.Equal(t, hook.Cancel{Reason: "stop"}, call(t, c, hook.ExecutionContext{}))
	assert.Zero(t, afterCancel)

	assert.Equal(t, hook.Continue{}, call(t, NewCompositeHook("empty", Sequential, nil), hook.ExecutionContext{}))
}

func TestCompositeHook_FirstMatch(t *testing.T) {
	c := NewCompositeHook("first", FirstMatch, []hook.Callback{
		fixed(nil),
		fixed(patch(map[string]any{"x": 1})),
		fixed(hook.Cancel{Reason: "late"}),
	})
	res := call(t, c, hook.ExecutionContext{})
	_, ok := res.(hook.Modified)
	assert.True(t, ok, "got %T", res)
}

func TestCompositeHook_Parallel(t *testing.T) {
	c := NewCompositeHook("par", Parallel, []hook.Callback{
		fixed(patch(map[string]any{"x": 1})),
		fixed(hook.Retry{MaxAttempts: 1}),
		fixed(hook.Redirect{Target: "fallback"}),
	})
	assert.Equal(t, hook.Redirect{Target: "fallback"}, call(t, c, hook.ExecutionContext{}))

	c = NewCompositeHook("par", Parallel, []hook.Callback{
		fixed(patch(map[string]any{"x": 1, "y": 1})),
		fixed(hook.Continue{}),
		fixed(patch(map[string]any{"y": 2})),
	})
	res := call(t, c, hook.ExecutionContext{})
	m, ok := res.(hook.Modified)
	require.True(t, ok, "got %T", res)
	assert.JSONEq(t, `{"x":1,"y":2}`, m.Patch.String())
}

func TestCompositeHook_ParallelMemberFailure(t *testing.T) {
	c := NewCompositeHook("par", Parallel, []hook.Callback{
		fixed(hook.Continue{}),
		hook.CallbackFunc(func(context.Context, *hook.ExecutionContext) (hook.Result, error) {
			panic("member blew up")
		}),
	})
	_, err := c.Call(context.Background(), &hook.ExecutionContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "member blew up")

	reg := hook.NewRegistry()
	Register(reg, c, hook.ToolError)
	d, err := hook.NewPipeline(reg, hook.WithFailurePolicy(hook.FailClosed{})).
		Run(context.Background(), hook.ToolError, hook.ExecutionContext{})
	require.NoError(t, err)
	assert.False(t, d.Proceed())
	assert.Len(t, d.Failures, 1)
}

func TestCompositeHook_Voting(t *testing.T) {
	deny := hook.Cancel{Reason: "deny"}
	members := []hook.Callback{fixed(hook.Continue{}), fixed(deny), fixed(deny)}

	assert.Equal(t, deny, call(t, NewCompositeHook("vote", Voting, members), hook.ExecutionContext{}))
	assert.Equal(t, hook.Continue{}, call(t,
		NewCompositeHook("vote", Voting, members, WithVoteThreshold(0.9)), hook.ExecutionContext{}))

	split := []hook.Callback{fixed(hook.Cancel{Reason: "a"}), fixed(hook.Cancel{Reason: "b"}), fixed(hook.Redirect{Target: "c"})}
	assert.Equal(t, hook.Continue{}, call(t, NewCompositeHook("vote", Voting, split), hook.ExecutionContext{}))
}

func TestCompositeHook_Register(t *testing.T) {
	reg := hook.NewRegistry()
	c := NewCompositeHook("guards", FirstMatch, []hook.Callback{
		NewSecurityHook("", "shell"),
		nil,
		fixed(hook.Continue{}),
	}, WithCompositePriority(hook.Highest))
	assert.Equal(t, 2, c.Len())

	ids := Register(reg, c, hook.BeforeToolExecution)
	s, err := reg.Get(ids[0])
	require.NoError(t, err)
	assert.Equal(t, hook.Highest, s.Priority)
	assert.Equal(t, "guards", s.Tag)

	d, err := hook.NewPipeline(reg).Run(context.Background(), hook.BeforeToolExecution, toolCall("shell"))
	require.NoError(t, err)
	assert.Equal(t, hook.Cancel{Reason: UnauthorizedReason}, d.Result)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{
		"sequential":  Sequential,
		"First-Match": FirstMatch,
		" parallel ":  Parallel,
		"VOTING":      Voting,
	} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMode("random")
	assert.ErrorIs(t, err, ErrInvalidMode)
	assert.Equal(t, "first_match", FirstMatch.String())
}

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

func failure(component, msg string) hook.ExecutionContext {
	return hook.ExecutionContext{
		ComponentID: component,
		Point:       hook.ToolError,
		Data:        payload.Object(map[string]any{"error": msg}),
	}
}

func TestRetryHook(t *testing.T) {
	rec := metrics.NewMemory()
	h := NewRetryHook(4, WithBackoff(10*time.Millisecond, 25*time.Millisecond, 2), WithRetryRecorder(rec))

	ec := failure("tool:http", "connection refused")
	assert.Equal(t, hook.Retry{MaxAttempts: 3, Backoff: 10 * time.Millisecond}, call(t, h, ec))
	assert.Equal(t, hook.Retry{MaxAttempts: 2, Backoff: 20 * time.Millisecond}, call(t, h, ec))
	assert.Equal(t, hook.Retry{MaxAttempts: 1, Backoff: 25 * time.Millisecond}, call(t, h, ec))
	assert.Equal(t, uint32(3), h.Attempts(hook.ToolError, "tool:http"))

	// The fourth failure exhausts the budget and starts over afterwards.
	assert.Equal(t, hook.Continue{}, call(t, h, ec))
	assert.Zero(t, h.Attempts(hook.ToolError, "tool:http"))
	assert.Equal(t, hook.Retry{MaxAttempts: 3, Backoff: 10 * time.Millisecond}, call(t, h, ec))

	assert.Equal(t, float64(4), rec.Counter(MetricRetries))
	assert.Equal(t, float64(1), rec.Counter(MetricExhausted))
}

func TestRetryHook_ErrorSources(t *testing.T) {
	h := NewRetryHook(3)

	assert.Equal(t, hook.Continue{}, call(t, h, hook.ExecutionContext{ComponentID: "a", Point: hook.AgentError}))
	assert.Equal(t, hook.Continue{}, call(t, h, failure("a", "invalid argument")))

	byMeta := hook.ExecutionContext{ComponentID: "a", Point: hook.AgentError, Metadata: map[string]string{"error": "Timeout after 5s"}}
	_, ok := call(t, h, byMeta).(hook.Retry)
	assert.True(t, ok)

	nested := hook.ExecutionContext{
		ComponentID: "b",
		Point:       hook.WorkflowError,
		Data:        payload.MustNew(map[string]any{"result": map[string]any{"error": "service unavailable"}}),
	}
	_, ok = call(t, h, nested).(hook.Retry)
	assert.True(t, ok)
}

func TestRetryHook_Classification(t *testing.T) {
	h := NewRetryHook(5,
		WithRetryableErrors("quota"),
		WithNonRetryableErrors("permanent"),
	)
	_, ok := call(t, h, failure("a", "Quota exceeded")).(hook.Retry)
	assert.True(t, ok)
	assert.Equal(t, hook.Continue{}, call(t, h, failure("a", "permanent quota exceeded")))
	assert.Equal(t, hook.Continue{}, call(t, h, failure("a", "connection reset")))
}

func TestRetryHook_MaxDuration(t *testing.T) {
	clock := &stepClock{now: time.Unix(0, 0)}
	h := NewRetryHook(10,
		WithBackoff(time.Second, time.Minute, 2),
		WithMaxRetryDuration(5*time.Second),
		withRetryClock(clock),
	)
	ec := failure("agentA", "timeout")

	assert.Equal(t, hook.Retry{MaxAttempts: 9, Backoff: time.Second}, call(t, h, ec))
	clock.now = clock.now.Add(2 * time.Second)
	assert.Equal(t, hook.Retry{MaxAttempts: 8, Backoff: 2 * time.Second}, call(t, h, ec))
	clock.now = clock.now.Add(2 * time.Second)
	assert.Equal(t, hook.Continue{}, call(t, h, ec), "4s elapsed plus a 4s delay passes the limit")
}

func TestRetryHook_PerComponentAndReset(t *testing.T) {
	h := NewRetryHook(3)
	call(t, h, failure("a", "timeout"))
	call(t, h, failure("b", "timeout"))
	agentA := failure("a", "timeout")
	agentA.Point = hook.AgentError
	call(t, h, agentA)

	assert.Equal(t, uint32(1), h.Attempts(hook.ToolError, "a"))
	assert.Equal(t, uint32(1), h.Attempts(hook.AgentError, "a"))

	h.Reset("a")
	assert.Zero(t, h.Attempts(hook.ToolError, "a"))
	assert.Zero(t, h.Attempts(hook.AgentError, "a"))
	assert.Equal(t, uint32(1), h.Attempts(hook.ToolError, "b"))

	h.Reset("")
	assert.Zero(t, h.Attempts(hook.ToolError, "b"))
}
