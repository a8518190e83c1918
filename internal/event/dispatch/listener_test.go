package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/hookbus/internal/event"
	"github.com/dshills/hookbus/internal/payload"
)

type collector struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *collector) Handle(_ context.Context, ev event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *collector) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Type
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestListener_DeliversInOrder(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	c := &collector{}
	l := NewListener(bus, "job.*", c, WithBatchSize(2), WithPollInterval(10*time.Millisecond))
	require.NoError(t, l.Start())
	waitFor(t, func() bool { return l.SubscriptionID() != "" })

	for _, typ := range []string{"job.start", "job.step", "other", "job.done"} {
		_, err := bus.Publish(context.Background(), typ, payload.Data{})
		require.NoError(t, err)
	}
	waitFor(t, func() bool { return len(c.types()) == 3 })
	assert.Equal(t, []string{"job.start", "job.step", "job.done"}, c.types())

	require.NoError(t, l.Stop(context.Background()))
	assert.Equal(t, 0, bus.Stats().Subscriptions, "stop must unsubscribe")
	assert.ErrorIs(t, l.Stop(context.Background()), ErrNotRunning)
	assert.Equal(t, uint64(3), l.Stats().Succeeded)
}

func TestListener_StartTwice(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()
	l := NewListener(bus, "x", &collector{})
	require.NoError(t, l.Start())
	assert.ErrorIs(t, l.Start(), ErrAlreadyRunning)
	require.NoError(t, l.Stop(context.Background()))
}

func TestListener_HandlerFailuresAreIsolated(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	var panics []any
	var mu sync.Mutex
	h := HandlerFunc(func(_ context.Context, ev event.Event) error {
		switch ev.Type {
		case "bad.panic":
			panic("boom")
		case "bad.error":
			return errors.New("nope")
		}
		return nil
	})
	l := NewListener(bus, "**", h,
		WithPollInterval(10*time.Millisecond),
		WithPanicHandler(func(_ event.Event, v any, _ []byte) {
			mu.Lock()
			panics = append(panics, v)
			mu.Unlock()
		}),
	)
	require.NoError(t, l.Start())
	defer l.Stop(context.Background())
	waitFor(t, func() bool { return l.SubscriptionID() != "" })

	for _, typ := range []string{"bad.panic", "bad.error", "good"} {
		_, err := bus.Publish(context.Background(), typ, payload.Data{})
		require.NoError(t, err)
	}
	waitFor(t, func() bool { return l.Stats().Received == 3 })

	stats := l.Stats()
	assert.Equal(t, uint64(1), stats.Panicked)
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, uint64(1), stats.Succeeded)
	mu.Lock()
	assert.Equal(t, []any{"boom"}, panics)
	mu.Unlock()
}

func TestListener_RunEndsWhenBusCloses(t *testing.T) {
	bus := event.NewBus()
	l := NewListener(bus, "x", &collector{}, WithPollInterval(time.Second))

	errc := make(chan error, 1)
	go func() { errc <- l.Run(context.Background()) }()
	waitFor(t, func() bool { return l.SubscriptionID() != "" })

	require.NoError(t, bus.Close())
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "listener did not stop after bus close")
	}
}

func TestListener_InvalidPattern(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()
	l := NewListener(bus, "a..b", &collector{})
	assert.Error(t, l.Run(context.Background()))
}

func TestExecutor(t *testing.T) {
	e := NewExecutor()
	ev := event.Event{Type: "t"}

	res := e.Execute(context.Background(), ev, HandlerFunc(func(context.Context, event.Event) error { return nil }))
	assert.True(t, res.IsSuccess())

	res = e.Execute(context.Background(), ev, HandlerFunc(func(context.Context, event.Event) error { panic(42) }))
	assert.True(t, res.IsPanic())
	assert.Equal(t, 42, res.PanicValue)
	assert.NotEmpty(t, res.PanicStack)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res = e.Execute(ctx, ev, HandlerFunc(func(context.Context, event.Event) error { return nil }))
	assert.True(t, res.Skipped)
	assert.ErrorIs(t, res.Error, context.Canceled)

	res = e.ExecuteWithTimeout(context.Background(), ev, HandlerFunc(func(ctx context.Context, _ event.Event) error {
		<-ctx.Done()
		return ctx.Err()
	}), 10*time.Millisecond)
	assert.True(t, res.IsError())
	assert.ErrorIs(t, res.Error, context.DeadlineExceeded)
}
