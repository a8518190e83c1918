package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/hookbus/internal/event"
)

// Sentinel errors for listeners.
var (
	// ErrAlreadyRunning is returned when a listener is started twice.
	ErrAlreadyRunning = errors.New("listener is already running")

	// ErrNotRunning is returned when stopping a listener that is not running.
	ErrNotRunning = errors.New("listener is not running")
)

// Bus is the part of *event.Bus a Listener needs.
type Bus interface {
	Subscribe(pattern string, opts ...event.SubscribeOption) (string, error)
	Unsubscribe(id string) error
	ReceiveBatch(ctx context.Context, id string, opts event.BatchOptions) ([]event.Event, error)
}

// Listener is a worker that owns one subscription end-to-end.
type Listener struct {
	bus     Bus
	pattern string
	handler Handler
	exec    *Executor

	name           string
	batchSize      int
	pollInterval   time.Duration
	handlerTimeout time.Duration
	subscribeOpts  []event.SubscribeOption
	logger         zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	runErr error
	subID  atomic.Value

	received  atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	panicked  atomic.Uint64
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithBatchSize sets the maximum events taken per ReceiveBatch call.
func WithBatchSize(n int) ListenerOption {
	return func(l *Listener) {
		if n > 0 {
			l.batchSize = n
		}
	}
}

// WithPollInterval sets how long each ReceiveBatch call may wait.
func WithPollInterval(d time.Duration) ListenerOption {
	return func(l *Listener) {
		if d > 0 {
			l.pollInterval = d
		}
	}
}

// WithHandlerTimeout bounds each handler invocation.
func WithHandlerTimeout(d time.Duration) ListenerOption {
	return func(l *Listener) {
		l.handlerTimeout = d
	}
}

// WithSubscribeOptions passes options to the underlying Subscribe call.
func WithSubscribeOptions(opts ...event.SubscribeOption) ListenerOption {
	return func(l *Listener) {
		l.subscribeOpts = append(l.subscribeOpts, opts...)
	}
}

// WithPanicHandler sets the callback for handler panics.
func WithPanicHandler(h PanicHandler) ListenerOption {
	return func(l *Listener) {
		l.exec = NewExecutor(WithExecutorPanicHandler(h))
	}
}

// WithLogger sets the listener logger.
func WithLogger(logger zerolog.Logger) ListenerOption {
	return func(l *Listener) {
		l.logger = logger
	}
}

// WithListenerName labels the listener in logs.
func WithListenerName(name string) ListenerOption {
	return func(l *Listener) {
		l.name = name
	}
}

// NewListener creates a listener for pattern. It does not subscribe until
// Run or Start is called.
func NewListener(bus Bus, pattern string, handler Handler, opts ...ListenerOption) *Listener {
	l := &Listener{
		bus:          bus,
		pattern:      pattern,
		handler:      handler,
		exec:         NewExecutor(),
		name:         pattern,
		batchSize:    16,
		pollInterval: 100 * time.Millisecond,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With().Str("listener", l.name).Str("pattern", pattern).Logger()
	return l
}

// Run subscribes and processes events until ctx is done or the bus is
// closed. The subscription is always released before Run returns.
func (l *Listener) Run(ctx context.Context) error {
	id, err := l.bus.Subscribe(l.pattern, append([]event.SubscribeOption{event.WithName(l.name)}, l.subscribeOpts...)...)
	if err != nil {
		return err
	}
	l.subID.Store(id)
	defer func() {
		if err := l.bus.Unsubscribe(id); err != nil && !errors.Is(err, event.ErrSubscriptionNotFound) {
			l.logger.Debug().Err(err).Msg("unsubscribe on stop")
		}
	}()
	l.logger.Debug().Str("subscription", id).Msg("listener started")

	for {
		if ctx.Err() != nil {
			return nil
		}
		events, err := l.bus.ReceiveBatch(ctx, id, event.BatchOptions{
			MaxEvents: l.batchSize,
			Timeout:   l.pollInterval,
		})
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, event.ErrBusClosed), errors.Is(err, event.ErrSubscriptionClosed):
			l.logger.Debug().Err(err).Msg("listener subscription ended")
			return nil
		case err != nil:
			return err
		}

		for _, ev := range events {
			l.handle(ctx, ev)
		}
	}
}

func (l *Listener) handle(ctx context.Context, ev event.Event) {
	l.received.Add(1)
	res := l.exec.ExecuteWithTimeout(ctx, ev, l.handler, l.handlerTimeout)
	switch {
	case res.IsSuccess():
		l.succeeded.Add(1)
	case res.IsPanic():
		l.panicked.Add(1)
		l.logger.Error().Interface("panic", res.PanicValue).Str("type", ev.Type).Msg("listener handler panicked")
	case res.Skipped:
	default:
		l.failed.Add(1)
		l.logger.Warn().Err(res.Error).Str("type", ev.Type).Str("event", ev.ID).Msg("listener handler failed")
	}
}

// Start runs the listener in a new goroutine.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})
	l.runErr = nil
	go func(done chan struct{}) {
		defer close(done)
		err := l.Run(ctx)
		l.mu.Lock()
		l.runErr = err
		l.mu.Unlock()
	}(l.done)
	return nil
}

// Stop cancels a listener started with Start and waits for it to release its
// subscription or for ctx to expire.
func (l *Listener) Stop(ctx context.Context) error {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel = nil
	l.mu.Unlock()
	if cancel == nil {
		return ErrNotRunning
	}

	cancel()
	select {
	case <-done:
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.runErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubscriptionID returns the id of the current or last subscription, or ""
// before the listener has subscribed.
func (l *Listener) SubscriptionID() string {
	id, _ := l.subID.Load().(string)
	return id
}

// ListenerStats reports handler outcomes.
type ListenerStats struct {
	Received  uint64
	Succeeded uint64
	Failed    uint64
	Panicked  uint64
}

// Stats returns handler outcome counts.
func (l *Listener) Stats() ListenerStats {
	return ListenerStats{
		Received:  l.received.Load(),
		Succeeded: l.succeeded.Load(),
		Failed:    l.failed.Load(),
		Panicked:  l.panicked.Load(),
	}
}
