package app

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Run runs the breaker listeners and, when enabled, the script watcher until
// ctx is done. It returns the first background failure.
func (app *Application) Run(ctx context.Context) error {
	app.mu.Lock()
	if app.closed {
		app.mu.Unlock()
		return ErrClosed
	}
	if app.done != nil {
		app.mu.Unlock()
		return ErrAlreadyRunning
	}
	done := make(chan struct{})
	app.done = done
	app.mu.Unlock()

	defer func() {
		app.mu.Lock()
		app.done = nil
		app.mu.Unlock()
		close(done)
	}()

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range app.listeners {
		g.Go(func() error {
			return l.Run(gctx)
		})
	}
	if app.cfg.Lua.Watch && len(app.cfg.Scripts) > 0 {
		g.Go(func() error {
			return app.watchScripts(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	app.logger.Info().
		Int("listeners", len(app.listeners)).
		Int("hooks", app.registry.Count()).
		Msg("hookbus running")
	err := g.Wait()
	app.logger.Info().Err(err).Msg("hookbus stopped")
	return err
}

// Start calls Run in a new goroutine.
func (app *Application) Start() error {
	app.mu.Lock()
	if app.closed {
		app.mu.Unlock()
		return ErrClosed
	}
	if app.cancel != nil {
		app.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	app.cancel, app.stopped = cancel, finished
	app.mu.Unlock()

	go func() {
		defer close(finished)
		err := app.Run(ctx)
		app.mu.Lock()
		app.runErr = err
		app.mu.Unlock()
	}()
	return nil
}

// Stop cancels a Start and waits for Run to return or ctx to expire.
func (app *Application) Stop(ctx context.Context) error {
	app.mu.Lock()
	cancel, finished := app.cancel, app.stopped
	app.cancel, app.stopped = nil, nil
	app.mu.Unlock()
	if cancel == nil {
		return ErrNotRunning
	}

	cancel()
	select {
	case <-finished:
		app.mu.RLock()
		defer app.mu.RUnlock()
		return app.runErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops background work, unloads scripts and closes the bus. Closing
// twice is a no-op.
func (app *Application) Close(ctx context.Context) error {
	var errs []error
	if err := app.Stop(ctx); err != nil && !errors.Is(err, ErrNotRunning) {
		errs = append(errs, err)
	}

	app.mu.Lock()
	if app.closed {
		app.mu.Unlock()
		return errors.Join(errs...)
	}
	app.closed = true
	engine := app.engine
	app.engine = nil
	app.mu.Unlock()

	if engine != nil {
		if err := engine.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := app.bus.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
