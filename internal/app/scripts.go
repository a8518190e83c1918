package app

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/hookbus/internal/script/lua"
)

// reloadDelay coalesces the bursts of events editors produce on save.
const reloadDelay = 100 * time.Millisecond

// loadScripts creates an engine and loads every path into it. On failure the
// engine is closed, which unregisters whatever the loaded scripts registered.
func (app *Application) loadScripts(ctx context.Context, paths []string) (*lua.Engine, error) {
	engine := app.newEngine()
	for _, path := range paths {
		if err := engine.LoadFile(ctx, path); err != nil {
			_ = engine.Close()
			return nil, &ScriptError{Path: path, Err: err}
		}
	}
	if len(paths) > 0 {
		app.logger.Info().
			Int("scripts", len(paths)).
			Int("registrations", len(engine.Registrations())).
			Msg("scripts loaded")
	}
	return engine, nil
}

// ReloadScripts loads the configured scripts into a fresh engine and swaps it
// in. If any script fails, the current engine stays active.
func (app *Application) ReloadScripts(ctx context.Context) error {
	app.mu.RLock()
	closed := app.closed
	app.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	next, err := app.loadScripts(ctx, app.cfg.Scripts)
	if err != nil {
		return err
	}

	app.mu.Lock()
	if app.closed {
		app.mu.Unlock()
		_ = next.Close()
		return ErrClosed
	}
	prev := app.engine
	app.engine = next
	app.mu.Unlock()

	if prev != nil {
		return prev.Close()
	}
	return nil
}

// watchScripts reloads scripts when any configured file is written, created
// or renamed into place. Directories are watched so atomic saves are seen.
func (app *Application) watchScripts(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	files := make(map[string]bool, len(app.cfg.Scripts))
	dirs := make(map[string]bool)
	for _, p := range app.cfg.Scripts {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		files[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			return err
		}
		dirs[dir] = true
	}

	logger := app.logger.With().Str("component", "watcher").Logger()
	logger.Debug().Int("dirs", len(dirs)).Msg("watching scripts")

	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !files[filepath.Clean(ev.Name)] {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(reloadDelay)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("script watcher error")
		case <-timer.C:
			err := app.ReloadScripts(ctx)
			switch {
			case errors.Is(err, ErrClosed):
				return nil
			case err != nil:
				logger.Warn().Err(err).Msg("script reload failed")
			default:
				logger.Info().Msg("scripts reloaded")
			}
		}
	}
}
