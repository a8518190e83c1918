// Package logging builds the zerolog logger used across hookbus.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Config configures a logger.
type Config struct {
	Level  string // trace|debug|info|warn|error|disabled; default info
	Format string // auto|console|json; default auto
	Output string // stderr|stdout|<file path>; default stderr
}

// New creates a logger from cfg. It returns a closer for file outputs; the
// closer is a no-op otherwise. An unknown level falls back to info and an
// unopenable file falls back to stderr.
func New(cfg Config) (zerolog.Logger, io.Closer) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var (
		w      io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
		tty    bool
	)
	switch cfg.Output {
	case "", "stderr":
		tty = isTerminal(os.Stderr)
	case "stdout":
		w = os.Stdout
		tty = isTerminal(os.Stdout)
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err == nil {
			w, closer = f, f
		} else {
			tty = isTerminal(os.Stderr)
		}
	}

	return NewWithWriter(w, level, useConsole(cfg.Format, tty)), closer
}

// NewWithWriter creates a logger on w. console selects the human-readable
// ConsoleWriter instead of JSON lines.
func NewWithWriter(w io.Writer, level zerolog.Level, console bool) zerolog.Logger {
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func useConsole(format string, tty bool) bool {
	switch strings.ToLower(format) {
	case "console":
		return true
	case "json":
		return false
	default:
		return tty
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
