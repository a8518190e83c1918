package lua

import (
	"context"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultExecutionTimeout bounds a single call into a state.
const DefaultExecutionTimeout = 5 * time.Second

// State wraps a sandboxed gopher-lua state behind a mutex.
type State struct {
	mu      sync.Mutex
	l       *lua.LState
	timeout time.Duration
	closed  bool
}

// newState creates a sandboxed state. A non-positive timeout disables the
// per-call deadline.
func newState(timeout time.Duration) *State {
	l := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(l)
	return &State{l: l, timeout: timeout}
}

// openSafeLibraries opens base, table, string and math, then removes the
// base functions that load code from disk or strings.
func openSafeLibraries(l *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		l.Push(l.NewFunction(lib.fn))
		l.Push(lua.LString(lib.name))
		l.Call(1, 0)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "module", "require"} {
		l.SetGlobal(name, lua.LNil)
	}
}

// do runs fn with exclusive access to the state under ctx and the state's
// timeout. Lua errors and Go panics are returned as errors.
func (s *State) do(ctx context.Context, fn func(l *lua.LState) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	s.l.SetContext(ctx)
	defer s.l.RemoveContext()

	top := s.l.GetTop()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
		s.l.SetTop(top)
	}()
	return fn(s.l)
}

// DoString executes code.
func (s *State) DoString(ctx context.Context, code string) error {
	return s.do(ctx, func(l *lua.LState) error {
		return l.DoString(code)
	})
}

// DoFile executes the script at path.
func (s *State) DoFile(ctx context.Context, path string) error {
	return s.do(ctx, func(l *lua.LState) error {
		return l.DoFile(path)
	})
}

// IsClosed reports whether Close has been called.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the state. It is safe to call more than once.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.l.Close()
	return nil
}
