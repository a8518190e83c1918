package builtin

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/hookbus/internal/hook"
	"github.com/dshills/hookbus/internal/payload"
)

// ErrInvalidMode is returned when parsing an unknown composition mode.
var ErrInvalidMode = errors.New("invalid composition mode")

// Mode selects how a CompositeHook combines its members.
type Mode int

const (
	// Sequential runs members in order, threading Modified patches into the
	// data later members see, and stops at the first terminal result.
	Sequential Mode = iota

	// FirstMatch runs members in order and returns the first result that is
	// not Continue, Modified included.
	FirstMatch

	// Parallel runs every member concurrently on the same input. Cancel wins
	// over Redirect, Redirect over Retry, and Modified patches are merged in
	// member order.
	Parallel

	// Voting runs every member and returns the first result whose share of
	// identical answers reaches the vote threshold.
	Voting
)

var modeNames = map[Mode]string{
	Sequential: "sequential",
	FirstMatch: "first_match",
	Parallel:   "parallel",
	Voting:     "voting",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode parses a mode name. Dashes and case are ignored.
func ParseMode(s string) (Mode, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for m, name := range modeNames {
		if name == norm {
			return m, nil
		}
	}
	return Sequential, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// DefaultVoteThreshold is the share of members that must agree in Voting mode.
const DefaultVoteThreshold = 0.5

// CompositeHook groups callbacks so they register and run as one.
type CompositeHook struct {
	name      string
	priority  hook.Priority
	mode      Mode
	threshold float64
	members   []hook.Callback
}

// CompositeOption configures a CompositeHook.
type CompositeOption func(*CompositeHook)

// WithCompositePriority sets the priority Register uses.
func WithCompositePriority(p hook.Priority) CompositeOption {
	return func(c *CompositeHook) {
		c.priority = p
	}
}

// WithVoteThreshold sets the agreeing share required in Voting mode. Values
// outside (0, 1] are ignored.
func WithVoteThreshold(t float64) CompositeOption {
	return func(c *CompositeHook) {
		if t > 0 && t <= 1 {
			c.threshold = t
		}
	}
}

// NewCompositeHook creates a group of members combined by mode. Nil members
// are dropped.
func NewCompositeHook(name string, mode Mode, members []hook.Callback, opts ...CompositeOption) *CompositeHook {
	c := &CompositeHook{
		name:      name,
		priority:  hook.Normal,
		mode:      mode,
		threshold: DefaultVoteThreshold,
	}
	for _, m := range members {
		if m != nil {
			c.members = append(c.members, m)
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Hook.
func (c *CompositeHook) Name() string { return c.name }

// Priority implements Hook.
func (c *CompositeHook) Priority() hook.Priority { return c.priority }

// Mode returns the composition mode.
func (c *CompositeHook) Mode() Mode { return c.mode }

// Len returns the number of members.
func (c *CompositeHook) Len() int { return len(c.members) }

// Call implements hook.Callback. A member failure fails the whole group.
func (c *CompositeHook) Call(ctx context.Context, ec *hook.ExecutionContext) (hook.Result, error) {
	if len(c.members) == 0 {
		return hook.Continue{}, nil
	}
	switch c.mode {
	case FirstMatch:
		return c.firstMatch(ctx, ec)
	case Parallel:
		return c.parallel(ctx, ec)
	case Voting:
		return c.vote(ctx, ec)
	default:
		return c.sequential(ctx, ec)
	}
}

func (c *CompositeHook) sequential(ctx context.Context, ec *hook.ExecutionContext) (hook.Result, error) {
	call := copyContext(ec)
	var (
		patch    payload.Data
		modified bool
	)
	for i, m := range c.members {
		res, err := c.invoke(ctx, i, m, copyContext(call))
		if err != nil {
			return nil, err
		}
		switch r := res.(type) {
		case hook.Modified:
			if call.Data, err = call.Data.Merge(r.Patch); err != nil {
				return nil, err
			}
			if patch, err = patch.Merge(r.Patch); err != nil {
				return nil, err
			}
			modified = true
		case hook.Continue:
		default:
			return res, nil
		}
	}
	if modified {
		return hook.Modified{Patch: patch}, nil
	}
	return hook.Continue{}, nil
}

func (c *CompositeHook) firstMatch(ctx context.Context, ec *hook.ExecutionContext) (hook.Result, error) {
	for i, m := range c.members {
		res, err := c.invoke(ctx, i, m, copyContext(ec))
		if err != nil {
			return nil, err
		}
		if _, ok := res.(hook.Continue); !ok {
			return res, nil
		}
	}
	return hook.Continue{}, nil
}

func (c *CompositeHook) parallel(ctx context.Context, ec *hook.ExecutionContext) (hook.Result, error) {
	results := make([]hook.Result, len(c.members))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range c.members {
		call := copyContext(ec)
		g.Go(func() error {
			res, err := c.invoke(gctx, i, m, call)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, want := range []string{hook.ActionCancel, hook.ActionRedirect, hook.ActionRetry} {
		for _, res := range results {
			if res.Action() == want {
				return res, nil
			}
		}
	}
	var (
		patch    payload.Data
		modified bool
		err      error
	)
	for _, res := range results {
		if m, ok := res.(hook.Modified); ok {
			if patch, err = patch.Merge(m.Patch); err != nil {
				return nil, err
			}
			modified = true
		}
	}
	if modified {
		return hook.Modified{Patch: patch}, nil
	}
	return hook.Continue{}, nil
}

func (c *CompositeHook) vote(ctx context.Context, ec *hook.ExecutionContext) (hook.Result, error) {
	results := make([]hook.Result, len(c.members))
	keys := make([]string, len(c.members))
	counts := make(map[string]int, len(c.members))
	for i, m := range c.members {
		res, err := c.invoke(ctx, i, m, copyContext(ec))
		if err != nil {
			return nil, err
		}
		key, err := hook.MarshalResult(res)
		if err != nil {
			return nil, err
		}
		results[i], keys[i] = res, string(key)
		counts[keys[i]]++
	}

	required := int(math.Ceil(float64(len(c.members)) * c.threshold))
	for i, res := range results {
		if counts[keys[i]] >= required {
			return res, nil
		}
	}
	return hook.Continue{}, nil
}

// invoke calls one member. A panic becomes an error.
func (c *CompositeHook) invoke(ctx context.Context, i int, m hook.Callback, ec *hook.ExecutionContext) (res hook.Result, err error) {
	defer func() {
		if v := recover(); v != nil {
			res, err = nil, fmt.Errorf("%s member %d: panic: %v", c.name, i, v)
		}
	}()
	res, err = m.Call(ctx, ec)
	if err != nil {
		return nil, fmt.Errorf("%s member %d: %w", c.name, i, err)
	}
	if res == nil {
		res = hook.Continue{}
	}
	return res, nil
}

func copyContext(ec *hook.ExecutionContext) *hook.ExecutionContext {
	c := *ec
	c.Metadata = maps.Clone(ec.Metadata)
	return &c
}
