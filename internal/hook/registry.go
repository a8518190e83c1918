package hook

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// registration is immutable after insertion apart from the enabled flag.
type registration struct {
	id       string
	point    Point
	priority Priority
	seq      uint64
	tag      string
	name     string
	language string
	callback Callback
	enabled  atomic.Bool
}

func (r *registration) summary() Summary {
	return Summary{
		ID:       r.id,
		Point:    r.point,
		Priority: r.priority,
		Sequence: r.seq,
		Tag:      r.tag,
		Name:     r.name,
		Language: r.language,
		Enabled:  r.enabled.Load(),
	}
}

// Summary describes one registration.
type Summary struct {
	ID       string
	Point    Point
	Priority Priority
	Sequence uint64
	Tag      string
	Name     string
	Language string
	Enabled  bool
}

// RegisterOption configures a registration.
type RegisterOption func(*registration)

// WithTag labels the registration for filtering.
func WithTag(tag string) RegisterOption {
	return func(r *registration) {
		r.tag = tag
	}
}

// WithName gives the registration a human readable name. Names need not be
// unique.
func WithName(name string) RegisterOption {
	return func(r *registration) {
		r.name = name
	}
}

// WithLanguage records the runtime the callback is implemented in.
func WithLanguage(lang string) RegisterOption {
	return func(r *registration) {
		r.language = lang
	}
}

// Registry stores hook registrations per point, ordered by priority and then
// registration sequence.
//
// Each point's list is copy-on-write: writers build a new slice and readers
// take the current one without copying, so a run in progress keeps a stable
// snapshot while registrations change.
type Registry struct {
	mu      sync.RWMutex
	byPoint map[Point][]*registration
	byID    map[string]*registration
	seq     uint64
	logger  zerolog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the registry logger.
func WithRegistryLogger(l zerolog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		byPoint: make(map[Point][]*registration),
		byID:    make(map[string]*registration),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds cb at point and returns its id. It never fails: out-of-range
// priorities are clamped and a nil callback behaves as Continue.
func (r *Registry) Register(point Point, priority Priority, cb Callback, opts ...RegisterOption) string {
	if cb == nil {
		cb = CallbackFunc(nil)
	}
	reg := &registration{
		id:       uuid.NewString(),
		point:    point,
		priority: priority.clamp(),
		callback: cb,
	}
	for _, opt := range opts {
		opt(reg)
	}
	reg.enabled.Store(true)

	r.mu.Lock()
	r.seq++
	reg.seq = r.seq
	current := r.byPoint[point]
	// New registrations carry the largest sequence, so they go after every
	// entry of equal or higher priority.
	i := sort.Search(len(current), func(i int) bool {
		return current[i].priority > reg.priority
	})
	r.byPoint[point] = slices.Insert(slices.Clone(current), i, reg)
	r.byID[reg.id] = reg
	r.mu.Unlock()

	r.logger.Debug().
		Str("id", reg.id).
		Str("point", string(point)).
		Str("priority", reg.priority.String()).
		Str("tag", reg.tag).
		Uint64("seq", reg.seq).
		Msg("hook registered")
	return reg.id
}

// Unregister removes a registration. Removing an unknown or already removed
// id returns ErrRegistrationNotFound and changes nothing.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	reg, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRegistrationNotFound, id)
	}
	delete(r.byID, id)
	current := r.byPoint[reg.point]
	next := slices.DeleteFunc(slices.Clone(current), func(x *registration) bool { return x == reg })
	if len(next) == 0 {
		delete(r.byPoint, reg.point)
	} else {
		r.byPoint[reg.point] = next
	}
	r.mu.Unlock()

	r.logger.Debug().Str("id", id).Str("point", string(reg.point)).Msg("hook unregistered")
	return nil
}

// SetEnabled enables or disables a registration. Disabled registrations stay
// listed but are skipped by the pipeline.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	r.mu.RLock()
	reg, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRegistrationNotFound, id)
	}
	reg.enabled.Store(enabled)
	return nil
}

// Get returns the summary of one registration.
func (r *Registry) Get(id string) (Summary, error) {
	r.mu.RLock()
	reg, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return Summary{}, fmt.Errorf("%w: %s", ErrRegistrationNotFound, id)
	}
	return reg.summary(), nil
}

// snapshot returns the ordered registrations for point. The slice must not be
// modified.
func (r *Registry) snapshot(point Point) []*registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byPoint[point]
}

func (r *Registry) lookup(id string) (*registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byID[id]
	return reg, ok
}

// Filter selects registrations in List. Zero fields match everything.
type Filter struct {
	ID       string
	Point    Point
	Priority *Priority
	Tag      string
	Language string
}

func (f Filter) matches(reg *registration) bool {
	switch {
	case f.ID != "" && reg.id != f.ID:
		return false
	case f.Point != "" && reg.point != f.Point:
		return false
	case f.Priority != nil && reg.priority != *f.Priority:
		return false
	case f.Tag != "" && reg.tag != f.Tag:
		return false
	case f.Language != "" && reg.language != f.Language:
		return false
	}
	return true
}

// List returns summaries of the registrations matching f. Within a point they
// are in execution order; points are listed by name. A filter naming an
// unknown ID returns ErrRegistrationNotFound.
func (r *Registry) List(f Filter) ([]Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if f.ID != "" {
		if _, ok := r.byID[f.ID]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrRegistrationNotFound, f.ID)
		}
	}

	var points []Point
	if f.Point != "" {
		points = []Point{f.Point}
	} else {
		points = r.pointsLocked()
	}

	var out []Summary
	for _, p := range points {
		for _, reg := range r.byPoint[p] {
			if f.matches(reg) {
				out = append(out, reg.summary())
			}
		}
	}
	return out, nil
}

// Count returns the total number of registrations.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Points returns every point with at least one registration, sorted by name.
func (r *Registry) Points() []Point {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pointsLocked()
}

func (r *Registry) pointsLocked() []Point {
	points := make([]Point, 0, len(r.byPoint))
	for p := range r.byPoint {
		points = append(points, p)
	}
	slices.SortFunc(points, func(a, b Point) int {
		return strings.Compare(string(a), string(b))
	})
	return points
}

// Clear removes every registration.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byPoint = make(map[Point][]*registration)
	r.byID = make(map[string]*registration)
}
