package bridge

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// Trip describes why a component's breaker is open.
type Trip struct {
	Component string
	Reason    string
	Since     time.Time
}

// Breaker is a set of per-component open flags. It is owned by the
// application, not by the bus or the pipeline.
type Breaker struct {
	mu   sync.RWMutex
	open map[string]Trip
	now  func() time.Time
}

// NewBreaker creates a Breaker with every component closed.
func NewBreaker() *Breaker {
	return &Breaker{open: make(map[string]Trip), now: time.Now}
}

// Open trips component. Reopening an open component keeps the original time.
func (b *Breaker) Open(component, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.open[component]; ok {
		t.Reason = reason
		b.open[component] = t
		return
	}
	b.open[component] = Trip{Component: component, Reason: reason, Since: b.now()}
}

// Close resets component. It reports whether the component was open.
func (b *Breaker) Close(component string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.open[component]
	delete(b.open, component)
	return ok
}

// IsOpen reports whether component is tripped.
func (b *Breaker) IsOpen(component string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.open[component]
	return ok
}

// Trip returns the trip for component, if open.
func (b *Breaker) Trip(component string) (Trip, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.open[component]
	return t, ok
}

// OpenComponents returns the open components, sorted.
func (b *Breaker) OpenComponents() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Sorted(maps.Keys(b.open))
}

// Reset closes every component.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.open)
}
