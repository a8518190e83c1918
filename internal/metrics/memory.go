package metrics

import (
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Recorder that keeps running totals. It backs the
// CLI summary output and is convenient in tests.
type Memory struct {
	mu       sync.Mutex
	counters map[string]float64
	timers   map[string][]time.Duration
}

// NewMemory returns an empty Memory recorder.
func NewMemory() *Memory {
	return &Memory{
		counters: make(map[string]float64),
		timers:   make(map[string][]time.Duration),
	}
}

// IncCounter implements Recorder.
func (m *Memory) IncCounter(name string, value float64, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += value
	if len(tags) > 0 {
		m.counters[key(name, tags)] += value
	}
}

// RecordTimer implements Recorder.
func (m *Memory) RecordTimer(name string, d time.Duration, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timers[name] = append(m.timers[name], d)
	if len(tags) > 0 {
		k := key(name, tags)
		m.timers[k] = append(m.timers[k], d)
	}
}

// Counter returns the total for name, optionally restricted to an exact tag
// set given in the same order it was recorded with.
func (m *Memory) Counter(name string, tags ...string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[key(name, tags)]
}

// Timings returns the durations recorded for name.
func (m *Memory) Timings(name string, tags ...string) []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.timers[key(name, tags)]...)
}

// Snapshot returns a copy of every counter, keyed by name and tags.
func (m *Memory) Snapshot() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64, len(m.counters))
	for k, v := range m.counters {
		out[k] = v
	}
	return out
}

func key(name string, tags []string) string {
	if len(tags) == 0 {
		return name
	}
	return name + "{" + strings.Join(tags, ",") + "}"
}
