// Package metrics records counters and timers for the hook pipeline and the
// event bus. Tags are passed as alternating key/value strings.
package metrics

import "time"

// Metric names emitted by hookbus components.
const (
	HookExecutions = "hookbus.hook.executions"
	HookFailures   = "hookbus.hook.failures"
	HookDuration   = "hookbus.hook.duration"

	EventPublished = "hookbus.event.published"
	EventDelivered = "hookbus.event.delivered"
	EventDropped   = "hookbus.event.dropped"
	EventRejected  = "hookbus.event.rejected"
)

// Recorder records metric values.
type Recorder interface {
	// IncCounter increments a counter metric by value.
	IncCounter(name string, value float64, tags ...string)
	// RecordTimer records a duration.
	RecordTimer(name string, d time.Duration, tags ...string)
}

type nop struct{}

func (nop) IncCounter(string, float64, ...string)        {}
func (nop) RecordTimer(string, time.Duration, ...string) {}

// Nop returns a Recorder that discards everything.
func Nop() Recorder {
	return nop{}
}

// OrNop returns r, or a no-op Recorder when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return nop{}
	}
	return r
}

type multi []Recorder

func (m multi) IncCounter(name string, value float64, tags ...string) {
	for _, r := range m {
		r.IncCounter(name, value, tags...)
	}
}

func (m multi) RecordTimer(name string, d time.Duration, tags ...string) {
	for _, r := range m {
		r.RecordTimer(name, d, tags...)
	}
}

// Multi returns a Recorder that forwards to every non-nil recorder.
func Multi(recorders ...Recorder) Recorder {
	var m multi
	for _, r := range recorders {
		if r != nil {
			m = append(m, r)
		}
	}
	if len(m) == 1 {
		return m[0]
	}
	return m
}
