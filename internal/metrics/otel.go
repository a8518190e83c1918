package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ScopeName is the instrumentation scope used for the global meter.
const ScopeName = "github.com/dshills/hookbus"

// OTel records metrics through an OpenTelemetry meter. Instruments are created
// lazily on first use and cached by name.
type OTel struct {
	meter metric.Meter

	mu         sync.RWMutex
	counters   map[string]metric.Float64Counter
	histograms map[string]metric.Float64Histogram
}

// NewOTel returns a Recorder backed by meter. A nil meter uses the global
// MeterProvider.
func NewOTel(meter metric.Meter) *OTel {
	if meter == nil {
		meter = otel.Meter(ScopeName)
	}
	return &OTel{
		meter:      meter,
		counters:   make(map[string]metric.Float64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

// IncCounter increments a counter metric by value.
func (o *OTel) IncCounter(name string, value float64, tags ...string) {
	c, ok := o.counter(name)
	if !ok {
		return
	}
	c.Add(context.Background(), value, metric.WithAttributes(tagsToAttrs(tags)...))
}

// RecordTimer records d in seconds on a histogram.
func (o *OTel) RecordTimer(name string, d time.Duration, tags ...string) {
	h, ok := o.histogram(name)
	if !ok {
		return
	}
	h.Record(context.Background(), d.Seconds(), metric.WithAttributes(tagsToAttrs(tags)...))
}

func (o *OTel) counter(name string) (metric.Float64Counter, bool) {
	o.mu.RLock()
	c, ok := o.counters[name]
	o.mu.RUnlock()
	if ok {
		return c, true
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if c, ok := o.counters[name]; ok {
		return c, true
	}
	c, err := o.meter.Float64Counter(name)
	if err != nil {
		return nil, false
	}
	o.counters[name] = c
	return c, true
}

func (o *OTel) histogram(name string) (metric.Float64Histogram, bool) {
	o.mu.RLock()
	h, ok := o.histograms[name]
	o.mu.RUnlock()
	if ok {
		return h, true
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if h, ok := o.histograms[name]; ok {
		return h, true
	}
	h, err := o.meter.Float64Histogram(name, metric.WithUnit("s"))
	if err != nil {
		return nil, false
	}
	o.histograms[name] = h
	return h, true
}

// tagsToAttrs converts k1, v1, k2, v2... into attributes. A trailing key
// without a value is paired with an empty string.
func tagsToAttrs(tags []string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, (len(tags)+1)/2)
	for i := 0; i < len(tags); i += 2 {
		v := ""
		if i+1 < len(tags) {
			v = tags[i+1]
		}
		attrs = append(attrs, attribute.String(tags[i], v))
	}
	return attrs
}
