package core

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricRegistry is the process-wide metric surface described in §6.
// Grounded on github.com/prometheus/client_golang the way
// Jeeves-Cluster-Organization-jeeves-core/coreengine/observability/metrics.go
// wires promauto vecs behind a handful of named accessors, rather than
// hand-rolling atomic counters.
type MetricRegistry struct {
	mu sync.Mutex

	registry *prometheus.Registry

	counters        map[string]prometheus.Counter
	labeledCounters map[string]*prometheus.CounterVec
	gauges          map[string]prometheus.Gauge
	histograms      map[string]*prometheus.HistogramVec
}

// global is the lazily-initialized, process-wide singleton (§9 "Global
// state"). Tests may construct their own via NewMetricRegistry for teardown.
var (
	globalOnce sync.Once
	global     *MetricRegistry
)

// Global returns the process-wide MetricRegistry, initializing it on first
// use. There is no destructor; tests that need isolation should build a
// fresh NewMetricRegistry() instead of relying on teardown ordering (§9).
func Global() *MetricRegistry {
	globalOnce.Do(func() {
		global = NewMetricRegistry()
	})
	return global
}

// NewMetricRegistry builds an independent registry, mainly for tests that
// want isolation from the process-wide Global().
func NewMetricRegistry() *MetricRegistry {
	return &MetricRegistry{
		registry:        prometheus.NewRegistry(),
		counters:        make(map[string]prometheus.Counter),
		labeledCounters: make(map[string]*prometheus.CounterVec),
		gauges:          make(map[string]prometheus.Gauge),
		histograms:      make(map[string]*prometheus.HistogramVec),
	}
}

// Counter returns the named zero-label counter, creating it on first use.
// Same name + same shape returns the same instance (§6).
func (r *MetricRegistry) Counter(name, help string) prometheus.Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	r.registry.MustRegister(c)
	r.counters[name] = c
	return c
}

// LabeledCounter returns the named counter vector over labelNames, creating
// it on first use.
func (r *MetricRegistry) LabeledCounter(name, help string, labelNames ...string) *prometheus.CounterVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.labeledCounters[name]; ok {
		return c
	}
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labelNames)
	r.registry.MustRegister(c)
	r.labeledCounters[name] = c
	return c
}

// Gauge returns the named gauge, creating it on first use.
func (r *MetricRegistry) Gauge(name, help string) prometheus.Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	r.registry.MustRegister(g)
	r.gauges[name] = g
	return g
}

// Histogram returns the named histogram vector over labelNames, creating it
// on first use with the given bucket boundaries.
func (r *MetricRegistry) Histogram(name, help string, buckets []float64, labelNames ...string) *prometheus.HistogramVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labelNames)
	r.registry.MustRegister(h)
	r.histograms[name] = h
	return h
}

// ResetAll zeros counters, labeled counters, and histograms. Gauges retain
// their last-set value, per §6.
func (r *MetricRegistry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, c := range r.counters {
		r.registry.Unregister(c)
		fresh := prometheus.NewCounter(prometheus.CounterOpts{Name: name})
		r.registry.MustRegister(fresh)
		r.counters[name] = fresh
	}
	for _, c := range r.labeledCounters {
		c.Reset()
	}
	for _, h := range r.histograms {
		h.Reset()
	}
}

// MetricSnapshot is one row of MetricRegistry.CollectSnapshots.
type MetricSnapshot struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// CollectSnapshots returns one entry per counter/gauge/histogram-sum, plus
// one entry per label combination of each labeled counter (§6).
func (r *MetricRegistry) CollectSnapshots() []MetricSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	families, err := r.registry.Gather()
	if err != nil {
		return nil
	}

	var out []MetricSnapshot
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				value = m.GetHistogram().GetSampleSum()
			}
			out = append(out, MetricSnapshot{Name: fam.GetName(), Labels: labels, Value: value})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
