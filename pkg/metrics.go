package kvstorage

// metrics.go contains a thin abstraction over Prometheus so that kvstorage
// can be used with or without metrics.  When the user passes a
// *prometheus.Registry in New(..., WithMetrics(reg)), we create labeled
// metrics and expose them via the registry.  Otherwise a no-op sink is used
// and the hot path does not pay for metric updates.
//
// All metrics are labelled by storage name; aggregations can easily be done
// on the Prometheus side via sum() / rate().
//
// Metric names follow Prometheus best practices, suffixed with "_total" for
// counters.
//
// ┌───────────────────────────────────────────────┐
// │ Metric                  │ Type │ Labels       │
// ├─────────────────────────┼──────┼──────────────┤
// │ inserts_total           │ Ctr  │ storage      │
// │ hits_total              │ Ctr  │ storage      │
// │ misses_total            │ Ctr  │ storage      │
// │ deletes_total           │ Ctr  │ storage      │
// │ evictions_total         │ Ctr  │ storage      │
// │ elements                │ Gge  │ storage      │
// │ memory_bytes            │ Gge  │ storage      │
// └───────────────────────────────────────────────┘
//
// © 2025 kvstorage authors. MIT License.

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metricsSink is an internal interface abstracting away the concrete backend
// (Prometheus vs noop).  It is *not* exposed outside the package; the
// Storage only knows about the generic methods here.
type metricsSink interface {
	incInsert()
	incHit()
	incMiss()
	incDelete()
	incEvict()
	setElements(n uint64)
	setMemory(n uint64)
}

/*
   ---------------- No-op implementation ----------------
*/

type noopMetrics struct{}

func (noopMetrics) incInsert()         {}
func (noopMetrics) incHit()            {}
func (noopMetrics) incMiss()           {}
func (noopMetrics) incDelete()         {}
func (noopMetrics) incEvict()          {}
func (noopMetrics) setElements(uint64) {}
func (noopMetrics) setMemory(uint64)   {}

/*
   ---------------- Prometheus implementation ----------------
*/

type promMetrics struct {
	inserts   prometheus.Counter
	hits      prometheus.Counter
	misses    prometheus.Counter
	deletes   prometheus.Counter
	evictions prometheus.Counter
	elements  prometheus.Gauge
	memory    prometheus.Gauge
}

func newPromMetrics(name string, reg *prometheus.Registry) *promMetrics {
	labels := prometheus.Labels{"storage": name}

	pm := &promMetrics{
		inserts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "kvstorage",
			Name:        "inserts_total",
			Help:        "Number of successful inserts.",
			ConstLabels: labels,
		}),
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "kvstorage",
			Name:        "hits_total",
			Help:        "Number of lookups answered from the cache.",
			ConstLabels: labels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "kvstorage",
			Name:        "misses_total",
			Help:        "Number of lookups that found nothing.",
			ConstLabels: labels,
		}),
		deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "kvstorage",
			Name:        "deletes_total",
			Help:        "Number of successful deletes.",
			ConstLabels: labels,
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "kvstorage",
			Name:        "evictions_total",
			Help:        "Number of elements evicted under cap pressure or swept by the janitor.",
			ConstLabels: labels,
		}),
		elements: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "kvstorage",
			Name:        "elements",
			Help:        "Elements currently reachable through the cache.",
			ConstLabels: labels,
		}),
		memory: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "kvstorage",
			Name:        "memory_bytes",
			Help:        "Accounted bytes, including dirty elements retained for the backend.",
			ConstLabels: labels,
		}),
	}

	// Register collectors.  If registry is nil the caller decided to disable
	// metrics; function should never be called with nil.
	reg.MustRegister(pm.inserts, pm.hits, pm.misses, pm.deletes, pm.evictions,
		pm.elements, pm.memory)
	return pm
}

/*
   -------- promMetrics implements metricsSink --------
*/

func (m *promMetrics) incInsert()          { m.inserts.Inc() }
func (m *promMetrics) incHit()             { m.hits.Inc() }
func (m *promMetrics) incMiss()            { m.misses.Inc() }
func (m *promMetrics) incDelete()          { m.deletes.Inc() }
func (m *promMetrics) incEvict()           { m.evictions.Inc() }
func (m *promMetrics) setElements(n uint64) { m.elements.Set(float64(n)) }
func (m *promMetrics) setMemory(n uint64)   { m.memory.Set(float64(n)) }

/*
   ---------------- Factory ----------------
*/

// newMetricsSink decides which implementation to use.
func newMetricsSink(name string, reg *prometheus.Registry) metricsSink {
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(name, reg)
}
