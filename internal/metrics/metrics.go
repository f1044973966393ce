// Package metrics holds the daemon's atomic runtime counters (§3
// RuntimeMetrics) and exposes them both to the binary STATS frame and to
// Prometheus, the way the teacher's metrics.go exposes one set of counters
// through both /metrics and its own Stats struct.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is process-wide; every subsystem shares one instance.
type Metrics struct {
	startMs uint64

	evictionsTotal       atomic.Uint64
	eventsPublishedTotal atomic.Uint64
	eventsLaggedTotal    atomic.Uint64
	invalidKeyTotal      atomic.Uint64
	hitsTotal            atomic.Uint64
	missesTotal          atomic.Uint64

	promEvictions       prometheus.Counter
	promPublished       prometheus.Counter
	promLagged          prometheus.Counter
	promInvalidKey      prometheus.Counter
	promHits            prometheus.Counter
	promMisses          prometheus.Counter
	promMemPressureBp   prometheus.Gauge
	promPressureLimitBp prometheus.Gauge
}

// New builds a Metrics struct and registers its Prometheus collectors.
// nowMs is the daemon's start time, used for uptime accounting.
func New(reg prometheus.Registerer, nowMs uint64) *Metrics {
	m := &Metrics{
		startMs: nowMs,
		promEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "localcached", Name: "evictions_total", Help: "Total entries evicted due to memory pressure.",
		}),
		promPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "localcached", Name: "events_published_total", Help: "Total pub/sub events published.",
		}),
		promLagged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "localcached", Name: "events_lagged_total", Help: "Total subscriber-lag occurrences.",
		}),
		promInvalidKey: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "localcached", Name: "invalid_key_total", Help: "Total requests rejected for bad key format.",
		}),
		promHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "localcached", Name: "hits_total", Help: "Total cache hits.",
		}),
		promMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "localcached", Name: "misses_total", Help: "Total cache misses.",
		}),
		promMemPressureBp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "localcached", Name: "mem_pressure_bp", Help: "Last-observed host memory pressure, basis points.",
		}),
		promPressureLimitBp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "localcached", Name: "pressure_limit_bp", Help: "Current eviction trigger ceiling, basis points.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.promEvictions, m.promPublished, m.promLagged,
			m.promInvalidKey, m.promHits, m.promMisses,
			m.promMemPressureBp, m.promPressureLimitBp,
		)
	}
	return m
}

func (m *Metrics) IncEvictions(n uint64) {
	m.evictionsTotal.Add(n)
	m.promEvictions.Add(float64(n))
}

func (m *Metrics) IncEventsPublished() {
	m.eventsPublishedTotal.Add(1)
	m.promPublished.Add(1)
}

func (m *Metrics) IncEventsLagged() {
	m.eventsLaggedTotal.Add(1)
	m.promLagged.Add(1)
}

func (m *Metrics) IncInvalidKey() {
	m.invalidKeyTotal.Add(1)
	m.promInvalidKey.Add(1)
}

func (m *Metrics) IncHits() {
	m.hitsTotal.Add(1)
	m.promHits.Add(1)
}

func (m *Metrics) IncMisses() {
	m.missesTotal.Add(1)
	m.promMisses.Add(1)
}

// ObservePressure updates the Prometheus gauges mirroring STATS' pressure
// fields; it does not affect the atomic counters above.
func (m *Metrics) ObservePressure(memPressureBp, pressureLimitBp uint16) {
	m.promMemPressureBp.Set(float64(memPressureBp))
	m.promPressureLimitBp.Set(float64(pressureLimitBp))
}

// UptimeMs returns elapsed milliseconds since New was called, given the
// current wall-clock time in milliseconds.
func (m *Metrics) UptimeMs(nowMs uint64) uint64 {
	if nowMs < m.startMs {
		return 0
	}
	return nowMs - m.startMs
}

// Snapshot is a point-in-time read of all counters, used by STATS.
type Snapshot struct {
	EvictionsTotal       uint64
	EventsPublishedTotal uint64
	EventsLaggedTotal    uint64
	InvalidKeyTotal      uint64
	HitsTotal            uint64
	MissesTotal          uint64
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		EvictionsTotal:       m.evictionsTotal.Load(),
		EventsPublishedTotal: m.eventsPublishedTotal.Load(),
		EventsLaggedTotal:    m.eventsLaggedTotal.Load(),
		InvalidKeyTotal:      m.invalidKeyTotal.Load(),
		HitsTotal:            m.hitsTotal.Load(),
		MissesTotal:          m.missesTotal.Load(),
	}
}
