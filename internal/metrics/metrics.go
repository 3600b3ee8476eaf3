// Package metrics is the process-wide counters/histograms registry named
// in spec.md §9 as one of the three global objects (alongside config and
// the proxy pool): initialized once at startup, passed explicitly to every
// component that reports against it.
//
// Backed by prometheus/client_golang, the pack's confirmed metrics-exposition
// library (jordigilh-kubernaut's pkg/metrics wraps the same
// prometheus.Counter/CounterVec/HistogramVec primitives behind Record*
// helpers and a promhttp server) rather than a hand-rolled map registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry accumulates the counters and histograms spec.md §6 requires:
// items processed by type/outcome, batch flush durations, per-host request
// counts, proxy-pool/circuit-breaker state, enrichment success by tier, and
// cool-down queue depth. Each Registry owns its own prometheus.Registry so
// concurrently constructed instances (one per test, one per worker) never
// collide on duplicate collector registration.
type Registry struct {
	prom       *prometheus.Registry
	counters   *prometheus.CounterVec
	histograms *prometheus.HistogramVec
}

func New() *Registry {
	prom := prometheus.NewRegistry()
	factory := promauto.With(prom)

	return &Registry{
		prom: prom,
		counters: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tracklift",
			Subsystem: "pipeline",
			Name:      "events_total",
			Help:      "Counts of pipeline/orchestrator/resolver events, labeled by the metric constant that fired them.",
		}, []string{"metric"}),
		histograms: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tracklift",
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Duration samples (batch flush time, etc.), labeled by the metric constant that fired them.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"metric"}),
	}
}

// Inc increments a named counter by delta.
func (r *Registry) Inc(name string, delta int64) {
	r.counters.WithLabelValues(name).Add(float64(delta))
}

// Observe records a duration sample against a named histogram.
func (r *Registry) Observe(name string, d time.Duration) {
	r.histograms.WithLabelValues(name).Observe(d.Seconds())
}

// Counter returns the current value of a named counter, for tests that want
// to assert a drop/success was recorded without scraping the HTTP endpoint.
func (r *Registry) Counter(name string) float64 {
	return counterVecValue(r.counters, name)
}

// HistogramCount returns how many samples a named histogram has recorded.
func (r *Registry) HistogramCount(name string) int {
	return int(histogramVecCount(r.histograms, name))
}

// Handler exposes the registry in Prometheus text-exposition format, the
// per-worker metrics endpoint of §6.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prom, promhttp.HandlerOpts{})
}

// Metric names shared across packages, collected here so a typo in one
// package can't silently create a second, disconnected series.
const (
	ItemsProcessedTotal      = "items_processed_total"
	ItemsDroppedTotal        = "items_dropped_total"
	SilentScrapingFailures   = "silent_scraping_failures_total"
	BatchFlushDuration       = "batch_flush_duration"
	HostRequestTotal         = "host_request_total"
	ProxyPoolDirtyCount      = "proxy_pool_dirty_count"
	CircuitBreakerStateTotal = "circuit_breaker_state_total"
	EnrichmentSuccessByTier  = "enrichment_success_by_tier"
	CooldownQueueDepth       = "cooldown_queue_depth"
)
