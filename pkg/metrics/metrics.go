// Package metrics exposes the service's Prometheus surface: a request
// counter and latency histogram per operation, cache hit/miss counters, a
// write-queue depth gauge, and an in-flight request gauge.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the process-wide registry of counters and gauges updated by
// the request orchestrator and the chunk cache.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	queueDepth      prometheus.Gauge
	inFlight        prometheus.Gauge
	writesDropped   prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reductionist_requests_total",
			Help: "Total reduction requests, labeled by operation and outcome status.",
		}, []string{"op", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reductionist_request_duration_seconds",
			Help:    "Request latency in seconds, labeled by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "reductionist_cache_hits_total",
			Help: "Chunk cache hits.",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "reductionist_cache_misses_total",
			Help: "Chunk cache misses.",
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reductionist_cache_queue_depth",
			Help: "Pending entries in the cache writer's bounded queue.",
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reductionist_requests_in_flight",
			Help: "Requests currently being processed.",
		}),
		writesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "reductionist_cache_writes_dropped_total",
			Help: "Cache writes dropped due to a full write queue.",
		}),
	}
}

// Handler serves the Prometheus text exposition format for GET /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one completed request's outcome and latency.
func (m *Metrics) ObserveRequest(op, status string, d time.Duration) {
	m.requestsTotal.WithLabelValues(op, status).Inc()
	m.requestDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) CacheHit()  { m.cacheHits.Inc() }
func (m *Metrics) CacheMiss() { m.cacheMisses.Inc() }

func (m *Metrics) CacheWriteDropped() { m.writesDropped.Inc() }

func (m *Metrics) SetQueueDepth(n int) { m.queueDepth.Set(float64(n)) }

func (m *Metrics) InFlightInc() { m.inFlight.Inc() }
func (m *Metrics) InFlightDec() { m.inFlight.Dec() }
