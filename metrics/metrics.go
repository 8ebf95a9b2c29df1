// Package metrics exposes cache and HTTP counters on a private Prometheus
// registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options control collector registration.
type Options struct {
	// Namespace prefixes every metric name. Defaults to "gallery".
	Namespace string
	// DisableRuntimeCollectors skips the Go and process collectors.
	DisableRuntimeCollectors bool
}

// Module owns the registry and the collectors registered on it.
type Module struct {
	registry     *prometheus.Registry
	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec
	invalidation *prometheus.CounterVec
	requests     *prometheus.HistogramVec
}

func New(opts Options) (*Module, error) {
	ns := opts.Namespace
	if ns == "" {
		ns = "gallery"
	}

	m := &Module{
		registry: prometheus.NewRegistry(),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "cache_hits_total",
			Help:      "Reads answered from the cache, by collection.",
		}, []string{"collection"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "cache_misses_total",
			Help:      "Reads that fell through to the document store, by collection.",
		}, []string{"collection"}),
		invalidation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "cache_invalidations_total",
			Help:      "Cache keys evicted after a write, by collection.",
		}, []string{"collection"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	cs := []prometheus.Collector{m.cacheHits, m.cacheMisses, m.invalidation, m.requests}
	if !opts.DisableRuntimeCollectors {
		cs = append(cs,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	for _, c := range cs {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Registry exposes the underlying Prometheus registry.
func (m *Module) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Module) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Module) CacheHit(collection string)  { m.cacheHits.WithLabelValues(collection).Inc() }
func (m *Module) CacheMiss(collection string) { m.cacheMisses.WithLabelValues(collection).Inc() }
func (m *Module) CacheInvalidated(collection string) {
	m.invalidation.WithLabelValues(collection).Inc()
}

// ObserveRequest records one served request.
func (m *Module) ObserveRequest(method, route string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
