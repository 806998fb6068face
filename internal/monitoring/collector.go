// Package monitoring exposes Prometheus metrics for accessibility analyses,
// tract cache traffic and Census downloads.
package monitoring

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
)

// Analysis outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Collector bundles the service's Prometheus metrics. A nil *Collector is
// valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Analyses          *prometheus.CounterVec
	AnalysisDuration  *prometheus.HistogramVec
	UnreachableTracts *prometheus.GaugeVec
	TractCache        *prometheus.CounterVec
	TractDownloads    *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
}

// NewCollector registers metrics against reg, defaulting to the global
// registry when nil. Registering twice on the same registry reuses the
// existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	analyses, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trauma_analyses_total",
		Help: "Accessibility analyses run, labeled by state and outcome.",
	}, []string{"state", "outcome"}))
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trauma_analysis_duration_seconds",
		Help:    "Wall time of one state analysis including tract loading.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"state"}))
	if err != nil {
		return nil, err
	}
	unreachable, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "trauma_unreachable_tracts",
		Help: "Tracts with no trauma center in their catchment in the latest analysis.",
	}, []string{"state"}))
	if err != nil {
		return nil, err
	}
	cache, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trauma_tract_cache_requests_total",
		Help: "Tract cache lookups, labeled by result (hit, miss, error).",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}
	downloads, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trauma_tract_downloads_total",
		Help: "Census tract shapefile downloads, labeled by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}
	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trauma_http_requests_total",
		Help: "HTTP API requests, labeled by route pattern and status code.",
	}, []string{"route", "code"}))
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:          gatherer,
		Analyses:          analyses,
		AnalysisDuration:  duration,
		UnreachableTracts: unreachable,
		TractCache:        cache,
		TractDownloads:    downloads,
		HTTPRequests:      requests,
	}, nil
}

// ObserveAnalysis records one finished analysis.
func (c *Collector) ObserveAnalysis(state string, elapsed time.Duration, unreachable int, err error) {
	if c == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	c.Analyses.WithLabelValues(state, outcome).Inc()
	c.AnalysisDuration.WithLabelValues(state).Observe(elapsed.Seconds())
	if err == nil {
		c.UnreachableTracts.WithLabelValues(state).Set(float64(unreachable))
	}
}

// CacheHit records a tract cache hit.
func (c *Collector) CacheHit() {
	if c != nil {
		c.TractCache.WithLabelValues("hit").Inc()
	}
}

// CacheMiss records a tract cache miss.
func (c *Collector) CacheMiss() {
	if c != nil {
		c.TractCache.WithLabelValues("miss").Inc()
	}
}

// CacheError records a failed cache lookup.
func (c *Collector) CacheError() {
	if c != nil {
		c.TractCache.WithLabelValues("error").Inc()
	}
}

// Download records a Census download attempt outcome.
func (c *Collector) Download(err error) {
	if c == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	c.TractDownloads.WithLabelValues(outcome).Inc()
}

// Request records one HTTP request.
func (c *Collector) Request(route, code string) {
	if c != nil {
		c.HTTPRequests.WithLabelValues(route, code).Inc()
	}
}

// Handler exposes the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, eris.Errorf("monitoring: collector already registered with incompatible type: %v", err)
		}
		var zero T
		return zero, eris.Wrap(err, "monitoring: register collector")
	}
	return c, nil
}
