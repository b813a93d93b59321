// v1
// internal/observability/metrics.go
package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/auton88n/tradeayn-sub003/internal/circuitbreaker"
	"github.com/auton88n/tradeayn-sub003/internal/compliance"
)

type Metrics struct {
	registry          *prometheus.Registry
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	runsTotal         *prometheus.CounterVec
	runDuration       prometheus.Histogram
	resultsTotal      *prometheus.CounterVec
	unknownUnits      *prometheus.CounterVec
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	codesDuration     prometheus.Histogram
	codesErrors       prometheus.Counter
	codesReloads      prometheus.Counter
	publishTotal      *prometheus.CounterVec
	cbState           *prometheus.GaugeVec
}

// NewMetrics builds the collectors on a private registry, alongside the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_runs_total",
			Help: "Compliance runs evaluated by code system and verdict.",
		}, []string{"code_system", "compliant"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "compliance_run_duration_seconds",
			Help:    "Engine evaluation time per run.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		resultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_results_total",
			Help: "Compliance results emitted by status and category.",
		}, []string{"status", "category"}),
		unknownUnits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_unknown_unit_total",
			Help: "Code rows compared without conversion because their unit tag is unknown.",
		}, []string{"unit"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits observed.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses observed.",
		}),
		codesDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "codes_source_duration_seconds",
			Help:    "Histogram of rule table lookups against the configured source.",
			Buckets: prometheus.DefBuckets,
		}),
		codesErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codes_source_errors_total",
			Help: "Total rule table lookups that failed.",
		}),
		codesReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codes_file_reloads_total",
			Help: "Successful reloads of the rule table file.",
		}),
		publishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "run_events_published_total",
			Help: "Run events delivered per sink and outcome.",
		}, []string{"sink", "outcome"}),
		cbState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cb_state",
			Help: "Circuit breaker state gauge (0 closed, 1 half, 2 open).",
		}, []string{"target"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.runsTotal,
		m.runDuration,
		m.resultsTotal,
		m.unknownUnits,
		m.cacheHits,
		m.cacheMisses,
		m.codesDuration,
		m.codesErrors,
		m.codesReloads,
		m.publishTotal,
		m.cbState,
	)
	return m
}

// Registry exposes the registry for tests and additional collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		duration := time.Since(start).Seconds()
		if m != nil {
			m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(duration)
		}
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RunEvaluated records one engine run.
func (m *Metrics) RunEvaluated(codeSystem string, compliant bool, results []compliance.Result, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(strings.ToUpper(codeSystem), strconv.FormatBool(compliant)).Inc()
	m.runDuration.Observe(elapsed.Seconds())
	for _, r := range results {
		m.resultsTotal.WithLabelValues(string(r.Status), r.Category).Inc()
	}
}

func (m *Metrics) UnknownUnit(unit string) {
	if m == nil {
		return
	}
	m.unknownUnits.WithLabelValues(unit).Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

func (m *Metrics) CodesRequest(duration time.Duration, success bool) {
	if m == nil {
		return
	}
	m.codesDuration.Observe(duration.Seconds())
	if !success {
		m.codesErrors.Inc()
	}
}

func (m *Metrics) CodesReloaded() {
	if m == nil {
		return
	}
	m.codesReloads.Inc()
}

// Published implements the events delivery recorder.
func (m *Metrics) Published(sink, outcome string) {
	if m == nil {
		return
	}
	m.publishTotal.WithLabelValues(sink, outcome).Inc()
}

func (m *Metrics) SetCircuitBreakerState(target string, state float64) {
	if m == nil {
		return
	}
	m.cbState.WithLabelValues(target).Set(state)
}

// BreakerListener mirrors breaker transitions into the cb_state gauge.
func (m *Metrics) BreakerListener() circuitbreaker.StateListener {
	return func(name string, _, to circuitbreaker.State) {
		var v float64
		switch to {
		case circuitbreaker.HalfOpen:
			v = 1
		case circuitbreaker.Open:
			v = 2
		}
		m.SetCircuitBreakerState(name, v)
	}
}
