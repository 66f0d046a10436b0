package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the compatspectre collectors. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	analysesTotal     prometheus.Counter
	analysisDuration  prometheus.Histogram
	servicesAnalyzed  *prometheus.CounterVec
	checksTotal       *prometheus.CounterVec
	checkDuration     prometheus.Histogram
	edgesDroppedTotal prometheus.Counter
	globalIssuesTotal *prometheus.CounterVec
	strategiesTotal   *prometheus.CounterVec
	breakerState      prometheus.Gauge
}

// New creates a recorder backed by a private registry
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		analysesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compatspectre_analyses_total",
			Help: "Number of completed analysis passes.",
		}),
		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "compatspectre_analysis_duration_seconds",
			Help:    "Time taken by one analysis pass.",
			Buckets: prometheus.DefBuckets,
		}),
		servicesAnalyzed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compatspectre_services_analyzed_total",
			Help: "Analyzed services by resulting status.",
		}, []string{"status"}),
		checksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compatspectre_checks_total",
			Help: "Compatibility checker calls by outcome.",
		}, []string{"outcome"}),
		checkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "compatspectre_check_duration_seconds",
			Help:    "Time taken by a single compatibility check.",
			Buckets: prometheus.DefBuckets,
		}),
		edgesDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "compatspectre_dependency_edges_dropped_total",
			Help: "Declared dependencies dropped because the target was not in the requested set.",
		}),
		globalIssuesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compatspectre_global_issues_total",
			Help: "Global issues raised by type.",
		}, []string{"type"}),
		strategiesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compatspectre_strategies_total",
			Help: "Recommended rollout strategies by kind.",
		}, []string{"kind"}),
		breakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "compatspectre_checker_breaker_state",
			Help: "Checker circuit breaker state (0 closed, 1 half-open, 2 open).",
		}),
	}

	r.registry.MustRegister(
		r.analysesTotal,
		r.analysisDuration,
		r.servicesAnalyzed,
		r.checksTotal,
		r.checkDuration,
		r.edgesDroppedTotal,
		r.globalIssuesTotal,
		r.strategiesTotal,
		r.breakerState,
	)
	return r
}

// Registry exposes the underlying registry (tests, custom exporters)
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveAnalysis records one finished analysis pass
func (r *Recorder) ObserveAnalysis(elapsed time.Duration) {
	if r == nil {
		return
	}
	r.analysesTotal.Inc()
	r.analysisDuration.Observe(elapsed.Seconds())
}

// ObserveService counts an analyzed service by status
func (r *Recorder) ObserveService(status string) {
	if r == nil {
		return
	}
	r.servicesAnalyzed.WithLabelValues(status).Inc()
}

// ObserveCheck records a checker call; outcome is "ok", "error" or "timeout"
func (r *Recorder) ObserveCheck(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.checksTotal.WithLabelValues(outcome).Inc()
	r.checkDuration.Observe(elapsed.Seconds())
}

// AddDroppedEdges counts dependencies outside the requested set
func (r *Recorder) AddDroppedEdges(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.edgesDroppedTotal.Add(float64(n))
}

// ObserveGlobalIssue counts a raised global issue
func (r *Recorder) ObserveGlobalIssue(issueType string) {
	if r == nil {
		return
	}
	r.globalIssuesTotal.WithLabelValues(issueType).Inc()
}

// ObserveStrategy counts a recommended strategy
func (r *Recorder) ObserveStrategy(kind string) {
	if r == nil {
		return
	}
	r.strategiesTotal.WithLabelValues(kind).Inc()
}

// SetBreakerState mirrors the checker breaker state
func (r *Recorder) SetBreakerState(state string) {
	if r == nil {
		return
	}
	switch state {
	case "open":
		r.breakerState.Set(2)
	case "half-open":
		r.breakerState.Set(1)
	default:
		r.breakerState.Set(0)
	}
}
