package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/STRATINT/engager/internal/engage"
	"github.com/STRATINT/engager/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "engager"

// Collector exposes Prometheus metrics for the engine and the status server.
// It implements engage.Recorder.
type Collector struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	candidates *prometheus.CounterVec
	actions    *prometheus.CounterVec
	pages      prometheus.Counter
	passes     *prometheus.CounterVec
	quotaUsed  *prometheus.GaugeVec
	seenIDs    prometheus.Gauge
	sleeps     *prometheus.CounterVec
}

var _ engage.Recorder = (*Collector)(nil)

// NewCollector constructs a collector on a private registry.
func NewCollector() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for inbound HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests.",
		}, []string{"method", "path", "status"}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_evaluated_total",
			Help:      "Candidates run through the filter, by decision reason.",
		}, []string{"reason"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Dispatched actions by kind and outcome.",
		}, []string{"kind", "outcome"}),
		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_pages_total",
			Help:      "Search result pages fetched.",
		}),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Completed passes by result.",
		}, []string{"result"}),
		quotaUsed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_used",
			Help:      "Successful actions in the current pass, by kind.",
		}, []string{"kind"}),
		seenIDs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "seen_ids",
			Help:      "Identifiers in the persisted seen set.",
		}),
		sleeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sleep_seconds_total",
			Help:      "Time spent in deliberate pauses, by reason.",
		}, []string{"reason"}),
	}

	for _, m := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.requestDuration,
		c.requestTotal,
		c.candidates,
		c.actions,
		c.pages,
		c.passes,
		c.quotaUsed,
		c.seenIDs,
		c.sleeps,
	} {
		if err := c.registry.Register(m); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// unmatchedRoute labels requests that no registered pattern served.
const unmatchedRoute = "other"

// InstrumentHandler wraps the provided handler to record HTTP metrics. The
// path label is the ServeMux pattern that matched, so unknown paths share one
// series.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.Pattern
		if path == "" {
			path = unmatchedRoute
		}

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

func (c *Collector) CandidateEvaluated(reason engage.Reason) {
	c.candidates.WithLabelValues(string(reason)).Inc()
}

func (c *Collector) ActionDispatched(kind models.ActionKind, outcome models.Outcome) {
	c.actions.WithLabelValues(string(kind), string(outcome)).Inc()
}

func (c *Collector) PageFetched() {
	c.pages.Inc()
}

func (c *Collector) PassCompleted(failed bool) {
	result := "ok"
	if failed {
		result = "failed"
	}
	c.passes.WithLabelValues(result).Inc()
}

func (c *Collector) QuotaUsed(kind models.ActionKind, used int) {
	c.quotaUsed.WithLabelValues(string(kind)).Set(float64(used))
}

func (c *Collector) SeenSize(n int) {
	c.seenIDs.Set(float64(n))
}

func (c *Collector) Slept(reason string, d time.Duration) {
	c.sleeps.WithLabelValues(reason).Add(d.Seconds())
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
