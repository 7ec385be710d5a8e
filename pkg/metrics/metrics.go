// Package metrics provides Prometheus instrumentation for relay.
//
// The dispatcher, the host loop and the dispatch log record into the
// collectors below; the debug HTTP surface exposes them:
//
//	r.Use(metrics.Middleware())
//	r.Get("/metrics", "metrics", metrics.Handler())
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relay"

// Broadcast outcomes.
const (
	OutcomeDelivered = "delivered"
	OutcomeEmpty     = "empty"
	OutcomeUnbound   = "unbound"
	OutcomeDestroyed = "destroyed"
)

// Delayed broadcast lifecycle states.
const (
	DelayedScheduled = "scheduled"
	DelayedFired     = "fired"
	DelayedCancelled = "cancelled"
	DelayedDropped   = "dropped"
)

// ─────────────────────────────────────────────
// Dispatcher metrics
// ─────────────────────────────────────────────

var (
	// Broadcasts counts Broadcast calls by event name and outcome.
	Broadcasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "broadcasts_total",
			Help:      "Total broadcasts, by event and outcome.",
		},
		[]string{"event", "outcome"},
	)

	// ListenerInvocations counts individual listener calls.
	ListenerInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "listener_invocations_total",
			Help:      "Total listener invocations, by event.",
		},
		[]string{"event"},
	)

	// BoundEvents tracks how many event names currently have listeners.
	BoundEvents = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "bound",
		Help:      "Number of event names with at least one listener.",
	})

	// Delayed counts delayed broadcasts by lifecycle state.
	Delayed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "delayed_total",
			Help:      "Delayed broadcasts, by state.",
		},
		[]string{"state"}, // "scheduled" | "fired" | "cancelled" | "dropped"
	)

	// SchedulePending tracks timers waiting on the main host loop.
	SchedulePending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "schedule",
		Name:      "pending_timers",
		Help:      "Timers waiting to fire on the main host loop.",
	})

	// EventLogRecords tracks records buffered in the dispatch log.
	EventLogRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "eventlog",
		Name:      "records",
		Help:      "Dispatch records buffered and not yet flushed.",
	})

	// EventLogFlushDuration tracks how long writing the dispatch log takes.
	EventLogFlushDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "eventlog",
			Name:      "flush_duration_seconds",
			Help:      "Duration of dispatch log flushes in seconds.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"status"}, // "success" | "failed"
	)
)

// ─────────────────────────────────────────────
// Debug HTTP metrics
// ─────────────────────────────────────────────

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of debug HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of debug HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
)

// ─────────────────────────────────────────────
// Registry
// ─────────────────────────────────────────────

// DefaultRegistry is the Prometheus registry used by relay.
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(collectors.NewGoCollector())
	DefaultRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	DefaultRegistry.MustRegister(
		Broadcasts,
		ListenerInvocations,
		BoundEvents,
		Delayed,
		SchedulePending,
		EventLogRecords,
		EventLogFlushDuration,
		RequestDuration,
		RequestTotal,
	)
}

// ─────────────────────────────────────────────
// Helpers for dispatcher code
// ─────────────────────────────────────────────

// RecordBroadcast counts one broadcast and the listeners it reached.
func RecordBroadcast(event, outcome string, listeners int) {
	Broadcasts.WithLabelValues(event, outcome).Inc()
	if listeners > 0 {
		ListenerInvocations.WithLabelValues(event).Add(float64(listeners))
	}
}

// RecordDelayed counts one delayed broadcast state transition.
func RecordDelayed(state string) {
	Delayed.WithLabelValues(state).Inc()
}

// ObserveFlush records a dispatch log flush:
//
//	defer func() { metrics.ObserveFlush(start, err) }()
func ObserveFlush(start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	EventLogFlushDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
}

// ─────────────────────────────────────────────
// HTTP middleware and handler
// ─────────────────────────────────────────────

// responseRecorder wraps http.ResponseWriter to capture the status code.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// unmatchedRoute labels requests that matched no route.
const unmatchedRoute = "unmatched"

// Middleware records duration and count for every debug HTTP request. The
// path label is the chi route pattern, so /bindings/{name} is one series no
// matter which names are requested.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rr := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rr, r)

			status := strconv.Itoa(rr.status)
			route := routePattern(r)
			RequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
			RequestTotal.WithLabelValues(r.Method, route, status).Inc()
		})
	}
}

// routePattern must be read after the handler ran; chi fills the pattern in
// while routing.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	if p := rctx.RoutePattern(); p != "" {
		return p
	}
	return unmatchedRoute
}

// Handler exposes the registry in Prometheus text and OpenMetrics formats.
func Handler() http.HandlerFunc {
	h := promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	return h.ServeHTTP
}
