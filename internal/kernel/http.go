// Package kernel builds the read-only debug HTTP surface of a relay host.
//
// It reports on the process-wide dispatcher and the host loop. Nothing here
// binds, unbinds or broadcasts.
package kernel

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/relay/pkg/event"
	"github.com/shashiranjanraj/relay/pkg/metrics"
	"github.com/shashiranjanraj/relay/pkg/middleware"
	"github.com/shashiranjanraj/relay/pkg/reqid"
	"github.com/shashiranjanraj/relay/pkg/response"
	"github.com/shashiranjanraj/relay/pkg/router"
	"github.com/shashiranjanraj/relay/pkg/schedule"
)

// Options selects what the debug surface reports on. Zero fields fall back
// to the process-wide dispatcher and schedule.Main().
type Options struct {
	// Dispatcher must not create an instance; event.Active is the default.
	Dispatcher func() (*event.Dispatcher, bool)
	State      func() event.State
	Clock      event.Clock
}

func (o Options) withDefaults() Options {
	if o.Dispatcher == nil {
		o.Dispatcher = event.Active
	}
	if o.State == nil {
		o.State = event.CurrentState
	}
	if o.Clock == nil {
		o.Clock = schedule.Main()
	}
	return o
}

// Health is the body of GET /healthz.
type Health struct {
	State          string  `json:"state"`
	Frame          uint64  `json:"frame"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	BoundEvents    int     `json:"bound_events"`
	PendingDelayed int     `json:"pending_delayed"`
	Tracking       bool    `json:"tracking"`
}

// Binding is the body of GET /bindings/{name}.
type Binding struct {
	Event     string `json:"event"`
	Listeners int    `json:"listeners"`
	Bound     bool   `json:"bound"`
}

// NewRouter registers the debug routes behind the standard middleware stack:
// metrics outermost, then recovery, request ID and request logging.
func NewRouter(o Options) *router.Router {
	o = o.withDefaults()

	r := router.New()
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)

	r.Get("/healthz", "healthz", healthz(o))
	r.Get("/bindings", "bindings", bindings(o))
	r.Get("/bindings/{name}", "bindings.show", binding(o))
	r.Get("/metrics", "metrics", metrics.Handler())
	return r
}

// NewHandler is NewRouter(o).Handler().
func NewHandler(o Options) http.Handler {
	return NewRouter(o).Handler()
}

func healthz(o Options) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		h := Health{
			State:          o.State().String(),
			Frame:          o.Clock.Frame(),
			ElapsedSeconds: o.Clock.Elapsed().Seconds(),
		}
		if d, ok := o.Dispatcher(); ok {
			h.BoundEvents = d.GetNumBound()
			h.PendingDelayed = d.PendingDelayed()
			h.Tracking = d.Tracking()
		}
		response.Success(w, h)
	}
}

func bindings(o Options) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snapshot := map[string]int{}
		if d, ok := o.Dispatcher(); ok {
			snapshot = d.Snapshot()
		}
		response.Success(w, snapshot)
	}
}

func binding(o Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		d, ok := o.Dispatcher()
		if !ok {
			response.NotFound(w)
			return
		}
		n, known := d.Snapshot()[name]
		if !known {
			response.NotFound(w)
			return
		}
		response.Success(w, Binding{Event: name, Listeners: n, Bound: n > 0})
	}
}
