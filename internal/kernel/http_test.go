package kernel

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/relay/pkg/event"
	"github.com/shashiranjanraj/relay/pkg/logger"
	"github.com/shashiranjanraj/relay/pkg/metrics"
	"github.com/shashiranjanraj/relay/pkg/params"
	"github.com/shashiranjanraj/relay/pkg/schedule"
)

type envelope[T any] struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func newServer(t *testing.T, d *event.Dispatcher, loop *schedule.Loop) *httptest.Server {
	t.Helper()
	prev := logger.SetOutput(io.Discard)
	t.Cleanup(func() { logger.Restore(prev) })

	h := NewHandler(Options{
		Dispatcher: func() (*event.Dispatcher, bool) { return d, d != nil },
		State: func() event.State {
			if d == nil {
				return event.StateUninitialized
			}
			return event.StateActive
		},
		Clock: loop,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func get[T any](t *testing.T, srv *httptest.Server, path string) (int, envelope[T]) {
	t.Helper()
	res, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer res.Body.Close()

	var body envelope[T]
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	return res.StatusCode, body
}

func TestHealthz(t *testing.T) {
	loop := schedule.New(10)
	d := event.New(event.WithLoop(loop))
	t.Cleanup(func() { _ = d.Destroy() })

	d.Bind("Score", event.NewListener(func(*params.Bag) {}))
	d.BroadcastDelayed("Score", nil, time.Minute)
	loop.Advance(1500 * time.Millisecond)

	code, body := get[Health](t, newServer(t, d, loop), "/healthz")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, Health{
		State:          "active",
		Frame:          1,
		ElapsedSeconds: 1.5,
		BoundEvents:    1,
		PendingDelayed: 1,
	}, body.Data)
}

func TestHealthz_NoDispatcher(t *testing.T) {
	code, body := get[Health](t, newServer(t, nil, schedule.New(10)), "/healthz")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "uninitialized", body.Data.State)
	assert.Zero(t, body.Data.BoundEvents)
}

func TestBindings(t *testing.T) {
	loop := schedule.New(10)
	d := event.New(event.WithLoop(loop))
	t.Cleanup(func() { _ = d.Destroy() })

	l := event.NewListener(func(*params.Bag) {})
	d.Bind("Score", l)
	d.Bind("Score", l)
	d.Bind("Start", l)
	d.Unbind("Start", l)

	srv := newServer(t, d, loop)

	code, all := get[map[string]int](t, srv, "/bindings")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]int{"Score": 2, "Start": 0}, all.Data)

	code, one := get[Binding](t, srv, "/bindings/Start")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, Binding{Event: "Start", Listeners: 0, Bound: false}, one.Data)

	code, missing := get[Binding](t, srv, "/bindings/never")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Not found", missing.Message)
}

func TestBindings_NoDispatcher(t *testing.T) {
	code, body := get[map[string]int](t, newServer(t, nil, schedule.New(10)), "/bindings")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body.Data)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newServer(t, nil, schedule.New(10))
	res, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(raw), "relay_")
}

func TestRoutesAreReadOnly(t *testing.T) {
	for _, ri := range NewRouter(Options{Clock: schedule.New(10)}).Routes() {
		assert.Equal(t, http.MethodGet, ri.Method, ri.Path)
	}
}

func TestRequestMetrics_LabelByRoutePattern(t *testing.T) {
	srv := newServer(t, nil, schedule.New(10))
	pattern := metrics.RequestTotal.WithLabelValues(http.MethodGet, "/bindings/{name}", "404")
	hitsBefore := testutil.ToFloat64(pattern)
	seriesBefore := testutil.CollectAndCount(metrics.RequestTotal)

	for _, name := range []string{"x0", "x1", "x2", "x3", "x4"} {
		code, _ := get[Binding](t, srv, "/bindings/"+name)
		require.Equal(t, http.StatusNotFound, code)
	}

	assert.Equal(t, hitsBefore+5, testutil.ToFloat64(pattern))
	assert.Equal(t, seriesBefore, testutil.CollectAndCount(metrics.RequestTotal), "no per-name series")
}
