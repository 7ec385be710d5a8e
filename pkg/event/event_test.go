package event_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/relay/pkg/event"
	"github.com/shashiranjanraj/relay/pkg/params"
	"github.com/shashiranjanraj/relay/pkg/schedule"
)

// useProcessDispatcher points the lazy constructor at a private loop and
// tears the process-wide dispatcher down afterwards.
func useProcessDispatcher(t *testing.T, opts ...event.Option) *schedule.Loop {
	t.Helper()
	require.NoError(t, event.Shutdown())
	loop := schedule.New(10)
	event.SetDefaultOptions(append([]event.Option{event.WithLoop(loop)}, opts...)...)
	t.Cleanup(func() {
		_ = event.Shutdown()
		event.SetDefaultOptions()
	})
	return loop
}

func TestInstance_LazyCreation(t *testing.T) {
	useProcessDispatcher(t)

	_, ok := event.Active()
	assert.False(t, ok)
	assert.NotEqual(t, event.StateActive, event.CurrentState())

	d := event.Instance()
	assert.Same(t, d, event.Instance())
	assert.Equal(t, event.StateActive, event.CurrentState())
}

func TestQueriesDoNotCreateInstance(t *testing.T) {
	useProcessDispatcher(t)
	l, _ := counter()

	assert.False(t, event.IsBound("E"))
	assert.Equal(t, 0, event.GetBindingsCount("E"))
	assert.Equal(t, 0, event.GetNumBound())
	assert.False(t, event.HasBinding("E", l))
	event.Unbind("E", l)
	event.ClearAllBindings()

	_, ok := event.Active()
	assert.False(t, ok)
}

func TestPackageLevelScenario(t *testing.T) {
	captureLogs(t)
	loop := useProcessDispatcher(t)

	var points []int
	f := event.NewListener(func(p *params.Bag) { points = append(points, params.Get(p, "points", -1)) })

	event.Bind("Score", f)
	assert.True(t, event.IsBound("Score"))
	assert.True(t, event.HasBinding("Score", f))
	assert.Equal(t, 1, event.GetBindingsCount("Score"))
	assert.Equal(t, 1, event.GetNumBound())

	event.Broadcast("Score", params.With("points", 10))
	event.BroadcastDelayed("Score", params.With("points", 20), time.Second)
	loop.Advance(time.Second)
	assert.Equal(t, []int{10, 20}, points)

	event.ClearAllBindings()
	assert.False(t, event.IsBound("Score"))
}

func TestAttach_RejectsDuplicate(t *testing.T) {
	captureLogs(t)
	useProcessDispatcher(t)

	first := event.New(event.WithLoop(schedule.New(10)))
	require.NoError(t, event.Attach(first))
	require.NoError(t, event.Attach(first), "re-attaching the active instance is fine")

	l, calls := counter()
	first.Bind("E", l)

	w := &mockWriter{}
	second := event.New(event.WithLoop(schedule.New(10)), event.WithTracking(w, "out.txt"))
	second.Broadcast("E", nil)

	err := event.Attach(second)
	assert.ErrorIs(t, err, event.ErrDuplicateInstance)
	assert.True(t, second.Destroyed(), "newcomer destroys itself")
	w.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)

	assert.Same(t, first, event.Instance())
	event.Broadcast("E", nil)
	assert.Equal(t, 1, *calls)
}

func TestAttach_DestroyedDispatcher(t *testing.T) {
	useProcessDispatcher(t)
	d := event.New(event.WithLoop(schedule.New(10)))
	require.NoError(t, d.Destroy())

	assert.ErrorIs(t, event.Attach(d), event.ErrDestroyed)
}

func TestAttach_NilDispatcher(t *testing.T) {
	captureLogs(t)
	useProcessDispatcher(t)

	assert.ErrorIs(t, event.Attach(nil), event.ErrNilDispatcher)
	_, ok := event.Active()
	assert.False(t, ok)

	active := event.Instance()
	assert.NotPanics(t, func() {
		assert.ErrorIs(t, event.Attach(nil), event.ErrNilDispatcher)
	})
	assert.Same(t, active, event.Instance())
}

func TestShutdown_ThenFreshInstance(t *testing.T) {
	captureLogs(t)
	loop := useProcessDispatcher(t)

	first := event.Instance()
	l, calls := counter()
	event.Bind("E", l)
	event.BroadcastDelayed("E", nil, time.Second)

	require.NoError(t, event.Shutdown())
	assert.Equal(t, event.StateDestroyed, event.CurrentState())
	assert.True(t, first.Destroyed())
	require.NoError(t, event.Shutdown(), "second shutdown is a no-op")

	loop.Advance(2 * time.Second)
	assert.Equal(t, 0, *calls, "pending delayed broadcast never fires after teardown")
	_, ok := event.Active()
	assert.False(t, ok, "a delayed broadcast must not resurrect the dispatcher")

	second := event.Instance()
	assert.NotSame(t, first, second)
	assert.Equal(t, event.StateActive, event.CurrentState())
	assert.False(t, event.IsBound("E"))
}

func TestShutdown_FlushesLog(t *testing.T) {
	captureLogs(t)
	w := &mockWriter{}
	w.On("Put", "logs/out.txt", mock.Anything).Return(nil).Once()
	useProcessDispatcher(t, event.WithTracking(w, "logs/out.txt"))

	event.Broadcast("E", nil)
	require.NoError(t, event.Shutdown())
	w.AssertExpectations(t)
}

func TestDirectDestroyIsNoticed(t *testing.T) {
	captureLogs(t)
	useProcessDispatcher(t)

	d := event.Instance()
	require.NoError(t, d.Destroy())

	assert.Equal(t, event.StateDestroyed, event.CurrentState())
	assert.NotSame(t, d, event.Instance())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", event.StateUninitialized.String())
	assert.Equal(t, "active", event.StateActive.String())
	assert.Equal(t, "destroyed", event.StateDestroyed.String())
	assert.Equal(t, "unknown", event.State(42).String())
}
