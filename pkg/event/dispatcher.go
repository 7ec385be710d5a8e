package event

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shashiranjanraj/relay/pkg/eventlog"
	"github.com/shashiranjanraj/relay/pkg/metrics"
	"github.com/shashiranjanraj/relay/pkg/params"
	"github.com/shashiranjanraj/relay/pkg/schedule"
)

// Handler is the callback a Listener wraps.
type Handler func(p *params.Bag)

// Listener is a bindable callback. Bindings compare listeners by pointer,
// so keep the *Listener around to unbind it later.
type Listener struct {
	fn Handler
}

// NewListener wraps fn. Two calls with the same fn yield two distinct
// listeners.
func NewListener(fn Handler) *Listener {
	return &Listener{fn: fn}
}

// Clock is the host's frame clock.
type Clock interface {
	Frame() uint64
	Elapsed() time.Duration
}

// Scheduler runs a task once the host clock has advanced by at least d. It
// must never run the task synchronously inside After.
type Scheduler interface {
	After(d time.Duration, task schedule.Task) *schedule.Timer
}

// Dispatcher maps event names to ordered listener lists.
//
// All methods are safe for concurrent use, but broadcasts are meant to
// happen on the host loop goroutine. No lock is held while listeners run,
// so a listener may Bind, Unbind or Broadcast from inside its callback.
// A broadcast iterates the listener list as it was when the broadcast
// started; changes made mid-fan-out apply from the next broadcast.
type Dispatcher struct {
	mu        sync.RWMutex
	bindings  map[string][]*Listener
	pending   map[*schedule.Timer]struct{}
	destroyed bool

	sched   Scheduler
	clock   Clock
	trace   *eventlog.Log
	sink    eventlog.Writer
	logPath string
	log     *slog.Logger

	// instrumented is set on the process-wide instance, the only one that
	// publishes the bound-events gauge.
	instrumented bool
}

// New creates a standalone dispatcher. Without options it runs on
// schedule.Main() and does not track dispatches.
func New(opts ...Option) *Dispatcher {
	o := buildOptions(opts...)
	d := &Dispatcher{
		bindings: make(map[string][]*Listener),
		pending:  make(map[*schedule.Timer]struct{}),
		sched:    o.scheduler,
		clock:    o.clock,
		sink:     o.sink,
		logPath:  o.logPath,
		log:      o.logger,
	}
	if o.sink != nil {
		d.trace = eventlog.New()
	}
	return d
}

// Bind appends l to the listeners of name. Binding the same listener twice
// makes it run twice per broadcast.
func (d *Dispatcher) Bind(name string, l *Listener) {
	if l == nil || l.fn == nil {
		d.log.Warn("event: ignoring nil listener", "event", name)
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		d.log.Debug("event: bind on destroyed dispatcher", "event", name)
		return
	}
	d.bindings[name] = append(d.bindings[name], l)
	d.reportBound()
}

// Unbind removes one occurrence of l from name, the most recently bound one.
// Unknown names and listeners are ignored. The name stays known, with an
// empty list, after its last listener is removed.
func (d *Dispatcher) Unbind(name string, l *Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ls, ok := d.bindings[name]
	if !ok {
		return
	}
	for i := len(ls) - 1; i >= 0; i-- {
		if ls[i] == l {
			next := make([]*Listener, 0, len(ls)-1)
			next = append(next, ls[:i]...)
			d.bindings[name] = append(next, ls[i+1:]...)
			d.reportBound()
			return
		}
	}
}

// Broadcast calls every listener bound to name, in binding order, with p.
// p may be nil. Broadcasting a name nobody ever bound does nothing; a name
// whose listeners were all removed logs a "no listeners" warning.
func (d *Dispatcher) Broadcast(name string, p *params.Bag) {
	d.mu.RLock()
	if d.destroyed {
		d.mu.RUnlock()
		d.log.Debug("event: broadcast on destroyed dispatcher", "event", name)
		metrics.RecordBroadcast(name, metrics.OutcomeDestroyed, 0)
		return
	}
	ls, known := d.bindings[name]
	snapshot := append([]*Listener(nil), ls...)
	d.mu.RUnlock()

	// Recorded before fan-out so listeners that unbind themselves do not
	// change the count.
	if d.trace != nil {
		d.trace.Append(eventlog.Record{
			Event:    name,
			Time:     d.clock.Elapsed(),
			At:       time.Now(),
			Frame:    d.clock.Frame(),
			Bindings: len(snapshot),
			Params:   p,
		})
	}

	switch {
	case !known:
		metrics.RecordBroadcast(name, metrics.OutcomeUnbound, 0)
		return
	case len(snapshot) == 0:
		d.log.Warn("event: no listeners", "event", name)
		metrics.RecordBroadcast(name, metrics.OutcomeEmpty, 0)
		return
	}

	for _, l := range snapshot {
		l.fn(p)
	}
	metrics.RecordBroadcast(name, metrics.OutcomeDelivered, len(snapshot))
}

// BroadcastDelayed schedules Broadcast(name, p) for when the host clock has
// advanced by delay. It returns immediately with a handle whose Stop
// cancels the broadcast. On a destroyed dispatcher it returns nil.
func (d *Dispatcher) BroadcastDelayed(name string, p *params.Bag, delay time.Duration) *schedule.Timer {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		d.log.Warn("event: delayed broadcast on destroyed dispatcher", "event", name)
		metrics.RecordDelayed(metrics.DelayedDropped)
		return nil
	}

	var timer *schedule.Timer
	timer = d.sched.After(delay, func() {
		d.mu.Lock()
		delete(d.pending, timer)
		dead := d.destroyed
		d.mu.Unlock()

		if dead {
			metrics.RecordDelayed(metrics.DelayedDropped)
			return
		}
		metrics.RecordDelayed(metrics.DelayedFired)
		d.Broadcast(name, p)
	})
	// Runs for every successful Stop, whether through the handle,
	// CancelDelayed or teardown.
	timer.OnStop(func() {
		d.mu.Lock()
		delete(d.pending, timer)
		d.mu.Unlock()
		metrics.RecordDelayed(metrics.DelayedCancelled)
	})
	d.pending[timer] = struct{}{}
	metrics.RecordDelayed(metrics.DelayedScheduled)
	return timer
}

// CancelDelayed stops a broadcast scheduled by BroadcastDelayed. It reports
// whether the broadcast was still pending. It is the same as t.Stop().
func (d *Dispatcher) CancelDelayed(t *schedule.Timer) bool {
	return t.Stop()
}

// PendingDelayed returns the number of delayed broadcasts still waiting.
func (d *Dispatcher) PendingDelayed() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.pending)
}

// ClearAllBindings forgets every event name and listener.
func (d *Dispatcher) ClearAllBindings() {
	d.mu.Lock()
	d.bindings = make(map[string][]*Listener)
	d.reportBound()
	d.mu.Unlock()
}

// ─── Queries ──────────────────────────────────────────────────────────────────

// IsBound reports whether name has at least one listener.
func (d *Dispatcher) IsBound(name string) bool {
	return d.GetBindingsCount(name) > 0
}

// GetBindingsCount returns how many listener entries name has, counting
// duplicates.
func (d *Dispatcher) GetBindingsCount(name string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.bindings[name])
}

// GetNumBound returns how many event names have at least one listener.
func (d *Dispatcher) GetNumBound() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.numBound()
}

// HasBinding reports whether l is bound to name at least once.
func (d *Dispatcher) HasBinding(name string, l *Listener) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, bound := range d.bindings[name] {
		if bound == l {
			return true
		}
	}
	return false
}

// Names returns the event names with at least one listener, sorted.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.bindings))
	for name, ls := range d.bindings {
		if len(ls) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Snapshot returns the listener count of every known event name, including
// names whose lists are empty.
func (d *Dispatcher) Snapshot() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]int, len(d.bindings))
	for name, ls := range d.bindings {
		out[name] = len(ls)
	}
	return out
}

// Tracking reports whether dispatches are being recorded.
func (d *Dispatcher) Tracking() bool { return d.trace != nil }

// Records returns the dispatch records buffered so far, or nil when
// tracking is off.
func (d *Dispatcher) Records() []eventlog.Record {
	if d.trace == nil {
		return nil
	}
	return d.trace.Records()
}

// Destroyed reports whether Destroy has run.
func (d *Dispatcher) Destroyed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.destroyed
}

// ─── Teardown ─────────────────────────────────────────────────────────────────

// Destroy clears every binding, cancels pending delayed broadcasts and
// flushes the dispatch log when tracking is on. Later calls do nothing.
func (d *Dispatcher) Destroy() error {
	if !d.teardown() {
		return nil
	}
	if d.trace == nil {
		return nil
	}
	err := d.trace.Flush(d.sink, d.logPath)
	d.trace.Reset()
	if err != nil {
		return fmt.Errorf("event: destroy: %w", err)
	}
	d.log.Info("event: dispatch log written", "path", d.logPath)
	return nil
}

// discard tears the dispatcher down without touching the dispatch log.
func (d *Dispatcher) discard() {
	if d.teardown() && d.trace != nil {
		d.trace.Reset()
	}
}

func (d *Dispatcher) teardown() bool {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return false
	}
	d.destroyed = true
	d.bindings = make(map[string][]*Listener)
	pending := d.pending
	d.pending = make(map[*schedule.Timer]struct{})
	d.reportBound()
	d.mu.Unlock()

	for t := range pending {
		t.Stop()
	}
	return true
}

// numBound must be called with d.mu held.
func (d *Dispatcher) numBound() int {
	n := 0
	for _, ls := range d.bindings {
		if len(ls) > 0 {
			n++
		}
	}
	return n
}

// reportBound must be called with d.mu held.
func (d *Dispatcher) reportBound() {
	if d.instrumented {
		metrics.BoundEvents.Set(float64(d.numBound()))
	}
}
