// Package schedule provides the host loop relay runs on: a fixed-timestep
// frame clock with a queue of delayed callbacks.
//
// Nothing here fires on its own goroutine. Callbacks run inside Advance, on
// whichever goroutine drives the loop, which keeps every dispatch on the
// host's "main thread":
//
//	loop := schedule.New(60)
//	loop.After(2*time.Second, func() { log.Println("two seconds of host time") })
//
//	// game loop
//	for running {
//	    loop.Advance(frameTime)
//	}
//
//	// or let the loop tick itself until ctx is cancelled:
//	loop.Run(ctx)
package schedule

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/shashiranjanraj/relay/config"
	"github.com/shashiranjanraj/relay/pkg/logger"
	"github.com/shashiranjanraj/relay/pkg/metrics"
)

// maxFrameTime caps how much host time one real tick may feed into Advance,
// so a stalled process does not fire a burst of timers on resume.
const maxFrameTime = 250 * time.Millisecond

// Task is the function signature for a scheduled callback.
type Task func()

// Loop is a frame clock plus a min-heap of pending timers.
type Loop struct {
	mu       sync.Mutex
	frame    uint64
	elapsed  time.Duration
	interval time.Duration
	seq      uint64
	timers   timerHeap
	live     int
	posted   []Task

	// instrumented loops publish their pending count to metrics.
	instrumented bool
}

// New creates a Loop ticking tickRate frames per second when driven by Run.
// Advance can be called with any delta regardless of tickRate.
func New(tickRate float64) *Loop {
	if tickRate <= 0 {
		tickRate = 60
	}
	return &Loop{interval: time.Duration(float64(time.Second) / tickRate)}
}

var (
	mainOnce sync.Once
	mainLoop *Loop
)

// Main returns the process-wide host loop, created on first use with
// config.TickRate().
func Main() *Loop {
	mainOnce.Do(func() {
		mainLoop = New(config.TickRate())
		mainLoop.instrumented = true
	})
	return mainLoop
}

// Frame returns the number of completed Advance calls.
func (l *Loop) Frame() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frame
}

// Elapsed returns the total host time fed through Advance.
func (l *Loop) Elapsed() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.elapsed
}

// Interval returns the frame length used by Run.
func (l *Loop) Interval() time.Duration { return l.interval }

// Pending returns the number of timers that have neither fired nor been
// stopped.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.live
}

// After schedules task to run once host time has advanced by at least d.
// It never runs task synchronously; the earliest it can fire is during the
// next Advance. A negative d is treated as zero.
func (l *Loop) After(d time.Duration, task Task) *Timer {
	if d < 0 {
		d = 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	t := &Timer{
		loop: l,
		seq:  l.seq,
		due:  l.elapsed + d,
		task: task,
	}
	heap.Push(&l.timers, t)
	l.live++
	l.reportPending()
	return t
}

// Post queues task to run at the start of the next Advance.
func (l *Loop) Post(task Task) {
	l.mu.Lock()
	l.posted = append(l.posted, task)
	l.mu.Unlock()
}

// Advance steps the clock by one frame of length dt. Posted tasks run first,
// in posting order, then every timer whose due time has been reached, in due
// order. Timers created while Advance is running wait for a later frame.
func (l *Loop) Advance(dt time.Duration) {
	if dt < 0 {
		dt = 0
	}

	l.mu.Lock()
	l.frame++
	l.elapsed += dt
	now := l.elapsed
	horizon := l.seq
	posted := l.posted
	l.posted = nil
	l.mu.Unlock()

	for _, task := range posted {
		l.safeRun("posted", task)
	}

	for {
		t := l.popDue(now, horizon)
		if t == nil {
			return
		}
		l.safeRun("timer", t.task)
	}
}

func (l *Loop) popDue(now time.Duration, horizon uint64) *Timer {
	l.mu.Lock()
	defer l.mu.Unlock()

	for l.timers.Len() > 0 {
		next := l.timers[0]
		if next.due > now || next.seq > horizon {
			return nil
		}
		heap.Pop(&l.timers)
		if next.stopped {
			continue
		}
		next.fired = true
		next.onStop = nil
		l.live--
		l.reportPending()
		return next
	}
	return nil
}

// safeRun executes task, recovering from panics so one bad callback doesn't
// take the host loop down.
func (l *Loop) safeRun(kind string, task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("schedule: task panicked", "kind", kind, "panic", r)
		}
	}()
	task()
}

// reportPending must be called with l.mu held.
func (l *Loop) reportPending() {
	if l.instrumented {
		metrics.SchedulePending.Set(float64(l.live))
	}
}

// Run drives Advance from a ticker at the loop's interval until ctx is done.
// Each frame is fed the real time since the previous one, capped at 250ms.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	logger.Info("schedule: loop started", "interval", l.interval.String())
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			logger.Info("schedule: loop stopped", "frame", l.Frame())
			return
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			if dt > maxFrameTime {
				dt = maxFrameTime
			}
			l.Advance(dt)
		}
	}
}

// ------------------- Timer -------------------

// Timer is a handle to a callback scheduled with After.
type Timer struct {
	loop    *Loop
	seq     uint64
	due     time.Duration
	task    Task
	index   int
	stopped bool
	fired   bool
	onStop  Task
}

// Stop prevents the timer from firing. It returns false if the timer already
// fired or was already stopped. Stop on a nil *Timer is a no-op.
func (t *Timer) Stop() bool {
	if t == nil {
		return false
	}
	l := t.loop
	l.mu.Lock()
	if t.stopped || t.fired {
		l.mu.Unlock()
		return false
	}
	t.stopped = true
	if t.index >= 0 && t.index < l.timers.Len() && l.timers[t.index] == t {
		heap.Remove(&l.timers, t.index)
	}
	l.live--
	l.reportPending()
	hook := t.onStop
	t.onStop = nil
	l.mu.Unlock()

	if hook != nil {
		hook()
	}
	return true
}

// OnStop registers fn to run after a successful Stop, outside the loop's
// lock. It replaces any earlier hook and is never called for a timer that
// fires.
func (t *Timer) OnStop(fn Task) {
	if t == nil {
		return
	}
	t.loop.mu.Lock()
	t.onStop = fn
	t.loop.mu.Unlock()
}

// Pending reports whether the timer is still waiting to fire.
func (t *Timer) Pending() bool {
	if t == nil {
		return false
	}
	t.loop.mu.Lock()
	defer t.loop.mu.Unlock()
	return !t.stopped && !t.fired
}

// Due returns the host time at which the timer fires.
func (t *Timer) Due() time.Duration {
	if t == nil {
		return 0
	}
	return t.due
}

// timerHeap orders timers by due time, then by scheduling order.
type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].seq < h[j].seq
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
