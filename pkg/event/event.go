// Package event provides relay's string-keyed event dispatcher.
//
// Listeners are bound to event names; broadcasts call every listener bound
// to a name, synchronously and in binding order:
//
//	onScore := event.NewListener(func(p *params.Bag) {
//	    fmt.Println("scored", params.Get(p, "points", 0))
//	})
//	event.Bind("Score", onScore)
//	event.Broadcast("Score", params.With("points", 10))
//	event.BroadcastDelayed("Score", params.With("points", 5), 2*time.Second)
//	event.Unbind("Score", onScore)
//
// The package-level functions operate on a process-wide Dispatcher created
// on first use. Code that wants its own instance (tests, tools) uses New and
// passes the *Dispatcher around.
package event

import (
	"errors"
	"sync"
	"time"

	"github.com/shashiranjanraj/relay/config"
	"github.com/shashiranjanraj/relay/pkg/logger"
	"github.com/shashiranjanraj/relay/pkg/params"
	"github.com/shashiranjanraj/relay/pkg/schedule"
	"github.com/shashiranjanraj/relay/pkg/storage"
)

// ErrDuplicateInstance is returned by Attach when another dispatcher is
// already the active process-wide instance.
var ErrDuplicateInstance = errors.New("event: a dispatcher is already active")

// ErrDestroyed is returned by Attach for a dispatcher that was destroyed.
var ErrDestroyed = errors.New("event: dispatcher is destroyed")

// ErrNilDispatcher is returned by Attach for a nil dispatcher.
var ErrNilDispatcher = errors.New("event: nil dispatcher")

// State is the lifecycle state of the process-wide dispatcher.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

var (
	instMu      sync.Mutex
	instance    *Dispatcher
	state       = StateUninitialized
	defaultOpts []Option
)

// SetDefaultOptions sets the options used when the process-wide dispatcher
// is created lazily. With no arguments it restores the config-driven
// defaults. It has no effect on an instance that already exists.
func SetDefaultOptions(opts ...Option) {
	instMu.Lock()
	defaultOpts = opts
	instMu.Unlock()
}

func defaultOptions() []Option {
	if len(defaultOpts) > 0 {
		return defaultOpts
	}
	opts := []Option{WithLoop(schedule.Main())}
	if !config.EventDebug() {
		return opts
	}
	disk, err := storage.Resolve(config.EventLogDisk())
	if err != nil {
		logger.Warn("event: falling back to local disk for dispatch log", "error", err)
		disk = storage.Use("local")
	}
	return append(opts, WithTracking(disk, config.EventLogPath()))
}

// Instance returns the process-wide dispatcher, creating it if there is
// none or if the previous one was destroyed.
func Instance() *Dispatcher {
	instMu.Lock()
	defer instMu.Unlock()

	if d := current(); d != nil {
		return d
	}
	d := New(defaultOptions()...)
	activate(d)
	logger.Debug("event: dispatcher created")
	return d
}

// Attach makes d the process-wide dispatcher. If another dispatcher is
// already active, d is destroyed without flushing its log and
// ErrDuplicateInstance is returned; the existing instance stays in charge.
func Attach(d *Dispatcher) error {
	if d == nil {
		logger.Warn("event: attach called with a nil dispatcher")
		return ErrNilDispatcher
	}
	instMu.Lock()
	defer instMu.Unlock()

	if existing := current(); existing != nil {
		if existing == d {
			return nil
		}
		logger.Warn("event: duplicate dispatcher rejected, keeping the active one")
		d.discard()
		return ErrDuplicateInstance
	}
	if d.Destroyed() {
		return ErrDestroyed
	}
	activate(d)
	return nil
}

// Shutdown destroys the process-wide dispatcher, flushing its dispatch log.
// It is a no-op when there is no active instance. A later Instance call
// creates a fresh dispatcher.
func Shutdown() error {
	instMu.Lock()
	d := current()
	if d == nil {
		instMu.Unlock()
		return nil
	}
	instance = nil
	state = StateDestroyed
	instMu.Unlock()

	return d.Destroy()
}

// CurrentState reports the lifecycle state of the process-wide dispatcher.
func CurrentState() State {
	instMu.Lock()
	defer instMu.Unlock()
	current()
	return state
}

// Active returns the process-wide dispatcher without creating one.
func Active() (*Dispatcher, bool) {
	instMu.Lock()
	defer instMu.Unlock()
	d := current()
	return d, d != nil
}

// current must be called with instMu held. It notices an instance destroyed
// directly through Destroy.
func current() *Dispatcher {
	if instance != nil && instance.Destroyed() {
		instance = nil
		state = StateDestroyed
	}
	return instance
}

// activate must be called with instMu held.
func activate(d *Dispatcher) {
	d.mu.Lock()
	d.instrumented = true
	d.reportBound()
	d.mu.Unlock()

	instance = d
	state = StateActive
}

// ─── Process-wide shorthands ──────────────────────────────────────────────────

// Bind binds l to name on the process-wide dispatcher.
func Bind(name string, l *Listener) { Instance().Bind(name, l) }

// Unbind removes one occurrence of l from name. Without an active
// dispatcher it does nothing.
func Unbind(name string, l *Listener) {
	if d, ok := Active(); ok {
		d.Unbind(name, l)
	}
}

// Broadcast broadcasts name on the process-wide dispatcher.
func Broadcast(name string, p *params.Bag) { Instance().Broadcast(name, p) }

// BroadcastDelayed schedules a broadcast on the process-wide dispatcher.
func BroadcastDelayed(name string, p *params.Bag, delay time.Duration) *schedule.Timer {
	return Instance().BroadcastDelayed(name, p, delay)
}

// ClearAllBindings clears the process-wide dispatcher. Without an active
// dispatcher it does nothing.
func ClearAllBindings() {
	if d, ok := Active(); ok {
		d.ClearAllBindings()
	}
}

// IsBound reports whether name has listeners on the process-wide dispatcher.
func IsBound(name string) bool {
	d, ok := Active()
	return ok && d.IsBound(name)
}

// GetBindingsCount returns the listener count of name on the process-wide
// dispatcher.
func GetBindingsCount(name string) int {
	if d, ok := Active(); ok {
		return d.GetBindingsCount(name)
	}
	return 0
}

// GetNumBound returns how many names have listeners on the process-wide
// dispatcher.
func GetNumBound() int {
	if d, ok := Active(); ok {
		return d.GetNumBound()
	}
	return 0
}

// HasBinding reports whether l is bound to name on the process-wide
// dispatcher.
func HasBinding(name string, l *Listener) bool {
	d, ok := Active()
	return ok && d.HasBinding(name, l)
}
