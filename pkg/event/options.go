package event

import (
	"log/slog"

	"github.com/shashiranjanraj/relay/pkg/eventlog"
	"github.com/shashiranjanraj/relay/pkg/logger"
	"github.com/shashiranjanraj/relay/pkg/schedule"
)

type options struct {
	scheduler Scheduler
	clock     Clock
	sink      eventlog.Writer
	logPath   string
	logger    *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*options)

// WithLoop runs delayed broadcasts on loop and stamps records with its clock.
func WithLoop(loop *schedule.Loop) Option {
	return func(o *options) {
		o.scheduler = loop
		o.clock = loop
	}
}

// WithScheduler sets the delayed-broadcast scheduler.
func WithScheduler(s Scheduler) Option {
	return func(o *options) {
		o.scheduler = s
	}
}

// WithClock sets the clock used to stamp dispatch records.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithTracking records every broadcast and writes the log to path on w when
// the dispatcher is destroyed.
func WithTracking(w eventlog.Writer, path string) Option {
	return func(o *options) {
		o.sink = w
		o.logPath = path
	}
}

// WithLogger sets the logger used for soft diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func buildOptions(opts ...Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.scheduler == nil || o.clock == nil {
		loop := schedule.Main()
		if o.scheduler == nil {
			o.scheduler = loop
		}
		if o.clock == nil {
			o.clock = loop
		}
	}
	if o.logger == nil {
		o.logger = logger.L
	}
	return o
}
