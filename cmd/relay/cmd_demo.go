package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/relay/config"
	"github.com/shashiranjanraj/relay/pkg/event"
	"github.com/shashiranjanraj/relay/pkg/params"
	"github.com/shashiranjanraj/relay/pkg/schedule"
	"github.com/shashiranjanraj/relay/pkg/storage"
)

var (
	demoFrames int
	demoSave   bool
)

// relay demo
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Replay a scripted Score scenario and print its dispatch log",
	RunE: func(cmd *cobra.Command, args []string) error {
		var sink logSink = &memorySink{}
		if demoSave {
			disk, err := storage.Resolve(config.EventLogDisk())
			if err != nil {
				return err
			}
			sink = &teeSink{memorySink: &memorySink{}, disk: disk}
		}
		return runDemo(cmd.OutOrStdout(), demoFrames, sink, config.EventLogPath())
	},
}

func init() {
	demoCmd.Flags().IntVarP(&demoFrames, "frames", "n", 180, "Number of simulated frames")
	demoCmd.Flags().BoolVar(&demoSave, "save", false, "Also write the log to the configured disk")
}

type logSink interface {
	Put(path string, content []byte) error
	Content() string
}

type memorySink struct {
	mu  sync.Mutex
	buf []byte
}

func (s *memorySink) Put(_ string, content []byte) error {
	s.mu.Lock()
	s.buf = append(s.buf[:0], content...)
	s.mu.Unlock()
	return nil
}

func (s *memorySink) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.buf)
}

type teeSink struct {
	*memorySink
	disk storage.Disk
}

func (s *teeSink) Put(path string, content []byte) error {
	_ = s.memorySink.Put(path, content)
	return s.disk.Put(path, content)
}

// runDemo drives a private dispatcher through frames fixed-step frames at the
// configured tick rate, then destroys it and writes the flushed log to out.
func runDemo(out io.Writer, frames int, sink logSink, path string) error {
	loop := schedule.New(config.TickRate())
	d := event.New(event.WithLoop(loop), event.WithTracking(sink, path))

	total := 0
	onScore := event.NewListener(func(p *params.Bag) {
		total += params.Get(p, "points", 0)
	})
	onStart := event.NewListener(func(*params.Bag) {
		d.BroadcastDelayed("Score", params.With("points", 5).Set("bonus", true), 2*time.Second)
	})

	d.Bind("Start", onStart)
	d.Bind("Score", onScore)

	script := map[int]func(){
		1:  func() { d.Broadcast("Start", nil) },
		2:  func() { d.Broadcast("Score", params.With("points", 10)) },
		30: func() { d.Unbind("Score", onScore) },
		31: func() { d.Broadcast("Score", params.With("points", 99)) },
		32: func() { d.Bind("Score", onScore) },
	}

	for f := 1; f <= frames; f++ {
		if step, ok := script[f]; ok {
			loop.Post(step)
		}
		loop.Advance(loop.Interval())
	}
	d.Broadcast("End", params.With("total", total))

	if err := d.Destroy(); err != nil {
		return err
	}
	fmt.Fprint(out, sink.Content())
	fmt.Fprintf(out, "\ntotal points: %d\n", total)
	return nil
}
