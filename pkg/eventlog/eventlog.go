// Package eventlog records every broadcast the dispatcher makes and renders
// the session as a flat text file grouped by frame.
//
// The log is a debugging aid. It grows without bound for the lifetime of a
// session and is written out once, when the dispatcher shuts down:
//
//	Event Dispatch Log - 2026-10-18 14:03:11
//	----------------------------------------
//	--- Frame 12 ---------------
//	Time: 0.200 | Event: Score | Bindings : 1 | Params: ParamList { points: 10 }
//	Time: 0.200 | Event: Tick | Bindings : 3
package eventlog

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shashiranjanraj/relay/pkg/metrics"
	"github.com/shashiranjanraj/relay/pkg/params"
)

const (
	headerTimeLayout = "2006-01-02 15:04:05"
	ruler            = "----------------------------------------"
	frameTrailer     = " ---------------"
)

// Record describes one broadcast.
type Record struct {
	Event string
	// Time is host time since the loop started.
	Time time.Duration
	// At is the wall-clock moment of the broadcast.
	At    time.Time
	Frame uint64
	// Bindings is the listener count captured before any listener ran.
	Bindings int
	// Params is shared with the broadcaster, not copied.
	Params *params.Bag
}

// Writer is where a flushed log ends up. storage.Disk satisfies it.
type Writer interface {
	Put(path string, content []byte) error
}

// Log accumulates records in memory.
type Log struct {
	mu      sync.Mutex
	records []Record
	now     func() time.Time
}

// New returns an empty log.
func New() *Log {
	return &Log{now: time.Now}
}

// Append adds r to the end of the log.
func (l *Log) Append(r Record) {
	l.mu.Lock()
	l.records = append(l.records, r)
	n := len(l.records)
	l.mu.Unlock()
	metrics.EventLogRecords.Set(float64(n))
}

// Len returns the number of buffered records.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Records returns a copy of the buffered records.
func (l *Log) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Record(nil), l.records...)
}

// Reset drops every buffered record.
func (l *Log) Reset() {
	l.mu.Lock()
	l.records = nil
	l.mu.Unlock()
	metrics.EventLogRecords.Set(0)
}

// Render formats the buffered records under a header stamped with the
// current time.
func (l *Log) Render() string {
	l.mu.Lock()
	records := append([]Record(nil), l.records...)
	now := l.now()
	l.mu.Unlock()
	return Render(now, records)
}

// Flush writes the rendered log to path on w, overwriting any previous log,
// then drops the records it wrote. Records appended while the write is in
// progress stay buffered. On error the buffer is kept.
func (l *Log) Flush(w Writer, path string) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveFlush(start, err) }()

	l.mu.Lock()
	records := append([]Record(nil), l.records...)
	now := l.now()
	l.mu.Unlock()

	if err := w.Put(path, []byte(Render(now, records))); err != nil {
		return fmt.Errorf("eventlog: flush %s: %w", path, err)
	}
	l.drop(len(records))
	return nil
}

// drop removes the first n records, keeping any appended since they were
// rendered.
func (l *Log) drop(n int) {
	l.mu.Lock()
	l.records = append([]Record(nil), l.records[n:]...)
	left := len(l.records)
	l.mu.Unlock()
	metrics.EventLogRecords.Set(float64(left))
}

// Render formats records under a header stamped with at. A frame heading is
// emitted whenever the frame index differs from the previous record's.
func Render(at time.Time, records []Record) string {
	var sb strings.Builder
	sb.WriteString("Event Dispatch Log - ")
	sb.WriteString(at.Format(headerTimeLayout))
	sb.WriteByte('\n')
	sb.WriteString(ruler)
	sb.WriteByte('\n')

	for i, r := range records {
		if i == 0 || r.Frame != records[i-1].Frame {
			fmt.Fprintf(&sb, "--- Frame %d%s\n", r.Frame, frameTrailer)
		}
		sb.WriteString(FormatRecord(r))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// FormatRecord renders one record as a single line. The Params suffix is
// omitted when the bag is nil or empty.
func FormatRecord(r Record) string {
	line := "Time: " + strconv.FormatFloat(r.Time.Seconds(), 'f', 3, 64) +
		" | Event: " + r.Event +
		" | Bindings : " + strconv.Itoa(r.Bindings)
	if r.Params.Len() > 0 {
		line += " | Params: " + r.Params.String()
	}
	return line
}
