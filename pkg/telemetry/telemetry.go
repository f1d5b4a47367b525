// Package telemetry records per-request traces as JSON lines, one file per
// operation, written by a single background goroutine.
package telemetry

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"enceladus/pkg/state/logger"
)

type Step struct {
	Name     string  `json:"name"`
	Duration float64 `json:"duration_ms"`
}

// Trace times one request. Mark closes a step; Finish queues the trace.
type Trace struct {
	Name     string    `json:"name"`
	Start    time.Time `json:"start"`
	Steps    []Step    `json:"steps"`
	TotalMS  float64   `json:"total_ms"`
	lastMark time.Time
	tel      *Telemetry
}

// Telemetry owns the trace queue and the per-operation files.
type Telemetry struct {
	dir        string
	bufferSize int
	maxSize    int64
	flushEvery time.Duration

	traces   chan *Trace
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	dropped  atomic.Int64

	// only touched by the writer goroutine
	sinks map[string]*sink
}

// sink is one operation's file. Once it grows past the size limit it is
// rotated to <op>.jsonl.1, replacing the previous rotation.
type sink struct {
	path    string
	f       *os.File
	w       *bufio.Writer
	written int64
}

var tel *Telemetry

// Init installs the global instance used by Track. A failure leaves
// telemetry disabled.
func Init(dir string, bufferSize, queueCapacity int, flushInterval time.Duration, maxFileSize int64) {
	t, err := New(dir, bufferSize, queueCapacity, flushInterval, maxFileSize)
	if err != nil {
		logger.Warn("telemetry_init_failed", "dir", dir, "error", err)
		return
	}
	tel = t
}

// Track starts a trace on the global instance; without Init it is a no-op.
func Track(name string) *Trace {
	return tel.Track(name)
}

func Enabled() bool {
	return tel != nil
}

// Close flushes and stops the global instance.
func Close() {
	if tel != nil {
		tel.Close()
		tel = nil
	}
}

func New(dir string, bufferSize, queueCapacity int, flushInterval time.Duration, maxFileSize int64) (*Telemetry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	t := &Telemetry{
		dir:        dir,
		bufferSize: bufferSize,
		maxSize:    maxFileSize,
		flushEvery: flushInterval,
		traces:     make(chan *Trace, queueCapacity),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
		sinks:      make(map[string]*sink),
	}
	go t.run()
	return t, nil
}

func (t *Telemetry) Track(name string) *Trace {
	now := time.Now()
	return &Trace{Name: name, Start: now, lastMark: now, tel: t}
}

func (tr *Trace) Mark(label string) {
	now := time.Now()
	tr.Steps = append(tr.Steps, Step{Name: label, Duration: ms(now.Sub(tr.lastMark))})
	tr.lastMark = now
}

// Finish queues the trace. Calling it again, or on a disabled trace, does
// nothing. A full queue drops the trace instead of stalling the request.
func (tr *Trace) Finish() {
	t := tr.tel
	if t == nil {
		return
	}
	tr.tel = nil
	tr.TotalMS = ms(time.Since(tr.Start))
	if rest := ms(time.Since(tr.lastMark)); len(tr.Steps) > 0 && rest > 0.001 {
		tr.Steps = append(tr.Steps, Step{Name: "unmarked", Duration: rest})
	}
	select {
	case t.traces <- tr:
	default:
		t.dropped.Add(1)
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func (t *Telemetry) run() {
	defer close(t.done)
	ticker := time.NewTicker(t.flushEvery)
	defer ticker.Stop()

	for {
		select {
		case tr := <-t.traces:
			t.write(tr)
		case <-ticker.C:
			t.flushAll()
		case <-t.stopCh:
			// drain what was queued before Close
			for {
				select {
				case tr := <-t.traces:
					t.write(tr)
				default:
					t.closeAll()
					return
				}
			}
		}
	}
}

func (t *Telemetry) write(tr *Trace) {
	data, err := json.Marshal(tr)
	if err != nil {
		return
	}
	s, err := t.sinkFor(tr.Name)
	if err != nil {
		t.dropped.Add(1)
		return
	}
	n, _ := s.w.Write(append(data, '\n'))
	s.written += int64(n)
	if t.maxSize > 0 && s.written > t.maxSize {
		t.rotate(tr.Name, s)
	}
}

func (t *Telemetry) sinkFor(op string) (*sink, error) {
	if s, ok := t.sinks[op]; ok {
		return s, nil
	}
	path := filepath.Join(t.dir, op+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.Warn("telemetry_open_failed", "path", path, "error", err)
		return nil, err
	}
	var size int64
	if fi, err := f.Stat(); err == nil {
		size = fi.Size()
	}
	s := &sink{path: path, f: f, w: bufio.NewWriterSize(f, t.bufferSize), written: size}
	t.sinks[op] = s
	return s, nil
}

func (t *Telemetry) rotate(op string, s *sink) {
	_ = s.w.Flush()
	_ = s.f.Close()
	delete(t.sinks, op)
	if err := os.Rename(s.path, s.path+".1"); err != nil {
		logger.Warn("telemetry_rotate_failed", "path", s.path, "error", err)
		return
	}
	logger.Debug("telemetry_rotated", "path", s.path, "bytes", s.written)
}

func (t *Telemetry) flushAll() {
	for _, s := range t.sinks {
		_ = s.w.Flush()
	}
}

func (t *Telemetry) closeAll() {
	for op, s := range t.sinks {
		_ = s.w.Flush()
		_ = s.f.Sync()
		_ = s.f.Close()
		delete(t.sinks, op)
	}
}

// Dropped returns how many traces were discarded because the queue was full
// or their file could not be opened.
func (t *Telemetry) Dropped() int64 {
	return t.dropped.Load()
}

// Close stops the writer after flushing every queued trace.
func (t *Telemetry) Close() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
		<-t.done
	})
}
