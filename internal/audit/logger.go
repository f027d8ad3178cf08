// internal/audit/logger.go
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sink receives audit records in emission order. Implementations do not need
// to be safe for concurrent use; the Logger serializes all writes through a
// single goroutine.
type Sink interface {
	Append(rec *Record) error
	Close() error
}

// FileSink appends line-delimited JSON records to a single log file.
type FileSink struct {
	f *os.File
}

// NewFileSink opens (or creates) the audit log file in append-only mode.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &FileSink{f: f}, nil
}

func (s *FileSink) Append(rec *Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	if _, err := s.f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

func (s *FileSink) Close() error {
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

// Logger serializes audit writes from all pipeline stages through a buffered
// channel and one writer goroutine, so concurrent emitters never interleave
// or corrupt log lines.
type Logger struct {
	sinks []Sink
	log   *zap.Logger

	recs    chan *Record
	done    chan struct{}
	mu      sync.Mutex
	started bool
	stopped bool
}

const defaultBuffer = 1024

// NewLogger builds a Logger fanning out to the given sinks. At least one
// sink is required.
func NewLogger(log *zap.Logger, sinks ...Sink) (*Logger, error) {
	if len(sinks) == 0 {
		return nil, fmt.Errorf("audit logger requires at least one sink")
	}
	return &Logger{
		sinks: sinks,
		log:   log,
		recs:  make(chan *Record, defaultBuffer),
		done:  make(chan struct{}),
	}, nil
}

// Start launches the writer goroutine.
func (l *Logger) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return fmt.Errorf("audit logger already started")
	}
	l.started = true
	go l.writer()
	return nil
}

func (l *Logger) writer() {
	defer close(l.done)
	for rec := range l.recs {
		for _, sink := range l.sinks {
			if err := sink.Append(rec); err != nil {
				// the audit trail must stay complete; a failing sink is an
				// operational problem, not a reason to drop the record from
				// the remaining sinks
				l.log.Error("audit sink append failed",
					zap.String("path", rec.Path),
					zap.String("stage", string(rec.Stage)),
					zap.Error(err))
			}
		}
	}
}

// Emit queues one record. Blocks only when the buffer is full, so a burst of
// stage records is never lost.
func (l *Logger) Emit(rec *Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		l.log.Warn("audit record after shutdown",
			zap.String("path", rec.Path),
			zap.String("outcome", string(rec.Outcome)))
		return
	}
	// the send happens under the lock so Stop cannot close the channel out
	// from under an in-flight emitter
	l.recs <- rec
}

// Record is shorthand for Emit(NewRecord(...)).
func (l *Logger) Record(path string, stage Stage, outcome Outcome, detail string) {
	l.Emit(NewRecord(path, stage, outcome, detail))
}

// Stop drains all pending records, closes the sinks and waits up to timeout.
func (l *Logger) Stop(timeout time.Duration) error {
	l.mu.Lock()
	if !l.started || l.stopped {
		l.mu.Unlock()
		return fmt.Errorf("audit logger not running")
	}
	l.stopped = true
	l.mu.Unlock()

	close(l.recs)

	select {
	case <-l.done:
	case <-time.After(timeout):
		return fmt.Errorf("audit logger stop timeout after %v", timeout)
	}

	var firstErr error
	for _, sink := range l.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
