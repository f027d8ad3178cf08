// internal/pipeline/debounce_test.go
package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"fileagent/internal/audit"
	"fileagent/internal/domain/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memSink captures audit records in memory for assertions.
type memSink struct {
	mu   sync.Mutex
	recs []audit.Record
}

func (s *memSink) Append(rec *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, *rec)
	return nil
}

func (s *memSink) Close() error { return nil }

func (s *memSink) records() []audit.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.Record, len(s.recs))
	copy(out, s.recs)
	return out
}

func (s *memSink) outcomes(path string) []audit.Outcome {
	var out []audit.Outcome
	for _, r := range s.records() {
		if r.Path == path {
			out = append(out, r.Outcome)
		}
	}
	return out
}

func newTestAuditor(t *testing.T) (*audit.Logger, *memSink) {
	t.Helper()
	sink := &memSink{}
	logger, err := audit.NewLogger(zap.NewNop(), sink)
	require.NoError(t, err)
	require.NoError(t, logger.Start())
	t.Cleanup(func() { _ = logger.Stop(time.Second) })
	return logger, sink
}

func fileEvent(path string, kind events.EventKind) events.FileEvent {
	return events.FileEvent{Path: path, Kind: kind, ObservedAt: time.Now()}
}

func TestDebouncerCollapsesBurstIntoOneSettledEvent(t *testing.T) {
	auditor, _ := newTestAuditor(t)
	d := NewDebouncer(50*time.Millisecond, auditor, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan events.FileEvent)
	go d.Run(ctx, in)

	// create followed by rapid modifies, all within the quiet window
	in <- fileEvent("/watch/notes.txt", events.KindCreated)
	for i := 0; i < 5; i++ {
		time.Sleep(5 * time.Millisecond)
		in <- fileEvent("/watch/notes.txt", events.KindModified)
	}

	select {
	case se := <-d.Settled():
		assert.Equal(t, "/watch/notes.txt", se.Path)
		assert.NotEmpty(t, se.ID)
		assert.False(t, se.LastSeenAt.Before(se.FirstSeenAt))
	case <-time.After(time.Second):
		t.Fatal("no settled event emitted")
	}

	// exactly one per stabilization episode
	select {
	case se := <-d.Settled():
		t.Fatalf("unexpected second settled event for %s", se.Path)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDebouncerSettlesPathsIndependently(t *testing.T) {
	auditor, _ := newTestAuditor(t)
	d := NewDebouncer(30*time.Millisecond, auditor, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan events.FileEvent)
	go d.Run(ctx, in)

	in <- fileEvent("/watch/a.txt", events.KindCreated)
	in <- fileEvent("/watch/b.txt", events.KindCreated)

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case se := <-d.Settled():
			got[se.Path] = true
		case <-time.After(time.Second):
			t.Fatal("missing settled event")
		}
	}
	assert.True(t, got["/watch/a.txt"])
	assert.True(t, got["/watch/b.txt"])
}

func TestDebouncerDropsMalformedEvents(t *testing.T) {
	auditor, sink := newTestAuditor(t)
	d := NewDebouncer(20*time.Millisecond, auditor, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan events.FileEvent)
	go d.Run(ctx, in)

	in <- events.FileEvent{Path: "", Kind: events.KindCreated, ObservedAt: time.Now()}
	in <- events.FileEvent{Path: "/watch/x.txt", Kind: "exploded", ObservedAt: time.Now()}

	select {
	case se := <-d.Settled():
		t.Fatalf("malformed event settled: %s", se.Path)
	case <-time.After(100 * time.Millisecond):
	}

	require.Eventually(t, func() bool {
		count := 0
		for _, r := range sink.records() {
			if r.Outcome == audit.OutcomeDroppedEvent {
				count++
			}
		}
		return count == 2
	}, time.Second, 10*time.Millisecond)
}

func TestDebouncerShutdownLeavesAbortedRecordForPendingPath(t *testing.T) {
	auditor, sink := newTestAuditor(t)
	d := NewDebouncer(500*time.Millisecond, auditor, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())

	in := make(chan events.FileEvent)
	done := make(chan struct{})
	go func() {
		d.Run(ctx, in)
		close(done)
	}()

	// cancel mid quiet window: the episode never settles, but it must not
	// vanish from the audit trail either
	in <- fileEvent("/watch/pending.txt", events.KindCreated)
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debouncer did not shut down")
	}

	require.Eventually(t, func() bool {
		for _, o := range sink.outcomes("/watch/pending.txt") {
			if o == audit.OutcomeAborted {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	select {
	case se := <-d.Settled():
		t.Fatalf("cancelled episode settled: %s", se.Path)
	default:
	}
}

func TestDebouncerDeletedEventCancelsPendingEpisode(t *testing.T) {
	auditor, _ := newTestAuditor(t)
	d := NewDebouncer(50*time.Millisecond, auditor, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan events.FileEvent)
	go d.Run(ctx, in)

	in <- fileEvent("/watch/gone.txt", events.KindCreated)
	time.Sleep(10 * time.Millisecond)
	in <- fileEvent("/watch/gone.txt", events.KindDeleted)

	select {
	case se := <-d.Settled():
		t.Fatalf("deleted path settled: %s", se.Path)
	case <-time.After(150 * time.Millisecond):
	}
}
