// internal/pipeline/debounce.go
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fileagent/internal/audit"
	"fileagent/internal/domain/events"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Debouncer collapses bursts of events per path into a single SettledEvent.
// Each new event restarts the path's quiet-window timer; when the timer
// expires with no further events, exactly one SettledEvent is emitted for
// that stabilization episode.
type Debouncer struct {
	quiet   time.Duration
	auditor *audit.Logger
	log     *zap.Logger

	out  chan events.SettledEvent
	done chan struct{}

	mu      sync.Mutex
	pending map[string]*pendingPath
}

type pendingPath struct {
	timer     *time.Timer
	firstSeen time.Time
	lastSeen  time.Time
}

func NewDebouncer(quiet time.Duration, auditor *audit.Logger, log *zap.Logger) *Debouncer {
	return &Debouncer{
		quiet:   quiet,
		auditor: auditor,
		log:     log,
		out:     make(chan events.SettledEvent, 256),
		done:    make(chan struct{}),
		pending: make(map[string]*pendingPath),
	}
}

// Settled is the stream of stabilized paths consumed by the coordinator.
func (d *Debouncer) Settled() <-chan events.SettledEvent {
	return d.out
}

// Run consumes the watcher's event stream until it closes or ctx is
// cancelled. Pending timers are cancelled on shutdown without emission.
func (d *Debouncer) Run(ctx context.Context, in <-chan events.FileEvent) {
	defer d.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in:
			if !ok {
				return
			}
			d.handle(ev)
		}
	}
}

func (d *Debouncer) handle(ev events.FileEvent) {
	if ev.Path == "" || !ev.Kind.Valid() {
		d.auditor.Record(ev.Path, audit.StageDebounce, audit.OutcomeDroppedEvent,
			fmt.Sprintf("malformed event kind %q", ev.Kind))
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if ev.Kind == events.KindDeleted {
		// a deleted path never settles; clear any pending episode
		if p, ok := d.pending[ev.Path]; ok {
			p.timer.Stop()
			delete(d.pending, ev.Path)
		}
		d.auditor.Record(ev.Path, audit.StageWatch, audit.OutcomeObserved, "deleted")
		return
	}

	if p, ok := d.pending[ev.Path]; ok {
		p.lastSeen = ev.ObservedAt
		p.timer.Reset(d.quiet)
		return
	}

	path := ev.Path
	p := &pendingPath{firstSeen: ev.ObservedAt, lastSeen: ev.ObservedAt}
	p.timer = time.AfterFunc(d.quiet, func() { d.settle(path) })
	d.pending[path] = p
}

func (d *Debouncer) settle(path string) {
	d.mu.Lock()
	p, ok := d.pending[path]
	if !ok {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	se := events.SettledEvent{
		ID:          uuid.New().String(),
		Path:        path,
		FirstSeenAt: p.firstSeen,
		LastSeenAt:  p.lastSeen,
	}
	d.mu.Unlock()

	select {
	case d.out <- se:
		d.auditor.Record(path, audit.StageDebounce, audit.OutcomeSettled,
			fmt.Sprintf("settled after quiet window %v", d.quiet))
	case <-d.done:
		// shutting down; the coordinator is gone
	}
}

// shutdown cancels pending timers without emission, leaving each cancelled
// episode a terminal aborted record. The out channel is left open (a late
// timer callback may still be selecting on it); consumers terminate through
// their own context.
func (d *Debouncer) shutdown() {
	d.mu.Lock()
	aborted := make([]string, 0, len(d.pending))
	for path, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, path)
		aborted = append(aborted, path)
	}
	d.mu.Unlock()
	close(d.done)

	for _, path := range aborted {
		d.auditor.Record(path, audit.StageDebounce, audit.OutcomeAborted, "shutdown during quiet window")
	}
}
