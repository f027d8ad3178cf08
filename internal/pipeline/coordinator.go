// internal/pipeline/coordinator.go
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"fileagent/internal/audit"
	"fileagent/internal/domain/events"

	"go.uber.org/zap"
)

// PathState tracks where a path currently is in the pipeline.
type PathState string

const (
	StateReadyChecking PathState = "ready-checking"
	StateDeciding      PathState = "deciding"
	StateActing        PathState = "acting"
)

// Decider turns a sampled file into a Decision. A non-nil error means the
// classifier retry budget was exhausted.
type Decider interface {
	Decide(ctx context.Context, path string, sample *events.ContentSample) (events.Decision, error)
}

// Actor executes a Decision and reports where it landed (the moved path or
// the sidecar path, empty for none).
type Actor interface {
	Execute(ctx context.Context, dec events.Decision, sample *events.ContentSample) (string, error)
}

// Coordinator drives settled events through readiness, sampling, decision
// and action, emitting one audit record per stage. It owns the per-path
// state map: events for the same path are strictly serialized (a second
// settled event is parked until the first reaches a terminal record), while
// distinct paths run concurrently under a worker cap.
type Coordinator struct {
	root    string
	gate    *ReadinessGate
	sampler *Sampler
	decider Decider
	actor   Actor
	auditor *audit.Logger
	log     *zap.Logger

	workers chan struct{}

	mu      sync.Mutex
	states  map[string]PathState
	pending map[string]events.SettledEvent
	wg      sync.WaitGroup
}

func NewCoordinator(root string, gate *ReadinessGate, sampler *Sampler, decider Decider, actor Actor,
	auditor *audit.Logger, maxWorkers int, log *zap.Logger) *Coordinator {
	return &Coordinator{
		root:    filepath.Clean(root),
		gate:    gate,
		sampler: sampler,
		decider: decider,
		actor:   actor,
		auditor: auditor,
		log:     log,
		workers: make(chan struct{}, maxWorkers),
		states:  make(map[string]PathState),
		pending: make(map[string]events.SettledEvent),
	}
}

// State returns the current pipeline state for a path, if any.
func (c *Coordinator) State(path string) (PathState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[path]
	return s, ok
}

// Run consumes settled events until ctx is cancelled, then waits for
// in-flight paths to flush their aborted records.
func (c *Coordinator) Run(ctx context.Context, settled <-chan events.SettledEvent) {
	for {
		select {
		case <-ctx.Done():
			c.wg.Wait()
			c.abortParked()
			return
		case se, ok := <-settled:
			if !ok {
				c.wg.Wait()
				c.abortParked()
				return
			}
			c.Dispatch(ctx, se)
		}
	}
}

// Dispatch starts processing a settled event, or parks it when the path is
// already in flight. The parked event replays once the current one reaches
// a terminal record; replacing an older parked event is fine, the episodes
// collapse.
func (c *Coordinator) Dispatch(ctx context.Context, se events.SettledEvent) {
	c.mu.Lock()
	if _, busy := c.states[se.Path]; busy {
		c.pending[se.Path] = se
		c.mu.Unlock()
		return
	}
	c.states[se.Path] = StateReadyChecking
	c.mu.Unlock()

	c.wg.Add(1)
	go c.process(ctx, se)
}

func (c *Coordinator) process(ctx context.Context, se events.SettledEvent) {
	defer c.wg.Done()
	defer c.finish(ctx, se.Path)

	select {
	case c.workers <- struct{}{}:
		defer func() { <-c.workers }()
	case <-ctx.Done():
		c.auditor.Record(se.Path, audit.StageReadiness, audit.OutcomeAborted, "shutdown before processing")
		return
	}

	// files already moved into category subdirectories are never organized
	// again
	if filepath.Dir(filepath.Clean(se.Path)) != c.root {
		c.auditor.Record(se.Path, audit.StageDecide, audit.OutcomeNoActionTaken, "outside watch root")
		return
	}

	res := c.gate.Wait(ctx, se.Path)
	if !res.Ready {
		if res.Reason == ReasonAborted {
			c.auditor.Record(se.Path, audit.StageReadiness, audit.OutcomeAborted, "shutdown during readiness poll")
		} else {
			c.auditor.Record(se.Path, audit.StageReadiness, audit.OutcomeSkippedUnready, res.Reason)
		}
		return
	}
	c.auditor.Record(se.Path, audit.StageReadiness, audit.OutcomeReady,
		fmt.Sprintf("size stable at %d bytes", res.Size))

	sample, err := c.sampler.Sample(se.Path)
	if err != nil {
		// not terminal by itself: the marker check and extension rules still
		// run without a sample
		c.auditor.Record(se.Path, audit.StageSample, audit.OutcomeUnsupportedType, err.Error())
		sample = nil
	} else {
		c.auditor.Record(se.Path, audit.StageSample, audit.OutcomeSampled,
			fmt.Sprintf("%d byte preview", len(sample.Preview)))
	}

	c.setState(se.Path, StateDeciding)
	dec, err := c.decider.Decide(ctx, se.Path, sample)
	if err != nil {
		if ctx.Err() != nil {
			c.auditor.Record(se.Path, audit.StageDecide, audit.OutcomeAborted, "shutdown during classification")
		} else {
			c.auditor.Record(se.Path, audit.StageDecide, audit.OutcomeClassificationFailed, err.Error())
		}
		return
	}
	if dec.Action == events.ActionNone {
		c.auditor.Record(se.Path, audit.StageDecide, audit.OutcomeNoActionTaken, dec.Rationale)
		return
	}
	c.auditor.Record(se.Path, audit.StageDecide, audit.OutcomeDecided,
		fmt.Sprintf("%s %s: %s", dec.Action, dec.Category, dec.Rationale))

	c.setState(se.Path, StateActing)
	dest, err := c.actor.Execute(ctx, dec, sample)
	if err != nil {
		if ctx.Err() != nil {
			c.auditor.Record(se.Path, audit.StageAction, audit.OutcomeAborted, "shutdown during action")
		} else {
			c.auditor.Record(se.Path, audit.StageAction, audit.OutcomeActionFailed, err.Error())
		}
		return
	}
	c.auditor.Record(se.Path, audit.StageAction, audit.OutcomeSuccess, dest)
}

func (c *Coordinator) setState(path string, s PathState) {
	c.mu.Lock()
	c.states[path] = s
	c.mu.Unlock()
}

// finish clears the path's state and replays a parked settled event, if any.
func (c *Coordinator) finish(ctx context.Context, path string) {
	c.mu.Lock()
	delete(c.states, path)
	se, ok := c.pending[path]
	if ok {
		delete(c.pending, path)
	}
	c.mu.Unlock()

	if ok && ctx.Err() == nil {
		c.Dispatch(ctx, se)
	}
}

// abortParked flushes aborted records for events parked behind in-flight
// paths at shutdown so no path leaves a silent gap in the audit trail.
func (c *Coordinator) abortParked() {
	c.mu.Lock()
	parked := make([]events.SettledEvent, 0, len(c.pending))
	for _, se := range c.pending {
		parked = append(parked, se)
	}
	c.pending = make(map[string]events.SettledEvent)
	c.mu.Unlock()

	for _, se := range parked {
		c.auditor.Record(se.Path, audit.StageDebounce, audit.OutcomeAborted, "shutdown with event parked")
	}
}
