// internal/pipeline/readiness.go
package pipeline

import (
	"context"
	"os"
	"time"

	"fileagent/internal/domain/events"
)

// Not-ready reasons reported by the gate.
const (
	ReasonTimeout = "timeout"
	ReasonMissing = "missing"
	ReasonAborted = "aborted"
)

// ReadinessGate decides when a file is fully written and safe to read:
// openable (no exclusive writer lock) and size-stable across two consecutive
// polls. Writers holding transient locks or still appending keep the gate
// closed until the timeout.
type ReadinessGate struct {
	interval time.Duration
	timeout  time.Duration
}

func NewReadinessGate(interval, timeout time.Duration) *ReadinessGate {
	return &ReadinessGate{interval: interval, timeout: timeout}
}

// Wait polls until the file is ready, the timeout expires, the file
// disappears, or ctx is cancelled.
func (g *ReadinessGate) Wait(ctx context.Context, path string) events.ReadinessResult {
	deadline := time.NewTimer(g.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	lastSize := int64(-1)

	for {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				// gone (moved or deleted since settling); replaying a settled
				// event after a successful route ends here
				return events.ReadinessResult{Path: path, Reason: ReasonMissing}
			}
			// stat errors behave like a held lock: keep polling
		} else if g.openable(path) {
			size := info.Size()
			if size == lastSize {
				return events.ReadinessResult{Path: path, Ready: true, Size: size}
			}
			lastSize = size
		}

		select {
		case <-ctx.Done():
			return events.ReadinessResult{Path: path, Reason: ReasonAborted}
		case <-deadline.C:
			return events.ReadinessResult{Path: path, Size: lastSize, Reason: ReasonTimeout}
		case <-ticker.C:
		}
	}
}

// openable probes for an exclusive writer lock by opening for read.
func (g *ReadinessGate) openable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
