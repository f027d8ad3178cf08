// internal/domain/events/events.go
package events

import "time"

// EventKind is the normalized kind of a filesystem notification.
type EventKind string

const (
	KindCreated  EventKind = "created"
	KindModified EventKind = "modified"
	KindMoved    EventKind = "moved"
	KindDeleted  EventKind = "deleted"
)

// Valid reports whether the kind is one the pipeline understands.
func (k EventKind) Valid() bool {
	switch k {
	case KindCreated, KindModified, KindMoved, KindDeleted:
		return true
	}
	return false
}

// FileEvent is a normalized OS change notification emitted by the watcher
// and consumed by the debouncer.
type FileEvent struct {
	Path       string    `json:"path"`
	Kind       EventKind `json:"kind"`
	ObservedAt time.Time `json:"observedAt"`
}

// SettledEvent is produced when no further events for a path arrive within
// the quiet window. One per stabilization episode.
type SettledEvent struct {
	ID          string    `json:"id"`
	Path        string    `json:"path"`
	FirstSeenAt time.Time `json:"firstSeenAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

// ReadinessResult is the transient outcome of one readiness check.
type ReadinessResult struct {
	Path   string `json:"path"`
	Ready  bool   `json:"ready"`
	Size   int64  `json:"size"`
	Reason string `json:"reason,omitempty"` // "timeout", "missing", "aborted" when not ready
}

// ContentSample is a bounded text preview of a ready file. Consumed once by
// the decision engine, never persisted.
type ContentSample struct {
	Path      string `json:"path"`
	Preview   string `json:"preview"`
	Extension string `json:"extension"`
}

// ActionKind is what the decision engine decided to do with a file.
type ActionKind string

const (
	ActionRoute     ActionKind = "route"
	ActionSummarize ActionKind = "summarize"
	ActionNone      ActionKind = "none"
)

// Decision is produced by the decision engine and consumed once by the
// action executor.
type Decision struct {
	Path      string     `json:"path"`
	Action    ActionKind `json:"action"`
	Category  string     `json:"category,omitempty"` // set when Action == ActionRoute
	Rationale string     `json:"rationale"`
}

// FileActionEvent is published to the message broker after the executor
// completes an action, so downstream consumers can react to organized files.
type FileActionEvent struct {
	Path        string    `json:"path"`
	Action      string    `json:"action"`
	Category    string    `json:"category,omitempty"`
	Destination string    `json:"destination,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
