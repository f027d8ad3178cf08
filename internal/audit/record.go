// internal/audit/record.go
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Stage identifies which pipeline step produced a record.
type Stage string

const (
	StageWatch     Stage = "watch"
	StageDebounce  Stage = "debounce"
	StageReadiness Stage = "readiness"
	StageSample    Stage = "sample"
	StageDecide    Stage = "decide"
	StageAction    Stage = "action"
)

// Outcome is the result of a stage for one path. Terminal outcomes end
// processing of the current settled event.
type Outcome string

const (
	// progress outcomes
	OutcomeObserved      Outcome = "observed"
	OutcomeSettled       Outcome = "settled"
	OutcomeReady         Outcome = "ready"
	OutcomeSampled       Outcome = "sampled"
	OutcomeDecided       Outcome = "decided"
	OutcomeSuccess       Outcome = "success"
	OutcomeNoActionTaken Outcome = "no_action_taken"

	// failure outcomes, all terminal
	OutcomeDroppedEvent         Outcome = "dropped_event"
	OutcomeSkippedUnready       Outcome = "skipped_unready"
	OutcomeUnsupportedType      Outcome = "unsupported_type"
	OutcomeClassificationFailed Outcome = "classification_failed"
	OutcomeActionFailed         Outcome = "action_failed"
	OutcomeAborted              Outcome = "aborted"
)

// Record is one immutable line of the audit log. Records are appended and
// never rewritten; the full history for a path is its records in order.
type Record struct {
	Timestamp time.Time `json:"ts" db:"ts"`
	ID        string    `json:"id" db:"id"`
	Path      string    `json:"path" db:"path"`
	Stage     Stage     `json:"stage" db:"stage"`
	Outcome   Outcome   `json:"outcome" db:"outcome"`
	Detail    string    `json:"detail,omitempty" db:"detail"`
}

// NewRecord stamps a record with an ID and the current time.
func NewRecord(path string, stage Stage, outcome Outcome, detail string) *Record {
	return &Record{
		Timestamp: time.Now().UTC(),
		ID:        uuid.New().String(),
		Path:      path,
		Stage:     stage,
		Outcome:   outcome,
		Detail:    detail,
	}
}
