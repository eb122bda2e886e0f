package events

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the lifecycle milestone an Event represents.
type Stage string

// Supported lifecycle stages.
const (
	StageRunStart    Stage = "run_start"
	StageSourceStart Stage = "source_start"
	StageSourceDone  Stage = "source_done"
	StageSourceError Stage = "source_error"
	StageRunDone     Stage = "run_done"
)

// Event is one lifecycle notification.
type Event struct {
	// RunID ties every event of one run together.
	RunID string `json:"run_id"`
	// TS is the UTC time the emitter observed the milestone.
	TS time.Time `json:"ts"`
	// Stage says which milestone occurred.
	Stage Stage `json:"stage"`
	// Source scopes source_* events to a category name.
	Source string `json:"source,omitempty"`
	// Records is the record count of a finished source, or the run total.
	Records int `json:"records"`
	// Dur is the wall time of a finished source or run.
	Dur time.Duration `json:"duration_ns,omitempty"`
	// Note carries low-volume context such as error text.
	Note string `json:"note,omitempty"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StageSourceStart, StageSourceDone, StageSourceError:
		if e.Source == "" {
			return fmt.Errorf("%s requires source", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Records < 0 {
		return errors.New("records must be >= 0")
	}
	return nil
}

// Terminal reports whether the event closes a source or a run.
func (e Event) Terminal() bool {
	switch e.Stage {
	case StageSourceDone, StageSourceError, StageRunDone:
		return true
	default:
		return false
	}
}
