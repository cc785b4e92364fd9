package domain

import "time"

// RunState is the lifecycle state of a matching run.
type RunState string

const (
	RunPending   RunState = "pending"
	RunMatching  RunState = "matching"
	RunMatched   RunState = "matched"
	RunNotifying RunState = "notifying"
	RunComplete  RunState = "complete"
	// RunPartial means notification fan-out finished with at least one
	// abandoned task.
	RunPartial   RunState = "partial"
	RunFailed    RunState = "failed"
	RunCancelled RunState = "cancelled"
)

// Terminal reports whether the state is final. Terminal runs are never
// auto-retried; a failed run needs an external re-trigger.
func (s RunState) Terminal() bool {
	switch s {
	case RunComplete, RunPartial, RunFailed, RunCancelled:
		return true
	}
	return false
}

// validTransitions encodes the orchestrator state machine.
var validTransitions = map[RunState][]RunState{
	RunPending:   {RunMatching, RunFailed, RunCancelled},
	RunMatching:  {RunMatched, RunFailed, RunCancelled},
	RunMatched:   {RunNotifying, RunComplete, RunFailed, RunCancelled},
	RunNotifying: {RunComplete, RunPartial, RunFailed, RunCancelled},
}

// CanTransition reports whether from -> to is a legal state change.
func CanTransition(from, to RunState) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// MatchingRun identifies one execution of the pipeline for one job.
// It owns the MatchScore batch it produced.
type MatchingRun struct {
	ID    string   `json:"id"`
	JobID string   `json:"job_id"`
	State RunState `json:"state"`

	// Degraded records that semantic scoring was unavailable and the run
	// used skill-overlap-only scores.
	Degraded bool `json:"degraded"`
	// Reason explains every terminal non-success state. Never empty for
	// failed, partial, or cancelled runs.
	Reason string `json:"reason,omitempty"`
	// Attempts counts matching-stage executions across retries.
	Attempts int `json:"attempts"`
	// CancelRequested is the cooperative cancellation flag, checked at
	// each transition boundary.
	CancelRequested bool `json:"cancel_requested"`

	Matches    int `json:"matches"`
	TasksTotal int `json:"tasks_total"`

	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	MatchedAt  time.Time `json:"matched_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}
