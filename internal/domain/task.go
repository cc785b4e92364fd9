package domain

import (
	"fmt"
	"time"
)

// TaskState is the delivery state of a notification task.
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskDelivered TaskState = "delivered"
	// TaskAbandoned is terminal: either a permanent delivery failure or
	// an exhausted retry budget.
	TaskAbandoned TaskState = "abandoned"
)

// Terminal reports whether the task state is final.
func (s TaskState) Terminal() bool {
	return s == TaskDelivered || s == TaskAbandoned
}

// NotificationTask is one unit of notification fan-out. The
// (run, candidate, channel) triple is the idempotency key: exactly one
// row exists per triple, re-enqueue updates and never duplicates.
type NotificationTask struct {
	RunID       string  `json:"run_id"`
	CandidateID string  `json:"candidate_id"`
	Channel     Channel `json:"channel"`

	State     TaskState `json:"state"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`

	CreatedAt     time.Time `json:"created_at"`
	NextAttemptAt time.Time `json:"next_attempt_at,omitzero"`
	DeliveredAt   time.Time `json:"delivered_at,omitzero"`
	AbandonedAt   time.Time `json:"abandoned_at,omitzero"`
}

// TripleKey renders the idempotency key of the task.
func (t *NotificationTask) TripleKey() string {
	return TaskTripleKey(t.RunID, t.CandidateID, t.Channel)
}

// TaskTripleKey renders a (run, candidate, channel) idempotency key.
func TaskTripleKey(runID, candidateID string, ch Channel) string {
	return fmt.Sprintf("%s:%s:%s", runID, candidateID, ch)
}

// DeliveryOutcome classifies one dispatch attempt.
type DeliveryOutcome int

const (
	// Delivered means the channel provider accepted the message.
	Delivered DeliveryOutcome = iota
	// RetryableFailure means a transient provider failure (timeout, 5xx,
	// throttling); the orchestrator reschedules with backoff.
	RetryableFailure
	// PermanentFailure means an unretryable failure (invalid address,
	// unsubscribed, rendering error); the task is abandoned immediately.
	PermanentFailure
)

func (o DeliveryOutcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case RetryableFailure:
		return "retryable"
	case PermanentFailure:
		return "permanent"
	}
	return "unknown"
}
