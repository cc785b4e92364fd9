package run

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jobpay/matchflow/internal/db"
	"github.com/jobpay/matchflow/internal/domain"
)

// store is the consumer interface for matching runs (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetNX(ctx context.Context, key string, value []byte) (bool, error)
	Del(ctx context.Context, key string) error
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Repo stores matching runs as hash rows plus a per-job active-run pointer.
type Repo struct {
	store store
}

// New creates a run repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Create persists a new run and claims the job's active-run slot.
// When another non-terminal run already holds the slot, returns its ID
// wrapped in domain.ErrRunActive and writes nothing.
func (r *Repo) Create(ctx context.Context, run *domain.MatchingRun) error {
	claimed, err := r.store.SetNX(ctx, activeRunKey(run.JobID), []byte(run.ID))
	if err != nil {
		return fmt.Errorf("claim active run for job %s: %w", run.JobID, err)
	}
	if !claimed {
		existing, err := r.ActiveRun(ctx, run.JobID)
		if err != nil {
			return fmt.Errorf("read active run for job %s: %w", run.JobID, err)
		}
		return fmt.Errorf("run %s: %w", existing, domain.ErrRunActive)
	}

	if err := r.store.HSet(ctx, runKey(run.ID), runToFields(run)); err != nil {
		return fmt.Errorf("hset run %s: %w", run.ID, err)
	}
	return nil
}

// Get returns a run by ID.
func (r *Repo) Get(ctx context.Context, id string) (*domain.MatchingRun, error) {
	fields, err := r.store.HGetAll(ctx, runKey(id))
	if err != nil {
		return nil, fmt.Errorf("hgetall run %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrRunNotFound
	}
	return fieldsToRun(fields)
}

// Update overwrites the run row. The caller holds the job lock while the
// run is in flight, so last-write-wins is safe here.
func (r *Repo) Update(ctx context.Context, run *domain.MatchingRun) error {
	if err := r.store.HSet(ctx, runKey(run.ID), runToFields(run)); err != nil {
		return fmt.Errorf("hset run %s: %w", run.ID, err)
	}
	return nil
}

// RequestCancel raises the cooperative cancellation flag. The pipeline
// observes it at the next transition boundary.
func (r *Repo) RequestCancel(ctx context.Context, id string) error {
	fields, err := r.store.HGetAll(ctx, runKey(id))
	if err != nil {
		return fmt.Errorf("hgetall run %s: %w", id, err)
	}
	if len(fields) == 0 {
		return domain.ErrRunNotFound
	}
	if domain.RunState(fields["state"]).Terminal() {
		return domain.ErrRunTerminal
	}
	if err := r.store.HSet(ctx, runKey(id), map[string]string{"cancel_requested": "1"}); err != nil {
		return fmt.Errorf("hset run %s: %w", id, err)
	}
	return nil
}

// ActiveRun returns the run ID holding the job's active slot, or
// domain.ErrRunNotFound when the slot is free.
func (r *Repo) ActiveRun(ctx context.Context, jobID string) (string, error) {
	raw, err := r.store.Get(ctx, activeRunKey(jobID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "", domain.ErrRunNotFound
		}
		return "", fmt.Errorf("get active run for job %s: %w", jobID, err)
	}
	return string(raw), nil
}

// ReleaseActive frees the job's active-run slot when runID still holds it.
// Called once the run reaches a terminal state.
func (r *Repo) ReleaseActive(ctx context.Context, jobID, runID string) error {
	current, err := r.ActiveRun(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			return nil
		}
		return err
	}
	if current != runID {
		return nil
	}
	if err := r.store.Del(ctx, activeRunKey(jobID)); err != nil {
		return fmt.Errorf("release active run for job %s: %w", jobID, err)
	}
	return nil
}

// ClaimFinish claims the right to move a run terminal. SetNX on a marker
// key makes the first finisher win; concurrent finishers get false and
// must leave the row alone.
func (r *Repo) ClaimFinish(ctx context.Context, id string) (bool, error) {
	won, err := r.store.SetNX(ctx, finishedKey(id), []byte("1"))
	if err != nil {
		return false, fmt.Errorf("claim finish for run %s: %w", id, err)
	}
	return won, nil
}

func runKey(id string) string {
	return domain.KeyPrefix + "run:" + id
}

func activeRunKey(jobID string) string {
	return domain.KeyPrefix + "job_active_run:" + jobID
}

func finishedKey(id string) string {
	return domain.KeyPrefix + "run:" + id + ":finished"
}

func runToFields(run *domain.MatchingRun) map[string]string {
	fields := map[string]string{
		"id":               run.ID,
		"job_id":           run.JobID,
		"state":            string(run.State),
		"degraded":         boolField(run.Degraded),
		"reason":           run.Reason,
		"attempts":         strconv.Itoa(run.Attempts),
		"cancel_requested": boolField(run.CancelRequested),
		"matches":          strconv.Itoa(run.Matches),
		"tasks_total":      strconv.Itoa(run.TasksTotal),
		"created_at":       timeField(run.CreatedAt),
		"started_at":       timeField(run.StartedAt),
		"matched_at":       timeField(run.MatchedAt),
		"finished_at":      timeField(run.FinishedAt),
	}
	return fields
}

func fieldsToRun(fields map[string]string) (*domain.MatchingRun, error) {
	run := &domain.MatchingRun{
		ID:              fields["id"],
		JobID:           fields["job_id"],
		State:           domain.RunState(fields["state"]),
		Degraded:        fields["degraded"] == "1",
		Reason:          fields["reason"],
		CancelRequested: fields["cancel_requested"] == "1",
	}

	var err error
	if run.Attempts, err = intField(fields, "attempts"); err != nil {
		return nil, err
	}
	if run.Matches, err = intField(fields, "matches"); err != nil {
		return nil, err
	}
	if run.TasksTotal, err = intField(fields, "tasks_total"); err != nil {
		return nil, err
	}

	if run.CreatedAt, err = parseTimeField(fields, "created_at"); err != nil {
		return nil, err
	}
	if run.StartedAt, err = parseTimeField(fields, "started_at"); err != nil {
		return nil, err
	}
	if run.MatchedAt, err = parseTimeField(fields, "matched_at"); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = parseTimeField(fields, "finished_at"); err != nil {
		return nil, err
	}

	return run, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func intField(fields map[string]string, name string) (int, error) {
	v := fields[name]
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse run field %s=%q: %w", name, v, err)
	}
	return n, nil
}

func timeField(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeField(fields map[string]string, name string) (time.Time, error) {
	v := fields[name]
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse run field %s=%q: %w", name, v, err)
	}
	return t, nil
}
