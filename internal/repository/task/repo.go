package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jobpay/matchflow/internal/db"
	"github.com/jobpay/matchflow/internal/domain"
)

// store is the consumer interface for notification tasks (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetNX(ctx context.Context, key string, value []byte) (bool, error)
}

// Repo stores notification tasks keyed by their (run, candidate, channel)
// triple, plus a per-run index of triple keys.
type Repo struct {
	store store
}

// New creates a task repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Create stores a task only if its triple does not exist yet. Returns true
// when created. A false return means fan-out already produced this task;
// the existing row, including its delivery progress, is left untouched.
func (r *Repo) Create(ctx context.Context, t *domain.NotificationTask) (bool, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return false, fmt.Errorf("marshal task: %w", err)
	}
	created, err := r.store.SetNX(ctx, taskKey(t.TripleKey()), data)
	if err != nil {
		return false, fmt.Errorf("setnx task %s: %w", t.TripleKey(), err)
	}
	return created, nil
}

// Update overwrites an existing task row.
func (r *Repo) Update(ctx context.Context, t *domain.NotificationTask) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := r.store.Set(ctx, taskKey(t.TripleKey()), data); err != nil {
		return fmt.Errorf("set task %s: %w", t.TripleKey(), err)
	}
	return nil
}

// Get returns a task by its triple.
func (r *Repo) Get(ctx context.Context, runID, candidateID string, ch domain.Channel) (*domain.NotificationTask, error) {
	triple := domain.TaskTripleKey(runID, candidateID, ch)
	raw, err := r.store.Get(ctx, taskKey(triple))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task %s: %w", triple, err)
	}

	var t domain.NotificationTask
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("unmarshal task %s: %w", triple, err)
	}
	return &t, nil
}

// SaveRunIndex records the full set of triple keys fanned out for a run.
// Re-fan-out after a crash rewrites the same set, so the write is idempotent.
func (r *Repo) SaveRunIndex(ctx context.Context, runID string, tasks []domain.NotificationTask) error {
	keys := make([]string, len(tasks))
	for i := range tasks {
		keys[i] = tasks[i].TripleKey()
	}
	data, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("marshal task index: %w", err)
	}
	if err := r.store.Set(ctx, indexKey(runID), data); err != nil {
		return fmt.Errorf("set task index %s: %w", runID, err)
	}
	return nil
}

// ListByRun returns every task fanned out for a run. A run without a task
// index (cancelled before fan-out, or no matches) yields an empty slice.
func (r *Repo) ListByRun(ctx context.Context, runID string) ([]domain.NotificationTask, error) {
	raw, err := r.store.Get(ctx, indexKey(runID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get task index %s: %w", runID, err)
	}

	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, fmt.Errorf("unmarshal task index %s: %w", runID, err)
	}

	tasks := make([]domain.NotificationTask, 0, len(keys))
	for _, triple := range keys {
		row, err := r.store.Get(ctx, taskKey(triple))
		if err != nil {
			if errors.Is(err, db.ErrKeyNotFound) {
				continue
			}
			return nil, fmt.Errorf("get task %s: %w", triple, err)
		}
		var t domain.NotificationTask
		if err := json.Unmarshal(row, &t); err != nil {
			return nil, fmt.Errorf("unmarshal task %s: %w", triple, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func taskKey(triple string) string {
	return domain.KeyPrefix + "task:" + triple
}

func indexKey(runID string) string {
	return domain.KeyPrefix + "run:" + runID + ":tasks"
}
