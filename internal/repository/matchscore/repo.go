package matchscore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jobpay/matchflow/internal/db"
	"github.com/jobpay/matchflow/internal/domain"
)

// store is the consumer interface for match scores (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Repo stores match score batches. A run's batch is one JSON value written
// with a single SET, so readers observe either the full result set or
// nothing, never a partial batch.
type Repo struct {
	store store
}

// New creates a match score repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// SaveBatch commits a run's complete result set and indexes each score
// under its candidate for reverse lookups. Scores must already carry
// their final rank order.
func (r *Repo) SaveBatch(ctx context.Context, runID string, scores []domain.MatchScore) error {
	data, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("marshal score batch: %w", err)
	}
	if err := r.store.Set(ctx, batchKey(runID), data); err != nil {
		return fmt.Errorf("set score batch %s: %w", runID, err)
	}

	if len(scores) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, 0, len(scores))
	for i := range scores {
		row, err := json.Marshal(&scores[i])
		if err != nil {
			return fmt.Errorf("marshal score row: %w", err)
		}
		items = append(items, db.HashSetItem{
			Key:    candidateIndexKey(scores[i].CandidateID),
			Fields: map[string]string{runID: string(row)},
		})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("index score batch %s: %w", runID, err)
	}
	return nil
}

// ByRun returns a run's scores in rank order. limit <= 0 returns the full
// batch. A missing batch maps to domain.ErrRunNotFound: callers check the
// run row first when they need to distinguish "no matches" from "no run".
func (r *Repo) ByRun(ctx context.Context, runID string, limit int) ([]domain.MatchScore, error) {
	raw, err := r.store.Get(ctx, batchKey(runID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("get score batch %s: %w", runID, err)
	}

	var scores []domain.MatchScore
	if err := json.Unmarshal(raw, &scores); err != nil {
		return nil, fmt.Errorf("unmarshal score batch %s: %w", runID, err)
	}
	if limit > 0 && len(scores) > limit {
		scores = scores[:limit]
	}
	return scores, nil
}

// ByCandidate returns every score recorded for a candidate across runs,
// newest computation first.
func (r *Repo) ByCandidate(ctx context.Context, candidateID string) ([]domain.MatchScore, error) {
	fields, err := r.store.HGetAll(ctx, candidateIndexKey(candidateID))
	if err != nil {
		return nil, fmt.Errorf("hgetall candidate matches %s: %w", candidateID, err)
	}

	scores := make([]domain.MatchScore, 0, len(fields))
	for runID, row := range fields {
		var s domain.MatchScore
		if err := json.Unmarshal([]byte(row), &s); err != nil {
			return nil, fmt.Errorf("unmarshal score for run %s: %w", runID, err)
		}
		scores = append(scores, s)
	}

	sort.Slice(scores, func(i, j int) bool {
		if !scores[i].ComputedAt.Equal(scores[j].ComputedAt) {
			return scores[i].ComputedAt.After(scores[j].ComputedAt)
		}
		return scores[i].RunID < scores[j].RunID
	})
	return scores, nil
}

func batchKey(runID string) string {
	return domain.KeyPrefix + "run:" + runID + ":scores"
}

func candidateIndexKey(candidateID string) string {
	return domain.KeyPrefix + "candidate_matches:" + candidateID
}
