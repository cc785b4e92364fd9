package joblock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jobpay/matchflow/internal/db"
	"github.com/jobpay/matchflow/internal/domain"
)

// store is the consumer interface for job locks (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetNXWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
}

// Lock guards matching-stage execution per job. The TTL bounds how long a
// crashed worker can block the job; a live worker finishes well within it.
type Lock struct {
	store store
	ttl   time.Duration
}

// New creates a job lock with the given holder TTL.
func New(s store, ttl time.Duration) *Lock {
	return &Lock{store: s, ttl: ttl}
}

// Acquire claims the lock for a run. Returns false when another holder
// owns it.
func (l *Lock) Acquire(ctx context.Context, jobID, runID string) (bool, error) {
	ok, err := l.store.SetNXWithTTL(ctx, lockKey(jobID), []byte(runID), l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire job lock %s: %w", jobID, err)
	}
	return ok, nil
}

// Release frees the lock when runID still holds it. Releasing a lock that
// expired or was taken over is a no-op.
func (l *Lock) Release(ctx context.Context, jobID, runID string) error {
	raw, err := l.store.Get(ctx, lockKey(jobID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("read job lock %s: %w", jobID, err)
	}
	if string(raw) != runID {
		return nil
	}
	if err := l.store.Del(ctx, lockKey(jobID)); err != nil {
		return fmt.Errorf("release job lock %s: %w", jobID, err)
	}
	return nil
}

func lockKey(jobID string) string {
	return domain.KeyPrefix + "job_lock:" + jobID
}
