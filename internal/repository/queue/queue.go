package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jobpay/matchflow/internal/db"
	"github.com/jobpay/matchflow/internal/domain"
)

// Item kinds routed through the delayed queue.
const (
	KindMatch  = "match"
	KindNotify = "notify"
)

func matchQueueKey() string   { return domain.KeyPrefix + "queue:match" }
func notifyQueueKey() string  { return domain.KeyPrefix + "queue:notify" }
func delayedQueueKey() string { return domain.KeyPrefix + "queue:delayed" }

// store is the consumer interface for queues (ISP).
type store interface {
	LPush(ctx context.Context, key string, values ...string) error
	BRPop(ctx context.Context, key string, timeout time.Duration) (string, error)
	LLen(ctx context.Context, key string) (int64, error)
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRangeByScore(ctx context.Context, key string, min, max float64, limit int) ([]string, error)
	ZRem(ctx context.Context, key string, members ...string) error
}

// envelope wraps a delayed item so one sorted set serves both queues.
type envelope struct {
	Kind string `json:"kind"`
	Body string `json:"body"`
}

// Queue provides the two ready queues (match run IDs, notify task triples)
// and the shared delayed queue for backoff scheduling.
type Queue struct {
	store store
}

// New creates the queue repository.
func New(s store) *Queue {
	return &Queue{store: s}
}

// EnqueueMatch puts a run ID on the ready match queue.
func (q *Queue) EnqueueMatch(ctx context.Context, runID string) error {
	if err := q.store.LPush(ctx, matchQueueKey(), runID); err != nil {
		return fmt.Errorf("enqueue match %s: %w", runID, err)
	}
	return nil
}

// DequeueMatch blocks up to timeout for the next run ID.
// ok is false when the queue stayed empty.
func (q *Queue) DequeueMatch(ctx context.Context, timeout time.Duration) (runID string, ok bool, err error) {
	return q.dequeue(ctx, matchQueueKey(), timeout)
}

// EnqueueNotify puts a task triple key on the ready notify queue.
func (q *Queue) EnqueueNotify(ctx context.Context, triple string) error {
	if err := q.store.LPush(ctx, notifyQueueKey(), triple); err != nil {
		return fmt.Errorf("enqueue notify %s: %w", triple, err)
	}
	return nil
}

// DequeueNotify blocks up to timeout for the next task triple key.
// ok is false when the queue stayed empty.
func (q *Queue) DequeueNotify(ctx context.Context, timeout time.Duration) (triple string, ok bool, err error) {
	return q.dequeue(ctx, notifyQueueKey(), timeout)
}

func (q *Queue) dequeue(ctx context.Context, key string, timeout time.Duration) (string, bool, error) {
	value, err := q.store.BRPop(ctx, key, timeout)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("dequeue %s: %w", key, err)
	}
	return value, true, nil
}

// ScheduleRetry parks an item on the delayed queue until readyAt.
// kind is KindMatch (body = run ID) or KindNotify (body = task triple).
func (q *Queue) ScheduleRetry(ctx context.Context, kind, body string, readyAt time.Time) error {
	data, err := json.Marshal(envelope{Kind: kind, Body: body})
	if err != nil {
		return fmt.Errorf("marshal delayed item: %w", err)
	}
	score := float64(readyAt.UnixMilli())
	if err := q.store.ZAdd(ctx, delayedQueueKey(), score, string(data)); err != nil {
		return fmt.Errorf("schedule %s %s: %w", kind, body, err)
	}
	return nil
}

// PromoteDue moves items whose readyAt has passed onto their ready queue.
// Returns the number promoted. ZREM before LPUSH keeps a crashed promoter
// from duplicating items; a lost item resurfaces via the next retry cycle.
func (q *Queue) PromoteDue(ctx context.Context, now time.Time, limit int) (int, error) {
	members, err := q.store.ZRangeByScore(ctx, delayedQueueKey(), 0, float64(now.UnixMilli()), limit)
	if err != nil {
		return 0, fmt.Errorf("range delayed queue: %w", err)
	}

	promoted := 0
	for _, member := range members {
		var env envelope
		if err := json.Unmarshal([]byte(member), &env); err != nil {
			// Unparseable entries are dropped so they cannot wedge the queue.
			if err := q.store.ZRem(ctx, delayedQueueKey(), member); err != nil {
				return promoted, fmt.Errorf("drop malformed delayed item: %w", err)
			}
			continue
		}

		if err := q.store.ZRem(ctx, delayedQueueKey(), member); err != nil {
			return promoted, fmt.Errorf("remove delayed item: %w", err)
		}

		target := matchQueueKey()
		if env.Kind == KindNotify {
			target = notifyQueueKey()
		}
		if err := q.store.LPush(ctx, target, env.Body); err != nil {
			return promoted, fmt.Errorf("promote %s %s: %w", env.Kind, env.Body, err)
		}
		promoted++
	}
	return promoted, nil
}

// Depths reports the current ready queue lengths, for health reporting.
func (q *Queue) Depths(ctx context.Context) (match, notify int64, err error) {
	match, err = q.store.LLen(ctx, matchQueueKey())
	if err != nil {
		return 0, 0, fmt.Errorf("llen match queue: %w", err)
	}
	notify, err = q.store.LLen(ctx, notifyQueueKey())
	if err != nil {
		return 0, 0, fmt.Errorf("llen notify queue: %w", err)
	}
	return match, notify, nil
}
