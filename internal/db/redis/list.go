package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/jobpay/matchflow/internal/db"
)

// LPush prepends values to a list.
func (s *Store) LPush(ctx context.Context, key string, values ...string) error {
	cmd := s.b().Lpush().Key(key).Element(values...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpLPush, Err: err}
	}
	return nil
}

// BRPop blocks until an element is available or the timeout expires.
// Returns db.ErrKeyNotFound on timeout.
func (s *Store) BRPop(ctx context.Context, key string, timeout time.Duration) (string, error) {
	cmd := s.b().Brpop().Key(key).Timeout(timeout.Seconds()).Build()
	reply, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return "", db.ErrKeyNotFound
		}
		return "", &db.Error{Op: db.OpBRPop, Err: err}
	}
	// BRPOP replies [key, element].
	if len(reply) < 2 {
		return "", db.ErrKeyNotFound
	}
	return reply[1], nil
}

// LLen returns the length of a list.
func (s *Store) LLen(ctx context.Context, key string) (int64, error) {
	cmd := s.b().Llen().Key(key).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpLLen, Err: err}
	}
	return n, nil
}
