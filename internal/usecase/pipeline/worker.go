package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	dequeueTimeout = 2 * time.Second
	moverInterval  = time.Second
	moverBatch     = 100
	requeueDelay   = 5 * time.Second
)

// RunWorkers runs the worker pools until ctx is cancelled: one matching
// loop, notify.fanout_limit notify loops, and the delayed-queue mover.
// Processing errors are logged and the loops keep going; only ctx
// cancellation stops them.
func (s *Service) RunWorkers(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.matchLoop(ctx) })

	fanout := s.notify.FanoutLimit
	if fanout <= 0 {
		fanout = 1
	}
	for i := 0; i < fanout; i++ {
		g.Go(func() error { return s.notifyLoop(ctx) })
	}

	g.Go(func() error { return s.moverLoop(ctx) })

	return g.Wait()
}

func (s *Service) matchLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		runID, ok, err := s.queue.DequeueMatch(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("Match dequeue failed", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		s.handleMatchItem(ctx, runID)
	}
}

// handleMatchItem processes one dequeued run ID. The blocking pop is
// destructive, so a processing failure parks the item on the delayed
// queue instead of dropping it.
func (s *Service) handleMatchItem(ctx context.Context, runID string) {
	if err := s.ProcessMatch(ctx, runID); err != nil {
		s.logger.Error("Match processing failed",
			zap.String("run_id", runID), zap.Error(err))
		retryCtx := context.WithoutCancel(ctx)
		if err := s.queue.ScheduleRetry(retryCtx, KindMatch, runID, s.now().Add(requeueDelay)); err != nil {
			s.logger.Error("Failed to requeue match item",
				zap.String("run_id", runID), zap.Error(err))
		}
	}
}

func (s *Service) notifyLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		triple, ok, err := s.queue.DequeueNotify(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("Notify dequeue failed", zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		s.handleNotifyItem(ctx, triple)
	}
}

// handleNotifyItem processes one dequeued task triple, parking it on
// the delayed queue when processing fails.
func (s *Service) handleNotifyItem(ctx context.Context, triple string) {
	if err := s.ProcessNotify(ctx, triple); err != nil {
		s.logger.Error("Notify processing failed",
			zap.String("triple", triple), zap.Error(err))
		retryCtx := context.WithoutCancel(ctx)
		if err := s.queue.ScheduleRetry(retryCtx, KindNotify, triple, s.now().Add(requeueDelay)); err != nil {
			s.logger.Error("Failed to requeue notify item",
				zap.String("triple", triple), zap.Error(err))
		}
	}
}

// moverLoop promotes due delayed items onto the ready queues.
func (s *Service) moverLoop(ctx context.Context) error {
	ticker := time.NewTicker(moverInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.queue.PromoteDue(ctx, s.now(), moverBatch); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("Delayed queue promotion failed", zap.Error(err))
			}
		}
	}
}
