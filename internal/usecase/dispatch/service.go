package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jobpay/matchflow/internal/domain"
	"github.com/jobpay/matchflow/internal/metrics"
)

// Service performs exactly one delivery attempt per invocation. Attempt
// budgeting and rescheduling belong to the orchestrator; this layer only
// renders, sends, and classifies.
type Service struct {
	providers map[domain.Channel]Provider
	logger    *zap.Logger
}

// New creates the dispatcher over the configured channel providers.
func New(providers map[domain.Channel]Provider, logger *zap.Logger) *Service {
	return &Service{providers: providers, logger: logger}
}

// Dispatch renders and sends the notification for one task.
// The returned error is nil only for Delivered; otherwise it carries the
// detail recorded as the task's last error.
func (s *Service) Dispatch(
	ctx context.Context,
	task *domain.NotificationTask,
	candidate *domain.CandidateProfile,
	job *domain.JobPosting,
	score *domain.MatchScore,
) (domain.DeliveryOutcome, error) {
	provider, ok := s.providers[task.Channel]
	if !ok {
		return s.finish(task, fmt.Errorf("channel %q not configured: %w", task.Channel, domain.ErrPermanentDelivery))
	}

	address := candidate.AddressFor(task.Channel)
	if address == "" {
		return s.finish(task, fmt.Errorf("candidate %s has no %s address: %w",
			candidate.ID, task.Channel, domain.ErrPermanentDelivery))
	}

	msg, err := Render(task.Channel, candidate, job, score)
	if err != nil {
		return s.finish(task, err)
	}

	if err := provider.Send(ctx, address, msg); err != nil {
		return s.finish(task, fmt.Errorf("send via %s: %w", task.Channel, err))
	}
	return s.finish(task, nil)
}

// finish classifies the attempt result and records the metric.
func (s *Service) finish(task *domain.NotificationTask, err error) (domain.DeliveryOutcome, error) {
	outcome := classify(err)
	metrics.DispatchAttemptsTotal.WithLabelValues(string(task.Channel), outcome.String()).Inc()

	if err != nil {
		s.logger.Warn("Dispatch attempt failed",
			zap.String("run_id", task.RunID),
			zap.String("candidate_id", task.CandidateID),
			zap.String("channel", string(task.Channel)),
			zap.String("outcome", outcome.String()),
			zap.Error(err))
	}
	return outcome, err
}

// classify maps an attempt error onto the three-way outcome. Unclassified
// errors count as retryable so a provider bug cannot silently drop sends.
func classify(err error) domain.DeliveryOutcome {
	switch {
	case err == nil:
		return domain.Delivered
	case errors.Is(err, domain.ErrPermanentDelivery):
		return domain.PermanentFailure
	default:
		return domain.RetryableFailure
	}
}
