package profiles

import (
	"context"

	"go.uber.org/zap"

	"github.com/jobpay/matchflow/internal/domain"
)

// Service is the ingestion surface for candidate profiles and job
// postings. Writes validate before they touch storage, so the matching
// pool only ever contains rows the engine can score.
type Service struct {
	store  store
	logger *zap.Logger
}

// New creates a profile service.
func New(s store, logger *zap.Logger) *Service {
	return &Service{store: s, logger: logger}
}

// UpsertCandidate validates and stores a profile. Returns true if created.
func (s *Service) UpsertCandidate(ctx context.Context, c *domain.CandidateProfile) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}
	created, err := s.store.UpsertCandidate(ctx, c)
	if err != nil {
		return false, err
	}
	s.logger.Info("Candidate profile upserted",
		zap.String("candidate_id", c.ID), zap.Bool("created", created))
	return created, nil
}

// GetCandidate returns a candidate profile.
func (s *Service) GetCandidate(ctx context.Context, id string) (*domain.CandidateProfile, error) {
	return s.store.GetCandidate(ctx, id)
}

// DeleteCandidate removes a candidate from the matching pool. Scores
// already recorded for the candidate stay, history is append-only.
func (s *Service) DeleteCandidate(ctx context.Context, id string) error {
	if err := s.store.DeleteCandidate(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Candidate profile deleted", zap.String("candidate_id", id))
	return nil
}

// UpsertJob validates and stores a posting. Returns true if created.
func (s *Service) UpsertJob(ctx context.Context, j *domain.JobPosting) (bool, error) {
	if err := j.Validate(); err != nil {
		return false, err
	}
	created, err := s.store.UpsertJob(ctx, j)
	if err != nil {
		return false, err
	}
	s.logger.Info("Job posting upserted",
		zap.String("job_id", j.ID), zap.Bool("created", created))
	return created, nil
}

// GetJob returns a job posting.
func (s *Service) GetJob(ctx context.Context, id string) (*domain.JobPosting, error) {
	return s.store.GetJob(ctx, id)
}
