package profiles

import (
	"context"

	"github.com/jobpay/matchflow/internal/domain"
)

// store is the consumer interface for profile persistence (ISP).
type store interface {
	UpsertCandidate(ctx context.Context, c *domain.CandidateProfile) (bool, error)
	GetCandidate(ctx context.Context, id string) (*domain.CandidateProfile, error)
	DeleteCandidate(ctx context.Context, id string) error
	UpsertJob(ctx context.Context, j *domain.JobPosting) (bool, error)
	GetJob(ctx context.Context, id string) (*domain.JobPosting, error)
}
