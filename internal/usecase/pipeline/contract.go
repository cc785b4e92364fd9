package pipeline

import (
	"context"
	"time"

	"github.com/jobpay/matchflow/internal/domain"
)

// RunRepo persists matching run rows and the per-job active-run slot.
type RunRepo interface {
	Create(ctx context.Context, run *domain.MatchingRun) error
	Get(ctx context.Context, id string) (*domain.MatchingRun, error)
	Update(ctx context.Context, run *domain.MatchingRun) error
	RequestCancel(ctx context.Context, id string) error
	ActiveRun(ctx context.Context, jobID string) (string, error)
	ReleaseActive(ctx context.Context, jobID, runID string) error
	ClaimFinish(ctx context.Context, id string) (bool, error)
}

// ProfileRepo reads jobs and the candidate pool.
type ProfileRepo interface {
	GetJob(ctx context.Context, id string) (*domain.JobPosting, error)
	GetCandidate(ctx context.Context, id string) (*domain.CandidateProfile, error)
	ListCandidates(ctx context.Context) ([]domain.CandidateProfile, error)
}

// ScoreRepo persists and reads match score batches.
type ScoreRepo interface {
	SaveBatch(ctx context.Context, runID string, scores []domain.MatchScore) error
	ByRun(ctx context.Context, runID string, limit int) ([]domain.MatchScore, error)
	ByCandidate(ctx context.Context, candidateID string) ([]domain.MatchScore, error)
}

// TaskRepo persists notification tasks keyed by their triple.
type TaskRepo interface {
	Create(ctx context.Context, t *domain.NotificationTask) (bool, error)
	Update(ctx context.Context, t *domain.NotificationTask) error
	Get(ctx context.Context, runID, candidateID string, ch domain.Channel) (*domain.NotificationTask, error)
	SaveRunIndex(ctx context.Context, runID string, tasks []domain.NotificationTask) error
	ListByRun(ctx context.Context, runID string) ([]domain.NotificationTask, error)
}

// WorkQueue feeds the match and notify workers and parks delayed retries.
type WorkQueue interface {
	EnqueueMatch(ctx context.Context, runID string) error
	DequeueMatch(ctx context.Context, timeout time.Duration) (string, bool, error)
	EnqueueNotify(ctx context.Context, triple string) error
	DequeueNotify(ctx context.Context, timeout time.Duration) (string, bool, error)
	ScheduleRetry(ctx context.Context, kind, body string, readyAt time.Time) error
	PromoteDue(ctx context.Context, now time.Time, limit int) (int, error)
}

// JobLock serializes matching-stage execution per job.
type JobLock interface {
	Acquire(ctx context.Context, jobID, runID string) (bool, error)
	Release(ctx context.Context, jobID, runID string) error
}

// Engine scores a candidate pool against a job.
type Engine interface {
	Match(ctx context.Context, job *domain.JobPosting, pool []domain.CandidateProfile, limit int) (
		[]domain.MatchScore, bool, error)
}

// Dispatcher performs one delivery attempt for a task.
type Dispatcher interface {
	Dispatch(ctx context.Context, task *domain.NotificationTask,
		candidate *domain.CandidateProfile, job *domain.JobPosting,
		score *domain.MatchScore) (domain.DeliveryOutcome, error)
}
