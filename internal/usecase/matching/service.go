package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/jobpay/matchflow/internal/config"
	"github.com/jobpay/matchflow/internal/domain"
	"github.com/jobpay/matchflow/internal/metrics"
)

// Service is the matching engine: it scores and ranks a candidate pool
// against one job posting. Pure computation over its inputs; the only
// collaborator is the embedder, and persistence belongs to the caller.
type Service struct {
	embed  Embedder
	cfg    config.MatchingConfig
	logger *zap.Logger
	now    func() time.Time
}

// New creates the matching engine.
func New(embed Embedder, cfg config.MatchingConfig, logger *zap.Logger) *Service {
	return &Service{
		embed:  embed,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Match scores the pool against the job and returns ranked MatchScore rows.
// RunID on the returned rows is left empty; the orchestrator stamps it.
//
// Hard-filtered candidates (no required-skill overlap, or location mismatch
// without a remote fallback) never appear in the output. Candidates whose
// embedding the provider cannot serve degrade to skill-only scoring unless
// matching.fail_hard is set; degraded reports whether any did.
func (s *Service) Match(
	ctx context.Context, job *domain.JobPosting, pool []domain.CandidateProfile, limit int,
) ([]domain.MatchScore, bool, error) {
	if err := job.Validate(); err != nil {
		return nil, false, err
	}
	if limit <= 0 {
		limit = s.cfg.Limit
	}

	jobVec, jobDegraded, err := s.embedText(ctx, job.EmbeddingText())
	if err != nil {
		return nil, false, fmt.Errorf("embed job %s: %w", job.ID, err)
	}
	if jobDegraded {
		s.logger.Warn("Job embedding unavailable, scoring skill-only",
			zap.String("job_id", job.ID))
	}

	computedAt := s.now().UTC()
	anyDegraded := jobDegraded
	scores := make([]domain.MatchScore, 0, len(pool))

	for i := range pool {
		candidate := &pool[i]
		if err := candidate.Validate(); err != nil {
			s.logger.Warn("Skipping invalid candidate",
				zap.String("candidate_id", candidate.ID), zap.Error(err))
			continue
		}

		ov := compareSkills(job, candidate)
		locationFit := sameLocation(job.Location, candidate.Location)
		remoteFallback := job.RemoteAllowed && candidate.RemoteOpen

		// Hard filter.
		if ov.RequiredRatio == 0 {
			continue
		}
		if !locationFit && !remoteFallback {
			continue
		}

		score := domain.MatchScore{
			JobID:          job.ID,
			CandidateID:    candidate.ID,
			SkillScore:     skillScore(ov, s.cfg.Weights.Required, s.cfg.Weights.Preferred),
			LocationFit:    locationFit,
			MatchingSkills: ov.Matching,
			MissingSkills:  ov.Missing,
			ComputedAt:     computedAt,
		}

		degraded := jobDegraded
		if !degraded {
			candVec, candDegraded, err := s.embedText(ctx, candidate.EmbeddingText())
			if err != nil {
				return nil, false, fmt.Errorf("embed candidate %s: %w", candidate.ID, err)
			}
			if candDegraded {
				s.logger.Warn("Candidate embedding unavailable, scoring skill-only",
					zap.String("candidate_id", candidate.ID))
				degraded = true
			} else {
				score.SemanticScore = semanticScore(jobVec, candVec)
			}
		}

		score.Degraded = degraded
		anyDegraded = anyDegraded || degraded
		score.Composite = s.composite(score)

		if s.cfg.MinScore > 0 && score.Composite < s.cfg.MinScore {
			continue
		}
		scores = append(scores, score)
	}

	rank(scores)
	if len(scores) > limit {
		scores = scores[:limit]
	}

	metrics.CandidatesScoredTotal.Add(float64(len(scores)))
	return scores, anyDegraded, nil
}

// embedText vectorizes text, reporting degraded=true when the provider is
// unavailable and the engine is allowed to fall back to skill-only scoring.
func (s *Service) embedText(ctx context.Context, text string) ([]float32, bool, error) {
	result, err := s.embed.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, domain.ErrProviderUnavailable) && !s.cfg.FailHard {
			return nil, true, nil
		}
		return nil, false, err
	}
	return result.Embedding, false, nil
}

// composite folds the sub-scores into the final score. In degraded scoring
// the skill score takes the full scoring weight. The location bonus is
// additive and the result stays within [0,1].
func (s *Service) composite(score domain.MatchScore) float64 {
	w := s.cfg.Weights
	var c float64
	if score.Degraded {
		c = score.SkillScore
	} else {
		total := w.Skill + w.Semantic
		c = (w.Skill*score.SkillScore + w.Semantic*score.SemanticScore) / total
	}
	if score.LocationFit {
		c += s.cfg.LocationBonus
	}
	if c > 1 {
		c = 1
	}
	return c
}

// rank orders scores by composite descending, ties by candidate ID
// ascending, and assigns each row its position 0..k-1 in that total
// order. Equal composites get distinct ranks through the ID tiebreak.
func rank(scores []domain.MatchScore) {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Composite != scores[j].Composite {
			return scores[i].Composite > scores[j].Composite
		}
		return scores[i].CandidateID < scores[j].CandidateID
	})

	for i := range scores {
		scores[i].Rank = i
	}
}
