package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jobpay/matchflow/internal/db"
	"github.com/jobpay/matchflow/internal/domain"
)

// store is the consumer interface for profiles (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo stores candidate profiles and job postings as JSON values.
type Repo struct {
	store store
}

// New creates a profile repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// UpsertCandidate creates or replaces a candidate profile. Returns true if created.
func (r *Repo) UpsertCandidate(ctx context.Context, c *domain.CandidateProfile) (bool, error) {
	key := candidateKey(c.ID)
	data, err := json.Marshal(c)
	if err != nil {
		return false, fmt.Errorf("marshal candidate: %w", err)
	}

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check exists %s: %w", key, err)
	}

	if err := r.store.Set(ctx, key, data); err != nil {
		return false, fmt.Errorf("set %s: %w", key, err)
	}
	return !exists, nil
}

// GetCandidate returns a candidate profile by ID.
func (r *Repo) GetCandidate(ctx context.Context, id string) (*domain.CandidateProfile, error) {
	raw, err := r.store.Get(ctx, candidateKey(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.ErrCandidateNotFound
		}
		return nil, fmt.Errorf("get candidate %s: %w", id, err)
	}

	var c domain.CandidateProfile
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("unmarshal candidate %s: %w", id, err)
	}
	return &c, nil
}

// ListCandidates returns every stored candidate profile, sorted by ID so a
// matching run scores the pool in a stable order.
func (r *Repo) ListCandidates(ctx context.Context) ([]domain.CandidateProfile, error) {
	keys, err := r.store.Scan(ctx, candidateKey("*"))
	if err != nil {
		return nil, fmt.Errorf("scan candidates: %w", err)
	}
	sort.Strings(keys)

	candidates := make([]domain.CandidateProfile, 0, len(keys))
	for _, key := range keys {
		raw, err := r.store.Get(ctx, key)
		if err != nil {
			// Deleted between SCAN and GET.
			if errors.Is(err, db.ErrKeyNotFound) {
				continue
			}
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
		var c domain.CandidateProfile
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", key, err)
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// DeleteCandidate removes a candidate profile.
func (r *Repo) DeleteCandidate(ctx context.Context, id string) error {
	key := candidateKey(id)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return domain.ErrCandidateNotFound
	}
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// UpsertJob creates or replaces a job posting. Returns true if created.
func (r *Repo) UpsertJob(ctx context.Context, j *domain.JobPosting) (bool, error) {
	key := jobKey(j.ID)
	data, err := json.Marshal(j)
	if err != nil {
		return false, fmt.Errorf("marshal job: %w", err)
	}

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check exists %s: %w", key, err)
	}

	if err := r.store.Set(ctx, key, data); err != nil {
		return false, fmt.Errorf("set %s: %w", key, err)
	}
	return !exists, nil
}

// GetJob returns a job posting by ID.
func (r *Repo) GetJob(ctx context.Context, id string) (*domain.JobPosting, error) {
	raw, err := r.store.Get(ctx, jobKey(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	var j domain.JobPosting
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &j, nil
}

func candidateKey(id string) string {
	return domain.KeyPrefix + "candidate:" + id
}

func jobKey(id string) string {
	return domain.KeyPrefix + "job:" + id
}

// CandidateIDFromKey extracts the candidate ID from a storage key.
func CandidateIDFromKey(key string) string {
	return strings.TrimPrefix(key, domain.KeyPrefix+"candidate:")
}
