package matching

import (
	"context"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/jobpay/matchflow/internal/config"
	"github.com/jobpay/matchflow/internal/domain"
	"github.com/jobpay/matchflow/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterPipelineMetrics()
	os.Exit(m.Run())
}

// mockEmbedder serves fixed vectors keyed by input text.
type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)
	calls   int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0, 0}}, nil
}

func testConfig() config.MatchingConfig {
	cfg := config.Config{}
	cfg.ApplyDefaults()
	return cfg.Matching
}

func newTestEngine(t *testing.T, embed *mockEmbedder, cfg config.MatchingConfig) *Service {
	t.Helper()
	return New(embed, cfg, zap.NewNop())
}

func testJob() *domain.JobPosting {
	return &domain.JobPosting{
		ID:              "j1",
		Title:           "Backend Engineer",
		Company:         "Acme",
		RequiredSkills:  []string{"Python", "SQL"},
		PreferredSkills: []string{"Docker"},
		Location:        "Berlin",
		JobType:         domain.JobTypeFullTime,
	}
}

func candidate(id string, skills []string, location string, remoteOpen bool) domain.CandidateProfile {
	return domain.CandidateProfile{
		ID:         id,
		Name:       "Candidate " + id,
		Skills:     skills,
		Summary:    "engineer",
		Location:   location,
		RemoteOpen: remoteOpen,
	}
}
