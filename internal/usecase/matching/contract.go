package matching

import (
	"context"

	"github.com/jobpay/matchflow/internal/domain"
)

// Embedder vectorizes text for semantic scoring.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
