package ask

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Searcher retrieves ranked chunks for a query.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]domain.Hit, error)
}

// Generator composes an answer from retrieved context.
type Generator interface {
	Generate(ctx context.Context, contextText, question string) (string, error)
}
