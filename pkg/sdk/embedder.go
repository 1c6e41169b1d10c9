package ragdex

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/hashembed"
)

// Embedder converts text to vector embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single call.
// Optional: if the provided Embedder also implements BatchEmbedder,
// ingestion uses it for all chunks of a document at once.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// Generator answers a question from retrieved context passages joined by
// blank lines.
type Generator interface {
	Generate(ctx context.Context, contextText, question string) (string, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries multiple embedding vectors and aggregate token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// HashEmbedder is a deterministic local embedder based on feature hashing.
// It needs no network and suits tests and offline use.
type HashEmbedder struct {
	inner *hashembed.Embedder
}

// NewHashEmbedder creates a hashing embedder. Zero dims selects 256.
func NewHashEmbedder(dims int) (*HashEmbedder, error) {
	h, err := hashembed.New(dims)
	if err != nil {
		return nil, fmt.Errorf("ragdex: %w", err)
	}
	return &HashEmbedder{inner: h}, nil
}

// Embed implements Embedder.
func (h *HashEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	r, err := h.inner.Embed(ctx, text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("hash embed: %w", err)
	}
	return EmbeddingResult{Embedding: r.Embedding, PromptTokens: r.PromptTokens, TotalTokens: r.TotalTokens}, nil
}

// BatchEmbed implements BatchEmbedder.
func (h *HashEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	r, err := h.inner.BatchEmbed(ctx, texts)
	if err != nil {
		return BatchEmbeddingResult{}, fmt.Errorf("hash batch embed: %w", err)
	}
	return BatchEmbeddingResult{Embeddings: r.Embeddings, PromptTokens: r.PromptTokens, TotalTokens: r.TotalTokens}, nil
}

// Dimensions returns the vector length.
func (h *HashEmbedder) Dimensions() int { return h.inner.Dimensions() }

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// batchEmbedderAdapter additionally forwards BatchEmbed.
type batchEmbedderAdapter struct {
	embedderAdapter
	batch BatchEmbedder
}

func (a *batchEmbedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	r, err := a.batch.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// adaptEmbedder keeps the batch capability of e visible to the engine.
func adaptEmbedder(e Embedder) domain.Embedder {
	if b, ok := e.(BatchEmbedder); ok {
		return &batchEmbedderAdapter{embedderAdapter: embedderAdapter{inner: e}, batch: b}
	}
	return &embedderAdapter{inner: e}
}

// noopGenerator fails every call (used when no generator configured).
type noopGenerator struct{}

func (noopGenerator) Generate(context.Context, string, string) (string, error) {
	return "", ErrGeneratorNotConfigured
}
