// Package embedding decorates embedding providers with sub-batching,
// bounded concurrency, logging and uniform error wrapping.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// DefaultMaxAPIBatchSize is the largest batch sent in one provider request.
const DefaultMaxAPIBatchSize = 256

// InstrumentedEmbedder wraps a provider. Transport metrics are recorded by
// the provider itself; this layer owns request shaping and logging.
type InstrumentedEmbedder struct {
	inner       domain.Embedder
	provider    string
	model       string
	batchSize   int
	concurrency int
	logger      *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder with observability.
func NewInstrumentedEmbedder(inner domain.Embedder, provider, model string, logger *zap.Logger) *InstrumentedEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedEmbedder{
		inner:       inner,
		provider:    provider,
		model:       model,
		batchSize:   DefaultMaxAPIBatchSize,
		concurrency: 1,
		logger:      logger,
	}
}

// WithBatching sets the per-request batch size and how many sub-batches may
// be in flight at once.
func (p *InstrumentedEmbedder) WithBatching(batchSize, concurrency int) *InstrumentedEmbedder {
	if batchSize > 0 {
		p.batchSize = batchSize
	}
	if concurrency > 0 {
		p.concurrency = concurrency
	}
	return p
}

// Embed delegates to the inner embedder.
func (p *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	result, err := p.inner.Embed(ctx, text)
	duration := time.Since(start)

	if err != nil {
		p.logger.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, wrapErr("embed", err)
	}

	p.logger.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("total_tokens", result.TotalTokens),
	)
	return result, nil
}

// BatchEmbed splits texts into sub-batches, embeds them with bounded
// concurrency and reassembles the vectors in input order.
func (p *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	type part struct {
		offset int
		res    domain.BatchEmbeddingResult
	}
	parts := make([]part, (len(texts)+p.batchSize-1)/p.batchSize)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i := range parts {
		offset := i * p.batchSize
		end := min(offset+p.batchSize, len(texts))
		g.Go(func() error {
			res, err := p.embedInner(gctx, texts[offset:end])
			if err != nil {
				p.logger.Error("Batch embedding request failed",
					zap.String("provider", p.provider),
					zap.String("model", p.model),
					zap.Int("chunk_offset", offset),
					zap.Int("chunk_size", end-offset),
					zap.Error(err),
				)
				return fmt.Errorf("sub-batch at %d: %w", offset, err)
			}
			if len(res.Embeddings) != end-offset {
				return fmt.Errorf("sub-batch at %d: got %d vectors for %d texts: %w",
					offset, len(res.Embeddings), end-offset, domain.ErrEmbedding)
			}
			parts[i] = part{offset: offset, res: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.BatchEmbeddingResult{}, wrapErr("batch embed", err)
	}

	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for _, pt := range parts {
		out.Embeddings = append(out.Embeddings, pt.res.Embeddings...)
		out.PromptTokens += pt.res.PromptTokens
		out.TotalTokens += pt.res.TotalTokens
	}

	p.logger.Debug("Batch embedding completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("requests", len(parts)),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}

// HealthCheck delegates when the provider supports it.
func (p *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return wrapErr("health check", err)
		}
	}
	return nil
}

func (p *InstrumentedEmbedder) embedInner(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := p.inner.(domain.BatchEmbedder); ok {
		res, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("inner batch embed: %w", err)
		}
		return res, nil
	}
	res, err := domain.BatchFallback(ctx, p.inner, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("inner batch fallback: %w", err)
	}
	return res, nil
}

// wrapErr guarantees provider failures carry ErrEmbedding while context
// errors pass through untouched.
func wrapErr(op string, err error) error {
	if errors.Is(err, domain.ErrEmbedding) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrEmbedding, err)
}
