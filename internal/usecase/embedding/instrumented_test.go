package embedding

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// --- Mocks ---

type mockEmbedder struct {
	mu         sync.Mutex
	err        error
	batchErr   error
	batchCalls int
	maxBatch   int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text))}, TotalTokens: 1}, nil
}

// BatchEmbed encodes each text length into its vector so order is checkable.
func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.mu.Lock()
	m.batchCalls++
	m.maxBatch = max(m.maxBatch, len(texts))
	m.mu.Unlock()
	if m.batchErr != nil {
		return domain.BatchEmbeddingResult{}, m.batchErr
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		out.Embeddings[i] = []float32{float32(len(t))}
		out.TotalTokens++
	}
	return out, nil
}

type singleOnly struct{ inner *mockEmbedder }

func (s singleOnly) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return s.inner.Embed(ctx, text)
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string(make([]byte, i+1))
	}
	return out
}

func TestInstrumentedEmbedder_Embed(t *testing.T) {
	p := NewInstrumentedEmbedder(&mockEmbedder{}, "test", "m", zap.NewNop())
	result, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Embedding[0] != 5 {
		t.Errorf("unexpected vector %v", result.Embedding)
	}
}

func TestInstrumentedEmbedder_EmbedWrapsProviderError(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("connection refused")}
	p := NewInstrumentedEmbedder(inner, "test", "m", zap.NewNop())

	_, err := p.Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
}

func TestInstrumentedEmbedder_ContextErrorNotWrapped(t *testing.T) {
	inner := &mockEmbedder{err: context.DeadlineExceeded}
	p := NewInstrumentedEmbedder(inner, "test", "m", zap.NewNop())

	_, err := p.Embed(context.Background(), "hello")
	if !errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected bare deadline error, got %v", err)
	}
}

func TestInstrumentedEmbedder_BatchSplitsAndKeepsOrder(t *testing.T) {
	inner := &mockEmbedder{}
	p := NewInstrumentedEmbedder(inner, "test", "m", zap.NewNop()).WithBatching(3, 4)

	in := texts(10)
	res, err := p.BatchEmbed(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.batchCalls != 4 {
		t.Errorf("expected 4 sub-batches, got %d", inner.batchCalls)
	}
	if inner.maxBatch > 3 {
		t.Errorf("sub-batch exceeded limit: %d", inner.maxBatch)
	}
	if len(res.Embeddings) != 10 {
		t.Fatalf("expected 10 vectors, got %d", len(res.Embeddings))
	}
	for i, v := range res.Embeddings {
		if v[0] != float32(i+1) {
			t.Errorf("vector %d out of order: %v", i, v)
		}
	}
	if res.TotalTokens != 10 {
		t.Errorf("expected 10 tokens, got %d", res.TotalTokens)
	}
}

func TestInstrumentedEmbedder_BatchFallbackForSingleProviders(t *testing.T) {
	p := NewInstrumentedEmbedder(singleOnly{&mockEmbedder{}}, "test", "m", zap.NewNop()).WithBatching(2, 1)

	res, err := p.BatchEmbed(context.Background(), texts(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 3 || res.Embeddings[2][0] != 3 {
		t.Errorf("unexpected result %v", res.Embeddings)
	}
}

func TestInstrumentedEmbedder_BatchError(t *testing.T) {
	inner := &mockEmbedder{batchErr: errors.New("503")}
	p := NewInstrumentedEmbedder(inner, "test", "m", zap.NewNop())

	_, err := p.BatchEmbed(context.Background(), texts(2))
	if !errors.Is(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
}

func TestInstrumentedEmbedder_BatchEmpty(t *testing.T) {
	inner := &mockEmbedder{}
	p := NewInstrumentedEmbedder(inner, "test", "m", zap.NewNop())

	res, err := p.BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 0 || inner.batchCalls != 0 {
		t.Errorf("expected no calls for empty input")
	}
}
