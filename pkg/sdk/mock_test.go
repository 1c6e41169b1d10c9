package ragdex

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
	askuc "github.com/kailas-cloud/ragdex/internal/usecase/ask"
	"github.com/kailas-cloud/ragdex/internal/usecase/vector"
)

// --- engineUseCase mock ---

type mockEngine struct {
	ingestFn func(ctx context.Context, doc domain.Document) (vector.IngestResult, error)
	deleteFn func(ctx context.Context, name string) (bool, error)
	checkFn  func(ctx context.Context) (vector.Report, error)
	stats    vector.Stats
	docs     []vector.DocumentInfo
}

func (m *mockEngine) Ingest(ctx context.Context, doc domain.Document) (vector.IngestResult, error) {
	return m.ingestFn(ctx, doc)
}

func (m *mockEngine) Delete(ctx context.Context, name string) (bool, error) {
	return m.deleteFn(ctx, name)
}

func (m *mockEngine) Stats() vector.Stats { return m.stats }

func (m *mockEngine) Documents() []vector.DocumentInfo { return m.docs }

func (m *mockEngine) Check(ctx context.Context) (vector.Report, error) {
	return m.checkFn(ctx)
}

// --- askUseCase mock ---

type mockAsk struct {
	searchFn func(ctx context.Context, query string, k int) ([]domain.Hit, error)
	askFn    func(ctx context.Context, question string, k int) (askuc.Answer, error)
}

func (m *mockAsk) Search(ctx context.Context, query string, k int) ([]domain.Hit, error) {
	return m.searchFn(ctx, query, k)
}

func (m *mockAsk) Ask(ctx context.Context, question string, k int) (askuc.Answer, error) {
	return m.askFn(ctx, question, k)
}

// --- embedder / generator mocks ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

type mockGenerator struct {
	answer      string
	err         error
	lastContext string
}

func (m *mockGenerator) Generate(_ context.Context, contextText, _ string) (string, error) {
	m.lastContext = contextText
	return m.answer, m.err
}

// --- helpers ---

func testClient(engine engineUseCase, ask askUseCase) *Client {
	return &Client{engine: engine, askSvc: ask}
}
