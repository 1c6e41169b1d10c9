package ragdex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/chunker"
	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/extract"
	"github.com/kailas-cloud/ragdex/internal/index"
	filerepo "github.com/kailas-cloud/ragdex/internal/repository/snapshot/file"
	sqliterepo "github.com/kailas-cloud/ragdex/internal/repository/snapshot/sqlite"
	askuc "github.com/kailas-cloud/ragdex/internal/usecase/ask"
	healthuc "github.com/kailas-cloud/ragdex/internal/usecase/health"
	"github.com/kailas-cloud/ragdex/internal/usecase/vector"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 30
)

// Internal interfaces for substitution in tests.
type engineUseCase interface {
	Ingest(ctx context.Context, doc domain.Document) (vector.IngestResult, error)
	Delete(ctx context.Context, name string) (bool, error)
	Stats() vector.Stats
	Documents() []vector.DocumentInfo
	Check(ctx context.Context) (vector.Report, error)
}

type askUseCase interface {
	Search(ctx context.Context, query string, k int) ([]domain.Hit, error)
	Ask(ctx context.Context, question string, k int) (askuc.Answer, error)
}

// Client is the ragdex SDK entry point. It is safe for concurrent use;
// writes are serialised internally.
type Client struct {
	engine    engineUseCase
	askSvc    askUseCase
	healthSvc healthUseCase
	closers   []func() error
	obs       *observer
}

// New opens (or creates) the index in the configured directory and loads it.
// The provided context bounds the initial load.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{driver: "file"}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.dir == "" {
		return nil, fmt.Errorf("ragdex: index directory required (use WithDir): %w", ErrInvalidConfig)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	c := &Client{obs: obs}
	if err := c.wire(ctx, cfg); err != nil {
		c.Close()
		return nil, err
	}
	c.obs.indexSize(c.Stats())
	return c, nil
}

func (c *Client) wire(ctx context.Context, cfg *clientConfig) error {
	splitter, err := newSplitter(cfg)
	if err != nil {
		return err
	}

	embedder := cfg.embedder
	if embedder == nil {
		h, err := NewHashEmbedder(cfg.dimensions)
		if err != nil {
			return err
		}
		embedder = h
	}

	var repo vector.Repository
	switch cfg.driver {
	case "sqlite":
		r, err := sqliterepo.New(cfg.dir)
		if err != nil {
			return fmt.Errorf("ragdex: open sqlite index: %w", err)
		}
		c.closers = append(c.closers, r.Close)
		repo = r
	case "file":
		repo = filerepo.New(cfg.dir, zap.NewNop())
	default:
		return fmt.Errorf("ragdex: unknown driver %q: %w", cfg.driver, ErrInvalidConfig)
	}

	mode := vector.ModeAppend
	if cfg.replace {
		mode = vector.ModeReplace
	}

	engine := vector.New(repo, extract.NewRegistry(nil), splitter, adaptEmbedder(embedder), indexConfig(cfg)).
		WithMode(mode).
		WithRecoverCorrupt(cfg.recoverCorrupt)
	if cfg.queryEmbedder != nil {
		engine = engine.WithQueryEmbedder(adaptEmbedder(cfg.queryEmbedder))
	}
	if err := engine.Load(ctx); err != nil {
		return fmt.Errorf("ragdex: load index: %w", err)
	}

	var generator Generator = noopGenerator{}
	if cfg.generator != nil {
		generator = cfg.generator
	}

	health := healthuc.New(engine)
	if hc, ok := embedder.(interface{ HealthCheck(context.Context) error }); ok {
		health = health.WithChecker("embedding", healthuc.CheckerFunc(hc.HealthCheck))
	}

	c.engine = engine
	c.askSvc = askuc.New(engine, generator).WithLimits(cfg.defaultK, cfg.maxK)
	c.healthSvc = health
	return nil
}

func newSplitter(cfg *clientConfig) (*chunker.Splitter, error) {
	size, overlap := cfg.chunkSize, cfg.chunkOverlap
	if size == 0 {
		size = defaultChunkSize
		if overlap == 0 {
			overlap = defaultChunkOverlap
		}
	}
	sep := "\n"
	if cfg.separator != nil {
		sep = *cfg.separator
	}
	s, err := chunker.New(size, overlap, sep)
	if err != nil {
		return nil, fmt.Errorf("ragdex: %w", err)
	}
	return s, nil
}

func indexConfig(cfg *clientConfig) index.Config {
	ic := index.Config{
		Kind:       index.KindFlat,
		Metric:     index.MetricCosine,
		Dimensions: cfg.dimensions,
	}
	if cfg.metric != "" {
		ic.Metric = index.Metric(cfg.metric)
	}
	if cfg.indexKind == "hnsw" {
		ic.Kind = index.KindHNSW
		ic.HNSW = index.HNSWConfig{M: cfg.hnswM, EfConstruction: cfg.hnswEFConstr, EfSearch: cfg.hnswEFSearch}
	}
	return ic
}

// Close releases storage handles. The committed index stays on disk.
func (c *Client) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
	c.closers = nil
}

// Ingest extracts, chunks and embeds content and commits it under name.
// The file extension of name selects the text extractor (.pdf, .docx,
// .html, .csv, .json; anything else is read as plain text).
func (c *Client) Ingest(ctx context.Context, name string, content []byte) (res IngestResult, err error) {
	start := time.Now()
	defer func() {
		c.obs.observe(ctx, "document.ingest", start, err,
			slog.String("document", name), slog.Int("chunks", res.Chunks))
	}()

	r, err := c.engine.Ingest(ctx, domain.Document{Name: name, Content: content})
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest %s: %w", name, err)
	}
	c.obs.indexSize(c.Stats())
	return IngestResult{Document: r.Document, Chunks: r.Chunks, IDs: r.IDs}, nil
}

// IngestReader reads r fully and ingests it.
func (c *Client) IngestReader(ctx context.Context, name string, r io.Reader) (IngestResult, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return IngestResult{}, fmt.Errorf("read %s: %w", name, err)
	}
	return c.Ingest(ctx, name, buf.Bytes())
}

// Delete removes every chunk of name. It reports false, without writing
// anything, when name is not indexed.
func (c *Client) Delete(ctx context.Context, name string) (found bool, err error) {
	start := time.Now()
	defer func() {
		c.obs.observe(ctx, "document.delete", start, err,
			slog.String("document", name), slog.Bool("found", found))
	}()

	found, err = c.engine.Delete(ctx, name)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", name, err)
	}
	if found {
		c.obs.indexSize(c.Stats())
	}
	return found, nil
}

// Search returns up to k passages, best first. k <= 0 uses the default.
func (c *Client) Search(ctx context.Context, query string, k int) (hits []Hit, err error) {
	start := time.Now()
	defer func() { c.obs.observe(ctx, "search", start, err, slog.Int("hits", len(hits))) }()

	found, err := c.askSvc.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return fromDomainHits(found), nil
}

// Ask retrieves passages for question and lets the generator answer from
// them. Requires WithGenerator.
func (c *Client) Ask(ctx context.Context, question string, k int) (ans Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe(ctx, "ask", start, err, slog.Int("sources", len(ans.Sources))) }()

	a, err := c.askSvc.Ask(ctx, question, k)
	if err != nil {
		return Answer{}, fmt.Errorf("ask: %w", err)
	}
	return Answer{Text: a.Text, Sources: fromDomainHits(a.Sources)}, nil
}

// Documents lists indexed documents sorted by name.
func (c *Client) Documents() []DocumentInfo {
	docs := c.engine.Documents()
	out := make([]DocumentInfo, len(docs))
	for i, d := range docs {
		out[i] = DocumentInfo{Name: d.Name, Chunks: d.Chunks}
	}
	return out
}

// Stats returns committed index counts.
func (c *Client) Stats() Stats {
	s := c.engine.Stats()
	return Stats{Documents: s.Documents, Records: s.Records, Dimensions: s.Dimensions}
}

// Check verifies that catalog and index agree and that the snapshot on disk
// matches. A violation returns the report together with an error matching
// ErrConsistencyViolation.
func (c *Client) Check(ctx context.Context) (rep ConsistencyReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe(ctx, "check", start, err) }()

	r, err := c.engine.Check(ctx)
	rep = ConsistencyReport{
		Consistent:       r.Consistent(),
		Documents:        r.Documents,
		Records:          r.Records,
		CatalogChunks:    r.CatalogChunks,
		MissingRecords:   r.MissingRecords,
		OrphanRecords:    r.OrphanRecords,
		Misowned:         r.Misowned,
		PersistedMatches: r.PersistedMatches,
		PersistedDetail:  r.PersistedDetail,
	}
	if err != nil {
		if errors.Is(err, ErrConsistencyViolation) {
			return rep, fmt.Errorf("check: %w", err)
		}
		return ConsistencyReport{}, fmt.Errorf("check: %w", err)
	}
	return rep, nil
}

func fromDomainHits(hits []domain.Hit) []Hit {
	out := make([]Hit, len(hits))
	for i, h := range hits {
		out[i] = Hit{ID: h.ChunkID, Document: h.Document, Seq: h.Seq, Text: h.Text, Score: h.Score}
	}
	return out
}
