// Package vector owns the vector index lifecycle: ingesting documents into
// chunk vectors, deleting them again, answering similarity queries and
// verifying that the catalog and index store agree.
package vector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/catalog"
	"github.com/kailas-cloud/ragdex/internal/index"
	"github.com/kailas-cloud/ragdex/internal/logger"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

// Mode controls what re-ingesting a known document does.
type Mode string

const (
	// ModeAppend adds the new chunks after the existing ones.
	ModeAppend Mode = "append"
	// ModeReplace drops the document's previous chunks first.
	ModeReplace Mode = "replace"
)

// ParseMode validates a re-ingest mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAppend, ModeReplace:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown reingest mode %q: %w", s, domain.ErrInvalidConfig)
	}
}

var errNotLoaded = errors.New("vector engine not loaded")

// IngestResult reports what an ingest added.
type IngestResult struct {
	Document string
	Chunks   int
	IDs      []string
}

// Stats summarises the live index.
type Stats struct {
	Documents  int
	Records    int
	Dimensions int
}

// DocumentInfo is one catalog entry.
type DocumentInfo struct {
	Name   string
	Chunks int
}

// state is one immutable generation of the live index. Writers build a new
// state and swap it in; readers never see a partially applied write.
type state struct {
	store   index.Store
	catalog *catalog.Catalog
}

// Engine is the guarded handle over one index path.
type Engine struct {
	repo          Repository
	extractor     Extractor
	splitter      Splitter
	embedder      domain.Embedder
	queryEmbedder domain.Embedder
	indexCfg      index.Config

	mode           Mode
	recoverCorrupt bool
	logger         *zap.Logger

	writers *semaphore.Weighted

	mu   sync.RWMutex
	live *state
}

// New creates an engine. Call Load before use.
func New(
	repo Repository,
	extractor Extractor,
	splitter Splitter,
	embedder domain.Embedder,
	indexCfg index.Config,
) *Engine {
	return &Engine{
		repo:          repo,
		extractor:     extractor,
		splitter:      splitter,
		embedder:      embedder,
		queryEmbedder: embedder,
		indexCfg:      indexCfg,
		mode:          ModeAppend,
		logger:        zap.NewNop(),
		writers:       semaphore.NewWeighted(1),
	}
}

// WithQueryEmbedder sets a separate embedder for queries, e.g. one with a
// query instruction prefix.
func (e *Engine) WithQueryEmbedder(q domain.Embedder) *Engine {
	if q != nil {
		e.queryEmbedder = q
	}
	return e
}

// WithMode sets the re-ingest mode.
func (e *Engine) WithMode(m Mode) *Engine {
	if m != "" {
		e.mode = m
	}
	return e
}

// WithRecoverCorrupt makes Load quarantine unreadable state and start empty
// instead of failing.
func (e *Engine) WithRecoverCorrupt(enabled bool) *Engine {
	e.recoverCorrupt = enabled
	return e
}

// WithLogger sets the engine logger.
func (e *Engine) WithLogger(l *zap.Logger) *Engine {
	if l != nil {
		e.logger = l
	}
	return e
}

// Load reads the persisted snapshot and makes it live.
func (e *Engine) Load(ctx context.Context) error {
	if err := e.writers.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire writer: %w", err)
	}
	defer e.writers.Release(1)

	snap, err := e.repo.Load(ctx)
	if err != nil && errors.Is(err, domain.ErrIndexCorruption) && e.recoverCorrupt {
		snap, err = e.recover(ctx, err)
	}
	if err != nil {
		return fmt.Errorf("load index: %w", err)
	}

	cfg := e.indexCfg
	cfg.Dimensions = snap.Dimensions
	store, err := index.New(cfg)
	if err != nil {
		return fmt.Errorf("create index store: %w", err)
	}
	if err := store.Rebuild(snap.Records); err != nil {
		return fmt.Errorf("rebuild index store: %w", err)
	}
	cat := snap.Catalog
	if cat == nil {
		cat = catalog.New()
	}

	e.swap(&state{store: store, catalog: cat})
	e.logger.Info("Index loaded",
		zap.Int("documents", cat.Len()),
		zap.Int("records", store.Len()),
		zap.Int("dimensions", store.Dimensions()),
	)
	return nil
}

func (e *Engine) recover(ctx context.Context, cause error) (domain.Snapshot, error) {
	q, ok := e.repo.(Quarantiner)
	if !ok {
		return domain.Snapshot{}, cause
	}
	e.logger.Error("Index unreadable, discarding persisted state and starting empty", zap.Error(cause))
	if err := q.Quarantine(ctx); err != nil {
		return domain.Snapshot{}, fmt.Errorf("quarantine: %w", err)
	}
	snap, err := e.repo.Load(ctx)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("reload after quarantine: %w", err)
	}
	return snap, nil
}

// Ingest extracts, chunks and embeds doc, then commits its chunk vectors and
// catalog entry in one checkpoint. On any error the live and persisted state
// are unchanged.
func (e *Engine) Ingest(ctx context.Context, doc domain.Document) (IngestResult, error) {
	log := logger.FromContextOr(ctx, e.logger)
	name := doc.Name
	if strings.TrimSpace(name) == "" {
		return IngestResult{}, fmt.Errorf("document name is empty: %w", domain.ErrInvalidRequest)
	}

	text, err := e.extractor.Extract(ctx, name, doc.Content)
	if err != nil {
		return IngestResult{}, fmt.Errorf("extract %s: %w", name, err)
	}
	pieces := e.splitter.Split(text)
	if len(pieces) == 0 {
		return IngestResult{}, fmt.Errorf("%s: %w", name, domain.ErrEmptyDocument)
	}

	// Embedding is the slow part and runs before the writer lock.
	emb, err := domain.EmbedAll(ctx, e.embedder, pieces)
	if err != nil {
		return IngestResult{}, fmt.Errorf("embed %s: %w", name, embeddingErr(err))
	}

	if err := e.writers.Acquire(ctx, 1); err != nil {
		return IngestResult{}, fmt.Errorf("acquire writer: %w", err)
	}
	defer e.writers.Release(1)

	cur, err := e.current()
	if err != nil {
		return IngestResult{}, err
	}

	delta := domain.Delta{Documents: []string{name}}
	next := &state{catalog: cur.catalog.Clone()}
	start := 0

	if old, ok := next.catalog.Lookup(name); ok {
		switch e.mode {
		case ModeReplace:
			next.catalog.Remove(name)
			next.store, err = e.rebuildWithout(cur.store, name)
			if err != nil {
				return IngestResult{}, err
			}
			delta.RemovedDocuments = []string{name}
		default:
			start = nextSeq(cur.store, old)
		}
	}
	if next.store == nil {
		next.store = cur.store.Clone()
	}

	records := make([]domain.VectorRecord, len(pieces))
	ids := make([]string, len(pieces))
	for i, piece := range pieces {
		seq := start + i
		ids[i] = domain.ChunkID(name, seq)
		records[i] = domain.VectorRecord{
			Chunk: domain.Chunk{
				ID:       ids[i],
				Document: name,
				Seq:      seq,
				Text:     piece,
			},
			Vector: emb.Embeddings[i],
		}
	}
	if err := next.store.Add(records); err != nil {
		return IngestResult{}, fmt.Errorf("index %s: %w", name, err)
	}
	next.catalog.Record(name, ids)
	delta.Added = records

	if err := e.commit(ctx, "ingest", next, delta); err != nil {
		return IngestResult{}, err
	}

	log.Info("Document ingested",
		zap.String("document", name),
		zap.Int("chunks", len(ids)),
		zap.Int("first_seq", start),
		zap.String("mode", string(e.mode)),
		zap.Int("tokens", emb.TotalTokens),
	)
	return IngestResult{Document: name, Chunks: len(ids), IDs: ids}, nil
}

// Delete removes every chunk of name and its catalog entry. Deleting an
// unknown document reports false and performs no write at all.
func (e *Engine) Delete(ctx context.Context, name string) (bool, error) {
	if err := e.writers.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("acquire writer: %w", err)
	}
	defer e.writers.Release(1)

	cur, err := e.current()
	if err != nil {
		return false, err
	}
	if !cur.catalog.Contains(name) {
		return false, nil
	}

	next := &state{catalog: cur.catalog.Clone()}
	removed, _ := next.catalog.Remove(name)
	next.store, err = e.rebuildWithout(cur.store, name)
	if err != nil {
		return false, err
	}

	if err := e.commit(ctx, "delete", next, domain.Delta{RemovedDocuments: []string{name}}); err != nil {
		return false, err
	}

	logger.FromContextOr(ctx, e.logger).Info("Document deleted",
		zap.String("document", name),
		zap.Int("chunks", len(removed)),
	)
	return true, nil
}

// Search embeds query and returns at most k hits from the last committed
// state, best first. An empty index yields no hits and no embedding call.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]domain.Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is empty: %w", domain.ErrInvalidRequest)
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrInvalidRequest)
	}

	cur, err := e.current()
	if err != nil {
		return nil, err
	}
	if cur.store.Len() == 0 {
		return []domain.Hit{}, nil
	}

	res, err := e.queryEmbedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", embeddingErr(err))
	}

	start := time.Now()
	e.mu.RLock()
	hits, err := e.live.store.Search(res.Embedding, k)
	e.mu.RUnlock()
	metrics.IndexSearchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return hits, nil
}

// Stats returns live index counts.
func (e *Engine) Stats() Stats {
	cur, err := e.current()
	if err != nil {
		return Stats{}
	}
	return Stats{
		Documents:  cur.catalog.Len(),
		Records:    cur.store.Len(),
		Dimensions: cur.store.Dimensions(),
	}
}

// Documents lists catalog entries sorted by name.
func (e *Engine) Documents() []DocumentInfo {
	cur, err := e.current()
	if err != nil {
		return nil
	}
	names := cur.catalog.Documents()
	out := make([]DocumentInfo, len(names))
	for i, n := range names {
		out[i] = DocumentInfo{Name: n, Chunks: cur.catalog.Count(n)}
	}
	return out
}

// Contains reports whether name has a catalog entry.
func (e *Engine) Contains(name string) bool {
	cur, err := e.current()
	if err != nil {
		return false
	}
	return cur.catalog.Contains(name)
}

// Ready reports whether Load has completed.
func (e *Engine) Ready() bool {
	_, err := e.current()
	return err == nil
}

func (e *Engine) current() (*state, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.live == nil {
		return nil, errNotLoaded
	}
	return e.live, nil
}

func (e *Engine) swap(next *state) {
	e.mu.Lock()
	e.live = next
	e.mu.Unlock()
	metrics.SetIndexSize(next.store.Len(), next.catalog.Len())
}

// commit persists next and makes it live. Must hold the writer semaphore.
func (e *Engine) commit(ctx context.Context, op string, next *state, delta domain.Delta) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	snap := domain.Snapshot{
		Dimensions: next.store.Dimensions(),
		Records:    next.store.Records(),
		Catalog:    next.catalog,
	}
	start := time.Now()
	err := e.repo.Commit(ctx, snap, delta)
	metrics.ObserveCommit(op, start, err)
	if err != nil {
		return fmt.Errorf("commit %s: %w", op, err)
	}
	e.swap(next)
	return nil
}

// rebuildWithout returns a fresh store holding every record of src except
// those of document. Stores have no point delete, so this is filter + rebuild.
func (e *Engine) rebuildWithout(src index.Store, document string) (index.Store, error) {
	all := src.Records()
	keep := make([]domain.VectorRecord, 0, len(all))
	for _, r := range all {
		if r.Document != document {
			keep = append(keep, r)
		}
	}
	cfg := e.indexCfg
	cfg.Dimensions = src.Dimensions()
	if len(keep) == 0 {
		// An emptied index accepts any dimension again, as after a reload.
		cfg.Dimensions = 0
	}
	store, err := index.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("create index store: %w", err)
	}
	if err := store.Rebuild(keep); err != nil {
		return nil, fmt.Errorf("rebuild index store: %w", err)
	}
	return store, nil
}

// nextSeq continues a document's sequence after its highest existing chunk.
func nextSeq(store index.Store, ids []string) int {
	next := len(ids)
	for _, id := range ids {
		if r, ok := store.Get(id); ok && r.Seq >= next {
			next = r.Seq + 1
		}
	}
	return next
}

// embeddingErr tags provider failures with ErrEmbedding, leaving context
// errors untouched.
func embeddingErr(err error) error {
	if errors.Is(err, domain.ErrEmbedding) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
}
