// Package file persists index snapshots as generation directories:
//
//	<dir>/CURRENT                    name of the live generation
//	<dir>/gen-000042/vectors.parquet chunk records and vectors
//	<dir>/gen-000042/catalog.json    document -> chunk ids
//
// A commit writes a complete new generation and then atomically replaces
// CURRENT. That rename is the single commit point for both files.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/domain/catalog"
	"github.com/kailas-cloud/ragdex/internal/repository/snapshot"
)

const (
	currentFile  = "CURRENT"
	vectorsFile  = "vectors.parquet"
	catalogFile  = "catalog.json"
	genPrefix    = "gen-"
	corruptInfix = ".corrupt-"
)

type chunkRow struct {
	ID       string `parquet:"id"`
	Document string `parquet:"document"`
	Seq      int64  `parquet:"seq"`
	Text     string `parquet:"text"`
	Vector   []byte `parquet:"vector"`
}

// Repo implements usecase/vector.Repository on a local directory.
type Repo struct {
	dir    string
	logger *zap.Logger

	mu  sync.Mutex
	gen int

	syncDir func(dir string) error
}

// New creates a file snapshot repository rooted at dir.
func New(dir string, logger *zap.Logger) *Repo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{dir: dir, logger: logger, syncDir: syncDir}
}

// Dir returns the index directory.
func (r *Repo) Dir() string { return r.dir }

// Load reads the live generation. A directory without CURRENT gets an empty
// generation committed and returned.
func (r *Repo) Load(ctx context.Context) (domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o750); err != nil {
		return domain.Snapshot{}, fmt.Errorf("create index dir %s: %w: %w", r.dir, domain.ErrPersistence, err)
	}

	gen, err := r.readCurrent()
	if errors.Is(err, os.ErrNotExist) {
		empty := snapshot.Empty()
		if err := r.commitLocked(ctx, empty); err != nil {
			return domain.Snapshot{}, err
		}
		return empty, nil
	}
	if err != nil {
		return domain.Snapshot{}, err
	}

	s, err := r.readGeneration(gen)
	if err != nil {
		return domain.Snapshot{}, err
	}
	r.gen = gen
	return s, nil
}

// Commit writes next as a new generation and makes it current. The delta is
// not needed because every generation is complete.
func (r *Repo) Commit(ctx context.Context, next domain.Snapshot, _ domain.Delta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commitLocked(ctx, next)
}

// Quarantine moves every generation and CURRENT aside so the next Load
// starts empty. Nothing is deleted.
func (r *Repo) Quarantine(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	suffix := corruptInfix + strconv.FormatInt(time.Now().Unix(), 10)
	gens, err := r.generations()
	if err != nil {
		return persistErr("list generations", err)
	}
	for _, gen := range gens {
		src := r.genDir(gen)
		if err := os.Rename(src, src+suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("quarantine %s: %w: %w", src, domain.ErrPersistence, err)
		}
	}
	cur := filepath.Join(r.dir, currentFile)
	if err := os.Rename(cur, cur+suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("quarantine %s: %w: %w", cur, domain.ErrPersistence, err)
	}
	r.logger.Warn("index quarantined", zap.String("dir", r.dir), zap.Int("generations", len(gens)), zap.String("suffix", suffix))
	r.gen = 0
	return nil
}

func (r *Repo) commitLocked(ctx context.Context, next domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if r.gen == 0 {
		// Never reuse a generation number that may still be on disk.
		if gens, err := r.generations(); err == nil && len(gens) > 0 {
			r.gen = gens[len(gens)-1]
		}
	}
	gen := r.gen + 1
	dir := r.genDir(gen)
	if err := os.RemoveAll(dir); err != nil {
		return persistErr("clear "+dir, err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return persistErr("create "+dir, err)
	}
	if err := writeVectors(filepath.Join(dir, vectorsFile), next.Records); err != nil {
		return persistErr("write vectors", err)
	}
	if err := writeCatalog(filepath.Join(dir, catalogFile), next.Catalog); err != nil {
		return persistErr("write catalog", err)
	}
	if err := r.syncDir(dir); err != nil {
		_ = os.RemoveAll(dir)
		return persistErr("sync "+dir, err)
	}

	// Last chance to abandon: after the rename the generation is live.
	if err := ctx.Err(); err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("commit: %w", err)
	}
	if err := r.writeCurrent(gen); err != nil {
		_ = os.RemoveAll(dir)
		return persistErr("write "+currentFile, err)
	}

	// CURRENT already names gen, so the commit stands even if the rename
	// itself is not yet durable.
	if err := r.syncDir(r.dir); err != nil {
		r.logger.Warn("index dir sync failed after commit", zap.String("dir", r.dir), zap.Int("generation", gen), zap.Error(err))
	}

	r.gen = gen
	r.prune(gen)
	return nil
}

func (r *Repo) genDir(gen int) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s%06d", genPrefix, gen))
}

func (r *Repo) readCurrent() (int, error) {
	path := filepath.Join(r.dir, currentFile)
	raw, err := os.ReadFile(path) //nolint:gosec // path is built from the configured index dir
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, err //nolint:wrapcheck // sentinel checked by caller
		}
		return 0, persistErr("read "+path, err)
	}
	name := strings.TrimSpace(string(raw))
	n, err := strconv.Atoi(strings.TrimPrefix(name, genPrefix))
	if !strings.HasPrefix(name, genPrefix) || err != nil || n <= 0 {
		return 0, &domain.IndexCorruptionError{Path: path, Err: fmt.Errorf("bad generation name %q", name)}
	}
	return n, nil
}

// writeCurrent atomically points CURRENT at gen. It fails only before the
// rename; the caller syncs the directory afterwards.
func (r *Repo) writeCurrent(gen int) error {
	path := filepath.Join(r.dir, currentFile)
	tmp := path + ".tmp"
	content := fmt.Sprintf("%s%06d\n", genPrefix, gen)
	if err := writeFileSync(tmp, []byte(content)); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func (r *Repo) readGeneration(gen int) (domain.Snapshot, error) {
	dir := r.genDir(gen)

	catPath := filepath.Join(dir, catalogFile)
	raw, err := os.ReadFile(catPath) //nolint:gosec // path is built from the configured index dir
	if err != nil {
		return domain.Snapshot{}, &domain.IndexCorruptionError{Path: catPath, Err: err}
	}
	cat := catalog.New()
	if err := json.Unmarshal(raw, cat); err != nil {
		return domain.Snapshot{}, &domain.IndexCorruptionError{Path: catPath, Err: err}
	}

	vecPath := filepath.Join(dir, vectorsFile)
	records, err := readVectors(vecPath)
	if err != nil {
		return domain.Snapshot{}, &domain.IndexCorruptionError{Path: vecPath, Err: err}
	}

	s := domain.Snapshot{Records: records, Catalog: cat}
	if err := snapshot.Verify(dir, &s); err != nil {
		return domain.Snapshot{}, err
	}
	return s, nil
}

// generations lists the numbers of live-named generation directories in
// ascending order. Quarantined directories are skipped.
func (r *Repo) generations() ([]int, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var gens []int
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || !strings.HasPrefix(name, genPrefix) || strings.Contains(name, corruptInfix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(name, genPrefix))
		if err != nil || n <= 0 {
			continue
		}
		gens = append(gens, n)
	}
	sort.Ints(gens)
	return gens, nil
}

// prune removes generations other than keep. Failures only cost disk space.
func (r *Repo) prune(keep int) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		r.logger.Warn("list generations failed", zap.String("dir", r.dir), zap.Error(err))
		return
	}
	keepName := filepath.Base(r.genDir(keep))
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || !strings.HasPrefix(name, genPrefix) || strings.Contains(name, corruptInfix) || name == keepName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(r.dir, name)); err != nil {
			r.logger.Warn("prune generation failed", zap.String("generation", name), zap.Error(err))
		}
	}
}

func writeVectors(path string, records []domain.VectorRecord) error {
	// An empty generation has no vectors file.
	if len(records) == 0 {
		return nil
	}
	rows := make([]chunkRow, len(records))
	for i, rec := range records {
		rows[i] = chunkRow{
			ID:       rec.ID,
			Document: rec.Document,
			Seq:      int64(rec.Seq),
			Text:     rec.Text,
			Vector:   snapshot.EncodeVector(rec.Vector),
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640) //nolint:gosec // path inside index dir
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	w := parquet.NewGenericWriter[chunkRow](f)
	if _, err := w.Write(rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("write rows: %w", err)
	}
	if err := w.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("close writer: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

func readVectors(path string) ([]domain.VectorRecord, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	rows, err := parquet.ReadFile[chunkRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	records := make([]domain.VectorRecord, len(rows))
	for i, row := range rows {
		vec, err := snapshot.DecodeVector(row.Vector)
		if err != nil {
			return nil, fmt.Errorf("row %s: %w", row.ID, err)
		}
		records[i] = domain.VectorRecord{
			Chunk: domain.Chunk{
				ID:       row.ID,
				Document: row.Document,
				Seq:      int(row.Seq),
				Text:     row.Text,
			},
			Vector: vec,
		}
	}
	return records, nil
}

func writeCatalog(path string, cat *catalog.Catalog) error {
	if cat == nil {
		cat = catalog.New()
	}
	data, err := json.Marshal(cat)
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	return writeFileSync(path, data)
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640) //nolint:gosec // path inside index dir
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir) //nolint:gosec // index dir from config
	if err != nil {
		return fmt.Errorf("open dir: %w", err)
	}
	defer func() { _ = d.Close() }()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync dir: %w", err)
	}
	return nil
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
}
