package document

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/logger"
	"github.com/kailas-cloud/ragdex/internal/repository/files"
)

// UploadResult reports a processed upload.
type UploadResult struct {
	Name   string
	Chunks int
	IDs    []string
	// Overwrote is true when a file with the same name was already stored.
	Overwrote bool
}

// Entry is one listed document. A file may exist without being indexed
// (e.g. ingestion failed after an overwrite) and vice versa.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
	Chunks  int
	Stored  bool
	Indexed bool
}

// Service orchestrates the file store and the vector engine.
type Service struct {
	files  FileStore
	engine Engine
	now    func() time.Time
}

// New creates a document service.
func New(fs FileStore, engine Engine) *Service {
	return &Service{files: fs, engine: engine, now: time.Now}
}

// Upload stores the original and ingests it. When ingestion fails the
// stored file is rolled back: a previous version is restored, a new name
// is removed.
func (s *Service) Upload(ctx context.Context, name string, r io.Reader) (UploadResult, error) {
	clean, err := files.CleanName(name)
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload: %w", err)
	}
	log := logger.FromContext(ctx).With(zap.String("document", clean))

	st, err := s.files.Stage(clean, r)
	if err != nil {
		return UploadResult{}, fmt.Errorf("save %s: %w", clean, err)
	}
	content, err := s.files.Read(clean)
	if err != nil {
		s.rollback(log, st)
		return UploadResult{}, fmt.Errorf("read %s: %w", clean, err)
	}

	res, err := s.engine.Ingest(ctx, domain.Document{
		Name:       clean,
		Path:       st.Path,
		Content:    content,
		IngestedAt: s.now(),
	})
	if err != nil {
		s.rollback(log, st)
		return UploadResult{}, fmt.Errorf("ingest %s: %w", clean, err)
	}

	// The new file is already in place, so a leftover backup is only noise.
	if err := s.files.Commit(st); err != nil {
		log.Warn("Failed to remove backup of overwritten file", zap.Error(err))
	}
	return UploadResult{Name: clean, Chunks: res.Chunks, IDs: res.IDs, Overwrote: st.Existed}, nil
}

func (s *Service) rollback(log *zap.Logger, st files.Staged) {
	if err := s.files.Rollback(st); err != nil {
		log.Error("Failed to roll back stored file after failed ingest",
			zap.Bool("overwrite", st.Existed), zap.Error(err))
	}
}

// Delete removes a document's chunks and its stored file. It reports false
// when neither existed.
func (s *Service) Delete(ctx context.Context, name string) (bool, error) {
	clean, err := files.CleanName(name)
	if err != nil {
		return false, fmt.Errorf("delete: %w", err)
	}

	indexed, err := s.engine.Delete(ctx, clean)
	if err != nil {
		return false, fmt.Errorf("delete %s from index: %w", clean, err)
	}
	stored, err := s.files.Delete(clean)
	if err != nil {
		return indexed, fmt.Errorf("delete %s file: %w", clean, err)
	}
	return indexed || stored, nil
}

// List merges stored files with catalog entries, sorted by name.
func (s *Service) List(_ context.Context) ([]Entry, error) {
	stored, err := s.files.List()
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	out := make([]Entry, 0, len(stored))
	pos := make(map[string]int, len(stored))
	for _, f := range stored {
		pos[f.Name] = len(out)
		out = append(out, Entry{Name: f.Name, Size: f.Size, ModTime: f.ModTime, Stored: true})
	}
	for _, d := range s.engine.Documents() {
		if i, ok := pos[d.Name]; ok {
			out[i].Chunks = d.Chunks
			out[i].Indexed = true
			continue
		}
		out = append(out, Entry{Name: d.Name, Chunks: d.Chunks, Indexed: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
