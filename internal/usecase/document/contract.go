package document

import (
	"context"
	"io"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/repository/files"
	"github.com/kailas-cloud/ragdex/internal/usecase/vector"
)

// FileStore keeps uploaded originals.
type FileStore interface {
	Stage(name string, r io.Reader) (files.Staged, error)
	Commit(st files.Staged) error
	Rollback(st files.Staged) error
	Read(name string) ([]byte, error)
	Delete(name string) (bool, error)
	List() ([]files.Info, error)
}

// Engine indexes and removes document chunks.
type Engine interface {
	Ingest(ctx context.Context, doc domain.Document) (vector.IngestResult, error)
	Delete(ctx context.Context, name string) (bool, error)
	Documents() []vector.DocumentInfo
}
