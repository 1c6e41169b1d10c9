package vector

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Repository persists the index store and catalog as one checkpoint.
type Repository interface {
	Load(ctx context.Context) (domain.Snapshot, error)
	Commit(ctx context.Context, next domain.Snapshot, delta domain.Delta) error
}

// Quarantiner is implemented by repositories that can set damaged state
// aside so the next Load starts empty.
type Quarantiner interface {
	Quarantine(ctx context.Context) error
}

// Extractor turns raw document bytes into text.
type Extractor interface {
	Extract(ctx context.Context, name string, content []byte) (string, error)
}

// Splitter cuts text into chunk texts.
type Splitter interface {
	Split(text string) []string
}
