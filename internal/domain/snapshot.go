package domain

import "github.com/kailas-cloud/ragdex/internal/domain/catalog"

// Snapshot is the full persisted state of one index path: vector records and
// the catalog that owns them. Both are committed together.
type Snapshot struct {
	Dimensions int
	Records    []VectorRecord
	Catalog    *catalog.Catalog
}

// Delta describes how a commit changes the previous snapshot. Backends that
// persist incrementally apply it; full-rewrite backends may ignore it.
type Delta struct {
	Added []VectorRecord
	// RemovedDocuments have all their previous records and catalog entry dropped
	// before Added is applied.
	RemovedDocuments []string
	// Documents whose catalog entry changed and must be rewritten.
	Documents []string
}

// Empty reports whether the delta changes nothing.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.RemovedDocuments) == 0 && len(d.Documents) == 0
}
