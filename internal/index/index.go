// Package index holds chunk vectors in memory and answers similarity queries.
//
// Stores are not safe for concurrent mutation. The vector engine owns one
// store per state, guards it with a read/write lock, and builds the next
// state on a Clone so readers keep seeing the last committed one.
package index

import (
	"fmt"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Kind selects a store implementation.
type Kind string

const (
	// KindFlat is exact brute-force search.
	KindFlat Kind = "flat"
	// KindHNSW is an approximate HNSW graph.
	KindHNSW Kind = "hnsw"
)

// Store is an in-memory vector index that also retains chunk text.
type Store interface {
	// Add appends records. Fails on dimension mismatch or duplicate ids
	// without modifying the store.
	Add(records []domain.VectorRecord) error
	// Search returns at most k hits, best first.
	Search(query []float32, k int) ([]domain.Hit, error)
	// Rebuild replaces the whole content.
	Rebuild(records []domain.VectorRecord) error
	// Records returns all records in insertion order.
	Records() []domain.VectorRecord
	Get(id string) (domain.VectorRecord, bool)
	Len() int
	// Dimensions is zero until the first record or query fixes it.
	Dimensions() int
	// Clone returns an independent copy.
	Clone() Store
}

// Config selects and tunes a store.
type Config struct {
	Kind       Kind
	Metric     Metric
	Dimensions int
	HNSW       HNSWConfig
}

// New creates an empty store.
func New(cfg Config) (Store, error) {
	metric := cfg.Metric
	if metric == "" {
		metric = MetricCosine
	}
	if _, err := ParseMetric(string(metric)); err != nil {
		return nil, err
	}
	if cfg.Dimensions < 0 {
		return nil, fmt.Errorf("index dimensions %d: %w", cfg.Dimensions, domain.ErrInvalidConfig)
	}

	switch cfg.Kind {
	case KindFlat, "":
		return NewFlat(metric, cfg.Dimensions), nil
	case KindHNSW:
		return NewHNSW(metric, cfg.Dimensions, cfg.HNSW), nil
	default:
		return nil, fmt.Errorf("unknown index kind %q: %w", cfg.Kind, domain.ErrInvalidConfig)
	}
}

// ParseKind validates an index kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindFlat, KindHNSW:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown index kind %q: %w", s, domain.ErrInvalidConfig)
	}
}
