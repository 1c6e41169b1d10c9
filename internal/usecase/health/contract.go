package health

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/usecase/vector"
)

// Index reports whether the vector engine is loaded and how large it is.
type Index interface {
	Ready() bool
	Stats() vector.Stats
}

// Checker is any dependency with a health probe: the embedding provider,
// the answer generator, or the embedding cache.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc adapts a function, e.g. a cache Ping, to Checker.
type CheckerFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f CheckerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }
