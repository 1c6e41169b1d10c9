package ragdex

import (
	"errors"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound             = domain.ErrNotFound
	ErrInvalidConfig        = domain.ErrInvalidConfig
	ErrInvalidRequest       = domain.ErrInvalidRequest
	ErrExtraction           = domain.ErrExtraction
	ErrEmptyDocument        = domain.ErrEmptyDocument
	ErrEmbedding            = domain.ErrEmbedding
	ErrVectorDimMismatch    = domain.ErrVectorDimMismatch
	ErrPersistence          = domain.ErrPersistence
	ErrIndexCorruption      = domain.ErrIndexCorruption
	ErrConsistencyViolation = domain.ErrConsistencyViolation
	ErrGeneration           = domain.ErrGeneration

	// ErrGeneratorNotConfigured is returned by Ask on a client without WithGenerator.
	ErrGeneratorNotConfigured = errors.New("ragdex: generator not configured (use WithGenerator)")
)
