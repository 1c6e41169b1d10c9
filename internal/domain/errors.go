package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidConfig signals a configuration that cannot work (e.g. overlap >= chunk size).
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrInvalidRequest signals a malformed caller request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrExtraction signals an unreadable or corrupt document.
	ErrExtraction = errors.New("text extraction failed")
	// ErrEmptyDocument signals a document without extractable text.
	ErrEmptyDocument = errors.New("document has no extractable text")
	// ErrEmbedding signals an unavailable or misconfigured embedding provider.
	ErrEmbedding = errors.New("embedding provider error")
	// ErrEmbeddingProviderError is kept for provider adapters; same sentinel as ErrEmbedding.
	ErrEmbeddingProviderError = ErrEmbedding
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrPersistence signals a failed index/catalog checkpoint.
	ErrPersistence = errors.New("persistence failed")
	// ErrIndexCorruption signals an unreadable persisted index or catalog.
	ErrIndexCorruption = errors.New("index corrupted")
	// ErrConsistencyViolation signals catalog and index disagreeing on chunk ownership.
	ErrConsistencyViolation = errors.New("consistency violation")
	// ErrGeneration signals an answer generator failure.
	ErrGeneration = errors.New("answer generation failed")
)

// ExtractionError wraps ErrExtraction with the offending document name.
type ExtractionError struct {
	Document string
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrExtraction.Error(), e.Document)
	}
	return fmt.Sprintf("%s: %s: %v", ErrExtraction.Error(), e.Document, e.Err)
}

// Is reports ErrExtraction so callers can match on the sentinel.
func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

func (e *ExtractionError) Unwrap() error { return e.Err }

// NewExtractionError creates an extraction error for a document.
func NewExtractionError(document string, err error) error {
	return &ExtractionError{Document: document, Err: err}
}

// IndexCorruptionError wraps ErrIndexCorruption with the damaged location.
type IndexCorruptionError struct {
	Path string
	Err  error
}

func (e *IndexCorruptionError) Error() string {
	return fmt.Sprintf("%s at %s: %v", ErrIndexCorruption.Error(), e.Path, e.Err)
}

// Is reports ErrIndexCorruption so callers can match on the sentinel.
func (e *IndexCorruptionError) Is(target error) bool { return target == ErrIndexCorruption }

func (e *IndexCorruptionError) Unwrap() error { return e.Err }

// ConsistencyViolationError lists chunk ids present on one side of the catalog/index pair only.
type ConsistencyViolationError struct {
	// MissingRecords are catalog chunk ids without a vector record.
	MissingRecords []string
	// OrphanRecords are vector records not owned by any catalog entry.
	OrphanRecords []string
	// Detail carries extra context, e.g. live vs persisted mismatch.
	Detail string
}

func (e *ConsistencyViolationError) Error() string {
	var b strings.Builder
	b.WriteString(ErrConsistencyViolation.Error())
	fmt.Fprintf(&b, ": %d missing records, %d orphan records", len(e.MissingRecords), len(e.OrphanRecords))
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *ConsistencyViolationError) Unwrap() error { return ErrConsistencyViolation }
