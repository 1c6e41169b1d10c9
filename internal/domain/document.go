package domain

import (
	"strconv"
	"time"
)

// Document is an uploaded source file. The File Store owns the bytes; the
// engine only references a document by Name.
type Document struct {
	Name       string
	Path       string
	Content    []byte
	IngestedAt time.Time
}

// Chunk is an immutable span of extracted text from one document.
type Chunk struct {
	ID       string
	Document string
	Seq      int
	Text     string
}

// ChunkID derives a chunk identity from its document and sequence position.
func ChunkID(document string, seq int) string {
	return document + "#" + strconv.Itoa(seq)
}

// VectorRecord is a chunk together with its embedding, as held by the index store.
type VectorRecord struct {
	Chunk
	Vector []float32
}

// Hit is a single search result, best-first ordering by Score (higher is better).
type Hit struct {
	ChunkID  string
	Document string
	Seq      int
	Text     string
	Score    float32
}
