// Package chunker splits extracted document text into overlapping chunks.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Defaults match the character splitter the service has always used.
const (
	DefaultSize      = 1000
	DefaultOverlap   = 30
	DefaultSeparator = "\n"
)

// Splitter is a separator-aware text splitter. Sizes are measured in runes.
type Splitter struct {
	size      int
	overlap   int
	separator string
}

// New creates a splitter. Fails with ErrInvalidConfig unless 0 <= overlap < size.
func New(size, overlap int, separator string) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size %d must be positive: %w", size, domain.ErrInvalidConfig)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap %d must not be negative: %w", overlap, domain.ErrInvalidConfig)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be less than size %d: %w", overlap, size, domain.ErrInvalidConfig)
	}
	return &Splitter{size: size, overlap: overlap, separator: separator}, nil
}

// Size returns the maximum chunk length in runes.
func (s *Splitter) Size() int { return s.size }

// Overlap returns the maximum carried-over length in runes.
func (s *Splitter) Overlap() int { return s.overlap }

// Split returns the ordered chunks of text. Whitespace-only input yields none.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if s.separator == "" {
		return s.windows(strings.TrimSpace(text))
	}

	var pieces []string
	for _, p := range strings.Split(text, s.separator) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if utf8.RuneCountInString(p) > s.size {
			pieces = append(pieces, s.windows(p)...)
			continue
		}
		pieces = append(pieces, p)
	}
	return s.merge(pieces)
}

// merge greedily joins pieces up to size, carrying at most overlap runes of
// trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	sepLen := utf8.RuneCountInString(s.separator)

	var (
		chunks []string
		cur    []string
		total  int
	)
	for _, p := range pieces {
		l := utf8.RuneCountInString(p)
		if len(cur) > 0 && total+sepLen+l > s.size {
			chunks = append(chunks, strings.Join(cur, s.separator))
			for len(cur) > 0 && (total > s.overlap || total+sepLen+l > s.size) {
				total -= utf8.RuneCountInString(cur[0])
				if len(cur) > 1 {
					total -= sepLen
				}
				cur = cur[1:]
			}
		}
		if len(cur) > 0 {
			total += sepLen
		}
		cur = append(cur, p)
		total += l
	}
	if len(cur) > 0 {
		chunks = append(chunks, strings.Join(cur, s.separator))
	}
	return chunks
}

// windows cuts text into rune windows of size stepping size-overlap.
func (s *Splitter) windows(text string) []string {
	runes := []rune(text)
	if len(runes) <= s.size {
		return []string{text}
	}

	step := s.size - s.overlap
	out := make([]string, 0, len(runes)/step+1)
	for start := 0; ; start += step {
		end := min(start+s.size, len(runes))
		if w := string(runes[start:end]); strings.TrimSpace(w) != "" {
			out = append(out, w)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}
