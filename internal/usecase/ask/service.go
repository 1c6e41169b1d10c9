// Package ask answers questions from retrieved document chunks.
package ask

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/logger"
)

const contextSeparator = "\n\n"

// Answer is a generated answer with the passages it was grounded on.
type Answer struct {
	Text    string
	Sources []domain.Hit
}

// Service runs retrieve-then-generate.
type Service struct {
	searcher  Searcher
	generator Generator
	defaultK  int
	maxK      int
}

// New creates an ask service.
func New(searcher Searcher, generator Generator) *Service {
	return &Service{searcher: searcher, generator: generator, defaultK: 4, maxK: 100}
}

// WithLimits configures the default and maximum number of passages.
func (s *Service) WithLimits(defaultK, maxK int) *Service {
	if defaultK > 0 {
		s.defaultK = defaultK
	}
	if maxK > 0 {
		s.maxK = maxK
	}
	return s
}

// ResolveK applies the default to a non-positive k and rejects k above the
// maximum.
func (s *Service) ResolveK(k int) (int, error) {
	if k <= 0 {
		return s.defaultK, nil
	}
	if k > s.maxK {
		return 0, fmt.Errorf("k must be at most %d, got %d: %w", s.maxK, k, domain.ErrInvalidRequest)
	}
	return k, nil
}

// Search returns ranked passages without generating an answer.
func (s *Service) Search(ctx context.Context, query string, k int) ([]domain.Hit, error) {
	k, err := s.ResolveK(k)
	if err != nil {
		return nil, err
	}
	hits, err := s.searcher.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return hits, nil
}

// Ask retrieves the top passages for question and asks the generator. With
// no passages the generator still runs on an empty context and is expected
// to decline.
func (s *Service) Ask(ctx context.Context, question string, k int) (Answer, error) {
	hits, err := s.Search(ctx, question, k)
	if err != nil {
		return Answer{}, err
	}

	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	text, err := s.generator.Generate(ctx, strings.Join(texts, contextSeparator), question)
	if err != nil {
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	logger.FromContext(ctx).Debug("Question answered",
		zap.Int("passages", len(hits)),
		zap.Int("answer_len", len(text)),
	)
	return Answer{Text: text, Sources: hits}, nil
}
