package index

import (
	"fmt"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// recordSet is the storage shared by every backend: records in insertion
// order plus an id lookup.
type recordSet struct {
	metric  Metric
	dims    int
	records []domain.VectorRecord
	pos     map[string]int
}

func newRecordSet(metric Metric, dims int) recordSet {
	return recordSet{metric: metric, dims: dims, pos: make(map[string]int)}
}

// validate checks a batch against the current content without mutating it
// and returns the dimensions the set will have after the batch.
func (s *recordSet) validate(records []domain.VectorRecord) (int, error) {
	dims := s.dims
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.ID == "" {
			return 0, fmt.Errorf("record without chunk id: %w", domain.ErrInvalidRequest)
		}
		if dims == 0 {
			dims = len(r.Vector)
		}
		if len(r.Vector) == 0 || len(r.Vector) != dims {
			return 0, fmt.Errorf("record %s has %d dimensions, index has %d: %w",
				r.ID, len(r.Vector), dims, domain.ErrVectorDimMismatch)
		}
		if _, ok := s.pos[r.ID]; ok {
			return 0, fmt.Errorf("duplicate chunk id %s: %w", r.ID, domain.ErrInvalidRequest)
		}
		if _, ok := seen[r.ID]; ok {
			return 0, fmt.Errorf("duplicate chunk id %s in batch: %w", r.ID, domain.ErrInvalidRequest)
		}
		seen[r.ID] = struct{}{}
	}
	return dims, nil
}

func (s *recordSet) append(records []domain.VectorRecord, dims int) {
	s.dims = dims
	for _, r := range records {
		s.pos[r.ID] = len(s.records)
		s.records = append(s.records, r)
	}
}

func (s *recordSet) reset() {
	s.records = nil
	s.pos = make(map[string]int)
}

func (s *recordSet) checkQuery(query []float32) error {
	if len(s.records) > 0 && len(query) != s.dims {
		return fmt.Errorf("query has %d dimensions, index has %d: %w",
			len(query), s.dims, domain.ErrVectorDimMismatch)
	}
	return nil
}

func (s *recordSet) hit(i int, score float32) domain.Hit {
	r := s.records[i]
	return domain.Hit{
		ChunkID:  r.ID,
		Document: r.Document,
		Seq:      r.Seq,
		Text:     r.Text,
		Score:    score,
	}
}

func (s *recordSet) clone() recordSet {
	c := recordSet{
		metric:  s.metric,
		dims:    s.dims,
		records: make([]domain.VectorRecord, len(s.records)),
		pos:     make(map[string]int, len(s.pos)),
	}
	copy(c.records, s.records)
	for id, i := range s.pos {
		c.pos[id] = i
	}
	return c
}

// Records returns a copy of the records in insertion order.
func (s *recordSet) Records() []domain.VectorRecord {
	out := make([]domain.VectorRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Get returns the record with the given chunk id.
func (s *recordSet) Get(id string) (domain.VectorRecord, bool) {
	i, ok := s.pos[id]
	if !ok {
		return domain.VectorRecord{}, false
	}
	return s.records[i], true
}

// Len returns the number of records.
func (s *recordSet) Len() int { return len(s.records) }

// Dimensions returns the vector length, zero while unset.
func (s *recordSet) Dimensions() int { return s.dims }
