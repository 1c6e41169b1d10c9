package index

import (
	"container/heap"
	"sort"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Flat is exact nearest neighbour search by linear scan.
type Flat struct {
	recordSet
}

// NewFlat creates an empty brute-force store.
func NewFlat(metric Metric, dims int) *Flat {
	return &Flat{recordSet: newRecordSet(metric, dims)}
}

// Add appends records.
func (f *Flat) Add(records []domain.VectorRecord) error {
	dims, err := f.validate(records)
	if err != nil {
		return err
	}
	f.append(records, dims)
	return nil
}

// Rebuild replaces all records.
func (f *Flat) Rebuild(records []domain.VectorRecord) error {
	next := NewFlat(f.metric, f.dims)
	if err := next.Add(records); err != nil {
		return err
	}
	*f = *next
	return nil
}

// Search scans every record, keeping the best k in a min-heap.
func (f *Flat) Search(query []float32, k int) ([]domain.Hit, error) {
	if err := f.checkQuery(query); err != nil {
		return nil, err
	}
	k = min(k, len(f.records))
	if k <= 0 {
		return []domain.Hit{}, nil
	}

	h := make(scoredHeap, 0, k)
	for i, r := range f.records {
		c := scored{pos: i, score: f.metric.Score(query, r.Vector)}
		if h.Len() < k {
			heap.Push(&h, c)
		} else if h.worse(0, c) {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}

	sort.Sort(sort.Reverse(h))
	hits := make([]domain.Hit, len(h))
	for i, c := range h {
		hits[i] = f.hit(c.pos, c.score)
	}
	return hits, nil
}

// Clone returns an independent copy.
func (f *Flat) Clone() Store {
	return &Flat{recordSet: f.clone()}
}

type scored struct {
	pos   int
	score float32
}

// scoredHeap is a min-heap: the root is the worst kept candidate. Ties are
// broken by insertion order so results are deterministic.
type scoredHeap []scored

func (h scoredHeap) Len() int { return len(h) }

func (h scoredHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score < h[j].score
	}
	return h[i].pos > h[j].pos
}

func (h scoredHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredHeap) Push(x any) { *h = append(*h, x.(scored)) }

func (h *scoredHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// worse reports whether the element at i ranks below c.
func (h scoredHeap) worse(i int, c scored) bool {
	if h[i].score != c.score {
		return h[i].score < c.score
	}
	return h[i].pos > c.pos
}
