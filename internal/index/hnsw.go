package index

import (
	"container/heap"
	"hash/fnv"
	"math"
	"sort"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

const maxHNSWLevel = 16

// HNSWConfig tunes the graph.
type HNSWConfig struct {
	// M is the connection limit per node on upper layers; layer 0 allows 2*M.
	M int
	// EfConstruction is the beam width while inserting.
	EfConstruction int
	// EfSearch is the minimum beam width while searching.
	EfSearch int
}

// DefaultHNSWConfig returns M=16, efConstruction=200, efSearch=100.
func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{M: 16, EfConstruction: 200, EfSearch: 100}
}

func (c HNSWConfig) withDefaults() HNSWConfig {
	d := DefaultHNSWConfig()
	if c.M < 2 {
		c.M = d.M
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = d.EfConstruction
	}
	if c.EfSearch <= 0 {
		c.EfSearch = d.EfSearch
	}
	return c
}

type hnswNode struct {
	level     int
	neighbors [][]int // per layer, positions into records
}

// HNSW is an approximate nearest neighbour graph (Malkov & Yashunin).
// Node levels derive from a hash of the chunk id, so the same records
// inserted in the same order always produce the same graph. Points cannot
// be removed; deletes go through Rebuild.
type HNSW struct {
	recordSet
	cfg      HNSWConfig
	ml       float64
	nodes    []hnswNode
	entry    int
	maxLevel int
}

// NewHNSW creates an empty graph store.
func NewHNSW(metric Metric, dims int, cfg HNSWConfig) *HNSW {
	cfg = cfg.withDefaults()
	return &HNSW{
		recordSet: newRecordSet(metric, dims),
		cfg:       cfg,
		ml:        1 / math.Log(float64(cfg.M)),
		entry:     -1,
		maxLevel:  -1,
	}
}

// Add appends records and links them into the graph.
func (g *HNSW) Add(records []domain.VectorRecord) error {
	dims, err := g.validate(records)
	if err != nil {
		return err
	}
	start := len(g.records)
	g.append(records, dims)
	for i := start; i < len(g.records); i++ {
		g.insert(i)
	}
	return nil
}

// Rebuild replaces all records and rebuilds the graph.
func (g *HNSW) Rebuild(records []domain.VectorRecord) error {
	next := NewHNSW(g.metric, g.dims, g.cfg)
	if err := next.Add(records); err != nil {
		return err
	}
	*g = *next
	return nil
}

// Clone returns an independent copy of records and graph.
func (g *HNSW) Clone() Store {
	c := *g
	c.recordSet = g.clone()
	c.nodes = make([]hnswNode, len(g.nodes))
	for i, n := range g.nodes {
		nb := make([][]int, len(n.neighbors))
		for l, ids := range n.neighbors {
			nb[l] = append([]int(nil), ids...)
		}
		c.nodes[i] = hnswNode{level: n.level, neighbors: nb}
	}
	return &c
}

// Search descends greedily to layer 0 and runs a beam search there.
func (g *HNSW) Search(query []float32, k int) ([]domain.Hit, error) {
	if err := g.checkQuery(query); err != nil {
		return nil, err
	}
	k = min(k, len(g.records))
	if k <= 0 || g.entry < 0 {
		return []domain.Hit{}, nil
	}

	ep := g.entry
	for l := g.maxLevel; l > 0; l-- {
		ep = g.greedy(query, ep, l)
	}
	found := g.searchLayer(query, ep, max(g.cfg.EfSearch, k), 0)

	hits := make([]domain.Hit, 0, k)
	for _, c := range found {
		if len(hits) == k {
			break
		}
		hits = append(hits, g.hit(c.node, -c.dist))
	}
	return hits, nil
}

func (g *HNSW) distance(q []float32, node int) float32 {
	return -g.metric.Score(q, g.records[node].Vector)
}

func (g *HNSW) levelFor(id string) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	u := float64(h.Sum64()>>11) / (1 << 53)
	level := int(-math.Log(1-u) * g.ml)
	return min(level, maxHNSWLevel)
}

func (g *HNSW) insert(node int) {
	vec := g.records[node].Vector
	level := g.levelFor(g.records[node].ID)
	g.nodes = append(g.nodes, hnswNode{level: level, neighbors: make([][]int, level+1)})

	if g.entry < 0 {
		g.entry, g.maxLevel = node, level
		return
	}

	ep := g.entry
	for l := g.maxLevel; l > level; l-- {
		ep = g.greedy(vec, ep, l)
	}

	for l := min(level, g.maxLevel); l >= 0; l-- {
		found := g.searchLayer(vec, ep, g.cfg.EfConstruction, l)
		limit := g.limit(l)
		if len(found) > limit {
			found = found[:limit]
		}

		links := make([]int, 0, len(found))
		for _, c := range found {
			links = append(links, c.node)
			nb := &g.nodes[c.node]
			if l >= len(nb.neighbors) {
				continue
			}
			nb.neighbors[l] = append(nb.neighbors[l], node)
			if len(nb.neighbors[l]) > limit {
				nb.neighbors[l] = g.prune(c.node, nb.neighbors[l], limit)
			}
		}
		g.nodes[node].neighbors[l] = links
		if len(found) > 0 {
			ep = found[0].node
		}
	}

	if level > g.maxLevel {
		g.entry, g.maxLevel = node, level
	}
}

func (g *HNSW) limit(layer int) int {
	if layer == 0 {
		return 2 * g.cfg.M
	}
	return g.cfg.M
}

// greedy walks to the closest reachable node on one layer.
func (g *HNSW) greedy(q []float32, ep, layer int) int {
	cur, curDist := ep, g.distance(q, ep)
	for changed := true; changed; {
		changed = false
		if layer >= len(g.nodes[cur].neighbors) {
			break
		}
		for _, n := range g.nodes[cur].neighbors[layer] {
			if d := g.distance(q, n); d < curDist {
				cur, curDist, changed = n, d, true
			}
		}
	}
	return cur
}

// searchLayer is the beam search of width ef. Results are closest first.
func (g *HNSW) searchLayer(q []float32, ep, ef, layer int) []distItem {
	visited := map[int]struct{}{ep: {}}
	d := g.distance(q, ep)
	candidates := &distHeap{}
	results := &distHeap{max: true}
	heap.Push(candidates, distItem{node: ep, dist: d})
	heap.Push(results, distItem{node: ep, dist: d})

	for candidates.Len() > 0 {
		closest := heap.Pop(candidates).(distItem)
		if closest.dist > results.items[0].dist {
			break
		}
		n := g.nodes[closest.node]
		if layer >= len(n.neighbors) {
			continue
		}
		for _, nb := range n.neighbors[layer] {
			if _, ok := visited[nb]; ok {
				continue
			}
			visited[nb] = struct{}{}
			dist := g.distance(q, nb)
			if results.Len() < ef || dist < results.items[0].dist {
				heap.Push(candidates, distItem{node: nb, dist: dist})
				heap.Push(results, distItem{node: nb, dist: dist})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := results.items
	sort.Slice(out, func(i, j int) bool {
		if out[i].dist != out[j].dist {
			return out[i].dist < out[j].dist
		}
		return out[i].node < out[j].node
	})
	return out
}

// prune keeps the limit closest neighbours of node.
func (g *HNSW) prune(node int, neighbors []int, limit int) []int {
	vec := g.records[node].Vector
	items := make([]distItem, len(neighbors))
	for i, n := range neighbors {
		items[i] = distItem{node: n, dist: g.distance(vec, n)}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].dist < items[j].dist })

	out := make([]int, 0, limit)
	for _, it := range items[:limit] {
		out = append(out, it.node)
	}
	return out
}

type distItem struct {
	node int
	dist float32
}

// distHeap is a min-heap by distance, or a max-heap when max is set.
type distHeap struct {
	items []distItem
	max   bool
}

func (h *distHeap) Len() int { return len(h.items) }

func (h *distHeap) Less(i, j int) bool {
	if h.max {
		return h.items[i].dist > h.items[j].dist
	}
	return h.items[i].dist < h.items[j].dist
}

func (h *distHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *distHeap) Push(x any) { h.items = append(h.items, x.(distItem)) }

func (h *distHeap) Pop() any {
	n := len(h.items)
	x := h.items[n-1]
	h.items = h.items[:n-1]
	return x
}
