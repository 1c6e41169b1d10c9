package ragdex

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	dir    string
	driver string // "file" or "sqlite"

	embedder      Embedder
	queryEmbedder Embedder
	generator     Generator

	chunkSize    int
	chunkOverlap int
	separator    *string

	indexKind      string
	metric         string
	dimensions     int
	hnswM          int
	hnswEFConstr   int
	hnswEFSearch   int
	replace        bool
	recoverCorrupt bool
	defaultK       int
	maxK           int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithDir sets the index directory. Required.
func WithDir(dir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.dir = dir
	})
}

// WithSQLite stores the index in a single SQLite database inside the index
// directory instead of generation files.
func WithSQLite() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "sqlite"
	})
}

// WithEmbedder sets the embedding provider for documents and queries.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithQueryEmbedder uses a separate embedder for queries, e.g. one that
// prepends a query instruction. Defaults to the document embedder.
func WithQueryEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.queryEmbedder = e
	})
}

// WithGenerator sets the answer generator used by Ask.
func WithGenerator(g Generator) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = g
	})
}

// WithChunking sets the chunk size and overlap in runes and the separator
// that splits text before windowing. Defaults: 1000, 30, "\n".
func WithChunking(size, overlap int, separator string) Option {
	return optionFunc(func(c *clientConfig) {
		c.chunkSize = size
		c.chunkOverlap = overlap
		c.separator = &separator
	})
}

// WithL2 ranks by negative Euclidean distance instead of cosine similarity.
func WithL2() Option {
	return optionFunc(func(c *clientConfig) {
		c.metric = "l2"
	})
}

// WithDimensions fixes the vector dimension. Zero lets the first ingested
// document decide.
func WithDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = dim
	})
}

// WithHNSW switches from exact search to an HNSW graph.
// Zero values keep the defaults M=16, EFConstruction=200, EFSearch=100.
func WithHNSW(m, efConstruction, efSearch int) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexKind = "hnsw"
		c.hnswM = m
		c.hnswEFConstr = efConstruction
		c.hnswEFSearch = efSearch
	})
}

// WithReplaceOnReingest makes ingesting an existing name replace its chunks
// instead of appending new ones.
func WithReplaceOnReingest() Option {
	return optionFunc(func(c *clientConfig) {
		c.replace = true
	})
}

// WithRecoverCorrupt moves an unreadable index aside and starts empty
// instead of failing New.
func WithRecoverCorrupt() Option {
	return optionFunc(func(c *clientConfig) {
		c.recoverCorrupt = true
	})
}

// WithLimits sets the number of passages used when k is zero and the
// largest k accepted. Defaults: 4 and 100.
func WithLimits(defaultK, maxK int) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultK = defaultK
		c.maxK = maxK
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
