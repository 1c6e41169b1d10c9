package vector

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/chunker"
	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/extract"
	"github.com/kailas-cloud/ragdex/internal/hashembed"
	"github.com/kailas-cloud/ragdex/internal/index"
	filerepo "github.com/kailas-cloud/ragdex/internal/repository/snapshot/file"
	sqliterepo "github.com/kailas-cloud/ragdex/internal/repository/snapshot/sqlite"
)

// Each line is longer than half the chunk size, so every line is one chunk.
const (
	docA = "apple orchards bloom in spring\napple cider is pressed in autumn\napple pie is baked with cinnamon"
	docB = "rocket engines burn liquid fuel\nrocket launches need clear skies"
)

// --- Mocks ---

type countingEmbedder struct {
	inner domain.Embedder
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	c.calls.Add(1)
	return c.inner.Embed(ctx, text)
}

type failingEmbedder struct{ err error }

func (f failingEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, f.err
}

// failingRepo delegates Load and fails every Commit.
type failingRepo struct {
	Repository
	err error
}

func (f failingRepo) Commit(context.Context, domain.Snapshot, domain.Delta) error {
	return f.err
}

// forgetfulRepo accepts commits without persisting anything.
type forgetfulRepo struct {
	Repository
}

func (forgetfulRepo) Commit(context.Context, domain.Snapshot, domain.Delta) error { return nil }

// --- Helpers ---

type backend struct {
	name string
	open func(t *testing.T, dir string) Repository
}

var backends = []backend{
	{"file", func(_ *testing.T, dir string) Repository {
		return filerepo.New(dir, zap.NewNop())
	}},
	{"sqlite", func(t *testing.T, dir string) Repository {
		t.Helper()
		r, err := sqliterepo.New(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		t.Cleanup(func() { _ = r.Close() })
		return r
	}},
}

func testSplitter(t *testing.T) *chunker.Splitter {
	t.Helper()
	s, err := chunker.New(40, 0, "\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func testEmbedder(t *testing.T) *hashembed.Embedder {
	t.Helper()
	e, err := hashembed.New(hashembed.DefaultDimensions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return e
}

func newEngine(t *testing.T, repo Repository, emb domain.Embedder) *Engine {
	t.Helper()
	if emb == nil {
		emb = testEmbedder(t)
	}
	e := New(repo, extract.NewRegistry(nil), testSplitter(t), emb, index.Config{Kind: index.KindFlat})
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return e
}

func ingest(t *testing.T, e *Engine, name, content string) IngestResult {
	t.Helper()
	res, err := e.Ingest(context.Background(), domain.Document{Name: name, Content: []byte(content)})
	if err != nil {
		t.Fatalf("ingest %s: unexpected error: %v", name, err)
	}
	return res
}

func mustCheck(t *testing.T, e *Engine) Report {
	t.Helper()
	rep, err := e.Check(context.Background())
	if err != nil {
		t.Fatalf("consistency check failed: %v", err)
	}
	if !rep.Consistent() {
		t.Fatalf("inconsistent report: %+v", rep)
	}
	return rep
}

// dirState captures every regular file under dir.
func dirState(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path) //nolint:gosec // test temp dir
		if err != nil {
			return err
		}
		out[path] = string(data)
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("walk %s: %v", dir, err)
	}
	return out
}

func sameState(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
