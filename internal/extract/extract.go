// Package extract turns uploaded file bytes into plain text, choosing a
// format-specific extractor by file extension.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Extractor converts one document format to plain text.
type Extractor interface {
	Extract(ctx context.Context, content []byte) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, content []byte) (string, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, content []byte) (string, error) {
	return f(ctx, content)
}

// Registry dispatches by lower-cased extension. Unknown extensions fall back
// to the plain text extractor.
type Registry struct {
	byExt    map[string]Extractor
	fallback Extractor
}

// NewRegistry creates a registry with every built-in format. runner is used
// for PDF; nil selects the host pdftotext.
func NewRegistry(runner CommandRunner) *Registry {
	if runner == nil {
		runner = ExecRunner{}
	}
	text := ExtractorFunc(Text)
	r := &Registry{byExt: make(map[string]Extractor), fallback: text}
	r.Register(text, ".txt", ".md", ".markdown", ".log", ".rst")
	r.Register(ExtractorFunc(CSV), ".csv")
	r.Register(ExtractorFunc(JSON), ".json")
	r.Register(ExtractorFunc(HTML), ".html", ".htm")
	r.Register(ExtractorFunc(DOCX), ".docx")
	r.Register(NewPDF(runner), ".pdf")
	return r
}

// Register binds an extractor to one or more extensions, replacing any
// previous binding.
func (r *Registry) Register(e Extractor, exts ...string) {
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = e
	}
}

// Extensions lists the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract returns the text of the named document. Failures are
// *domain.ExtractionError.
func (r *Registry) Extract(ctx context.Context, name string, content []byte) (string, error) {
	e, ok := r.byExt[strings.ToLower(filepath.Ext(name))]
	if !ok {
		e = r.fallback
	}
	text, err := e.Extract(ctx, content)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("extract %s: %w", name, ctxErr)
		}
		return "", domain.NewExtractionError(name, err)
	}
	return text, nil
}
