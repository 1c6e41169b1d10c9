package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// --- Mocks ---

type mockRunner struct {
	output []byte
	err    error
	stdin  []byte
	name   string
}

func (m *mockRunner) Run(_ context.Context, stdin []byte, name string, _ ...string) ([]byte, error) {
	m.stdin, m.name = stdin, name
	return m.output, m.err
}

func docx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	doc := `<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`
	if _, err := w.Write([]byte(doc)); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestRegistry_Formats(t *testing.T) {
	r := NewRegistry(&mockRunner{})
	ctx := context.Background()

	tests := []struct {
		name    string
		file    string
		content []byte
		want    string
	}{
		{"plain text", "notes.txt", []byte("hello\nworld"), "hello\nworld"},
		{"bom stripped", "bom.md", []byte("\xef\xbb\xbf# Title"), "# Title"},
		{"unknown extension falls back to text", "README", []byte("plain"), "plain"},
		{"csv", "table.CSV", []byte("a,b\n1,\"x, y\"\n"), "a, b\n1, x, y\n"},
		{"json", "data.json", []byte(`{"k":[1,2]}`), "{\n  \"k\": [\n    1,\n    2\n  ]\n}"},
		{
			"html",
			"page.html",
			[]byte(`<html><head><title>T</title></head><body><p>One &amp; two</p><script>x()</script><div>Three</div></body></html>`),
			"One & two\nThree",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Extract(ctx, tt.file, tt.content)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegistry_DOCX(t *testing.T) {
	r := NewRegistry(&mockRunner{})
	content := docx(t, `<w:p><w:r><w:t>First </w:t></w:r><w:r><w:t>para</w:t></w:r></w:p><w:p></w:p><w:p><w:r><w:t>Second</w:t></w:r></w:p>`)

	got, err := r.Extract(context.Background(), "report.docx", content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "First para\nSecond" {
		t.Errorf("got %q", got)
	}
}

func TestRegistry_ExtractionErrors(t *testing.T) {
	r := NewRegistry(&mockRunner{})
	tests := []struct {
		name    string
		file    string
		content []byte
	}{
		{"invalid utf8", "bin.txt", []byte{0xff, 0xfe, 0x00}},
		{"broken json", "x.json", []byte(`{"a":`)},
		{"not a zip", "x.docx", []byte("plain")},
		{"not a pdf", "x.pdf", []byte("plain")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Extract(context.Background(), tt.file, tt.content)
			if !errors.Is(err, domain.ErrExtraction) {
				t.Fatalf("expected ErrExtraction, got %v", err)
			}
			var ee *domain.ExtractionError
			if !errors.As(err, &ee) || ee.Document != tt.file {
				t.Errorf("expected ExtractionError for %s, got %v", tt.file, err)
			}
		})
	}
}

func TestPDF_UsesRunner(t *testing.T) {
	runner := &mockRunner{output: []byte("Page one text\n")}
	r := NewRegistry(runner)
	content := []byte("%PDF-1.4 fake")

	got, err := r.Extract(context.Background(), "doc.pdf", content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "Page one text") {
		t.Errorf("unexpected text %q", got)
	}
	if runner.name != "pdftotext" || !bytes.Equal(runner.stdin, content) {
		t.Errorf("runner called with %q and %d bytes", runner.name, len(runner.stdin))
	}
}

func TestPDF_RunnerError(t *testing.T) {
	r := NewRegistry(&mockRunner{err: ErrPDFToolNotFound})
	_, err := r.Extract(context.Background(), "doc.pdf", []byte("%PDF-1.7"))
	if !errors.Is(err, ErrPDFToolNotFound) || !errors.Is(err, domain.ErrExtraction) {
		t.Fatalf("expected wrapped ErrPDFToolNotFound, got %v", err)
	}
}

func TestRegistry_Extensions(t *testing.T) {
	r := NewRegistry(nil)
	exts := r.Extensions()
	for _, want := range []string{".pdf", ".docx", ".txt", ".html"} {
		found := false
		for _, e := range exts {
			if e == want {
				found = true
			}
		}
		if !found {
			t.Errorf("expected %s in %v", want, exts)
		}
	}
}
