package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found: install poppler-utils (apt) or poppler (brew)")

// CommandRunner runs an external program with stdin and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands on the host.
type ExecRunner struct{}

// Run executes name with args, feeding stdin.
func (ExecRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, ErrPDFToolNotFound
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", name, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return out, nil
}

// PDF extracts text with `pdftotext -layout - -`.
type PDF struct {
	runner CommandRunner
}

// NewPDF creates a PDF extractor.
func NewPDF(runner CommandRunner) *PDF {
	return &PDF{runner: runner}
}

// Extract runs pdftotext over content.
func (p *PDF) Extract(ctx context.Context, content []byte) (string, error) {
	if !bytes.HasPrefix(content, []byte("%PDF-")) {
		return "", errors.New("missing PDF header")
	}
	out, err := p.runner.Run(ctx, content, "pdftotext", "-layout", "-enc", "UTF-8", "-", "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return Text(ctx, out)
}
