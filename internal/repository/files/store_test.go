package files

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"report.pdf", "report.pdf", false},
		{"  notes.txt ", "notes.txt", false},
		{"", "", true},
		{"..", "", true},
		{"../etc/passwd", "", true},
		{"a/b.txt", "", true},
		{`a\b.txt`, "", true},
		{".upload-123", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := CleanName(tc.in)
			if tc.wantErr {
				if !errors.Is(err, domain.ErrInvalidRequest) {
					t.Fatalf("expected ErrInvalidRequest, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSaveOpenDelete(t *testing.T) {
	s := newStore(t)

	path, existed, err := s.Save("a.txt", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if existed {
		t.Error("expected new file")
	}
	if filepath.Dir(path) != s.Dir() {
		t.Errorf("file saved outside store: %s", path)
	}

	_, existed, err = s.Save("a.txt", strings.NewReader("hello again"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !existed {
		t.Error("expected overwrite to report existed")
	}

	rc, err := s.Open("a.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "hello again" {
		t.Errorf("unexpected content %q", data)
	}

	deleted, err := s.Delete("a.txt")
	if err != nil || !deleted {
		t.Fatalf("expected delete, got %v, %v", deleted, err)
	}
	deleted, err = s.Delete("a.txt")
	if err != nil || deleted {
		t.Fatalf("expected second delete to report false, got %v, %v", deleted, err)
	}
	if _, err := s.Read("a.txt"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestSave_FailedWriteLeavesNothing(t *testing.T) {
	s := newStore(t)

	if _, _, err := s.Save("a.txt", failingReader{}); !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty dir, got %d entries", len(entries))
	}
}

func TestList(t *testing.T) {
	s := newStore(t)
	for _, name := range []string{"b.md", "a.txt"} {
		if _, _, err := s.Save(name, strings.NewReader(name)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(s.Dir(), tmpPrefix+"junk"), []byte("x"), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	list, err := s.List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 || list[0].Name != "a.txt" || list[1].Name != "b.md" {
		t.Fatalf("unexpected list %+v", list)
	}
	if list[0].Size != int64(len("a.txt")) {
		t.Errorf("unexpected size %d", list[0].Size)
	}
}

func TestStage_RollbackRestoresPrevious(t *testing.T) {
	s := newStore(t)
	if _, _, err := s.Save("a.txt", strings.NewReader("old")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st, err := s.Stage("a.txt", strings.NewReader("new"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.Existed {
		t.Error("expected stage to report existed")
	}
	if data, _ := s.Read("a.txt"); string(data) != "new" {
		t.Errorf("staged content must be visible, got %q", data)
	}
	if listed, _ := s.List(); len(listed) != 1 {
		t.Errorf("backup must not be listed: %+v", listed)
	}

	if err := s.Rollback(st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data, _ := s.Read("a.txt"); string(data) != "old" {
		t.Errorf("rollback must restore previous content, got %q", data)
	}
	entries, _ := os.ReadDir(s.Dir())
	if len(entries) != 1 {
		t.Errorf("expected only a.txt after rollback, got %d entries", len(entries))
	}
}

func TestStage_RollbackRemovesNewFile(t *testing.T) {
	s := newStore(t)

	st, err := s.Stage("a.txt", strings.NewReader("new"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Rollback(st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Read("a.txt"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStage_CommitDropsBackup(t *testing.T) {
	s := newStore(t)
	if _, _, err := s.Save("a.txt", strings.NewReader("old")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st, err := s.Stage("a.txt", strings.NewReader("new"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Commit(st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries, _ := os.ReadDir(s.Dir())
	if len(entries) != 1 || entries[0].Name() != "a.txt" {
		t.Errorf("expected only a.txt after commit, got %d entries", len(entries))
	}
}
