// Package files keeps uploaded document originals in a flat directory.
package files

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

const tmpPrefix = ".upload-"

// Info describes one stored file.
type Info struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Store saves, opens, lists and deletes files in one directory.
type Store struct {
	dir string
}

// New creates the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create files dir %s: %w: %w", dir, domain.ErrPersistence, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string { return s.dir }

// CleanName validates an upload name. Only plain base names are accepted;
// anything with a path component is rejected.
func CleanName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || trimmed == "." || trimmed == ".." {
		return "", fmt.Errorf("file name %q: %w", name, domain.ErrInvalidRequest)
	}
	if strings.ContainsAny(trimmed, `/\`) || strings.ContainsRune(trimmed, 0) {
		return "", fmt.Errorf("file name %q must not contain a path: %w", name, domain.ErrInvalidRequest)
	}
	if strings.HasPrefix(trimmed, tmpPrefix) {
		return "", fmt.Errorf("file name %q uses a reserved prefix: %w", name, domain.ErrInvalidRequest)
	}
	return trimmed, nil
}

// Staged is an upload already visible under its name whose previous
// content, if any, is held in a backup until Commit or Rollback.
type Staged struct {
	Name    string
	Path    string
	Existed bool
	backup  string
}

// Save writes r under name and drops any previous content.
// existed reports whether name was overwritten.
func (s *Store) Save(name string, r io.Reader) (path string, existed bool, err error) {
	st, err := s.Stage(name, r)
	if err != nil {
		return "", false, err
	}
	if err := s.Commit(st); err != nil {
		return "", false, err
	}
	return st.Path, st.Existed, nil
}

// Stage writes r under name through a temp file and rename, so readers
// never see a partial file. An existing file is moved to a backup first;
// Rollback puts it back, Commit discards it.
func (s *Store) Stage(name string, r io.Reader) (st Staged, err error) {
	name, err = CleanName(name)
	if err != nil {
		return Staged{}, err
	}
	st = Staged{Name: name, Path: filepath.Join(s.dir, name)}
	if _, statErr := os.Stat(st.Path); statErr == nil {
		st.Existed = true
	}

	tmp, err := os.CreateTemp(s.dir, tmpPrefix+"*")
	if err != nil {
		return Staged{}, persistErr("create temp", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return Staged{}, persistErr("write "+name, err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return Staged{}, persistErr("sync "+name, err)
	}
	if err = tmp.Close(); err != nil {
		return Staged{}, persistErr("close "+name, err)
	}

	if st.Existed {
		st.backup = filepath.Join(s.dir, tmpPrefix+"prev-"+name)
		if err = os.Rename(st.Path, st.backup); err != nil {
			return Staged{}, persistErr("back up "+name, err)
		}
	}
	if err = os.Rename(tmpPath, st.Path); err != nil {
		if st.backup != "" {
			_ = os.Rename(st.backup, st.Path)
		}
		return Staged{}, persistErr("rename "+name, err)
	}
	return st, nil
}

// Commit keeps the staged content and removes the backup.
func (s *Store) Commit(st Staged) error {
	if st.backup == "" {
		return nil
	}
	if err := os.Remove(st.backup); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return persistErr("remove backup of "+st.Name, err)
	}
	return nil
}

// Rollback restores the state before Stage: the previous file is put
// back, or the new one removed when there was none.
func (s *Store) Rollback(st Staged) error {
	if st.backup != "" {
		if err := os.Rename(st.backup, st.Path); err != nil {
			return persistErr("restore "+st.Name, err)
		}
		return nil
	}
	if err := os.Remove(st.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return persistErr("remove "+st.Name, err)
	}
	return nil
}

// Open opens a stored file for reading.
func (s *Store) Open(name string) (io.ReadCloser, error) {
	name, err := CleanName(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, name)) //nolint:gosec // name is a validated base name
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("file %s: %w", name, domain.ErrNotFound)
		}
		return nil, persistErr("open "+name, err)
	}
	return f, nil
}

// Read returns the full content of a stored file.
func (s *Store) Read(name string) ([]byte, error) {
	f, err := s.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, persistErr("read "+name, err)
	}
	return data, nil
}

// Delete removes a stored file. A missing file reports false.
func (s *Store) Delete(name string) (bool, error) {
	name, err := CleanName(name)
	if err != nil {
		return false, err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, persistErr("delete "+name, err)
	}
	return true, nil
}

// List returns stored files sorted by name. Temp files are skipped.
func (s *Store) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, persistErr("list", err)
	}
	out := make([]Info, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), tmpPrefix) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue // removed while listing
		}
		out = append(out, Info{Name: e.Name(), Size: fi.Size(), ModTime: fi.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
}
