package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Kind selects a managed file category in the content store.
type Kind string

const (
	// KindProgram is canonical model program text.
	KindProgram Kind = "program"
	// KindDataset is a canonical dataset serialization.
	KindDataset Kind = "dataset"
)

// Ext returns the file extension for a kind.
func (k Kind) Ext() string {
	switch k {
	case KindProgram:
		return ".stan"
	case KindDataset:
		return ".json"
	default:
		return ""
	}
}

// managedExts are the extensions Clear is allowed to delete. The memo
// database lives in the same root and must survive a store-only sweep.
var managedExts = []string{".stan", ".json"}

// ContentStore is a directory of write-once files keyed by fingerprint.
type ContentStore struct {
	root string
}

// New opens (creating if needed) a content store rooted at dir.
func New(dir string) (*ContentStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: empty root directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create root: %w", err)
	}
	return &ContentStore{root: dir}, nil
}

// Root returns the store's root directory.
func (s *ContentStore) Root() string { return s.root }

// Path returns where a fingerprint of the given kind is (or would be) stored.
func (s *ContentStore) Path(kind Kind, fp string) string {
	return filepath.Join(s.root, fp+kind.Ext())
}

// Ensure stores content under its fingerprint if not already present and
// returns the file path. An existing file is trusted: its content is not
// re-validated and it is never overwritten.
func (s *ContentStore) Ensure(kind Kind, fp string, content []byte) (string, error) {
	path := s.Path(kind, fp)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("store: stat %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(s.root, ".write-*")
	if err != nil {
		return "", fmt.Errorf("store: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("store: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("store: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("store: publish %s: %w", path, err)
	}
	return path, nil
}

// EnsureFrom copies the file at src into the store under fp if not already
// present and returns the stored path. Write-once semantics match Ensure.
func (s *ContentStore) EnsureFrom(kind Kind, fp string, src string) (string, error) {
	path := s.Path(kind, fp)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("store: stat %s: %w", path, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("store: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(s.root, ".write-*")
	if err != nil {
		return "", fmt.Errorf("store: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return "", fmt.Errorf("store: copy %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("store: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("store: publish %s: %w", path, err)
	}
	return path, nil
}

// Remove deletes one stored object. Missing files are not an error.
func (s *ContentStore) Remove(kind Kind, fp string) error {
	err := os.Remove(s.Path(kind, fp))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}

// Count reports how many files of the given kind are stored.
func (s *ContentStore) Count(kind Kind) (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.root, "*"+kind.Ext()))
	if err != nil {
		return 0, fmt.Errorf("store: %w", err)
	}
	return len(matches), nil
}

// Clear deletes every managed file in the store directory. Unmanaged files,
// including the memo database, are untouched.
func (s *ContentStore) Clear() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("store: read root: %w", err)
	}
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		for _, managed := range managedExts {
			if ext == managed {
				if err := os.Remove(filepath.Join(s.root, e.Name())); err != nil {
					return fmt.Errorf("store: clear %s: %w", e.Name(), err)
				}
				break
			}
		}
	}
	return nil
}
