// Package persist provides the small load/save abstraction every stateful
// component is constructed with. Each Store owns exactly one file.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrEmptyPath is returned when a JSONFile is created without a path.
var ErrEmptyPath = errors.New("persist: empty path")

// Store loads and saves a single JSON-encoded value.
//
// Load distinguishes "nothing persisted yet" (found == false, err == nil)
// from "read failed" (err != nil), leaving the policy to the caller.
type Store interface {
	Load(v any) (found bool, err error)
	Save(v any) error
	Path() string
}

// JSONFile is a Store backed by a file on disk. Writes go to a temporary
// file in the same directory and are renamed into place, so a crash never
// leaves a half-written file behind.
type JSONFile struct {
	path string
	perm fs.FileMode
}

// Compile-time interface check.
var _ Store = (*JSONFile)(nil)

// NewJSONFile returns a Store for path. The parent directory is created on
// the first Save.
func NewJSONFile(path string) (*JSONFile, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	return &JSONFile{path: path, perm: 0o600}, nil
}

// Path returns the backing file path.
func (f *JSONFile) Path() string { return f.path }

// Load decodes the file into v.
func (f *JSONFile) Load(v any) (bool, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("persist: reading %s: %w", f.path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("persist: decoding %s: %w", f.path, err)
	}
	return true, nil
}

// Save encodes v with two-space indentation and atomically replaces the file.
func (f *JSONFile) Save(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("persist: encoding %s: %w", f.path, err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("persist: create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("persist: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("persist: write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("persist: sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("persist: close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, f.perm); err != nil {
		return fmt.Errorf("persist: chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("persist: rename into %s: %w", f.path, err)
	}
	return nil
}
