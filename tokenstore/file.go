package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrCorruptFile is returned by [File.Load] when the stored blob cannot be
// decoded. Callers normally treat this as an absent pair and overwrite.
var ErrCorruptFile = errors.New("corrupt token file")

// File is a [Store] backed by a single JSON file. Writes go through a
// temp-file-and-rename sequence so a crash never leaves a half-written pair.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile creates a file-backed store at path. The parent directory is
// created on first save.
func NewFile(path string) *File {
	return &File{path: path}
}

// Save implements [Store].
func (f *File) Save(_ context.Context, pair Pair) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("token file dir: %w", err)
	}

	blob, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("token file encode: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return fmt.Errorf("token file write: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("token file rename: %w", err)
	}
	return nil
}

// Load implements [Store].
func (f *File) Load(_ context.Context) (Pair, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	blob, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Pair{}, false, nil
		}
		return Pair{}, false, fmt.Errorf("token file read: %w", err)
	}

	var pair Pair
	if err := json.Unmarshal(blob, &pair); err != nil {
		return Pair{}, false, fmt.Errorf("%w: %v", ErrCorruptFile, err)
	}
	if pair.Empty() {
		return Pair{}, false, nil
	}
	return pair, true, nil
}

// Clear implements [Store].
func (f *File) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("token file remove: %w", err)
	}
	return nil
}
