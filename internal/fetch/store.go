package fetch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store is the filesystem capability the pipeline writes artifacts through.
type Store interface {
	EnsureDir(dir string) error
	Append(path string, data []byte) error
	Create(path string) (io.WriteCloser, error)
	Clear(dir string) error
}

// FileStore writes artifacts to the local filesystem. All writes append.
type FileStore struct{}

var _ Store = FileStore{}

// EnsureDir creates dir and its parents if needed.
func (FileStore) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}

// Append appends data to path, creating the file if needed.
func (FileStore) Append(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Create opens path for appending, as a stream target for downloads.
func (FileStore) Create(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// Clear removes every entry inside dir, keeping dir itself.
func (FileStore) Clear(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
