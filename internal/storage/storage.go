package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNotExist is returned by Read when the named file is missing.
var ErrNotExist = errors.New("storage: file does not exist")

// Store owns the raw uploaded bytes. Files are keyed by stored name
// (document id + extension); the ledger holds the metadata.
type Store interface {
	Save(ctx context.Context, name string, data []byte, contentType string) error
	Read(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	// Path returns the durable location recorded in the ledger.
	Path(name string) string
	// DiskUsage reports the total bytes currently held by the store.
	DiskUsage(ctx context.Context) (int64, error)
}

type localStore struct {
	dir string
}

// NewLocalStore creates a directory-backed store rooted at dir.
func NewLocalStore(dir string) (Store, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload directory: %w", err)
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &localStore{dir: absDir}, nil
}

func (s *localStore) Save(_ context.Context, name string, data []byte, _ string) error {
	if err := os.WriteFile(s.Path(name), data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func (s *localStore) Read(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

func (s *localStore) Delete(_ context.Context, name string) error {
	err := os.Remove(s.Path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

func (s *localStore) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *localStore) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

func (s *localStore) DiskUsage(_ context.Context) (int64, error) {
	var total int64
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to walk upload directory: %w", err)
	}
	return total, nil
}
