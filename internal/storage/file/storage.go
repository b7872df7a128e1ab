package file

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/mcoot/arena-auth/internal/storage"
)

// Storage keeps one file per key under a directory, readable only by the owner
type Storage struct {
	dir string
}

// New creates a file storage rooted at dir, creating the directory if needed
func New(dir string) (*Storage, error) {
	if dir == "" {
		return nil, errors.New("file storage: directory is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("file storage: %w", err)
	}
	return &Storage{dir: dir}, nil
}

// DefaultDir returns ~/.arena, or .arena when there is no home directory
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".arena"
	}
	return filepath.Join(home, ".arena")
}

// Ensure Storage implements the interface
var _ storage.Store = (*Storage)(nil)

func (s *Storage) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+".json")
}

func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Set writes through a temporary file so readers never see a partial value
func (s *Storage) Set(ctx context.Context, key string, value []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path(key))
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
