package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// FileStorage reads images from the local filesystem.
type FileStorage interface {
	// Stat returns the size of path without reading it.
	Stat(path string) (int64, error)
	ReadFile(ctx context.Context, path string, maxBytes int64) ([]byte, error)
}

type localStorage struct{}

func NewLocalStorage() FileStorage {
	return &localStorage{}
}

func (s *localStorage) Stat(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}

func (s *localStorage) ReadFile(ctx context.Context, path string, maxBytes int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	defer f.Close()

	return readLimited(f, maxBytes)
}
