package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ticket-service/internal/models"
)

// Filesystem keeps files under a root directory
type Filesystem struct {
	root string
}

// NewFilesystem creates the root if needed. Empty root means ./archive.
func NewFilesystem(root string) (*Filesystem, error) {
	if root == "" {
		root = "./archive"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive root: %w", err)
	}
	return &Filesystem{root: root}, nil
}

// Driver reports DriverFilesystem
func (f *Filesystem) Driver() Driver { return DriverFilesystem }

func (f *Filesystem) pathFor(key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	return filepath.Join(f.root, filepath.FromSlash(key)), nil
}

// Put writes data to a temp file and renames it into place
func (f *Filesystem) Put(ctx context.Context, key string, data []byte, contentType string) (Object, error) {
	p, err := f.pathFor(key)
	if err != nil {
		return Object{}, err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Object{}, err
	}

	tmp, err := os.CreateTemp(dir, ".archive-*")
	if err != nil {
		return Object{}, err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return Object{}, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return Object{}, err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return Object{}, err
	}
	return Object{Key: key, ContentType: contentType, Size: int64(len(data))}, nil
}

// Get reads the file at key or returns ErrNotFound
func (f *Filesystem) Get(ctx context.Context, key string) ([]byte, error) {
	p, err := f.pathFor(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("archive %s: %w", key, models.ErrNotFound)
	}
	return data, err
}

// Delete removes the file at key and reports whether it existed
func (f *Filesystem) Delete(ctx context.Context, key string) (bool, error) {
	p, err := f.pathFor(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
