package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"ticket-service/internal/models"
)

// FileStore keeps one JSON file per namespace under root.
// Writes go to a temp file in the same directory which is then renamed over the
// previous file, so readers only ever see a fully written payload.
type FileStore struct {
	root string
}

// NewFileStore returns a file-backed record store rooted at root, creating it if needed
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		root = "./data"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store root: %w", err)
	}
	return &FileStore{root: root}, nil
}

func (f *FileStore) pathFor(namespace string) (string, error) {
	if strings.TrimSpace(namespace) == "" || strings.ContainsAny(namespace, `/\`) || strings.Contains(namespace, "..") {
		return "", fmt.Errorf("invalid namespace %q", namespace)
	}
	return filepath.Join(f.root, namespace+".json"), nil
}

// Load reads the namespace file, returning ErrNotFound when it does not exist
func (f *FileStore) Load(ctx context.Context, namespace string) ([]byte, error) {
	path, err := f.pathFor(namespace)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("record %s: %w", namespace, models.ErrNotFound)
	}
	return data, err
}

// Save replaces the namespace file with payload
func (f *FileStore) Save(ctx context.Context, namespace string, payload []byte) error {
	path, err := f.pathFor(namespace)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.root, ".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Remove deletes the namespace file; a missing file is not an error
func (f *FileStore) Remove(ctx context.Context, namespace string) error {
	path, err := f.pathFor(namespace)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Close is a no-op
func (f *FileStore) Close() error { return nil }
