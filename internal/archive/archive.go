// Package archive stores exported ticket documents and queued snapshots.
package archive

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Driver identifies an archive backend
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
)

// Object describes a stored file
type Object struct {
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Store is implemented by every archive backend. Put overwrites an existing key.
// Get returns models.ErrNotFound for a missing key.
type Store interface {
	Driver() Driver
	Put(ctx context.Context, key string, data []byte, contentType string) (Object, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) (bool, error)
}

// Options selects and configures a backend
type Options struct {
	Driver      string
	FSRoot      string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

// Open creates the archive named by opts.Driver (default fs)
func Open(ctx context.Context, opts Options) (Store, error) {
	driver := Driver(opts.Driver)
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(opts.FSRoot)
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:    opts.S3Bucket,
			Region:    opts.S3Region,
			Endpoint:  opts.S3Endpoint,
			PathStyle: opts.S3PathStyle,
		})
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %s", opts.Driver)
	}
}

// DocumentKey is where an exported ticket PDF is kept
func DocumentKey(ticketID, filename string) string {
	return path.Join("documents", ticketID, filename)
}

// SnapshotKey is where a queued delivery keeps its PNG snapshot
func SnapshotKey(deliveryID string) string {
	return path.Join("snapshots", deliveryID+".png")
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("invalid archive key %q", key)
	}
	return nil
}
