// Package filestore is the object storage surface schema snapshots are
// written to. minio implements it; filestoretest provides an in-memory
// version for tests.
package filestore

import (
	"context"
	"io"
)

// Store is a bucket/key object store.
type Store interface {
	Ping(ctx context.Context) error
	Close() error

	// EnsureBucket creates bucket unless it already exists.
	EnsureBucket(ctx context.Context, bucket string) error

	// PutObject uploads r under key. size is -1 when unknown.
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (*ObjectInfo, error)

	// GetObject opens key for reading; the caller closes the returned Object.
	// A missing key is ErrKindNotFound.
	GetObject(ctx context.Context, bucket, key string) (Object, error)

	// ListObjects returns keys in lexical order. Without opts.Recursive,
	// keys below the next "/" collapse into one IsDir entry.
	ListObjects(ctx context.Context, bucket string, opts ListOptions) ([]ObjectInfo, error)
}
