// Package blobstore stores serialized partitions as objects for the blob backend.
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
var ErrNotFound = os.ErrNotExist

// BlobStore is the object storage used by the blob transfer backend.
type BlobStore interface {
	// Put writes size bytes read from r under key, replacing any previous blob.
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
