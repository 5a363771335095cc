// Package storage defines the interface for the artifact store every
// phase writes to. The abstraction keeps the pipeline independent of
// whether artifacts land on the local filesystem or in a GCS bucket.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist reports a Get for an object that was never written.
var ErrNotExist = errors.New("object does not exist")

// BlobStore reads and writes named artifacts. Paths are slash-separated
// keys relative to the store root, e.g. "clean_text/Sonichu.txt".
type BlobStore interface {
	// Put writes the object and returns its URI.
	Put(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	// Get reads the whole object, or ErrNotExist.
	Get(ctx context.Context, path string) ([]byte, error)
	// Exists reports whether the object has been written.
	Exists(ctx context.Context, path string) (bool, error)
	// Size reports the object's size in bytes, or ErrNotExist.
	Size(ctx context.Context, path string) (int64, error)
	// List returns the paths of all objects under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
