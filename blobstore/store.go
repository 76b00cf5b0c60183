// Package blobstore abstracts storage of immutable snapshot archives.
//
// Archives are written once and read sequentially, so the interface is
// stream oriented: Put consumes a reader, Open returns one.
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error satisfying errors.Is(err, ErrNotFound).
var ErrNotFound = os.ErrNotExist

// BlobStore stores immutable named blobs.
type BlobStore interface {
	// Put writes a blob atomically: a concurrent Open sees either the
	// previous content or the complete new one.
	Put(ctx context.Context, name string, r io.Reader) error

	// Open opens a blob for sequential reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a stored blob.
type Blob interface {
	io.ReadCloser

	// Size returns the blob size in bytes.
	Size() int64
}
