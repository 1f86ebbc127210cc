package blobstore

import (
	"context"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for durable whole-object blob storage.
//
// Snapshots are small relative to the index they describe, so the contract
// is deliberately whole-object: Put replaces the blob atomically from a
// reader's point of view, Get returns a private copy.
type Store interface {
	// Put writes data under name, replacing any previous blob.
	// A reader never observes a partially written blob.
	Put(ctx context.Context, name string, data []byte) error

	// Get returns the blob stored under name, or ErrNotFound.
	Get(ctx context.Context, name string) ([]byte, error)

	// Delete removes the blob if present; deleting an absent blob is not
	// an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
