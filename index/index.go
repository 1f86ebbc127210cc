// Package index defines the contract and error types for the vector index.
package index

import (
	"errors"
	"fmt"

	"github.com/knowgo/knowgo/model"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrZeroVector is returned when a vector cannot be L2-normalized
	// because all of its components are zero.
	ErrZeroVector = errors.New("cannot normalize zero vector")
)

// ErrDimensionMismatch is a named error type for dimension mismatch.
// The index dimension is fixed by the first successfully inserted vector;
// any later disagreement fails with this error and never mutates the index.
type ErrDimensionMismatch struct {
	Expected int // Established index dimension
	Actual   int // Dimension of the offending vector
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// SearchResult represents a single search hit.
type SearchResult struct {
	// ChunkID is the identifier of the matching chunk.
	ChunkID model.ChunkID

	// Score is the similarity between the query and the stored vector.
	// Higher is better.
	Score float32
}

// Entry is an (id, vector) pair as stored by the index. Used for
// persistence; the vector is the stored (possibly normalized) form.
type Entry struct {
	ChunkID model.ChunkID
	Vector  []float32
}

// Index is a similarity index over chunk embeddings.
//
// Implementations must allow searches to proceed concurrently with writes:
// a search observes either the pre- or post-write state for any given entry,
// never a partially written vector.
type Index interface {
	// Insert adds or replaces the vector stored under id.
	Insert(id model.ChunkID, vector []float32) error

	// Remove deletes the entry for id if present; no-op otherwise.
	Remove(id model.ChunkID)

	// Search returns up to min(k, Len()) results ordered by descending
	// score. Ties break by ascending chunk ID.
	Search(query []float32, k int) ([]SearchResult, error)

	// Dimension returns the established vector dimension, or 0 if the
	// index has never held a vector.
	Dimension() int

	// Len returns the number of live entries.
	Len() int

	// Entries returns all live entries. The returned vectors alias index
	// memory and must be treated as read-only.
	Entries() []Entry

	// Restore replaces the full index contents, fixing the dimension.
	// Vectors are assumed to be in stored (normalized) form already.
	Restore(dimension int, entries []Entry) error
}
