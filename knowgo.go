package knowgo

import (
	"context"
	"errors"
	"time"

	"github.com/knowgo/knowgo/engine"
	"github.com/knowgo/knowgo/model"
	"github.com/knowgo/knowgo/snapshot"
)

// IngestResult reports the per-chunk outcome of one document ingestion.
type IngestResult = engine.IngestResult

// ChunkFailure describes one chunk dropped during ingestion.
type ChunkFailure = engine.ChunkFailure

// Store is a contextual-retrieval knowledge store. Create one with the
// builder returned by New.
//
// A Store is safe for concurrent use: queries run lock-free against an
// immutable index state while mutations are serialized internally.
type Store struct {
	engine  *engine.Engine
	logger  *Logger
	metrics MetricsCollector
}

// Ingest splits doc into chunks, situates each chunk with a contextual
// summary, embeds and indexes them, and persists a new snapshot.
//
// Chunk-level model failures do not fail the batch: a chunk whose summary
// fails is indexed without one (reported via DegradedChunks), and a chunk
// whose embedding fails is skipped (reported via Failures). Cancellation of
// ctx discards the whole batch.
func (s *Store) Ingest(ctx context.Context, doc model.Document) (*IngestResult, error) {
	start := time.Now()

	result, err := s.engine.Ingest(ctx, doc)
	err = translateError(err)

	failed := 0
	chunks := 0
	if result != nil {
		failed = len(result.Failures)
		chunks = result.TotalChunks
	}
	s.metrics.RecordIngest(chunks, failed, time.Since(start), err)
	s.logger.LogIngest(ctx, result, err)

	return result, err
}

// Query embeds text and returns up to k chunks ranked by descending
// similarity. Querying an empty store fails with ErrEmptyIndex.
func (s *Store) Query(ctx context.Context, text string, k int) ([]model.ScoredChunk, error) {
	start := time.Now()

	results, err := s.engine.Query(ctx, text, k)
	err = translateError(err)

	s.metrics.RecordQuery(k, time.Since(start), err)
	s.logger.LogQuery(ctx, k, len(results), err)

	return results, err
}

// RemoveDocument removes every chunk of a document and persists the new
// state. Removing an unknown document is a no-op returning 0.
func (s *Store) RemoveDocument(ctx context.Context, documentID string) (int, error) {
	start := time.Now()

	removed, err := s.engine.RemoveDocument(ctx, documentID)
	err = translateError(err)

	s.metrics.RecordRemove(time.Since(start), err)
	s.logger.LogRemove(ctx, documentID, removed, err)

	return removed, err
}

// Document returns the stored chunks of a document in split order, or
// ErrNotFound.
func (s *Store) Document(documentID string) ([]model.Chunk, error) {
	chunks, err := s.engine.Document(documentID)
	return chunks, translateError(err)
}

// Len returns the number of indexed chunks.
func (s *Store) Len() int {
	return s.engine.Len()
}

// QueryCacheStats returns hit and miss counters of the query cache.
func (s *Store) QueryCacheStats() (hits, misses int64) {
	return s.engine.QueryCacheStats()
}

// Load restores state from the configured blobstore. A missing snapshot
// leaves the store empty. A corrupt snapshot is logged and replaced by an
// empty store; pass errors through instead with LoadStrict.
func (s *Store) Load(ctx context.Context) error {
	err := s.engine.Load(ctx)
	if errors.Is(err, snapshot.ErrBadImage) {
		s.logger.WarnContext(ctx, "snapshot unreadable, starting empty", "error", err)
		return nil
	}
	return translateError(err)
}

// LoadStrict restores state from the configured blobstore and fails with
// ErrBadSnapshot when the snapshot cannot be decoded.
func (s *Store) LoadStrict(ctx context.Context) error {
	return translateError(s.engine.Load(ctx))
}
