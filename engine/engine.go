// Package engine orchestrates the ingestion and retrieval pipeline: chunk,
// summarize, embed, index, persist on the way in; embed, search, hydrate on
// the way out.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/knowgo/knowgo/blobstore"
	"github.com/knowgo/knowgo/cache"
	"github.com/knowgo/knowgo/chunker"
	"github.com/knowgo/knowgo/distance"
	"github.com/knowgo/knowgo/embed"
	"github.com/knowgo/knowgo/index"
	"github.com/knowgo/knowgo/llm"
	"github.com/knowgo/knowgo/model"
	"github.com/knowgo/knowgo/snapshot"
	"github.com/knowgo/knowgo/summarize"
)

const (
	snapshotPrefix = "snapshots/"

	// currentPointer is the blob whose content names the latest snapshot.
	// Blobstores with coordinated commits intercept writes to this name.
	currentPointer = "CURRENT"
)

// Config assembles the engine's collaborators. Chunker, Embedder, Model and
// Index are required; a nil Summarizer disables contextual summaries and a
// nil Blobs makes the store ephemeral.
type Config struct {
	Chunker    *chunker.Chunker
	Summarizer *summarize.Summarizer
	Embedder   *embed.Embedder

	// Model embeds query text. Usually the same throttled client that
	// backs Embedder.
	Model llm.Embedder

	Index  index.Index
	Metric distance.Metric

	Blobs          blobstore.Store
	Snapshot       *snapshot.Writer
	QueryCacheSize int
	MaxConcurrency int

	Logger *slog.Logger
}

// Engine coordinates the pipeline around the vector index and chunk store.
//
// Reads (Query) run lock-free against the index. A single mutex serializes
// mutations so the index, the chunk store and the persisted snapshot always
// advance together.
type Engine struct {
	chunker    *chunker.Chunker
	summarizer *summarize.Summarizer
	embedder   *embed.Embedder
	model      llm.Embedder

	idx    index.Index
	metric distance.Metric
	chunks *ChunkStore

	queryCache *cache.Embeddings

	blobs blobstore.Store
	snap  *snapshot.Writer

	maxConcurrency int
	logger         *slog.Logger

	mu          sync.Mutex
	closed      bool
	snapName    string // latest persisted snapshot blob, "" before the first
	snapVersion uint64
}

// New creates an Engine from cfg.
func New(cfg Config) (*Engine, error) {
	if cfg.Chunker == nil {
		return nil, errors.New("engine: chunker is required")
	}
	if cfg.Embedder == nil {
		return nil, errors.New("engine: embedder is required")
	}
	if cfg.Model == nil {
		return nil, errors.New("engine: model embedder is required")
	}
	if cfg.Index == nil {
		return nil, errors.New("engine: index is required")
	}

	if cfg.QueryCacheSize < 1 {
		cfg.QueryCacheSize = 256
	}
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 4
	}
	if cfg.Snapshot == nil {
		cfg.Snapshot = snapshot.NewWriter(nil, nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	return &Engine{
		chunker:        cfg.Chunker,
		summarizer:     cfg.Summarizer,
		embedder:       cfg.Embedder,
		model:          cfg.Model,
		idx:            cfg.Index,
		metric:         cfg.Metric,
		chunks:         NewChunkStore(),
		queryCache:     cache.NewEmbeddings(cfg.QueryCacheSize),
		blobs:          cfg.Blobs,
		snap:           cfg.Snapshot,
		maxConcurrency: cfg.MaxConcurrency,
		logger:         cfg.Logger,
	}, nil
}

// chunkOutcome carries one chunk through the concurrent pipeline stages.
type chunkOutcome struct {
	chunk    model.Chunk
	vector   []float32
	degraded bool
	failure  *ChunkFailure
}

// Ingest chunks, summarizes, embeds and indexes doc, then persists a new
// snapshot. Chunk-level model failures degrade or skip individual chunks
// rather than failing the batch; a canceled context discards the whole
// batch. Re-ingesting a document replaces its previous chunks.
func (e *Engine) Ingest(ctx context.Context, doc model.Document) (*IngestResult, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	chunks := e.chunker.Split(doc)
	result := &IngestResult{DocumentID: doc.ID, TotalChunks: len(chunks)}
	if len(chunks) == 0 {
		return result, nil
	}

	outcomes := make([]chunkOutcome, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrency)
	for i, c := range chunks {
		g.Go(func() error {
			return e.prepareChunk(gctx, doc, c, &outcomes[i])
		})
	}
	if err := g.Wait(); err != nil {
		// Only cancellation escapes prepareChunk.
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}

	inserted := make(map[model.ChunkID]struct{}, len(outcomes))
	for i := range outcomes {
		o := &outcomes[i]
		if o.failure != nil {
			result.Failures = append(result.Failures, *o.failure)
			continue
		}

		if err := e.idx.Insert(o.chunk.ID, o.vector); err != nil {
			result.Failures = append(result.Failures, ChunkFailure{
				ChunkID: o.chunk.ID,
				Stage:   StageIndex,
				Err:     err,
			})
			continue
		}

		o.chunk.Embedding = o.vector
		e.chunks.Set(o.chunk)
		inserted[o.chunk.ID] = struct{}{}
		result.InsertedChunks++
		if o.degraded {
			result.DegradedChunks++
		}
	}

	// Drop chunks from an earlier ingest of this document that no longer
	// exist in the new split.
	for _, id := range e.chunks.ChunksOf(doc.ID) {
		if _, ok := inserted[id]; !ok {
			e.idx.Remove(id)
			e.chunks.Delete(id)
		}
	}

	if err := e.persistLocked(ctx); err != nil {
		return result, err
	}

	e.logger.InfoContext(ctx, "document ingested",
		"document_id", doc.ID,
		"chunks", result.TotalChunks,
		"inserted", result.InsertedChunks,
		"degraded", result.DegradedChunks,
		"failed", len(result.Failures),
	)

	return result, nil
}

// prepareChunk runs the summarize and embed stages for one chunk. Model
// faults are recorded in out; only context cancellation is returned as an
// error so it cancels the sibling goroutines.
func (e *Engine) prepareChunk(ctx context.Context, doc model.Document, c model.Chunk, out *chunkOutcome) error {
	if e.summarizer != nil {
		summary, err := e.summarizer.Summarize(ctx, doc, c)
		switch {
		case err == nil:
			c.Summary = summary
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			// A chunk without context is still worth indexing.
			out.degraded = true
			e.logger.WarnContext(ctx, "summarization failed, indexing without context",
				"chunk_id", c.ID, "error", err)
		}
	}

	vector, err := e.embedder.EmbedChunk(ctx, c)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		out.failure = &ChunkFailure{ChunkID: c.ID, Stage: StageEmbed, Err: err}
		return nil
	}

	out.chunk = c
	out.vector = vector
	return nil
}

// Query embeds text (through the query cache), searches the index and
// hydrates the matching chunks. An empty index fails with ErrEmptyIndex so
// "no data" is distinguishable from "no matches".
func (e *Engine) Query(ctx context.Context, text string, k int) ([]model.ScoredChunk, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if e.idx.Len() == 0 {
		return nil, ErrEmptyIndex
	}

	vector, err := e.queryCache.GetOrCompute(ctx, cache.Key(text), func(ctx context.Context) ([]float32, error) {
		vec, err := e.model.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		if len(vec) == 0 {
			return nil, &llm.ModelError{Cause: errors.New("embedder returned empty vector")}
		}
		return vec, nil
	})
	if err != nil {
		return nil, err
	}

	hits, err := e.idx.Search(vector, k)
	if err != nil {
		return nil, err
	}

	results := make([]model.ScoredChunk, 0, len(hits))
	for _, hit := range hits {
		chunk, ok := e.chunks.Get(hit.ChunkID)
		if !ok {
			// Index and chunk store move under one lock; a miss here
			// means a remove raced in after the search snapshot.
			continue
		}
		results = append(results, model.ScoredChunk{Chunk: chunk, Score: hit.Score})
	}

	e.logger.DebugContext(ctx, "query completed", "k", k, "results", len(results))
	return results, nil
}

// RemoveDocument removes every chunk of a document and persists the new
// state. Returns the number of removed chunks; removing an unknown
// document is a no-op.
func (e *Engine) RemoveDocument(ctx context.Context, documentID string) (int, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}

	ids := e.chunks.ChunksOf(documentID)
	for _, id := range ids {
		e.idx.Remove(id)
		e.chunks.Delete(id)
	}

	if len(ids) > 0 {
		if err := e.persistLocked(ctx); err != nil {
			return len(ids), err
		}
		e.logger.InfoContext(ctx, "document removed", "document_id", documentID, "chunks", len(ids))
	}

	return len(ids), nil
}

// Document returns the stored chunks of a document in split order.
func (e *Engine) Document(documentID string) ([]model.Chunk, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	ids := e.chunks.ChunksOf(documentID)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, documentID)
	}

	chunks := make([]model.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := e.chunks.Get(id); ok {
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}

// Len returns the number of indexed chunks.
func (e *Engine) Len() int {
	return e.idx.Len()
}

// QueryCacheStats returns hit and miss counters of the query cache.
func (e *Engine) QueryCacheStats() (hits, misses int64) {
	return e.queryCache.Stats()
}

// Checkpoint persists the current state to the blobstore.
func (e *Engine) Checkpoint(ctx context.Context) error {
	if err := e.checkOpen(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return e.persistLocked(ctx)
}

// Close checkpoints and marks the engine closed. Further operations fail
// with ErrClosed.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}

	err := e.persistLocked(ctx)
	e.closed = true
	return err
}

func (e *Engine) checkOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return nil
}

// persistLocked writes a versioned snapshot blob and advances the CURRENT
// pointer. Caller must hold e.mu.
func (e *Engine) persistLocked(ctx context.Context) error {
	if e.blobs == nil {
		return nil
	}

	img := e.buildImage()
	data, err := e.snap.Encode(img)
	if err != nil {
		return fmt.Errorf("engine: encode snapshot: %w", err)
	}

	name := fmt.Sprintf("%s%016d.snap", snapshotPrefix, e.snapVersion+1)
	if err := e.blobs.Put(ctx, name, data); err != nil {
		return fmt.Errorf("engine: write snapshot: %w", err)
	}
	if err := e.blobs.Put(ctx, currentPointer, []byte(name)); err != nil {
		return fmt.Errorf("engine: commit snapshot: %w", err)
	}

	prev := e.snapName
	e.snapName = name
	e.snapVersion++

	if prev != "" && prev != name {
		// Superseded snapshot; losing it costs nothing.
		if err := e.blobs.Delete(ctx, prev); err != nil {
			e.logger.WarnContext(ctx, "failed to delete previous snapshot", "name", prev, "error", err)
		}
	}

	e.logger.DebugContext(ctx, "snapshot persisted", "name", name, "chunks", e.chunks.Len(), "bytes", len(data))
	return nil
}

// buildImage assembles the snapshot image. Vectors come from the index so
// the persisted form is exactly the stored (normalized) form.
func (e *Engine) buildImage() *snapshot.Image {
	entries := e.idx.Entries()
	chunks := make([]model.Chunk, 0, len(entries))
	for _, entry := range entries {
		chunk, ok := e.chunks.Get(entry.ChunkID)
		if !ok {
			continue
		}
		chunk.Embedding = entry.Vector
		chunks = append(chunks, chunk)
	}

	return &snapshot.Image{
		Metric:    e.metric.String(),
		Dimension: e.idx.Dimension(),
		Chunks:    chunks,
	}
}

// Load restores state from the latest snapshot in the blobstore. A missing
// snapshot leaves the engine empty; a corrupt one fails with
// snapshot.ErrBadImage and also leaves the engine empty, so the caller can
// choose between failing and starting fresh.
func (e *Engine) Load(ctx context.Context) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if e.blobs == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	nameBytes, err := e.blobs.Get(ctx, currentPointer)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("engine: read snapshot pointer: %w", err)
	}
	name := string(nameBytes)

	data, err := e.blobs.Get(ctx, name)
	if errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: snapshot %s is missing", snapshot.ErrBadImage, name)
	}
	if err != nil {
		return fmt.Errorf("engine: read snapshot: %w", err)
	}

	img, err := snapshot.Decode(data)
	if err != nil {
		return err
	}
	metric, ok := distance.MetricByName(img.Metric)
	if !ok {
		return fmt.Errorf("%w: unknown snapshot metric %q", snapshot.ErrBadImage, img.Metric)
	}
	if metric != e.metric {
		return fmt.Errorf("%w: snapshot metric %q does not match store metric %q", snapshot.ErrBadImage, img.Metric, e.metric)
	}

	entries := make([]index.Entry, 0, len(img.Chunks))
	for _, chunk := range img.Chunks {
		entries = append(entries, index.Entry{ChunkID: chunk.ID, Vector: chunk.Embedding})
	}
	if err := e.idx.Restore(img.Dimension, entries); err != nil {
		return fmt.Errorf("%w: %v", snapshot.ErrBadImage, err)
	}
	e.chunks.Reset(img.Chunks)

	e.snapName = name
	var version uint64
	if _, err := fmt.Sscanf(name, snapshotPrefix+"%d.snap", &version); err == nil {
		e.snapVersion = version
	}

	e.logger.InfoContext(ctx, "snapshot loaded", "name", name, "chunks", len(img.Chunks), "dimension", img.Dimension)
	return nil
}
