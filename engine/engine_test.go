package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowgo/knowgo/blobstore"
	"github.com/knowgo/knowgo/chunker"
	"github.com/knowgo/knowgo/distance"
	"github.com/knowgo/knowgo/embed"
	"github.com/knowgo/knowgo/index"
	"github.com/knowgo/knowgo/index/flat"
	"github.com/knowgo/knowgo/llm"
	"github.com/knowgo/knowgo/model"
	"github.com/knowgo/knowgo/snapshot"
	"github.com/knowgo/knowgo/summarize"
)

// stubModel is a deterministic llm.Client: summaries are a fixed string and
// embeddings are letter-count vectors, so text sharing letters scores high.
type stubModel struct {
	mu         sync.Mutex
	embedCalls map[string]int

	failInvoke bool   // every summarization fails
	failEmbed  string // embed fails for text containing this substring
	wrongDim   string // embed returns a mis-sized vector for this substring
	onEmbed    func() // runs at the start of every embed call
}

func newStubModel() *stubModel {
	return &stubModel{embedCalls: make(map[string]int)}
}

func (m *stubModel) Invoke(_ context.Context, _ string) (string, error) {
	if m.failInvoke {
		return "", &llm.ModelError{Cause: errors.New("summarizer down")}
	}
	return "ctx", nil
}

func (m *stubModel) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.embedCalls[text]++
	m.mu.Unlock()

	if m.onEmbed != nil {
		m.onEmbed()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if m.failEmbed != "" && strings.Contains(text, m.failEmbed) {
		return nil, &llm.ModelError{Cause: errors.New("embedder down")}
	}
	if m.wrongDim != "" && strings.Contains(text, m.wrongDim) {
		return []float32{1, 1, 1}, nil
	}

	// Count letters a-h, with a constant tail dimension so no vector is
	// ever all zero.
	vec := make([]float32, 9)
	for _, r := range text {
		if r >= 'a' && r <= 'h' {
			vec[r-'a']++
		}
	}
	vec[8] = 1
	return vec, nil
}

func (m *stubModel) embedCount(text string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedCalls[text]
}

func newTestEngine(t *testing.T, client llm.Client, blobs blobstore.Store) *Engine {
	t.Helper()

	ch, err := chunker.New(func(o *chunker.Options) {
		o.MaxSize = 10
		o.Overlap = 0
	})
	require.NoError(t, err)

	eng, err := New(Config{
		Chunker:    ch,
		Summarizer: summarize.New(client),
		Embedder:   embed.New(client),
		Model:      client,
		Index:      flat.New(),
		Metric:     distance.MetricCosine,
		Blobs:      blobs,
	})
	require.NoError(t, err)
	return eng
}

func TestIngestAndQuery(t *testing.T) {
	eng := newTestEngine(t, newStubModel(), nil)
	ctx := context.Background()

	res, err := eng.Ingest(ctx, model.Document{ID: "doc-a", Text: "aaaaaaaaaa"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.InsertedChunks)

	_, err = eng.Ingest(ctx, model.Document{ID: "doc-b", Text: "bbbbbbbbbb"})
	require.NoError(t, err)
	require.Equal(t, 2, eng.Len())

	results, err := eng.Query(ctx, "aaa", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-a", results[0].Chunk.DocumentID)
	assert.Equal(t, "ctx", results[0].Chunk.Summary)

	// Ranked output is non-increasing in score.
	all, err := eng.Query(ctx, "aaa", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.GreaterOrEqual(t, all[0].Score, all[1].Score)
	assert.Equal(t, "doc-a", all[0].Chunk.DocumentID)
}

func TestIngestEmbedFailureSkipsChunk(t *testing.T) {
	client := newStubModel()
	client.failEmbed = "FAIL"
	eng := newTestEngine(t, client, nil)

	// Three hard-cut chunks of ten runes; the middle one cannot be
	// embedded.
	res, err := eng.Ingest(context.Background(), model.Document{
		ID:   "doc-1",
		Text: "aaaaaaaaaa" + "FAILFAILFA" + "bbbbbbbbbb",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalChunks)
	assert.Equal(t, 2, res.InsertedChunks)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, StageEmbed, res.Failures[0].Stage)
	assert.Equal(t, model.NewChunkID("doc-1", 1), res.Failures[0].ChunkID)
	assert.Equal(t, 2, eng.Len())
}

func TestIngestSummaryFailureDegrades(t *testing.T) {
	client := newStubModel()
	client.failInvoke = true
	eng := newTestEngine(t, client, nil)

	res, err := eng.Ingest(context.Background(), model.Document{ID: "doc-1", Text: "aaaaaaaaaabbbbbbbbbb"})
	require.NoError(t, err)

	// Chunks without context still get embedded and indexed.
	assert.Equal(t, 2, res.TotalChunks)
	assert.Equal(t, 2, res.InsertedChunks)
	assert.Equal(t, 2, res.DegradedChunks)
	assert.Empty(t, res.Failures)

	chunks, err := eng.Document("doc-1")
	require.NoError(t, err)
	for _, c := range chunks {
		assert.Empty(t, c.Summary)
	}
}

func TestIngestDimensionMismatch(t *testing.T) {
	client := newStubModel()
	client.wrongDim = "ODD"
	eng := newTestEngine(t, client, nil)

	res, err := eng.Ingest(context.Background(), model.Document{
		ID:   "doc-1",
		Text: "aaaaaaaaaa" + "ODDODDODDO",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.InsertedChunks)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, StageIndex, res.Failures[0].Stage)

	var mismatch *index.ErrDimensionMismatch
	assert.ErrorAs(t, res.Failures[0].Err, &mismatch)
}

func TestIngestCancellationDiscardsBatch(t *testing.T) {
	client := newStubModel()
	eng := newTestEngine(t, client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.onEmbed = cancel

	_, err := eng.Ingest(ctx, model.Document{ID: "doc-1", Text: "aaaaaaaaaabbbbbbbbbbcccccccccc"})
	assert.ErrorIs(t, err, context.Canceled)

	// No chunk of the canceled batch reaches the index or the chunk store.
	assert.Equal(t, 0, eng.Len())
	_, err = eng.Document("doc-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIngestEmptyDocument(t *testing.T) {
	eng := newTestEngine(t, newStubModel(), nil)

	res, err := eng.Ingest(context.Background(), model.Document{ID: "doc-1", Text: ""})
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalChunks)
	assert.Equal(t, 0, eng.Len())
}

func TestIngestAssignsDocumentID(t *testing.T) {
	eng := newTestEngine(t, newStubModel(), nil)

	res, err := eng.Ingest(context.Background(), model.Document{Text: "aaaa"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.DocumentID)
}

func TestReingestReplacesDocument(t *testing.T) {
	eng := newTestEngine(t, newStubModel(), nil)
	ctx := context.Background()

	_, err := eng.Ingest(ctx, model.Document{ID: "doc-1", Text: "aaaaaaaaaabbbbbbbbbbcccccccccc"})
	require.NoError(t, err)
	require.Equal(t, 3, eng.Len())

	// The shrunk document leaves no stale chunks behind.
	_, err = eng.Ingest(ctx, model.Document{ID: "doc-1", Text: "dddddddd"})
	require.NoError(t, err)
	assert.Equal(t, 1, eng.Len())

	chunks, err := eng.Document("doc-1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "dddddddd", chunks[0].Content)
}

func TestQueryEmptyIndex(t *testing.T) {
	eng := newTestEngine(t, newStubModel(), nil)

	_, err := eng.Query(context.Background(), "anything", 5)
	assert.ErrorIs(t, err, ErrEmptyIndex)
}

func TestQueryInvalidK(t *testing.T) {
	eng := newTestEngine(t, newStubModel(), nil)
	ctx := context.Background()

	_, err := eng.Ingest(ctx, model.Document{ID: "doc-1", Text: "aaaa"})
	require.NoError(t, err)

	_, err = eng.Query(ctx, "aaa", 0)
	assert.ErrorIs(t, err, index.ErrInvalidK)
}

func TestQueryCacheAvoidsReembedding(t *testing.T) {
	client := newStubModel()
	eng := newTestEngine(t, client, nil)
	ctx := context.Background()

	_, err := eng.Ingest(ctx, model.Document{ID: "doc-1", Text: "aaaa"})
	require.NoError(t, err)

	for range 3 {
		_, err := eng.Query(ctx, "aaa", 1)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, client.embedCount("aaa"))

	hits, misses := eng.QueryCacheStats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestRemoveDocument(t *testing.T) {
	eng := newTestEngine(t, newStubModel(), nil)
	ctx := context.Background()

	_, err := eng.Ingest(ctx, model.Document{ID: "doc-1", Text: "aaaaaaaaaabbbbbbbbbb"})
	require.NoError(t, err)
	require.Equal(t, 2, eng.Len())

	removed, err := eng.RemoveDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, eng.Len())

	_, err = eng.Query(ctx, "aaa", 1)
	assert.ErrorIs(t, err, ErrEmptyIndex)

	// Unknown document is a no-op.
	removed, err = eng.RemoveDocument(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestPersistenceRoundTrip(t *testing.T) {
	blobs := blobstore.NewMemoryStore()
	ctx := context.Background()

	first := newTestEngine(t, newStubModel(), blobs)
	_, err := first.Ingest(ctx, model.Document{ID: "doc-1", Text: "aaaaaaaaaabbbbbbbbbb"})
	require.NoError(t, err)
	require.NoError(t, first.Close(ctx))

	second := newTestEngine(t, newStubModel(), blobs)
	require.NoError(t, second.Load(ctx))
	assert.Equal(t, 2, second.Len())

	results, err := second.Query(ctx, "aaa", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "aaaaaaaaaa", results[0].Chunk.Content)
	assert.Equal(t, "ctx", results[0].Chunk.Summary)
}

func TestSnapshotSupersededBlobsDeleted(t *testing.T) {
	blobs := blobstore.NewMemoryStore()
	eng := newTestEngine(t, newStubModel(), blobs)
	ctx := context.Background()

	_, err := eng.Ingest(ctx, model.Document{ID: "doc-1", Text: "aaaa"})
	require.NoError(t, err)
	_, err = eng.Ingest(ctx, model.Document{ID: "doc-2", Text: "bbbb"})
	require.NoError(t, err)

	names, err := blobs.List(ctx, snapshotPrefix)
	require.NoError(t, err)
	assert.Len(t, names, 1)
}

func TestLoadWithoutSnapshotStartsEmpty(t *testing.T) {
	eng := newTestEngine(t, newStubModel(), blobstore.NewMemoryStore())
	require.NoError(t, eng.Load(context.Background()))
	assert.Equal(t, 0, eng.Len())
}

func TestLoadCorruptSnapshot(t *testing.T) {
	blobs := blobstore.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, blobs.Put(ctx, currentPointer, []byte("snapshots/0000000000000001.snap")))
	require.NoError(t, blobs.Put(ctx, "snapshots/0000000000000001.snap", []byte("not a snapshot")))

	eng := newTestEngine(t, newStubModel(), blobs)
	err := eng.Load(ctx)
	assert.ErrorIs(t, err, snapshot.ErrBadImage)
	assert.Equal(t, 0, eng.Len())
}

func TestLoadMetricMismatch(t *testing.T) {
	blobs := blobstore.NewMemoryStore()
	ctx := context.Background()

	writer := snapshot.NewWriter(nil, nil)
	data, err := writer.Encode(&snapshot.Image{Metric: "dot", Dimension: 0})
	require.NoError(t, err)
	require.NoError(t, blobs.Put(ctx, "snapshots/0000000000000001.snap", data))
	require.NoError(t, blobs.Put(ctx, currentPointer, []byte("snapshots/0000000000000001.snap")))

	eng := newTestEngine(t, newStubModel(), blobs)
	assert.ErrorIs(t, eng.Load(ctx), snapshot.ErrBadImage)
}

func TestLoadUnknownMetric(t *testing.T) {
	blobs := blobstore.NewMemoryStore()
	ctx := context.Background()

	writer := snapshot.NewWriter(nil, nil)
	data, err := writer.Encode(&snapshot.Image{Metric: "hamming", Dimension: 0})
	require.NoError(t, err)
	require.NoError(t, blobs.Put(ctx, "snapshots/0000000000000001.snap", data))
	require.NoError(t, blobs.Put(ctx, currentPointer, []byte("snapshots/0000000000000001.snap")))

	eng := newTestEngine(t, newStubModel(), blobs)
	assert.ErrorIs(t, eng.Load(ctx), snapshot.ErrBadImage)
}

func TestClosedEngineRejectsOperations(t *testing.T) {
	eng := newTestEngine(t, newStubModel(), nil)
	ctx := context.Background()

	require.NoError(t, eng.Close(ctx))
	require.NoError(t, eng.Close(ctx)) // idempotent

	_, err := eng.Ingest(ctx, model.Document{Text: "aaaa"})
	assert.ErrorIs(t, err, ErrClosed)

	_, err = eng.Query(ctx, "aaa", 1)
	assert.ErrorIs(t, err, ErrClosed)

	assert.ErrorIs(t, eng.Checkpoint(ctx), ErrClosed)
}

func TestDocumentNotFound(t *testing.T) {
	eng := newTestEngine(t, newStubModel(), nil)

	_, err := eng.Document("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
