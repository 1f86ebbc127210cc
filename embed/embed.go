// Package embed turns chunk text into vectors through an llm.Embedder,
// with a content-addressed cache in front so identical text is embedded at
// most once.
package embed

import (
	"context"
	"fmt"

	"github.com/knowgo/knowgo/cache"
	"github.com/knowgo/knowgo/llm"
	"github.com/knowgo/knowgo/model"
)

// Options contains configuration options for the embedder.
type Options struct {
	// CacheSize bounds the content-embedding cache in entries.
	CacheSize int
}

// DefaultOptions contains the default configuration options.
var DefaultOptions = Options{
	CacheSize: 4096,
}

// Embedder embeds text with caching. The cache key is a hash of the exact
// text, so a chunk whose summary changed is re-embedded while untouched
// chunks hit the cache.
type Embedder struct {
	embedder llm.Embedder
	cache    *cache.Embeddings
}

// New creates an Embedder backed by the given model embedder.
func New(embedder llm.Embedder, optFns ...func(o *Options)) *Embedder {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Embedder{
		embedder: embedder,
		cache:    cache.NewEmbeddings(opts.CacheSize),
	}
}

// EmbedText embeds raw text, consulting the cache first.
// An empty vector from the model is a model fault and surfaces as a
// ModelError.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return e.cache.GetOrCompute(ctx, cache.Key(text), func(ctx context.Context) ([]float32, error) {
		vec, err := e.embedder.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		if len(vec) == 0 {
			return nil, &llm.ModelError{Cause: fmt.Errorf("embedder returned empty vector")}
		}
		return vec, nil
	})
}

// EmbedChunk embeds the chunk's indexable text: the contextual summary, if
// any, prepended to the content.
func (e *Embedder) EmbedChunk(ctx context.Context, chunk model.Chunk) ([]float32, error) {
	return e.EmbedText(ctx, IndexableText(chunk))
}

// IndexableText is the exact text whose embedding represents the chunk.
func IndexableText(chunk model.Chunk) string {
	if chunk.Summary == "" {
		return chunk.Content
	}
	return chunk.Summary + "\n\n" + chunk.Content
}

// CacheStats returns the hit and miss counters of the embedding cache.
func (e *Embedder) CacheStats() (hits, misses int64) {
	return e.cache.Stats()
}
