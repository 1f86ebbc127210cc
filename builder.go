// This file implements the fluent builder API for creating and configuring
// Store instances. The builder is immutable: each method returns a new
// builder with the updated configuration, so partial configurations can be
// shared safely.
package knowgo

import (
	"fmt"

	"github.com/knowgo/knowgo/blobstore"
	"github.com/knowgo/knowgo/chunker"
	"github.com/knowgo/knowgo/codec"
	"github.com/knowgo/knowgo/distance"
	"github.com/knowgo/knowgo/embed"
	"github.com/knowgo/knowgo/engine"
	"github.com/knowgo/knowgo/index/flat"
	"github.com/knowgo/knowgo/llm"
	"github.com/knowgo/knowgo/snapshot"
	"github.com/knowgo/knowgo/summarize"
)

// New creates a Store builder around a model client.
//
// Example:
//
//	store, err := knowgo.New(llm.NewOpenAI(apiKey)).
//	    ChunkSize(1200).
//	    ChunkOverlap(200).
//	    Path("./knowledge").
//	    Build()
func New(client llm.Client) Builder {
	return Builder{
		client:       client,
		chunkSize:    chunker.DefaultOptions.MaxSize,
		chunkOverlap: chunker.DefaultOptions.Overlap,
		metric:       distance.MetricCosine,
	}
}

// Builder is an immutable fluent builder for creating Store instances.
// Each method returns a new builder with the updated configuration.
type Builder struct {
	client       llm.Client
	chunkSize    int
	chunkOverlap int
	codeBlocks   bool
	metric       distance.Metric

	maxConcurrency int
	queryCacheSize int
	embedCacheSize int

	path  string
	blobs blobstore.Store

	codec       codec.Codec
	compression snapshot.Compression

	promptTemplate string
	noSummaries    bool
	noThrottle     bool
	throttleFns    []func(*llm.ThrottledOptions)

	logger  *Logger
	metrics MetricsCollector
}

// ChunkSize sets the maximum chunk length in runes.
// Default: 1500.
func (b Builder) ChunkSize(n int) Builder {
	b.chunkSize = n
	return b
}

// ChunkOverlap sets how many runes consecutive chunks share. Must be
// smaller than the chunk size.
// Default: 300.
func (b Builder) ChunkOverlap(n int) Builder {
	b.chunkOverlap = n
	return b
}

// IndexCodeBlocks additionally indexes each fenced markdown code block as
// its own chunk, tagged with chunk_type and language metadata, so code
// snippets are retrievable independently of the prose around them.
func (b Builder) IndexCodeBlocks() Builder {
	b.codeBlocks = true
	return b
}

// Cosine ranks results by cosine similarity (the default). Vectors are
// L2-normalized on insert and query.
func (b Builder) Cosine() Builder {
	b.metric = distance.MetricCosine
	return b
}

// DotProduct ranks results by raw inner product without normalization.
func (b Builder) DotProduct() Builder {
	b.metric = distance.MetricDot
	return b
}

// MaxConcurrency caps how many chunks are summarized and embedded in
// parallel during ingestion.
// Default: 4.
func (b Builder) MaxConcurrency(n int) Builder {
	b.maxConcurrency = n
	return b
}

// QueryCacheSize bounds the query-embedding cache in entries.
// Default: 256.
func (b Builder) QueryCacheSize(n int) Builder {
	b.queryCacheSize = n
	return b
}

// EmbedCacheSize bounds the content-embedding cache in entries.
// Default: 4096.
func (b Builder) EmbedCacheSize(n int) Builder {
	b.embedCacheSize = n
	return b
}

// Path persists snapshots to a local directory.
func (b Builder) Path(dir string) Builder {
	b.path = dir
	b.blobs = nil
	return b
}

// Blob persists snapshots to the given blobstore, e.g. the S3 or MinIO
// backends in the blobstore subpackages. Overrides Path.
func (b Builder) Blob(store blobstore.Store) Builder {
	b.blobs = store
	b.path = ""
	return b
}

// Codec sets the snapshot payload codec.
func (b Builder) Codec(c codec.Codec) Builder {
	b.codec = c
	return b
}

// Compression sets the snapshot compression.
// Default: s2.
func (b Builder) Compression(c snapshot.Compression) Builder {
	b.compression = c
	return b
}

// PromptTemplate overrides the contextual-summary prompt. It must contain
// two %s verbs: document context first, chunk content second.
func (b Builder) PromptTemplate(tmpl string) Builder {
	b.promptTemplate = tmpl
	return b
}

// WithoutSummaries disables contextual summaries; chunks are embedded from
// their raw content only.
func (b Builder) WithoutSummaries() Builder {
	b.noSummaries = true
	return b
}

// Throttle tunes the rate limiting, concurrency cap, timeout and retry
// policy applied to model calls.
func (b Builder) Throttle(optFns ...func(o *llm.ThrottledOptions)) Builder {
	b.throttleFns = append(b.throttleFns[:len(b.throttleFns):len(b.throttleFns)], optFns...)
	return b
}

// WithoutThrottle passes model calls through without rate limiting,
// timeouts or retries. Intended for tests and fakes.
func (b Builder) WithoutThrottle() Builder {
	b.noThrottle = true
	return b
}

// Logger sets the structured logger for operation tracing.
func (b Builder) Logger(l *Logger) Builder {
	b.logger = l
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b Builder) Metrics(mc MetricsCollector) Builder {
	b.metrics = mc
	return b
}

// Build creates the Store.
func (b Builder) Build() (*Store, error) {
	if b.client == nil {
		return nil, fmt.Errorf("%w: model client is required", ErrInvalidConfig)
	}

	client := b.client
	if !b.noThrottle {
		client = llm.NewThrottled(client, b.throttleFns...)
	}

	ch, err := chunker.New(func(o *chunker.Options) {
		o.MaxSize = b.chunkSize
		o.Overlap = b.chunkOverlap
		o.CodeBlocks = b.codeBlocks
	})
	if err != nil {
		return nil, translateError(err)
	}

	var summarizer *summarize.Summarizer
	if !b.noSummaries {
		summarizer = summarize.New(client, func(o *summarize.Options) {
			if b.promptTemplate != "" {
				o.PromptTemplate = b.promptTemplate
			}
		})
	}

	embedder := embed.New(client, func(o *embed.Options) {
		if b.embedCacheSize > 0 {
			o.CacheSize = b.embedCacheSize
		}
	})

	blobs := b.blobs
	if b.path != "" {
		local, err := blobstore.NewLocalStore(b.path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		blobs = local
	}

	logger := b.logger
	if logger == nil {
		logger = NoopLogger()
	}
	metrics := b.metrics
	if metrics == nil {
		metrics = NoopMetricsCollector{}
	}

	eng, err := engine.New(engine.Config{
		Chunker:    ch,
		Summarizer: summarizer,
		Embedder:   embedder,
		Model:      client,
		Index: flat.New(func(o *flat.Options) {
			o.Metric = b.metric
		}),
		Metric:         b.metric,
		Blobs:          blobs,
		Snapshot:       snapshot.NewWriter(b.codec, b.compression),
		QueryCacheSize: b.queryCacheSize,
		MaxConcurrency: b.maxConcurrency,
		Logger:         logger.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return &Store{
		engine:  eng,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// MustBuild creates the Store and panics on configuration errors.
func (b Builder) MustBuild() *Store {
	store, err := b.Build()
	if err != nil {
		panic(err)
	}
	return store
}
