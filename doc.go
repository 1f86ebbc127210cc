// Package knowgo provides an embedded contextual-retrieval knowledge store
// for Go.
//
// Documents are split into overlapping chunks, each chunk is situated in its
// document by a model-generated contextual summary, and the summary-plus-
// content text is embedded and indexed for similarity search. Queries embed
// the question and return the best-matching chunks with their scores.
//
// # Quick Start
//
//	ctx := context.Background()
//	store, err := knowgo.New(llm.NewOpenAI(apiKey)).
//	    ChunkSize(1200).
//	    Path("./knowledge").
//	    Build()
//	if err != nil {
//	    panic(err)
//	}
//	defer store.Close(ctx)
//
//	if err := store.Load(ctx); err != nil {
//	    panic(err)
//	}
//
//	result, err := store.Ingest(ctx, model.Document{
//	    Text:     contents,
//	    Metadata: map[string]string{"title": "Install Guide"},
//	})
//
//	hits, err := store.Query(ctx, "how do I configure the daemon?", 5)
//
// # Persistence
//
// State persists as a single self-describing snapshot written after every
// mutation. Path() stores it on the local filesystem; Blob() accepts any
// blobstore.Store, including the S3, MinIO and DynamoDB-coordinated
// backends in the blobstore subpackages. A store built with neither is
// ephemeral.
//
// # Failure Handling
//
// Model failures degrade gracefully: a chunk whose summary cannot be
// generated is indexed without one, and a chunk that cannot be embedded is
// skipped and reported in the IngestResult. Corrupt snapshots are detected
// on Load, logged, and replaced by an empty store rather than failing
// startup.
package knowgo
