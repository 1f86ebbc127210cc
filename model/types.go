package model

import "fmt"

// ChunkID is the stable, user-facing identifier of a chunk.
// It is derived deterministically from the owning document: "<documentID>#<seq>".
type ChunkID string

// NewChunkID builds the deterministic chunk identifier for a document position.
func NewChunkID(documentID string, seq int) ChunkID {
	return ChunkID(fmt.Sprintf("%s#%d", documentID, seq))
}

// Document is the unit of ingestion. It is immutable once ingested.
type Document struct {
	// ID uniquely identifies the document. If empty, the store assigns one
	// on ingestion.
	ID string

	// Text is the raw document content.
	Text string

	// Metadata carries caller-supplied key/value pairs. It is copied onto
	// every chunk of the document.
	Metadata map[string]string
}

// Chunk is a bounded span of a document's text, the unit of indexing and
// retrieval. Summary and Embedding are populated progressively during
// ingestion and may be absent on failure paths.
type Chunk struct {
	ID         ChunkID
	DocumentID string

	// Seq is the zero-based position of the chunk within its document.
	Seq int

	// Content is a substring of the document text.
	Content string

	// Summary is the model-generated contextual blurb. Empty if
	// summarization failed for this chunk.
	Summary string

	// Embedding is the vector representation of Summary + Content.
	// Nil until computed.
	Embedding []float32

	// Metadata is inherited from the owning document.
	Metadata map[string]string
}

// ScoredChunk is a chunk paired with its similarity score for a query.
type ScoredChunk struct {
	Chunk

	// Score is the cosine similarity to the query. Higher is better.
	Score float32
}
