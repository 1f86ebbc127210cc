package engine

import (
	"fmt"

	"github.com/knowgo/knowgo/model"
)

// Stage identifies the pipeline stage where a chunk failed.
type Stage string

const (
	// StageEmbed means the embedding call failed, so the chunk could not
	// be indexed at all.
	StageEmbed Stage = "embed"

	// StageIndex means the index rejected the vector, e.g. a dimension
	// mismatch.
	StageIndex Stage = "index"
)

// ChunkFailure describes one chunk that was dropped during ingestion.
type ChunkFailure struct {
	ChunkID model.ChunkID
	Stage   Stage
	Err     error
}

func (f ChunkFailure) String() string {
	return fmt.Sprintf("chunk %s failed at %s: %v", f.ChunkID, f.Stage, f.Err)
}

// IngestResult reports the per-chunk outcome of one document ingestion.
//
// InsertedChunks counts chunks that made it into the index, including
// degraded ones. DegradedChunks counts inserted chunks that are indexed
// without a contextual summary because summarization failed.
type IngestResult struct {
	DocumentID     string
	TotalChunks    int
	InsertedChunks int
	DegradedChunks int
	Failures       []ChunkFailure
}
