// Package chunker splits document text into overlapping chunks sized for
// summarization and embedding.
//
// Splitting is deterministic: the same text and options always produce the
// same chunks, which keeps chunk IDs and embedding cache keys stable across
// runs.
package chunker

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/google/uuid"

	"github.com/knowgo/knowgo/model"
)

// ErrInvalidWindow is returned when the chunk window configuration is
// unusable: a non-positive size or an overlap that is negative or not
// smaller than the size.
var ErrInvalidWindow = errors.New("invalid chunk window")

// Options contains configuration options for splitting.
type Options struct {
	// MaxSize is the maximum chunk length in runes.
	MaxSize int

	// Overlap is how many runes consecutive chunks share. Must be smaller
	// than MaxSize so every chunk makes forward progress.
	Overlap int

	// CodeBlocks additionally emits each fenced markdown code block as its
	// own chunk, tagged with chunk_type and language metadata. Code chunks
	// are whole blocks and are never window-split.
	CodeBlocks bool
}

// DefaultOptions contains the default configuration options.
var DefaultOptions = Options{
	MaxSize: 1500,
	Overlap: 300,
}

// Validate checks the window configuration.
func (o Options) Validate() error {
	if o.MaxSize <= 0 {
		return fmt.Errorf("%w: max size %d must be positive", ErrInvalidWindow, o.MaxSize)
	}
	if o.Overlap < 0 {
		return fmt.Errorf("%w: overlap %d must not be negative", ErrInvalidWindow, o.Overlap)
	}
	if o.Overlap >= o.MaxSize {
		return fmt.Errorf("%w: overlap %d must be smaller than max size %d", ErrInvalidWindow, o.Overlap, o.MaxSize)
	}
	return nil
}

// Chunker splits documents with a fixed window configuration.
type Chunker struct {
	opts Options
}

// New creates a Chunker. The window configuration is validated once here
// rather than on every split.
func New(optFns ...func(o *Options)) (*Chunker, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return &Chunker{opts: opts}, nil
}

// Split cuts doc.Text into overlapping chunks. A document with empty text
// yields zero chunks. If doc.ID is empty a fresh UUID is assigned to the
// returned chunks' DocumentID.
//
// Windows prefer to break at a newline or sentence boundary in the second
// half of the window, falling back to a hard cut at MaxSize.
func (c *Chunker) Split(doc model.Document) []model.Chunk {
	docID := doc.ID
	if docID == "" {
		docID = uuid.NewString()
	}

	runes := []rune(doc.Text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []model.Chunk
	start := 0
	for seq := 0; start < len(runes); seq++ {
		end := start + c.opts.MaxSize
		if end >= len(runes) {
			end = len(runes)
		} else if bp := breakPoint(runes[start:end], c.opts.MaxSize); bp > 0 {
			end = start + bp
		}

		chunks = append(chunks, model.Chunk{
			ID:         model.NewChunkID(docID, seq),
			DocumentID: docID,
			Seq:        seq,
			Content:    string(runes[start:end]),
			Metadata:   doc.Metadata,
		})

		if end == len(runes) {
			break
		}

		// Guarantee forward progress even when a break point lands inside
		// the overlap region.
		next := end - c.opts.Overlap
		if next <= start {
			next = end
		}
		start = next
	}

	if c.opts.CodeBlocks {
		for _, block := range ExtractCodeBlocks(doc.Text) {
			seq := len(chunks)
			md := make(map[string]string, len(doc.Metadata)+2)
			maps.Copy(md, doc.Metadata)
			md["chunk_type"] = "code"
			md["language"] = block.Language

			chunks = append(chunks, model.Chunk{
				ID:         model.NewChunkID(docID, seq),
				DocumentID: docID,
				Seq:        seq,
				Content:    block.Code,
				Metadata:   md,
			})
		}
	}

	return chunks
}

// breakPoint finds a cut position inside window: one past the last newline
// or sentence end, provided it lies in the second half so chunks do not
// degenerate. Returns 0 when no acceptable boundary exists.
func breakPoint(window []rune, maxSize int) int {
	text := string(window)

	cut := strings.LastIndex(text, "\n")
	if sentence := strings.LastIndex(text, ". "); sentence > cut {
		cut = sentence
	}
	if cut < 0 {
		return 0
	}

	// Index in runes, not bytes.
	cutRunes := len([]rune(text[:cut]))
	if cutRunes <= maxSize/2 {
		return 0
	}
	return cutRunes + 1
}
