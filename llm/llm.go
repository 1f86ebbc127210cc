// Package llm defines the language-model boundary of the store: text
// generation for contextual summaries and embedding of text into vectors.
//
// The store never talks to a provider directly; it goes through these
// interfaces so tests can substitute deterministic fakes and callers can
// bring any backend.
package llm

import (
	"context"
	"fmt"
)

// Invoker generates text from a prompt.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Embedder converts text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Client combines generation and embedding, usually backed by the same
// provider.
type Client interface {
	Invoker
	Embedder
}

// ModelError indicates a model call that failed after any configured
// retries: transport failures, provider errors, timeouts, or malformed
// responses.
//
// The original underlying error can be accessed via errors.Unwrap.
type ModelError struct {
	Cause error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model call failed: %v", e.Cause)
}

func (e *ModelError) Unwrap() error { return e.Cause }
