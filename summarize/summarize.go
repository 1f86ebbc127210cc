// Package summarize produces contextual summaries for chunks: a short
// statement of how a chunk fits into its surrounding document, generated by
// a language model and prepended to the chunk before embedding.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/knowgo/knowgo/llm"
	"github.com/knowgo/knowgo/model"
)

// defaultPromptTemplate asks for a chunk-in-document situating statement.
// The %s verbs receive the document context and the chunk content.
const defaultPromptTemplate = `<document>
%s
</document>

Here is the chunk we want to situate within the whole document:
<chunk>
%s
</chunk>

Please give a short succinct context to situate this chunk within the overall document for the purposes of improving search retrieval of the chunk. Answer only with the succinct context and nothing else.`

// contextPreviewRunes bounds how much raw document text goes into the
// prompt when no explicit context is available.
const contextPreviewRunes = 240

// Options contains configuration options for the summarizer.
type Options struct {
	// PromptTemplate overrides the default prompt. It must contain two %s
	// verbs: document context first, chunk content second.
	PromptTemplate string
}

// DefaultOptions contains the default configuration options.
var DefaultOptions = Options{
	PromptTemplate: defaultPromptTemplate,
}

// Summarizer generates contextual summaries through an llm.Invoker.
type Summarizer struct {
	invoker llm.Invoker
	opts    Options
}

// New creates a Summarizer backed by invoker.
func New(invoker llm.Invoker, optFns ...func(o *Options)) *Summarizer {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Summarizer{invoker: invoker, opts: opts}
}

// Summarize returns a contextual summary for chunk within doc.
// Failures surface as the invoker's error; callers decide whether a chunk
// without a summary is still worth indexing.
func (s *Summarizer) Summarize(ctx context.Context, doc model.Document, chunk model.Chunk) (string, error) {
	prompt := fmt.Sprintf(s.opts.PromptTemplate, DocumentContext(doc), chunk.Content)

	summary, err := s.invoker.Invoke(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(summary), nil
}

// DocumentContext builds the document description used in the prompt: the
// title metadata when present, followed by a bounded preview of the text.
func DocumentContext(doc model.Document) string {
	var b strings.Builder
	if title, ok := doc.Metadata["title"]; ok && title != "" {
		b.WriteString("Title: ")
		b.WriteString(title)
		b.WriteString("\n")
	}

	runes := []rune(doc.Text)
	if len(runes) > contextPreviewRunes {
		b.WriteString(string(runes[:contextPreviewRunes]))
		b.WriteString("...")
	} else {
		b.WriteString(doc.Text)
	}
	return b.String()
}
