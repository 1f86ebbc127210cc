package knowgo

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with knowgo-specific helpers. This provides
// structured logging with consistent field names across operations.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses the default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// WithDocument adds a document ID field to the logger.
func (l *Logger) WithDocument(id string) *Logger {
	return &Logger{Logger: l.Logger.With("document_id", id)}
}

// LogIngest logs the outcome of an ingest operation.
func (l *Logger) LogIngest(ctx context.Context, result *IngestResult, err error) {
	if err != nil {
		l.ErrorContext(ctx, "ingest failed", "error", err)
		return
	}

	switch {
	case len(result.Failures) > 0 || result.DegradedChunks > 0:
		l.WarnContext(ctx, "ingest completed with faults",
			"document_id", result.DocumentID,
			"chunks", result.TotalChunks,
			"inserted", result.InsertedChunks,
			"degraded", result.DegradedChunks,
			"failed", len(result.Failures),
		)
	default:
		l.InfoContext(ctx, "ingest completed",
			"document_id", result.DocumentID,
			"chunks", result.TotalChunks,
		)
	}
}

// LogQuery logs a query operation.
func (l *Logger) LogQuery(ctx context.Context, k, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed", "k", k, "error", err)
		return
	}
	l.DebugContext(ctx, "query completed", "k", k, "results", results)
}

// LogRemove logs a document removal.
func (l *Logger) LogRemove(ctx context.Context, documentID string, removed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "remove failed", "document_id", documentID, "error", err)
		return
	}
	l.InfoContext(ctx, "document removed", "document_id", documentID, "chunks", removed)
}
