package knowgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordIngest is called after each ingest operation.
	// chunks is the number of chunks attempted, failed the number dropped.
	RecordIngest(chunks, failed int, duration time.Duration, err error)

	// RecordQuery is called after each query operation.
	RecordQuery(k int, duration time.Duration, err error)

	// RecordRemove is called after each document removal.
	RecordRemove(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordIngest(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordQuery(int, time.Duration, error)       {}
func (NoopMetricsCollector) RecordRemove(time.Duration, error)           {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	IngestCount      atomic.Int64
	IngestErrors     atomic.Int64
	IngestChunks     atomic.Int64
	IngestFailed     atomic.Int64
	IngestTotalNanos atomic.Int64
	QueryCount       atomic.Int64
	QueryErrors      atomic.Int64
	QueryTotalNanos  atomic.Int64
	RemoveCount      atomic.Int64
	RemoveErrors     atomic.Int64
}

// RecordIngest implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIngest(chunks, failed int, duration time.Duration, err error) {
	b.IngestCount.Add(1)
	b.IngestChunks.Add(int64(chunks))
	b.IngestFailed.Add(int64(failed))
	b.IngestTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.IngestErrors.Add(1)
	}
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(k int, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove(duration time.Duration, err error) {
	b.RemoveCount.Add(1)
	if err != nil {
		b.RemoveErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		IngestCount:    b.IngestCount.Load(),
		IngestErrors:   b.IngestErrors.Load(),
		IngestChunks:   b.IngestChunks.Load(),
		IngestFailed:   b.IngestFailed.Load(),
		IngestAvgNanos: avgNanos(b.IngestTotalNanos.Load(), b.IngestCount.Load()),
		QueryCount:     b.QueryCount.Load(),
		QueryErrors:    b.QueryErrors.Load(),
		QueryAvgNanos:  avgNanos(b.QueryTotalNanos.Load(), b.QueryCount.Load()),
		RemoveCount:    b.RemoveCount.Load(),
		RemoveErrors:   b.RemoveErrors.Load(),
	}
}

func avgNanos(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	IngestCount    int64
	IngestErrors   int64
	IngestChunks   int64
	IngestFailed   int64
	IngestAvgNanos int64
	QueryCount     int64
	QueryErrors    int64
	QueryAvgNanos  int64
	RemoveCount    int64
	RemoveErrors   int64
}
