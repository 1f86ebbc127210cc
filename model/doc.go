// Package model defines the shared value types of the knowledge store:
// documents, chunks, and scored query results.
//
// The types here are plain data. All behavior (chunking, summarization,
// embedding, indexing) lives in the packages that operate on them.
package model
