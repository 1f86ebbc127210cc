package engine

import "errors"

var (
	// ErrEmptyIndex is returned when a query runs against a store that
	// holds no indexed chunks.
	ErrEmptyIndex = errors.New("index is empty")

	// ErrNotFound is returned when a document or chunk does not exist.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned when an operation runs against a closed engine.
	ErrClosed = errors.New("engine is closed")
)
