package knowgo

import (
	"errors"
	"fmt"

	"github.com/knowgo/knowgo/chunker"
	"github.com/knowgo/knowgo/engine"
	"github.com/knowgo/knowgo/index"
	"github.com/knowgo/knowgo/snapshot"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrEmptyIndex is returned when a query runs against a store that
	// holds no indexed chunks.
	ErrEmptyIndex = errors.New("store is empty")

	// ErrNotFound is returned when a document is not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig is returned by Build when the configuration is
	// unusable.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrBadSnapshot is returned when a persisted snapshot cannot be
	// decoded.
	ErrBadSnapshot = errors.New("bad snapshot")

	// ErrClosed is returned when an operation runs against a closed store.
	ErrClosed = errors.New("store is closed")
)

// ErrDimensionMismatch indicates an embedding whose dimension disagrees
// with the established index dimension.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// translateError normalizes internal errors into the package-level taxonomy
// so callers only match against knowgo errors.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, engine.ErrEmptyIndex) {
		return fmt.Errorf("%w: %w", ErrEmptyIndex, err)
	}
	if errors.Is(err, engine.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, engine.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	if errors.Is(err, index.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	}
	if errors.Is(err, snapshot.ErrBadImage) {
		return fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}
	if errors.Is(err, chunker.ErrInvalidWindow) {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	var dm *index.ErrDimensionMismatch
	if errors.As(err, &dm) {
		return &ErrDimensionMismatch{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}

	// llm.ModelError passes through untranslated; it is already part of
	// the public surface.
	return err
}
