package knowgo

import "context"

// Checkpoint persists the current state to the configured blobstore.
// Mutating operations already persist on completion; Checkpoint is for
// forcing a write at an arbitrary point, e.g. before handing the blobstore
// to another reader.
func (s *Store) Checkpoint(ctx context.Context) error {
	return translateError(s.engine.Checkpoint(ctx))
}

// Close checkpoints and shuts the store down. Further operations fail with
// ErrClosed. Close is idempotent.
func (s *Store) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return translateError(s.engine.Close(ctx))
}
