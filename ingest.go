package knowgo

import (
	"context"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/knowgo/knowgo/model"
)

// DefaultIngestExtensions are the file extensions IngestDirectory picks up
// when none are given.
var DefaultIngestExtensions = []string{".md", ".txt", ".py", ".js", ".java", ".html", ".css"}

// IngestFile reads path and ingests its content as one document. The
// document ID is the slash-separated path, so re-ingesting the same file
// replaces its chunks. Source, filename and extension are recorded in the
// chunk metadata alongside the caller's entries.
func (s *Store) IngestFile(ctx context.Context, path string, metadata map[string]string) (*IngestResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	source := filepath.ToSlash(path)
	md := make(map[string]string, len(metadata)+3)
	maps.Copy(md, metadata)
	md["source"] = source
	md["filename"] = filepath.Base(path)
	md["extension"] = filepath.Ext(path)

	return s.Ingest(ctx, model.Document{
		ID:       source,
		Text:     string(content),
		Metadata: md,
	})
}

// IngestDirectory walks dir recursively and ingests every file whose
// extension is in extensions, defaulting to DefaultIngestExtensions. A file
// that fails to ingest is logged and skipped so one bad file does not abort
// the walk; a canceled context does. Returns the per-file results in walk
// order.
func (s *Store) IngestDirectory(ctx context.Context, dir string, extensions ...string) ([]*IngestResult, error) {
	if len(extensions) == 0 {
		extensions = DefaultIngestExtensions
	}

	var results []*IngestResult
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !slices.Contains(extensions, filepath.Ext(path)) {
			return nil
		}

		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = path
		}

		res, err := s.IngestFile(ctx, path, map[string]string{
			"directory":     filepath.ToSlash(filepath.Dir(path)),
			"relative_path": filepath.ToSlash(rel),
		})
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			s.logger.WarnContext(ctx, "file ingestion failed", "path", path, "error", err)
			return nil
		}
		results = append(results, res)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
