package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// IngestDirectory walks root, skips hidden entries and unsupported extensions,
// and processes matching files concurrently. Per-file failures are recorded in
// the results and do not stop the walk. Results are in walk order.
func (s *Service) IngestDirectory(ctx context.Context, root string, userID *int64) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}

	var (
		paths []string
		stats DirStats
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			s.logger.Warn("ingest.dir.walk_error", "path", path, "error", walkErr)
			return nil
		}
		if path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, stats, fmt.Errorf("walk: %w", err)
	}

	results := make([]IngestionResult, len(paths))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, path := range paths {
		g.Go(func() error {
			r, err := s.IngestPath(gctx, path, userID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				r.Err = err.Error()
				stats.Failed++
			case r.Succeeded:
				stats.Succeeded++
			default:
				stats.Fallback++
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("ingest.dir.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"fallback", stats.Fallback,
		"failed", stats.Failed,
	)
	return results, stats, ctx.Err()
}
