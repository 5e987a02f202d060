package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// ReimportBoundaries replays the archived boundary uploads under the
// configured boundary directory, so a fresh database and tile server converge
// to the previous state on startup. Archives are named {country}.zip or
// {country}_*.zip; failures are logged and the scan continues.
func (s *Service) ReimportBoundaries(ctx context.Context) {
	dir := s.cfg.Paths.BoundaryDir
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("boundary directory unreadable", "dir", dir, "error", err)
		}
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".zip") {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ".zip")
		country, _, _ := strings.Cut(name, "_")
		if country == "" {
			continue
		}

		_, err := s.UploadBoundary(ctx, BoundaryRequest{
			ArchivePath:      filepath.Join(dir, entry.Name()),
			Country:          country,
			OriginalFileName: entry.Name(),
		})
		if err != nil {
			s.log.Warn("boundary re-import failed", "archive", entry.Name(), "error", err)
			continue
		}
		s.log.Info("boundary re-imported", "archive", entry.Name(), "country", country)
	}
}
