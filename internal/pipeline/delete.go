package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/terrasync/terrasync/internal/store"
)

// DeleteLayer removes a layer from every store it touches and reports the
// detected kind ("vector" or "raster"). The layer record decides the kind;
// name heuristics and store probing only cover legacy layers that predate the
// records table. Individual sub-steps are best-effort so partial deletions
// stay retryable.
func (s *Service) DeleteLayer(ctx context.Context, layerName string) (string, error) {
	rec, err := s.records.GetRecord(ctx, layerName)
	switch {
	case err == nil:
		if rec.Kind.IsVector() {
			return "vector", s.deleteVector(ctx, layerName)
		}
		return "raster", s.deleteRaster(ctx, layerName)
	case errors.Is(err, store.ErrNotFound):
		// Legacy layer, fall through to heuristics.
	default:
		s.log.Warn("layer record lookup failed", "layer", layerName, "error", err)
	}

	if strings.Contains(layerName, "boundary") || strings.Contains(layerName, "mask") {
		return "vector", s.deleteVector(ctx, layerName)
	}

	if err := s.deleteRaster(ctx, layerName); err == nil {
		return "raster", nil
	}
	return "vector", s.deleteVector(ctx, layerName)
}

// deleteVector tears down a vector layer: served resources first, then the
// physical table, then the bookkeeping rows. Failures are logged and the
// remaining steps still run.
func (s *Service) deleteVector(ctx context.Context, layerName string) error {
	if err := s.publisher.DeleteVectorLayer(ctx, layerName); err != nil {
		s.log.Warn("served resource removal failed", "layer", layerName, "error", err)
	}
	if err := s.records.DropSpatialTable(ctx, layerName); err != nil {
		s.log.Warn("spatial table removal failed", "layer", layerName, "error", err)
	}
	if err := s.records.DeleteRecord(ctx, layerName); err != nil {
		s.log.Warn("layer record removal failed", "layer", layerName, "error", err)
	}
	s.log.Info("vector layer deleted", "layer", layerName)
	return nil
}

// rasterStoreCandidates lists the store names a raster layer may live under.
func rasterStoreCandidates(layerName string) []string {
	candidates := []string{layerName, layerName + "_store", layerName + "_classified"}
	if stripped := strings.TrimSuffix(layerName, "_classified"); stripped != layerName {
		candidates = append(candidates, stripped)
	}
	return candidates
}

// deleteRaster probes candidate coverage-store names and recursively deletes
// the first one present. Exhausting every candidate is a DeletionError.
func (s *Service) deleteRaster(ctx context.Context, layerName string) error {
	candidates := rasterStoreCandidates(layerName)

	for _, name := range candidates {
		present, err := s.publisher.CoverageStoreExists(ctx, name)
		if err != nil {
			s.log.Warn("coverage store probe failed", "store", name, "error", err)
			continue
		}
		if !present {
			continue
		}
		if err := s.publisher.DeleteCoverageStore(ctx, name); err != nil {
			s.log.Warn("coverage store removal failed", "store", name, "error", err)
			continue
		}
		if err := s.records.DeleteRecord(ctx, layerName); err != nil {
			s.log.Warn("layer record removal failed", "layer", layerName, "error", err)
		}
		s.log.Info("raster layer deleted", "layer", layerName, "store", name)
		return nil
	}
	return &DeletionError{Layer: layerName, Tried: candidates}
}
