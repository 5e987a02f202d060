package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/terrasync/terrasync/internal/gdal"
	"github.com/terrasync/terrasync/internal/shapefile"
	"github.com/terrasync/terrasync/internal/store"
)

// BoundaryRequest describes a vector archive upload.
type BoundaryRequest struct {
	ArchivePath      string
	Country          string
	AdminLevel       string
	LayerName        string // optional explicit name; timestamp-suffixed when set
	Workspace        string // optional; must match the served workspace when set
	HoverAttribute   string
	FileSize         int64
	OriginalFileName string
}

// BoundaryResult reports a completed vector upload. MaskLayer is empty when
// mask generation failed; the boundary publish still succeeded.
type BoundaryResult struct {
	LayerName     string            `json:"layerName"`
	LayerID       string            `json:"layerId"`
	MaskLayer     string            `json:"maskLayer,omitempty"`
	FeatureCount  int64             `json:"featureCount"`
	Attributes    []shapefile.Field `json:"attributes,omitempty"`
	VectorTileURL string            `json:"vectorTileUrl"`
	WMSURL        string            `json:"wmsUrl"`
}

// UploadBoundary runs the full vector pipeline: extract and validate the
// archive, decode its attribute table, import into the spatial database,
// publish the feature type, then derive and publish the sibling mask. Mask
// and metadata failures are downgraded to warnings; the boundary itself must
// import and publish or the whole upload fails.
func (s *Service) UploadBoundary(ctx context.Context, req BoundaryRequest) (*BoundaryResult, error) {
	if req.Country == "" {
		return nil, &ValidationError{Reason: "country is required"}
	}
	// The datastore only exists in the served workspace; a publish anywhere
	// else would fail downstream, so reject it up front.
	if req.Workspace != "" && req.Workspace != s.publisher.Workspace() {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown workspace %q", req.Workspace)}
	}

	release, err := s.acquireSlot(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Upload.PipelineTimeout)
	defer cancel()

	layerName := boundaryLayerName(req.Country, req.LayerName)
	log := s.log.With("layer", layerName, "country", req.Country)

	ext, err := shapefile.ExtractArchive(req.ArchivePath, s.workDir())
	if err != nil {
		if errors.Is(err, shapefile.ErrNoShapefile) {
			return nil, &ValidationError{Reason: "archive contains no .shp file"}
		}
		return nil, fmt.Errorf("extract archive: %w", err)
	}
	defer ext.Close()

	attrs := shapefile.ReadFieldsFile(ext.DbfPath())

	rec := store.LayerRecord{
		LayerName:         layerName,
		Workspace:         s.publisher.Workspace(),
		Kind:              store.KindBoundary,
		SourceArchivePath: req.ArchivePath,
	}
	if err := s.records.SaveRecord(ctx, rec); err != nil {
		log.Warn("layer record not saved", "error", err)
	}

	if err := s.tools.ImportVector(ctx, ext.ShpPath, layerName, gdal.ModeBoundary); err != nil {
		return nil, err
	}
	if err := s.publisher.PublishFeatureType(ctx, layerName); err != nil {
		return nil, err
	}
	log.Info("boundary published")

	count, err := s.records.CountFeatures(ctx, layerName)
	if err != nil {
		log.Warn("feature count unavailable", "error", err)
	}

	maskLayer := s.deriveMask(ctx, log, ext.ShpPath, layerName)

	md := store.Metadata{
		LayerName:        layerName,
		Country:          req.Country,
		AdminLevel:       req.AdminLevel,
		FileSize:         req.FileSize,
		OriginalFileName: req.OriginalFileName,
		HoverAttribute:   req.HoverAttribute,
	}
	if len(attrs) > 0 {
		if raw, err := json.Marshal(attrs); err == nil {
			md.Attributes = raw
		}
	}
	if err := s.records.UpsertMetadata(ctx, md); err != nil {
		log.Warn("metadata not saved", "error", err)
	}

	return &BoundaryResult{
		LayerName:     layerName,
		LayerID:       LayerID(layerName),
		MaskLayer:     maskLayer,
		FeatureCount:  count,
		Attributes:    attrs,
		VectorTileURL: s.publisher.VectorTileURL(layerName),
		WMSURL:        s.publisher.WMSURL(layerName),
	}, nil
}

// deriveMask generates and publishes the inverse mask for a freshly published
// boundary, re-entering the vector pipeline in mask mode. Every failure is a
// warning: the boundary's availability outweighs the derived artifact.
func (s *Service) deriveMask(ctx context.Context, log *slog.Logger, boundaryShp, boundaryName string) string {
	maskName := maskLayerName(boundaryName)

	archive, err := s.masks.Generate(ctx, boundaryShp, maskName, s.workDir())
	if err != nil {
		log.Warn("mask generation failed", "mask", maskName, "error", err)
		return ""
	}
	defer os.RemoveAll(filepath.Dir(archive))

	ext, err := shapefile.ExtractArchive(archive, s.workDir())
	if err != nil {
		log.Warn("mask archive unusable", "mask", maskName, "error", err)
		return ""
	}
	defer ext.Close()

	if err := s.tools.ImportVector(ctx, ext.ShpPath, maskName, gdal.ModeMask); err != nil {
		log.Warn("mask import failed", "mask", maskName, "error", err)
		return ""
	}
	if err := s.publisher.PublishFeatureType(ctx, maskName); err != nil {
		log.Warn("mask publish failed", "mask", maskName, "error", err)
		return ""
	}

	rec := store.LayerRecord{
		LayerName: maskName,
		Workspace: s.publisher.Workspace(),
		Kind:      store.KindMask,
	}
	if err := s.records.SaveRecord(ctx, rec); err != nil {
		log.Warn("mask record not saved", "mask", maskName, "error", err)
	}

	log.Info("mask published", "mask", maskName)
	return maskName
}
