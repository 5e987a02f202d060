package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/terrasync/terrasync/internal/gdal"
	"github.com/terrasync/terrasync/internal/shapefile"
	"github.com/terrasync/terrasync/internal/store"
)

// EnergyRequest describes an energy-infrastructure vector upload
// (power plants, grid lines, substations and the like).
type EnergyRequest struct {
	ArchivePath      string
	Country          string
	EnergyType       string // optional category folded into the layer name
	Workspace        string // optional; must match the served workspace when set
	FileSize         int64
	OriginalFileName string
}

// EnergyResult reports a completed energy vector upload.
type EnergyResult struct {
	LayerName     string            `json:"layerName"`
	LayerID       string            `json:"layerId"`
	FeatureCount  int64             `json:"featureCount"`
	Attributes    []shapefile.Field `json:"attributes,omitempty"`
	VectorTileURL string            `json:"vectorTileUrl"`
	WMSURL        string            `json:"wmsUrl"`
}

// UploadEnergy runs the vector pipeline for an energy dataset: extract,
// import, publish, record. Unlike boundaries, no mask is derived; the layer
// name is deterministic so re-uploads overwrite in place.
func (s *Service) UploadEnergy(ctx context.Context, req EnergyRequest) (*EnergyResult, error) {
	if req.Country == "" {
		return nil, &ValidationError{Reason: "country is required"}
	}
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

	layerName := energyLayerName(req.Country, req.EnergyType)
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
		Kind:              store.KindEnergy,
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
	log.Info("energy layer published")

	count, err := s.records.CountFeatures(ctx, layerName)
	if err != nil {
		log.Warn("feature count unavailable", "error", err)
	}

	md := store.Metadata{
		LayerName:        layerName,
		Country:          req.Country,
		FileSize:         req.FileSize,
		OriginalFileName: req.OriginalFileName,
	}
	if len(attrs) > 0 {
		if raw, err := json.Marshal(attrs); err == nil {
			md.Attributes = raw
		}
	}
	if err := s.records.UpsertMetadata(ctx, md); err != nil {
		log.Warn("metadata not saved", "error", err)
	}

	return &EnergyResult{
		LayerName:     layerName,
		LayerID:       LayerID(layerName),
		FeatureCount:  count,
		Attributes:    attrs,
		VectorTileURL: s.publisher.VectorTileURL(layerName),
		WMSURL:        s.publisher.WMSURL(layerName),
	}, nil
}
