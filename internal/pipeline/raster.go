package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/terrasync/terrasync/internal/classify"
	"github.com/terrasync/terrasync/internal/store"
)

// RasterRequest describes a single-band raster upload for classification.
type RasterRequest struct {
	RasterPath       string
	Country          string
	Variable         string
	Ranges           []classify.ClassRange // nil means auto-classify
	FileSize         int64
	OriginalFileName string
}

// RasterStats echoes the band statistics the scheme was resolved against.
type RasterStats struct {
	Min    float64  `json:"min"`
	Max    float64  `json:"max"`
	NoData *float64 `json:"noData,omitempty"`
}

// RasterResult reports a published classified raster.
type RasterResult struct {
	LayerName string               `json:"layerName"`
	LayerID   string               `json:"layerId"`
	TMSURL    string               `json:"tmsUrl"`
	WMSURL    string               `json:"wmsUrl"`
	Classes   []classify.ClassRange `json:"classes"`
	Stats     RasterStats          `json:"stats"`
}

// UploadClassifiedRaster runs the classification engine: read band statistics,
// resolve the classification scheme, colorize, convert to a cloud-optimized
// raster and publish it. The intermediate RGBA raster is removed on every exit
// path; only the final artifact survives under the processed directory.
func (s *Service) UploadClassifiedRaster(ctx context.Context, req RasterRequest) (*RasterResult, error) {
	if req.Country == "" {
		return nil, &ValidationError{Reason: "country is required"}
	}
	if req.Ranges != nil {
		if err := classify.ValidateRanges(req.Ranges); err != nil {
			return nil, &ValidationError{Reason: err.Error()}
		}
	}

	release, err := s.acquireSlot(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Upload.PipelineTimeout)
	defer cancel()

	layerName := rasterLayerName(req.Country, req.Variable)
	log := s.log.With("layer", layerName, "country", req.Country)

	info, err := s.tools.RasterInfo(ctx, req.RasterPath)
	if err != nil {
		return nil, fmt.Errorf("read raster statistics: %w", err)
	}
	if info.EPSG != 4326 {
		return nil, &ValidationError{
			Reason: fmt.Sprintf("raster must be EPSG:4326, got EPSG:%d", info.EPSG),
		}
	}

	classes := classify.Resolve(log, req.Ranges, info.Min, info.Max)
	scheme := classify.Scheme{
		Classes: classes,
		DataMin: info.Min,
		DataMax: info.Max,
		NoData:  info.NoData,
	}
	table, err := classify.ColorTable(log, scheme)
	if err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	if err := os.MkdirAll(s.processedDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create processed dir: %w", err)
	}

	tableFile := filepath.Join(s.workDir(), layerName+"_colors.txt")
	if err := os.MkdirAll(s.workDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	if err := os.WriteFile(tableFile, []byte(table), 0o644); err != nil {
		return nil, fmt.Errorf("write color table: %w", err)
	}
	defer os.Remove(tableFile)

	colored := filepath.Join(s.workDir(), layerName+"_rgba.tif")
	defer os.Remove(colored)
	if err := s.tools.ColorRelief(ctx, req.RasterPath, tableFile, colored); err != nil {
		return nil, err
	}

	final := filepath.Join(s.processedDir(), layerName+".tif")
	if err := s.tools.TranslateCOG(ctx, colored, final); err != nil {
		return nil, err
	}

	rec := store.LayerRecord{
		LayerName:         layerName,
		Workspace:         s.publisher.Workspace(),
		Kind:              store.KindClassifiedRaster,
		SourceArchivePath: final,
	}
	if err := s.records.SaveRecord(ctx, rec); err != nil {
		log.Warn("layer record not saved", "error", err)
	}

	if err := s.publisher.PublishRaster(ctx, layerName, final); err != nil {
		return nil, err
	}
	log.Info("classified raster published", "min", info.Min, "max", info.Max)

	md := store.Metadata{
		LayerName:        layerName,
		Country:          req.Country,
		FileSize:         req.FileSize,
		OriginalFileName: req.OriginalFileName,
	}
	if err := s.records.UpsertMetadata(ctx, md); err != nil {
		log.Warn("metadata not saved", "error", err)
	}

	return &RasterResult{
		LayerName: layerName,
		LayerID:   LayerID(layerName),
		TMSURL:    s.publisher.TMSURL(layerName),
		WMSURL:    s.publisher.WMSURL(layerName),
		Classes:   classes,
		Stats:     RasterStats{Min: info.Min, Max: info.Max, NoData: info.NoData},
	}, nil
}
