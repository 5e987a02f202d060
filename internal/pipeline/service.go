// Package pipeline orchestrates the ingestion flow: extract, import, publish,
// derive, record. It coordinates the external tool wrappers, the tile-server
// client and the store, and owns the error taxonomy the HTTP layer maps to
// responses.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"golang.org/x/sync/semaphore"

	"github.com/terrasync/terrasync/internal/config"
	"github.com/terrasync/terrasync/internal/gdal"
	"github.com/terrasync/terrasync/internal/store"
)

// ErrBusy is returned when no upload slot frees up within the configured wait.
var ErrBusy = errors.New("too many concurrent uploads")

// Publisher is the tile-server surface the pipeline depends on.
type Publisher interface {
	PublishFeatureType(ctx context.Context, table string) error
	PublishRaster(ctx context.Context, name, path string) error
	DeleteVectorLayer(ctx context.Context, name string) error
	DeleteCoverageStore(ctx context.Context, name string) error
	CoverageStoreExists(ctx context.Context, name string) (bool, error)
	ListLayerNames(ctx context.Context) ([]string, error)
	Workspace() string
	TMSURL(name string) string
	WMSURL(name string) string
	VectorTileURL(name string) string
}

// Records is the persistence surface: layer records, metadata and the
// spatial tables behind vector layers.
type Records interface {
	SaveRecord(ctx context.Context, rec store.LayerRecord) error
	GetRecord(ctx context.Context, layerName string) (*store.LayerRecord, error)
	ListRecordsByCountry(ctx context.Context, country string) ([]store.LayerRecord, error)
	DeleteRecord(ctx context.Context, layerName string) error
	UpsertMetadata(ctx context.Context, md store.Metadata) error
	GetMetadata(ctx context.Context, layerName string) (*store.Metadata, error)
	DropSpatialTable(ctx context.Context, table string) error
	CountFeatures(ctx context.Context, table string) (int64, error)
}

// Toolchain is the external-tool surface (ogr2ogr and the GDAL utilities).
type Toolchain interface {
	ImportVector(ctx context.Context, shpPath, table string, mode gdal.GeometryMode) error
	RasterInfo(ctx context.Context, path string) (*gdal.RasterInfo, error)
	ColorRelief(ctx context.Context, src, colorTable, dst string) error
	TranslateCOG(ctx context.Context, src, dst string) error
}

// MaskGenerator derives the inverse-mask archive for a boundary shapefile.
type MaskGenerator interface {
	Generate(ctx context.Context, boundaryShp, maskName, workDir string) (string, error)
}

// Service wires the pipeline's collaborators together.
type Service struct {
	cfg       *config.Config
	records   Records
	publisher Publisher
	tools     Toolchain
	masks     MaskGenerator
	log       *slog.Logger
	slots     *semaphore.Weighted
}

func New(cfg *config.Config, records Records, publisher Publisher, tools Toolchain, masks MaskGenerator, log *slog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		records:   records,
		publisher: publisher,
		tools:     tools,
		masks:     masks,
		log:       log,
		slots:     semaphore.NewWeighted(int64(cfg.Upload.MaxConcurrent)),
	}
}

// acquireSlot blocks for an upload slot up to the configured wait time.
func (s *Service) acquireSlot(ctx context.Context) (release func(), err error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.Upload.MaxWaitTime)
	defer cancel()

	if err := s.slots.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrBusy
	}
	return func() { s.slots.Release(1) }, nil
}

// workDir is the scratch space for extractions and derived artifacts.
func (s *Service) workDir() string {
	return filepath.Join(s.cfg.Paths.DataDir, "work")
}

// processedDir holds finished rasters referenced by the tile server.
func (s *Service) processedDir() string {
	return filepath.Join(s.cfg.Paths.DataDir, "processed")
}
