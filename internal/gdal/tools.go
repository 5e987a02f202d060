package gdal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/terrasync/terrasync/internal/config"
)

// GeometryMode controls how ogr2ogr treats geometry types during import.
type GeometryMode string

const (
	// ModeBoundary promotes mixed single/multi polygons to a uniform
	// multi-polygon type so heterogeneous admin boundaries share one schema.
	ModeBoundary GeometryMode = "boundary"

	// ModeMask imports geometry as-is. The derived inverse-mask polygon is
	// already topologically complex; promotion corrupts it.
	ModeMask GeometryMode = "mask"
)

// ImportError reports a failed vector load into the spatial database.
// Import failures are fatal to the upload.
type ImportError struct {
	Table string
	Cause error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import into %q failed: %v", e.Table, e.Cause)
}

func (e *ImportError) Unwrap() error { return e.Cause }

// Tools wraps the GDAL/OGR binaries behind typed operations.
type Tools struct {
	cfg    config.ToolsConfig
	runner *Runner
	ogrDSN string
}

// NewTools creates the tool wrapper. ogrDSN is the "PG:" datasource string
// for the spatial database (see config.DatabaseConfig.OGRConnString).
func NewTools(cfg config.ToolsConfig, ogrDSN string) *Tools {
	return &Tools{
		cfg:    cfg,
		runner: NewRunner(cfg.Timeout),
		ogrDSN: ogrDSN,
	}
}

// importArgs builds the ogr2ogr argv for a PostGIS load.
//
// All non-geometry fields are coerced to text to survive heterogeneous
// source schemas, geometry is re-projected to EPSG:4326, and the target
// table is replaced if it exists (overwrite-idempotent re-upload).
func (t *Tools) importArgs(shpPath, table string, mode GeometryMode) []string {
	args := []string{
		"-f", "PostgreSQL",
		t.ogrDSN,
		shpPath,
		"-nln", table,
		"-overwrite",
		"-lco", "GEOMETRY_NAME=geom",
		"-lco", "FID=gid",
		"-fieldTypeToString", "All",
		"-unsetFieldWidth",
		"-t_srs", "EPSG:4326",
	}
	if mode == ModeBoundary {
		args = append(args, "-nlt", "PROMOTE_TO_MULTI")
	}
	return args
}

// ImportVector loads the shapefile into the spatial database under table.
// Any nonzero exit from ogr2ogr is fatal and returned as *ImportError.
func (t *Tools) ImportVector(ctx context.Context, shpPath, table string, mode GeometryMode) error {
	_, err := t.runner.Run(ctx, t.cfg.Ogr2Ogr, t.importArgs(shpPath, table, mode)...)
	if err != nil {
		return &ImportError{Table: table, Cause: err}
	}
	return nil
}

// maskSQL is the SQLite-dialect query that computes the inverse mask:
// the world rectangle minus the union of every boundary geometry.
const maskSQL = `SELECT 1 AS id, 'inverse_mask' AS name, ` +
	`ST_Difference(BuildMbr(-180, -90, 180, 90), ST_Union(geometry)) AS geometry FROM %q`

// InverseMask derives the "world minus boundary" polygon from srcShp and
// writes it as a new shapefile at dstShp.
func (t *Tools) InverseMask(ctx context.Context, srcShp, dstShp string) error {
	layer := strings.TrimSuffix(filepath.Base(srcShp), filepath.Ext(srcShp))

	args := []string{
		"-f", "ESRI Shapefile",
		dstShp,
		srcShp,
		"-dialect", "SQLite",
		"-sql", fmt.Sprintf(maskSQL, layer),
		"-t_srs", "EPSG:4326",
		"-nln", strings.TrimSuffix(filepath.Base(dstShp), filepath.Ext(dstShp)),
	}

	if _, err := t.runner.Run(ctx, t.cfg.Ogr2Ogr, args...); err != nil {
		return err
	}
	if _, err := os.Stat(dstShp); err != nil {
		return fmt.Errorf("ogr2ogr reported success but produced no output at %s", dstShp)
	}
	return nil
}

// ColorRelief renders src through the color table into an RGBA raster at dst.
func (t *Tools) ColorRelief(ctx context.Context, src, colorTable, dst string) error {
	_, err := t.runner.Run(ctx, t.cfg.GdalDEM,
		"color-relief", src, colorTable, dst,
		"-alpha",
		"-of", "GTiff",
	)
	return err
}

// TranslateCOG converts src into a tiled, compressed, cloud-optimized
// GeoTIFF at dst.
func (t *Tools) TranslateCOG(ctx context.Context, src, dst string) error {
	_, err := t.runner.Run(ctx, t.cfg.GdalTranslate,
		src, dst,
		"-of", "COG",
		"-co", "COMPRESS=DEFLATE",
		"-co", "BLOCKSIZE=512",
	)
	return err
}
