// Package mask derives the inverse polygon of a boundary layer: the world
// rectangle minus the union of the boundary's geometry. The result is
// re-packaged as a shapefile archive and routed back through the regular
// vector pipeline so a mask layer is published the same way a boundary is.
package mask

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/terrasync/terrasync/internal/gdal"
	"github.com/terrasync/terrasync/internal/shapefile"
)

// GenerationError reports a failed mask derivation. Callers treat it as
// non-fatal relative to the boundary upload.
type GenerationError struct {
	Layer string
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("mask generation for %q failed: %v", e.Layer, e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }

// Generator runs the geometry-processing subprocess and packages its output.
type Generator struct {
	tools *gdal.Tools
	log   *slog.Logger
}

func NewGenerator(tools *gdal.Tools, log *slog.Logger) *Generator {
	return &Generator{tools: tools, log: log}
}

// Generate derives the inverse mask for the boundary shapefile at boundaryShp
// and returns the path of a zip archive holding the mask shapefile. maskName
// is the target layer name (conventionally {country}_mask). The caller owns
// the returned archive and the directory it sits in; both live under workDir.
func (g *Generator) Generate(ctx context.Context, boundaryShp, maskName, workDir string) (string, error) {
	// Source attributes can carry non-ASCII bytes that corrupt downstream
	// encodings; fold them to ASCII in place before the subprocess reads them.
	dbf := strings.TrimSuffix(boundaryShp, filepath.Ext(boundaryShp)) + ".dbf"
	if err := normalizeDBF(dbf); err != nil {
		g.log.Warn("attribute normalization skipped", "path", dbf, "error", err)
	}

	dir := filepath.Join(workDir, maskName+"-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &GenerationError{Layer: maskName, Cause: err}
	}

	maskShp := filepath.Join(dir, maskName+".shp")
	if err := g.tools.InverseMask(ctx, boundaryShp, maskShp); err != nil {
		os.RemoveAll(dir)
		return "", &GenerationError{Layer: maskName, Cause: err}
	}

	parts, err := sidecarFiles(maskShp)
	if err != nil {
		os.RemoveAll(dir)
		return "", &GenerationError{Layer: maskName, Cause: err}
	}

	archive := filepath.Join(dir, maskName+".zip")
	if err := shapefile.WriteArchive(archive, parts); err != nil {
		os.RemoveAll(dir)
		return "", &GenerationError{Layer: maskName, Cause: err}
	}
	return archive, nil
}

// sidecarFiles collects the shapefile parts to package. The .shp and .dbf are
// mandatory; .shx and .prj are included when the subprocess produced them.
func sidecarFiles(shpPath string) ([]string, error) {
	base := strings.TrimSuffix(shpPath, ".shp")

	var out []string
	for _, ext := range []string{".shp", ".dbf", ".shx", ".prj"} {
		p := base + ext
		if _, err := os.Stat(p); err != nil {
			if ext == ".shp" || ext == ".dbf" {
				return nil, fmt.Errorf("mask output missing %s part: %w", ext, err)
			}
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
