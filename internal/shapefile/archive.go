// Package shapefile handles uploaded vector archives: extraction and
// validation of zipped shapefiles, and direct decoding of the DBF
// attribute table without a database round trip.
package shapefile

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNoShapefile is returned when an extracted archive contains no .shp file.
var ErrNoShapefile = errors.New("archive contains no .shp file")

// Extraction is an unpacked shapefile archive in a per-request temp directory.
// Callers must Close it to release the directory; Close is safe on every exit
// path and may be called more than once.
type Extraction struct {
	// Dir is the unique extraction directory.
	Dir string
	// ShpPath is the absolute path of the shapefile inside Dir.
	ShpPath string
	// Files lists all extracted entry names relative to Dir.
	Files []string

	closed bool
}

// Close removes the extraction directory and everything in it.
func (e *Extraction) Close() error {
	if e == nil || e.closed {
		return nil
	}
	e.closed = true
	return os.RemoveAll(e.Dir)
}

// DbfPath returns the path of the attribute table sibling of the shapefile,
// or "" when the archive carried none.
func (e *Extraction) DbfPath() string {
	dbf := strings.TrimSuffix(e.ShpPath, filepath.Ext(e.ShpPath)) + ".dbf"
	if _, err := os.Stat(dbf); err != nil {
		return ""
	}
	return dbf
}

// ExtractArchive unpacks the zip archive at zipPath into a unique directory
// under workDir and validates that it contains a shapefile.
//
// The extraction directory is never shared between concurrent requests; a
// UUID suffix guarantees uniqueness. On any error the directory is removed
// before returning, so only a successful Extraction owns disk state.
func ExtractArchive(zipPath, workDir string) (*Extraction, error) {
	base := strings.TrimSuffix(filepath.Base(zipPath), filepath.Ext(zipPath))
	dir := filepath.Join(workDir, fmt.Sprintf("%s-%s", sanitizeName(base), uuid.New().String()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create extraction dir: %w", err)
	}

	ext := &Extraction{Dir: dir}
	if err := extractInto(zipPath, ext); err != nil {
		ext.Close()
		return nil, err
	}

	if ext.ShpPath == "" {
		ext.Close()
		return nil, ErrNoShapefile
	}
	return ext, nil
}

// extractInto unpacks every regular file in the archive into ext.Dir.
func extractInto(zipPath string, ext *Extraction) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}

		// Flatten nested directories; shapefile sidecars must live together.
		name := filepath.Base(f.Name)
		if name == "" || strings.HasPrefix(name, ".") {
			continue
		}

		dest := filepath.Join(ext.Dir, name)
		// Zip-slip guard: base-name flattening already prevents traversal,
		// keep the check for defense against odd separators.
		if !strings.HasPrefix(dest, filepath.Clean(ext.Dir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes extraction dir", f.Name)
		}

		if err := writeEntry(f, dest); err != nil {
			return err
		}
		ext.Files = append(ext.Files, name)

		if strings.EqualFold(filepath.Ext(name), ".shp") {
			if ext.ShpPath == "" {
				ext.ShpPath = dest
			}
			// Extra shapefiles are tolerated; the first one wins.
		}
	}
	return nil
}

// writeEntry copies a single archive entry to dest.
func writeEntry(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %q: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %q: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("extract %q: %w", f.Name, err)
	}
	return nil
}

// WriteArchive zips the named files into zipPath. Used to re-package a
// generated mask shapefile (shp+dbf+shx+prj) for re-entry into the upload
// pipeline.
func WriteArchive(zipPath string, files []string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	w := zip.NewWriter(out)
	for _, path := range files {
		if err := addEntry(w, path); err != nil {
			w.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

func addEntry(w *zip.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %q: %w", path, err)
	}
	defer in.Close()

	entry, err := w.Create(filepath.Base(path))
	if err != nil {
		return fmt.Errorf("add %q: %w", path, err)
	}
	if _, err := io.Copy(entry, in); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	return nil
}

// sanitizeName lowercases a layer-ish name and replaces filesystem-hostile
// characters so it can be used in directory and table names.
func sanitizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '.':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "layer"
	}
	return b.String()
}

// SanitizeName is the exported form used for deriving table and layer names
// from user-supplied values.
func SanitizeName(name string) string { return sanitizeName(name) }
