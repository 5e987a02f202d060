package shapefile

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeZip creates a zip archive at path containing the given name → content
// entries.
func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	out, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()

	w := zip.NewWriter(out)
	for name, content := range entries {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestExtractArchive(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "bhutan_boundary.zip")
	writeZip(t, zipPath, map[string]string{
		"districts.shp": "shp-bytes",
		"districts.dbf": "dbf-bytes",
		"districts.shx": "shx-bytes",
		"districts.prj": "prj-bytes",
	})

	ext, err := ExtractArchive(zipPath, dir)
	if err != nil {
		t.Fatalf("ExtractArchive() error = %v", err)
	}
	defer ext.Close()

	if filepath.Base(ext.ShpPath) != "districts.shp" {
		t.Errorf("ShpPath = %q, want districts.shp", ext.ShpPath)
	}
	if len(ext.Files) != 4 {
		t.Errorf("extracted %d files, want 4", len(ext.Files))
	}
	if ext.DbfPath() == "" {
		t.Error("DbfPath() = empty, want sibling dbf")
	}

	// Each extraction gets its own unique directory.
	ext2, err := ExtractArchive(zipPath, dir)
	if err != nil {
		t.Fatalf("second ExtractArchive() error = %v", err)
	}
	defer ext2.Close()
	if ext.Dir == ext2.Dir {
		t.Error("concurrent extractions must not share a directory")
	}
}

func TestExtractArchive_NestedEntriesAreFlattened(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "nested.zip")
	writeZip(t, zipPath, map[string]string{
		"data/deep/admin.shp": "shp",
		"data/deep/admin.dbf": "dbf",
	})

	ext, err := ExtractArchive(zipPath, dir)
	if err != nil {
		t.Fatalf("ExtractArchive() error = %v", err)
	}
	defer ext.Close()

	if filepath.Dir(ext.ShpPath) != ext.Dir {
		t.Errorf("shapefile should land directly in the extraction dir, got %q", ext.ShpPath)
	}
}

func TestExtractArchive_NoShapefile(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "noshp.zip")
	writeZip(t, zipPath, map[string]string{"readme.txt": "hello"})

	_, err := ExtractArchive(zipPath, dir)
	if !errors.Is(err, ErrNoShapefile) {
		t.Fatalf("ExtractArchive() error = %v, want ErrNoShapefile", err)
	}

	// The failed extraction must not leak its directory.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.IsDir() {
			t.Errorf("leaked extraction dir %q after validation failure", e.Name())
		}
	}
}

func TestExtractionClose_RemovesDir(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "ok.zip")
	writeZip(t, zipPath, map[string]string{"a.shp": "x"})

	ext, err := ExtractArchive(zipPath, dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := ext.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(ext.Dir); !os.IsNotExist(err) {
		t.Errorf("extraction dir still exists after Close()")
	}
	// Close is idempotent.
	if err := ext.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestWriteArchive_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	parts := map[string]string{
		"mask.shp": "geometry",
		"mask.dbf": "attributes",
		"mask.shx": "index",
		"mask.prj": "EPSG:4326",
	}
	var paths []string
	for name, content := range parts {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}

	zipPath := filepath.Join(dir, "mask.zip")
	if err := WriteArchive(zipPath, paths); err != nil {
		t.Fatalf("WriteArchive() error = %v", err)
	}

	ext, err := ExtractArchive(zipPath, dir)
	if err != nil {
		t.Fatalf("re-extracting written archive: %v", err)
	}
	defer ext.Close()
	if len(ext.Files) != len(parts) {
		t.Errorf("round trip carried %d files, want %d", len(ext.Files), len(parts))
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Bhutan Boundary", "bhutan_boundary"},
		{"laos-admin.1", "laos_admin_1"},
		{"ALL_CAPS", "all_caps"},
		{"., ,.", "___"},
		{"", "layer"},
		{"日本", "layer"},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
