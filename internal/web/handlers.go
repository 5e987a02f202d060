package web

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/terrasync/terrasync/internal/classify"
	"github.com/terrasync/terrasync/internal/logging"
	"github.com/terrasync/terrasync/internal/pipeline"
)

// handleHealth reports service liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "terrasync",
	})
}

// saveUploadFile spools a multipart file part to the upload scratch directory
// and returns its path. The caller removes it when the pipeline finishes.
func (s *Server) saveUploadFile(file multipart.File, header *multipart.FileHeader) (string, error) {
	dir := filepath.Join(s.cfg.Paths.DataDir, "uploads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	path := filepath.Join(dir, uuid.NewString()+"-"+filepath.Base(header.Filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return path, nil
}

// handleUploadBoundary accepts a zipped shapefile and runs the vector
// pipeline. Multipart fields: file, country, adminLevel?, layerName?,
// hoverAttribute?.
func (s *Server) handleUploadBoundary(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if err := r.ParseMultipartForm(s.cfg.Upload.MaxFileSize); err != nil {
		s.respondError(w, r, &pipeline.ValidationError{Reason: "invalid multipart form: " + err.Error()})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, &pipeline.ValidationError{Reason: "file field is required"})
		return
	}
	defer file.Close()

	path, err := s.saveUploadFile(file, header)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer os.Remove(path)

	req := pipeline.BoundaryRequest{
		ArchivePath:      path,
		Country:          r.FormValue("country"),
		AdminLevel:       r.FormValue("adminLevel"),
		LayerName:        r.FormValue("layerName"),
		Workspace:        r.FormValue("workspace"),
		HoverAttribute:   r.FormValue("hoverAttribute"),
		FileSize:         header.Size,
		OriginalFileName: header.Filename,
	}

	res, err := s.service.UploadBoundary(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	log.Info("boundary upload complete", "layer", res.LayerName, "mask", res.MaskLayer)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"layer":   res,
	})
}

// handleUploadEnergy accepts a zipped energy-infrastructure shapefile and
// runs the vector pipeline without mask derivation. Multipart fields: file,
// country, type?.
func (s *Server) handleUploadEnergy(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if err := r.ParseMultipartForm(s.cfg.Upload.MaxFileSize); err != nil {
		s.respondError(w, r, &pipeline.ValidationError{Reason: "invalid multipart form: " + err.Error()})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, &pipeline.ValidationError{Reason: "file field is required"})
		return
	}
	defer file.Close()

	path, err := s.saveUploadFile(file, header)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer os.Remove(path)

	req := pipeline.EnergyRequest{
		ArchivePath:      path,
		Country:          r.FormValue("country"),
		EnergyType:       r.FormValue("type"),
		Workspace:        r.FormValue("workspace"),
		FileSize:         header.Size,
		OriginalFileName: header.Filename,
	}

	res, err := s.service.UploadEnergy(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	log.Info("energy upload complete", "layer", res.LayerName)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"layer":   res,
	})
}

// handleUploadClassified accepts a single-band raster and runs the
// classification engine. Multipart fields: file, country, variable?,
// ranges? (JSON array of {min,max,color,label}).
func (s *Server) handleUploadClassified(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if err := r.ParseMultipartForm(s.cfg.Upload.MaxFileSize); err != nil {
		s.respondError(w, r, &pipeline.ValidationError{Reason: "invalid multipart form: " + err.Error()})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, &pipeline.ValidationError{Reason: "file field is required"})
		return
	}
	defer file.Close()

	var ranges []classify.ClassRange
	if raw := r.FormValue("ranges"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &ranges); err != nil {
			s.respondError(w, r, &pipeline.ValidationError{Reason: "ranges is not a valid JSON array: " + err.Error()})
			return
		}
	}

	path, err := s.saveUploadFile(file, header)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer os.Remove(path)

	req := pipeline.RasterRequest{
		RasterPath:       path,
		Country:          r.FormValue("country"),
		Variable:         r.FormValue("variable"),
		Ranges:           ranges,
		FileSize:         header.Size,
		OriginalFileName: header.Filename,
	}

	res, err := s.service.UploadClassifiedRaster(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	log.Info("classified raster upload complete", "layer", res.LayerName)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"layer":   res,
	})
}

// handleDeleteLayer removes a layer from every store and reports its kind.
func (s *Server) handleDeleteLayer(w http.ResponseWriter, r *http.Request) {
	layerName := chi.URLParam(r, "layerName")
	if layerName == "" {
		s.respondError(w, r, &pipeline.ValidationError{Reason: "layer name is required"})
		return
	}

	kind, err := s.service.DeleteLayer(r.Context(), layerName)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"layer":   layerName,
		"kind":    kind,
	})
}

// handleCleanup prunes stale duplicate layers for a country, or for every
// country when the path segment is "all".
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	country := chi.URLParam(r, "country")

	var (
		res *pipeline.CleanupResult
		err error
	)
	if country == "all" {
		res, err = s.service.CleanupAll(r.Context())
	} else {
		res, err = s.service.CleanupCountry(r.Context(), country)
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"cleanup": res,
	})
}

// handleListLayers lists a country's recorded layers with metadata and URLs.
func (s *Server) handleListLayers(w http.ResponseWriter, r *http.Request) {
	layers, err := s.service.ListCountryLayers(r.Context(), chi.URLParam(r, "country"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"layers":  layers,
	})
}
