package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/terrasync/terrasync/internal/config"
	"github.com/terrasync/terrasync/internal/gdal"
	"github.com/terrasync/terrasync/internal/geoserver"
	"github.com/terrasync/terrasync/internal/pipeline"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Port = 5001
	cfg.Upload.MaxFileSize = 10 << 20
	cfg.Upload.MaxConcurrent = 2
	cfg.Upload.MaxWaitTime = time.Second
	cfg.Upload.PipelineTimeout = 10 * time.Second
	cfg.Paths.DataDir = t.TempDir()
	return cfg
}

// testServer builds a server whose pipeline collaborators are never reached:
// these tests exercise routing, validation and middleware only.
func testServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	svc := pipeline.New(cfg, nil, nil, nil, nil, nil)
	return NewServer(svc, cfg)
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t, testConfig(t))

	for _, path := range []string{"/", "/api/health"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("GET %s body not JSON: %v", path, err)
		}
		if body["status"] != "ok" {
			t.Errorf("GET %s status field = %q, want ok", path, body["status"])
		}
	}
}

func TestUpload_MissingFileField(t *testing.T) {
	s := testServer(t, testConfig(t))

	for _, path := range []string{
		"/api/upload/boundary",
		"/api/upload/energy",
		"/api/upload/classified",
	} {
		req := httptest.NewRequest(http.MethodPost, path,
			strings.NewReader("country=bhutan"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("POST %s status = %d, want 400", path, rec.Code)
		}
		var body ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("POST %s body not JSON: %v", path, err)
		}
		if body.Code != "VAL001" {
			t.Errorf("POST %s code = %q, want VAL001", path, body.Code)
		}
	}
}

func TestDeleteLayer_RequiresAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret-key"}
	s := testServer(t, cfg)

	req := httptest.NewRequest(http.MethodDelete, "/api/layers/bhutan_boundary", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status without key = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/layers/bhutan_boundary", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status with bad key = %d, want 403", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	s := testServer(t, testConfig(t))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 4
	cfg.Rate.UploadLimit = 4
	s := testServer(t, cfg)

	var limited bool
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.RemoteAddr = "203.0.113.9:1234"
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("burst of requests was never rate limited")
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{
			name:       "validation",
			err:        &pipeline.ValidationError{Reason: "country is required"},
			wantCode:   "VAL001",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "import failure",
			err:        &gdal.ImportError{Table: "bhutan_boundary"},
			wantCode:   "IMP001",
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "tool timeout",
			err:        &gdal.TimeoutError{Tool: "ogr2ogr", Timeout: 30 * time.Second},
			wantCode:   "TMO001",
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name:       "pipeline budget expiry",
			err:        context.DeadlineExceeded,
			wantCode:   "TMO001",
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name:       "wrapped pipeline budget expiry",
			err:        fmt.Errorf("publish feature type: %w", context.DeadlineExceeded),
			wantCode:   "TMO001",
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name:       "publish rejection",
			err:        &geoserver.PublishError{Layer: "x", Status: 400},
			wantCode:   "PUB001",
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "nothing to delete",
			err:        &pipeline.DeletionError{Layer: "x"},
			wantCode:   "DEL001",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "busy",
			err:        pipeline.ErrBusy,
			wantCode:   "RATE001",
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "unknown",
			err:        http.ErrBodyNotAllowed,
			wantCode:   "ERR000",
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, status := mapError(tt.err)
			if msg.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", msg.Code, tt.wantCode)
			}
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
		})
	}
}
