// Package store persists layer records and their metadata sidecar rows, and
// owns the spatial tables the import pipeline writes through external tools.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a layer record does not exist.
var ErrNotFound = errors.New("layer record not found")

// Kind tags a layer record with its lifecycle category at creation time, so
// deletion never has to guess from the name alone.
type Kind string

const (
	KindBoundary         Kind = "boundary"
	KindMask             Kind = "mask"
	KindEnergy           Kind = "energy"
	KindRaster           Kind = "raster"
	KindClassifiedRaster Kind = "classified-raster"
)

// IsVector reports whether the kind is backed by a spatial table.
func (k Kind) IsVector() bool {
	return k == KindBoundary || k == KindMask || k == KindEnergy
}

// LayerRecord tracks one published layer across all stores.
type LayerRecord struct {
	LayerName         string
	Workspace         string
	Kind              Kind
	SourceArchivePath string
	CreatedAt         time.Time
}

// Metadata is the descriptive sidecar row keyed by layer name. Attributes is
// an opaque JSON array of decoded attribute fields.
type Metadata struct {
	LayerName        string          `json:"layerName"`
	Country          string          `json:"country"`
	AdminLevel       string          `json:"adminLevel,omitempty"`
	FileSize         int64           `json:"fileSize"`
	OriginalFileName string          `json:"originalFileName"`
	HoverAttribute   string          `json:"hoverAttribute,omitempty"`
	Attributes       json.RawMessage `json:"attributes,omitempty"`
	UploadedAt       time.Time       `json:"uploadedAt"`
}

// Store wraps the connection pool with layer bookkeeping operations.
type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger

	ddlOnce sync.Once
	ddlErr  error
}

func New(pool *pgxpool.Pool, log *slog.Logger) *Store {
	return &Store{pool: pool, log: log}
}

// ensureTables creates the bookkeeping tables on first use. The DDL is
// idempotent so concurrent cold starts are safe.
func (s *Store) ensureTables(ctx context.Context) error {
	s.ddlOnce.Do(func() {
		_, s.ddlErr = s.pool.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS layer_records (
				layer_name          TEXT PRIMARY KEY,
				workspace           TEXT NOT NULL,
				kind                TEXT NOT NULL,
				source_archive_path TEXT NOT NULL DEFAULT '',
				created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
			);
			CREATE TABLE IF NOT EXISTS upload_metadata (
				layer_name         TEXT PRIMARY KEY,
				country            TEXT NOT NULL,
				admin_level        TEXT NOT NULL DEFAULT '',
				file_size          BIGINT NOT NULL DEFAULT 0,
				original_file_name TEXT NOT NULL DEFAULT '',
				hover_attribute    TEXT NOT NULL DEFAULT '',
				attributes         JSONB,
				uploaded_at        TIMESTAMPTZ NOT NULL DEFAULT now()
			);
		`)
	})
	return s.ddlErr
}

// SaveRecord inserts or replaces a layer record.
func (s *Store) SaveRecord(ctx context.Context, rec LayerRecord) error {
	if err := s.ensureTables(ctx); err != nil {
		return fmt.Errorf("ensure tables: %w", err)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO layer_records (layer_name, workspace, kind, source_archive_path)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (layer_name) DO UPDATE SET
			workspace = EXCLUDED.workspace,
			kind = EXCLUDED.kind,
			source_archive_path = EXCLUDED.source_archive_path,
			created_at = now()
	`, rec.LayerName, rec.Workspace, string(rec.Kind), rec.SourceArchivePath)
	if err != nil {
		return fmt.Errorf("save layer record %s: %w", rec.LayerName, err)
	}
	return nil
}

// GetRecord looks up a layer record by name, returning ErrNotFound when the
// layer was never recorded (legacy layers predate the records table).
func (s *Store) GetRecord(ctx context.Context, layerName string) (*LayerRecord, error) {
	if err := s.ensureTables(ctx); err != nil {
		return nil, fmt.Errorf("ensure tables: %w", err)
	}
	var rec LayerRecord
	var kind string
	err := s.pool.QueryRow(ctx, `
		SELECT layer_name, workspace, kind, source_archive_path, created_at
		FROM layer_records WHERE layer_name = $1
	`, layerName).Scan(&rec.LayerName, &rec.Workspace, &kind, &rec.SourceArchivePath, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get layer record %s: %w", layerName, err)
	}
	rec.Kind = Kind(kind)
	return &rec, nil
}

// ListRecordsByCountry returns every record whose layer name contains the
// country token, newest first.
func (s *Store) ListRecordsByCountry(ctx context.Context, country string) ([]LayerRecord, error) {
	if err := s.ensureTables(ctx); err != nil {
		return nil, fmt.Errorf("ensure tables: %w", err)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT layer_name, workspace, kind, source_archive_path, created_at
		FROM layer_records WHERE layer_name LIKE '%' || $1 || '%'
		ORDER BY created_at DESC
	`, country)
	if err != nil {
		return nil, fmt.Errorf("list layer records for %s: %w", country, err)
	}
	defer rows.Close()

	var out []LayerRecord
	for rows.Next() {
		var rec LayerRecord
		var kind string
		if err := rows.Scan(&rec.LayerName, &rec.Workspace, &kind, &rec.SourceArchivePath, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Kind = Kind(kind)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteRecord removes a layer record and its metadata row. Missing rows are
// not an error so delete paths stay idempotent.
func (s *Store) DeleteRecord(ctx context.Context, layerName string) error {
	if err := s.ensureTables(ctx); err != nil {
		return fmt.Errorf("ensure tables: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM upload_metadata WHERE layer_name = $1`, layerName); err != nil {
		return fmt.Errorf("delete metadata %s: %w", layerName, err)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM layer_records WHERE layer_name = $1`, layerName); err != nil {
		return fmt.Errorf("delete layer record %s: %w", layerName, err)
	}
	return nil
}
