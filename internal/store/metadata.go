package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// UpsertMetadata replaces the metadata sidecar row for a layer: delete then
// insert, most recent write wins. Metadata loss must never fail a publish, so
// callers log and swallow the returned error.
func (s *Store) UpsertMetadata(ctx context.Context, md Metadata) error {
	if err := s.ensureTables(ctx); err != nil {
		return fmt.Errorf("ensure tables: %w", err)
	}

	var attrs []byte
	if len(md.Attributes) > 0 {
		attrs = []byte(md.Attributes)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin metadata upsert for %s: %w", md.LayerName, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM upload_metadata WHERE layer_name = $1`, md.LayerName); err != nil {
		return fmt.Errorf("clear metadata for %s: %w", md.LayerName, err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO upload_metadata
			(layer_name, country, admin_level, file_size, original_file_name, hover_attribute, attributes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, md.LayerName, md.Country, md.AdminLevel, md.FileSize, md.OriginalFileName, md.HoverAttribute, attrs)
	if err != nil {
		return fmt.Errorf("insert metadata for %s: %w", md.LayerName, err)
	}
	return tx.Commit(ctx)
}

// GetMetadata fetches the sidecar row for a layer, or ErrNotFound.
func (s *Store) GetMetadata(ctx context.Context, layerName string) (*Metadata, error) {
	if err := s.ensureTables(ctx); err != nil {
		return nil, fmt.Errorf("ensure tables: %w", err)
	}
	var md Metadata
	var attrs []byte
	err := s.pool.QueryRow(ctx, `
		SELECT layer_name, country, admin_level, file_size, original_file_name,
		       hover_attribute, attributes, uploaded_at
		FROM upload_metadata WHERE layer_name = $1
	`, layerName).Scan(&md.LayerName, &md.Country, &md.AdminLevel, &md.FileSize,
		&md.OriginalFileName, &md.HoverAttribute, &attrs, &md.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get metadata %s: %w", layerName, err)
	}
	if len(attrs) > 0 {
		md.Attributes = json.RawMessage(attrs)
	}
	return &md, nil
}

// DropSpatialTable removes the physical table behind a vector layer. The
// table name comes from sanitized layer names, quoted defensively anyway.
func (s *Store) DropSpatialTable(ctx context.Context, table string) error {
	query := fmt.Sprintf(`DROP TABLE IF EXISTS %s`, pgx.Identifier{table}.Sanitize())
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("drop spatial table %s: %w", table, err)
	}
	return nil
}

// CountFeatures reports the row count of a spatial table.
func (s *Store) CountFeatures(ctx context.Context, table string) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, pgx.Identifier{table}.Sanitize())
	var n int64
	if err := s.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count features in %s: %w", table, err)
	}
	return n, nil
}
