package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/terrasync/terrasync/internal/store"
)

// LayerInfo is one entry in a country listing: the record, its metadata when
// present, and the URL templates a map client needs.
type LayerInfo struct {
	LayerName     string          `json:"layerName"`
	LayerID       string          `json:"layerId"`
	Kind          store.Kind      `json:"kind"`
	CreatedAt     string          `json:"createdAt"`
	Metadata      *store.Metadata `json:"metadata,omitempty"`
	WMSURL        string          `json:"wmsUrl"`
	TMSURL        string          `json:"tmsUrl,omitempty"`
	VectorTileURL string          `json:"vectorTileUrl,omitempty"`
}

// ListCountryLayers returns every recorded layer whose name contains the
// country token, newest first, with metadata and tile URL templates attached.
func (s *Service) ListCountryLayers(ctx context.Context, country string) ([]LayerInfo, error) {
	if country == "" {
		return nil, &ValidationError{Reason: "country is required"}
	}

	recs, err := s.records.ListRecordsByCountry(ctx, country)
	if err != nil {
		return nil, fmt.Errorf("list layers for %s: %w", country, err)
	}

	out := make([]LayerInfo, 0, len(recs))
	for _, rec := range recs {
		info := LayerInfo{
			LayerName: rec.LayerName,
			LayerID:   LayerID(rec.LayerName),
			Kind:      rec.Kind,
			CreatedAt: rec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			WMSURL:    s.publisher.WMSURL(rec.LayerName),
		}
		if rec.Kind.IsVector() {
			info.VectorTileURL = s.publisher.VectorTileURL(rec.LayerName)
		} else {
			info.TMSURL = s.publisher.TMSURL(rec.LayerName)
		}

		md, err := s.records.GetMetadata(ctx, rec.LayerName)
		switch {
		case err == nil:
			info.Metadata = md
		case errors.Is(err, store.ErrNotFound):
			// Masks and legacy layers have no sidecar row.
		default:
			s.log.Warn("metadata lookup failed", "layer", rec.LayerName, "error", err)
		}
		out = append(out, info)
	}
	return out, nil
}
