package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// CleanupResult reports a stale-duplicate pruning run.
type CleanupResult struct {
	DeletedCount int      `json:"deletedCount"`
	Kept         []string `json:"kept"`
	Deleted      []string `json:"deleted"`
}

// CleanupCountry prunes stale duplicate layers for a country: every boundary
// and mask layer except the newest of each group is deleted. Age comes from
// the millisecond timestamp embedded in ad-hoc layer names; names without one
// count as oldest.
func (s *Service) CleanupCountry(ctx context.Context, country string) (*CleanupResult, error) {
	if country == "" {
		return nil, &ValidationError{Reason: "country is required"}
	}

	names, err := s.publisher.ListLayerNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list layers: %w", err)
	}

	boundaries, masks := groupCountryLayers(names, country)

	res := &CleanupResult{}
	s.pruneStale(ctx, res, boundaries, masks)

	s.log.Info("cleanup finished", "country", country,
		"deleted", res.DeletedCount, "kept", len(res.Kept))
	return res, nil
}

// CleanupAll prunes stale duplicates across every country present in the
// tile server, keyed by each layer name's leading token.
func (s *Service) CleanupAll(ctx context.Context) (*CleanupResult, error) {
	names, err := s.publisher.ListLayerNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list layers: %w", err)
	}

	byCountry := make(map[string][]string)
	for _, name := range names {
		if token, _, ok := strings.Cut(name, "_"); ok && token != "" {
			byCountry[token] = append(byCountry[token], name)
		}
	}

	countries := make([]string, 0, len(byCountry))
	for c := range byCountry {
		countries = append(countries, c)
	}
	sort.Strings(countries)

	res := &CleanupResult{}
	for _, c := range countries {
		boundaries, masks := groupCountryLayers(byCountry[c], c)
		s.pruneStale(ctx, res, boundaries, masks)
	}

	s.log.Info("cleanup finished", "country", "all",
		"deleted", res.DeletedCount, "kept", len(res.Kept))
	return res, nil
}

// pruneStale deletes all but the newest member of each group, accumulating
// into res. Deletion failures are warnings; the sweep continues.
func (s *Service) pruneStale(ctx context.Context, res *CleanupResult, boundaries, masks []string) {
	for _, group := range [][]string{boundaries, masks} {
		if len(group) == 0 {
			continue
		}
		res.Kept = append(res.Kept, group[0])
		for _, stale := range group[1:] {
			if _, err := s.DeleteLayer(ctx, stale); err != nil {
				s.log.Warn("stale layer not deleted", "layer", stale, "error", err)
				continue
			}
			res.Deleted = append(res.Deleted, stale)
			res.DeletedCount++
		}
	}
}

// groupCountryLayers splits a country's layers into boundary and mask groups,
// each sorted newest first. Ad-hoc boundary names carry no "_boundary" marker,
// so the boundary group is every non-mask vector name; classified rasters are
// never pruned here.
func groupCountryLayers(names []string, country string) (boundaries, masks []string) {
	token := strings.ToLower(country)
	for _, name := range names {
		if !strings.Contains(strings.ToLower(name), token) {
			continue
		}
		switch {
		case strings.Contains(name, "_mask"):
			masks = append(masks, name)
		case strings.Contains(name, "_classified") || strings.Contains(name, "_store") ||
			strings.HasSuffix(name, "_energy"):
			// Raster artifacts are out of scope for duplicate pruning, and
			// energy names are deterministic so duplicates cannot accrete.
		default:
			boundaries = append(boundaries, name)
		}
	}

	newestFirst := func(group []string) {
		sort.SliceStable(group, func(i, j int) bool {
			return embeddedTimestamp(group[i]) > embeddedTimestamp(group[j])
		})
	}
	newestFirst(boundaries)
	newestFirst(masks)
	return boundaries, masks
}
