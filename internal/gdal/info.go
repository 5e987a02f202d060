package gdal

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RasterInfo summarizes the metadata the classification engine needs from a
// single-band raster: value range, NoData sentinel and projection.
type RasterInfo struct {
	Min    float64
	Max    float64
	NoData *float64
	// EPSG is the detected projection code, 0 when it cannot be determined.
	EPSG int
}

// gdalinfoOutput mirrors the subset of `gdalinfo -json` we consume.
type gdalinfoOutput struct {
	CoordinateSystem struct {
		WKT string `json:"wkt"`
	} `json:"coordinateSystem"`
	Stac struct {
		EPSG *int `json:"proj:epsg"`
	} `json:"stac"`
	Bands []struct {
		Min         *float64          `json:"min"`
		Max         *float64          `json:"max"`
		ComputedMin *float64          `json:"computedMin"`
		ComputedMax *float64          `json:"computedMax"`
		NoDataValue *float64          `json:"noDataValue"`
		Metadata    map[string]map[string]string `json:"metadata"`
	} `json:"bands"`
}

// RasterInfo reads band statistics and projection from the raster at path
// using `gdalinfo -json -stats`.
func (t *Tools) RasterInfo(ctx context.Context, path string) (*RasterInfo, error) {
	res, err := t.runner.Run(ctx, t.cfg.GdalInfo, "-json", "-stats", path)
	if err != nil {
		return nil, err
	}
	return parseRasterInfo([]byte(res.Stdout))
}

// parseRasterInfo decodes gdalinfo JSON into a RasterInfo.
func parseRasterInfo(data []byte) (*RasterInfo, error) {
	var out gdalinfoOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode gdalinfo output: %w", err)
	}
	if len(out.Bands) == 0 {
		return nil, fmt.Errorf("raster has no bands")
	}

	band := out.Bands[0]
	info := &RasterInfo{NoData: band.NoDataValue}

	switch {
	case band.Min != nil && band.Max != nil:
		info.Min, info.Max = *band.Min, *band.Max
	case band.ComputedMin != nil && band.ComputedMax != nil:
		info.Min, info.Max = *band.ComputedMin, *band.ComputedMax
	default:
		// Older GDAL builds only surface stats through band metadata.
		min, okMin := statFromMetadata(band.Metadata, "STATISTICS_MINIMUM")
		max, okMax := statFromMetadata(band.Metadata, "STATISTICS_MAXIMUM")
		if !okMin || !okMax {
			return nil, fmt.Errorf("gdalinfo output carries no band statistics")
		}
		info.Min, info.Max = min, max
	}

	info.EPSG = detectEPSG(&out)
	return info, nil
}

// statFromMetadata digs STATISTICS_* values out of the default metadata domain.
func statFromMetadata(md map[string]map[string]string, key string) (float64, bool) {
	domain, ok := md[""]
	if !ok {
		return 0, false
	}
	raw, ok := domain[key]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// detectEPSG extracts the projection code, preferring the STAC extension
// modern gdalinfo emits and falling back to scanning the WKT.
func detectEPSG(out *gdalinfoOutput) int {
	if out.Stac.EPSG != nil {
		return *out.Stac.EPSG
	}

	wkt := out.CoordinateSystem.WKT
	// WKT2: ID["EPSG",4326]   WKT1: AUTHORITY["EPSG","4326"]
	for _, marker := range []string{`ID["EPSG",`, `AUTHORITY["EPSG","`} {
		idx := strings.LastIndex(wkt, marker)
		if idx < 0 {
			continue
		}
		rest := wkt[idx+len(marker):]
		end := strings.IndexAny(rest, `]"`)
		if end < 0 {
			continue
		}
		if code, err := strconv.Atoi(strings.TrimSpace(rest[:end])); err == nil {
			return code
		}
	}
	return 0
}
