package pipeline

import (
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/terrasync/terrasync/internal/shapefile"
)

// boundaryLayerName derives the target layer name for a vector upload.
// Without an explicit name the deterministic {country}_boundary convention
// applies, so re-uploads replace the previous layer. Explicit ad-hoc names get
// a millisecond timestamp suffix for uniqueness.
func boundaryLayerName(country, explicit string) string {
	if explicit == "" {
		return shapefile.SanitizeName(country) + "_boundary"
	}
	return shapefile.SanitizeName(explicit) + "_" + strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// maskLayerName pairs a mask with its boundary by convention.
func maskLayerName(boundaryName string) string {
	if base, ok := strings.CutSuffix(boundaryName, "_boundary"); ok {
		return base + "_mask"
	}
	return boundaryName + "_mask"
}

// energyLayerName derives the deterministic name of an energy vector layer:
// {country}_{type}_energy, or {country}_energy when no type is given.
func energyLayerName(country, energyType string) string {
	base := shapefile.SanitizeName(country)
	if energyType != "" {
		base += "_" + shapefile.SanitizeName(energyType)
	}
	return base + "_energy"
}

// rasterLayerName derives the published name of a classified raster.
func rasterLayerName(country, variable string) string {
	base := shapefile.SanitizeName(country)
	if variable != "" {
		base += "_" + shapefile.SanitizeName(variable)
	}
	return base + "_classified"
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// LayerID derives the stable external identifier for a layer name: an 8
// character base36 token of its FNV-1a hash, reproducible across restarts.
func LayerID(layerName string) string {
	h := fnv.New64a()
	h.Write([]byte(layerName))
	v := h.Sum64()

	buf := make([]byte, 8)
	for i := len(buf) - 1; i >= 0; i-- {
		buf[i] = base36[v%36]
		v /= 36
	}
	return string(buf)
}

// embeddedTimestamp extracts the millisecond creation timestamp embedded in
// ad-hoc layer names (e.g. laos_admin_1_1758182825568_mask). Names without one
// sort as oldest.
func embeddedTimestamp(layerName string) int64 {
	for _, tok := range strings.Split(layerName, "_") {
		if len(tok) != 13 {
			continue
		}
		if ms, err := strconv.ParseInt(tok, 10, 64); err == nil {
			return ms
		}
	}
	return 0
}
