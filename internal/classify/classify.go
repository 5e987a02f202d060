// Package classify resolves raster classification schemes: ordered value
// ranges with display colors, repaired against the raster's actual data range.
// All functions are pure and return new slices; callers never see their input
// mutated.
package classify

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
)

// Tolerance absorbs floating-point rounding when comparing class boundaries.
const Tolerance = 0.01

// defaultRamp is the 5-step blue-to-red color ramp used when the caller
// supplies no explicit ranges.
var defaultRamp = [5]string{"#2b83ba", "#abdda4", "#ffffbf", "#fdae61", "#d7191c"}

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ClassRange is a single classification interval. Color is a #RRGGBB string.
type ClassRange struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Color string  `json:"color"`
	Label string  `json:"label,omitempty"`
}

// Scheme is an immutable, resolved classification: classes sorted by Min,
// covering [DataMin, DataMax] with no gap or overlap beyond Tolerance.
type Scheme struct {
	Classes []ClassRange
	DataMin float64
	DataMax float64
	NoData  *float64
}

// ValidateRanges checks caller-supplied ranges before resolution: the list
// must be non-empty, every color a #RRGGBB string and every Min < Max.
func ValidateRanges(ranges []ClassRange) error {
	if len(ranges) == 0 {
		return fmt.Errorf("classification ranges must not be empty")
	}
	for i, r := range ranges {
		if !hexColorRe.MatchString(r.Color) {
			return fmt.Errorf("class %d: color %q is not a #RRGGBB hex string", i, r.Color)
		}
		if r.Min >= r.Max {
			return fmt.Errorf("class %d: min %v must be below max %v", i, r.Min, r.Max)
		}
	}
	return nil
}

// Resolve produces the final scheme for a raster whose band spans
// [dataMin, dataMax]. A nil or empty ranges slice yields five equal intervals
// on the default ramp. Supplied ranges are sorted by Min, clamped so the first
// class starts at dataMin and the last ends at dataMax, and repaired so
// adjacent classes meet exactly. Adjustments are logged at debug level.
func Resolve(log *slog.Logger, ranges []ClassRange, dataMin, dataMax float64) []ClassRange {
	if len(ranges) == 0 {
		return equalIntervals(dataMin, dataMax)
	}

	classes := make([]ClassRange, len(ranges))
	copy(classes, ranges)
	sort.SliceStable(classes, func(i, j int) bool { return classes[i].Min < classes[j].Min })

	classes = adjustToBounds(log, classes, dataMin, dataMax)
	return resolveOverlaps(log, classes)
}

// equalIntervals splits [min, max] into five classes on the default ramp.
func equalIntervals(min, max float64) []ClassRange {
	step := (max - min) / float64(len(defaultRamp))
	classes := make([]ClassRange, len(defaultRamp))
	for i, color := range defaultRamp {
		classes[i] = ClassRange{
			Min:   min + step*float64(i),
			Max:   min + step*float64(i+1),
			Color: color,
			Label: fmt.Sprintf("Class %d", i+1),
		}
	}
	// Pin the outer bounds against accumulated rounding.
	classes[0].Min = min
	classes[len(classes)-1].Max = max
	return classes
}

// adjustToBounds forces the scheme's outer edges onto the raster's actual
// range. Callers routinely approximate the extremes, so supplied boundary
// values are overridden rather than rejected.
func adjustToBounds(log *slog.Logger, classes []ClassRange, dataMin, dataMax float64) []ClassRange {
	out := make([]ClassRange, len(classes))
	copy(out, classes)

	if math.Abs(out[0].Min-dataMin) > Tolerance {
		log.Debug("classification lower bound clamped to data minimum",
			"supplied", out[0].Min, "data_min", dataMin)
	}
	out[0].Min = dataMin

	last := len(out) - 1
	if math.Abs(out[last].Max-dataMax) > Tolerance {
		log.Debug("classification upper bound clamped to data maximum",
			"supplied", out[last].Max, "data_max", dataMax)
	}
	out[last].Max = dataMax
	return out
}

// resolveOverlaps makes adjacent classes meet exactly. An overlap pulls the
// earlier class's Max down to the later class's Min; a gap pulls the later
// class's Min down to the earlier class's Max.
func resolveOverlaps(log *slog.Logger, classes []ClassRange) []ClassRange {
	out := make([]ClassRange, len(classes))
	copy(out, classes)

	for i := 1; i < len(out); i++ {
		diff := out[i-1].Max - out[i].Min
		if math.Abs(diff) <= Tolerance {
			continue
		}
		if diff > 0 {
			log.Debug("classification overlap resolved",
				"class", i-1, "old_max", out[i-1].Max, "new_max", out[i].Min)
			out[i-1].Max = out[i].Min
		} else {
			log.Debug("classification gap closed",
				"class", i, "old_min", out[i].Min, "new_min", out[i-1].Max)
			out[i].Min = out[i-1].Max
		}
	}
	return out
}

// ColorTable renders the gdaldem color-relief table for a scheme: one
// "value R G B 255" line per class boundary, and a fully transparent nodata
// entry when the raster declares one. A missing NoData value degrades
// rendering quality (edge pixels blend instead of turning transparent), so it
// is logged as a warning.
func ColorTable(log *slog.Logger, scheme Scheme) (string, error) {
	var table string
	for _, c := range scheme.Classes {
		r, g, b, err := parseHexColor(c.Color)
		if err != nil {
			return "", err
		}
		table += fmt.Sprintf("%s %d %d %d 255\n", formatValue(c.Min), r, g, b)
	}

	last := scheme.Classes[len(scheme.Classes)-1]
	r, g, b, err := parseHexColor(last.Color)
	if err != nil {
		return "", err
	}
	table += fmt.Sprintf("%s %d %d %d 255\n", formatValue(last.Max), r, g, b)

	if scheme.NoData != nil {
		table += "nv 0 0 0 0\n"
	} else {
		log.Warn("raster declares no NoData value, background pixels will be colorized")
	}
	return table, nil
}

// parseHexColor decodes a #RRGGBB string into its channel values.
func parseHexColor(color string) (r, g, b int, err error) {
	if !hexColorRe.MatchString(color) {
		return 0, 0, 0, fmt.Errorf("color %q is not a #RRGGBB hex string", color)
	}
	rv, _ := strconv.ParseInt(color[1:3], 16, 0)
	gv, _ := strconv.ParseInt(color[3:5], 16, 0)
	bv, _ := strconv.ParseInt(color[5:7], 16, 0)
	return int(rv), int(gv), int(bv), nil
}

// formatValue prints a boundary value without trailing zero noise.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
