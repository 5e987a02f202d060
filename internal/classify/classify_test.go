package classify

import (
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func approx(a, b float64) bool {
	return math.Abs(a-b) <= Tolerance
}

func TestResolve_AutoFiveEqualIntervals(t *testing.T) {
	classes := Resolve(discard(), nil, 0, 7118)

	if len(classes) != 5 {
		t.Fatalf("len(classes) = %d, want 5", len(classes))
	}
	if classes[0].Min != 0 {
		t.Errorf("classes[0].Min = %v, want 0", classes[0].Min)
	}
	if classes[4].Max != 7118 {
		t.Errorf("classes[4].Max = %v, want 7118", classes[4].Max)
	}
	wantColors := []string{"#2b83ba", "#abdda4", "#ffffbf", "#fdae61", "#d7191c"}
	for i, want := range wantColors {
		if classes[i].Color != want {
			t.Errorf("classes[%d].Color = %q, want %q", i, classes[i].Color, want)
		}
	}
	for i := 1; i < len(classes); i++ {
		if !approx(classes[i-1].Max, classes[i].Min) {
			t.Errorf("gap between class %d and %d: %v vs %v",
				i-1, i, classes[i-1].Max, classes[i].Min)
		}
	}
}

func TestResolve_SuppliedRanges(t *testing.T) {
	tests := []struct {
		name             string
		ranges           []ClassRange
		dataMin, dataMax float64
		want             []ClassRange
	}{
		{
			name: "gap closed and bounds clamped",
			ranges: []ClassRange{
				{Min: 0, Max: 50, Color: "#2b83ba"},
				{Min: 60, Max: 100, Color: "#d7191c"},
			},
			dataMin: 0,
			dataMax: 100,
			want: []ClassRange{
				{Min: 0, Max: 50, Color: "#2b83ba"},
				{Min: 50, Max: 100, Color: "#d7191c"},
			},
		},
		{
			name: "overlap clamps earlier max",
			ranges: []ClassRange{
				{Min: 0, Max: 70, Color: "#2b83ba"},
				{Min: 60, Max: 100, Color: "#d7191c"},
			},
			dataMin: 0,
			dataMax: 100,
			want: []ClassRange{
				{Min: 0, Max: 60, Color: "#2b83ba"},
				{Min: 60, Max: 100, Color: "#d7191c"},
			},
		},
		{
			name: "approximated extremes forced to data range",
			ranges: []ClassRange{
				{Min: 5, Max: 40, Color: "#2b83ba"},
				{Min: 40, Max: 95, Color: "#d7191c"},
			},
			dataMin: 1.5,
			dataMax: 99.5,
			want: []ClassRange{
				{Min: 1.5, Max: 40, Color: "#2b83ba"},
				{Min: 40, Max: 99.5, Color: "#d7191c"},
			},
		},
		{
			name: "unsorted input sorted by min",
			ranges: []ClassRange{
				{Min: 50, Max: 100, Color: "#d7191c"},
				{Min: 0, Max: 50, Color: "#2b83ba"},
			},
			dataMin: 0,
			dataMax: 100,
			want: []ClassRange{
				{Min: 0, Max: 50, Color: "#2b83ba"},
				{Min: 50, Max: 100, Color: "#d7191c"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(discard(), tt.ranges, tt.dataMin, tt.dataMax)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if !approx(got[i].Min, tt.want[i].Min) || !approx(got[i].Max, tt.want[i].Max) {
					t.Errorf("class %d = [%v, %v], want [%v, %v]",
						i, got[i].Min, got[i].Max, tt.want[i].Min, tt.want[i].Max)
				}
				if got[i].Color != tt.want[i].Color {
					t.Errorf("class %d color = %q, want %q", i, got[i].Color, tt.want[i].Color)
				}
			}
		})
	}
}

func TestResolve_DoesNotMutateInput(t *testing.T) {
	ranges := []ClassRange{
		{Min: 5, Max: 50, Color: "#2b83ba"},
		{Min: 60, Max: 95, Color: "#d7191c"},
	}
	Resolve(discard(), ranges, 0, 100)

	if ranges[0].Min != 5 || ranges[1].Min != 60 || ranges[1].Max != 95 {
		t.Errorf("input mutated: %+v", ranges)
	}
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name    string
		ranges  []ClassRange
		wantErr bool
	}{
		{
			name:   "valid",
			ranges: []ClassRange{{Min: 0, Max: 10, Color: "#abcdef"}},
		},
		{
			name:    "empty",
			ranges:  nil,
			wantErr: true,
		},
		{
			name:    "bad color",
			ranges:  []ClassRange{{Min: 0, Max: 10, Color: "blue"}},
			wantErr: true,
		},
		{
			name:    "shorthand hex rejected",
			ranges:  []ClassRange{{Min: 0, Max: 10, Color: "#abc"}},
			wantErr: true,
		},
		{
			name:    "min equals max",
			ranges:  []ClassRange{{Min: 10, Max: 10, Color: "#abcdef"}},
			wantErr: true,
		},
		{
			name:    "inverted range",
			ranges:  []ClassRange{{Min: 20, Max: 10, Color: "#abcdef"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRanges(tt.ranges)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRanges() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestColorTable(t *testing.T) {
	noData := -9999.0
	scheme := Scheme{
		Classes: []ClassRange{
			{Min: 0, Max: 50, Color: "#2b83ba"},
			{Min: 50, Max: 100, Color: "#d7191c"},
		},
		DataMin: 0,
		DataMax: 100,
		NoData:  &noData,
	}

	table, err := ColorTable(discard(), scheme)
	if err != nil {
		t.Fatalf("ColorTable() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(table), "\n")
	want := []string{
		"0 43 131 186 255",
		"50 215 25 28 255",
		"100 215 25 28 255",
		"nv 0 0 0 0",
	}
	if len(lines) != len(want) {
		t.Fatalf("line count = %d, want %d\n%s", len(lines), len(want), table)
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d = %q, want %q", i, lines[i], w)
		}
	}
}

func TestColorTable_NoNoData(t *testing.T) {
	scheme := Scheme{
		Classes: []ClassRange{{Min: 0, Max: 1, Color: "#ffffff"}},
	}
	table, err := ColorTable(discard(), scheme)
	if err != nil {
		t.Fatalf("ColorTable() error = %v", err)
	}
	if strings.Contains(table, "nv ") {
		t.Errorf("table must not carry an nv entry without a NoData value:\n%s", table)
	}
}
