package pipeline

import (
	"strings"
	"testing"
)

func TestBoundaryLayerName(t *testing.T) {
	if got := boundaryLayerName("Bhutan", ""); got != "bhutan_boundary" {
		t.Errorf("boundaryLayerName = %q, want bhutan_boundary", got)
	}

	got := boundaryLayerName("laos", "Laos Admin 1")
	if !strings.HasPrefix(got, "laos_admin_1_") {
		t.Errorf("ad-hoc name = %q, want laos_admin_1_<timestamp>", got)
	}
	suffix := strings.TrimPrefix(got, "laos_admin_1_")
	if len(suffix) != 13 {
		t.Errorf("timestamp suffix = %q, want 13 digits", suffix)
	}
}

func TestMaskLayerName(t *testing.T) {
	tests := []struct {
		boundary string
		want     string
	}{
		{"bhutan_boundary", "bhutan_mask"},
		{"laos_admin_1_1758182825568", "laos_admin_1_1758182825568_mask"},
	}
	for _, tt := range tests {
		if got := maskLayerName(tt.boundary); got != tt.want {
			t.Errorf("maskLayerName(%q) = %q, want %q", tt.boundary, got, tt.want)
		}
	}
}

func TestEnergyLayerName(t *testing.T) {
	if got := energyLayerName("Bhutan", "Solar"); got != "bhutan_solar_energy" {
		t.Errorf("energyLayerName = %q, want bhutan_solar_energy", got)
	}
	if got := energyLayerName("laos", ""); got != "laos_energy" {
		t.Errorf("energyLayerName = %q, want laos_energy", got)
	}
}

func TestRasterLayerName(t *testing.T) {
	if got := rasterLayerName("Bhutan", "Flood Depth"); got != "bhutan_flood_depth_classified" {
		t.Errorf("rasterLayerName = %q, want bhutan_flood_depth_classified", got)
	}
	if got := rasterLayerName("laos", ""); got != "laos_classified" {
		t.Errorf("rasterLayerName = %q, want laos_classified", got)
	}
}

func TestLayerID_StableAndDistinct(t *testing.T) {
	a := LayerID("bhutan_boundary")
	b := LayerID("bhutan_boundary")
	c := LayerID("laos_boundary")

	if a != b {
		t.Errorf("LayerID not stable: %q vs %q", a, b)
	}
	if a == c {
		t.Errorf("distinct names collided: %q", a)
	}
	if len(a) != 8 {
		t.Errorf("len(LayerID) = %d, want 8", len(a))
	}
	for _, r := range a {
		if !strings.ContainsRune(base36, r) {
			t.Errorf("LayerID %q contains non-base36 rune %q", a, r)
		}
	}
}

func TestEmbeddedTimestamp(t *testing.T) {
	tests := []struct {
		name string
		want int64
	}{
		{"laos_admin_1_1758182825568", 1758182825568},
		{"laos_admin_1_1758182825568_mask", 1758182825568},
		{"laos_boundary", 0},
		{"bhutan_1234_boundary", 0},
	}
	for _, tt := range tests {
		if got := embeddedTimestamp(tt.name); got != tt.want {
			t.Errorf("embeddedTimestamp(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}
