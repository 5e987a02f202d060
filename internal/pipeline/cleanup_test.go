package pipeline

import (
	"context"
	"testing"
)

func TestCleanupCountry_KeepsNewestPerGroup(t *testing.T) {
	env := newTestEnv(t)
	// Three boundary generations and two mask generations for laos; only the
	// newest of each may survive.
	for _, name := range []string{
		"laos_admin_1_1758163249400",
		"laos_admin_1_1758182825568",
		"laos_boundary",
		"laos_admin_1_1758163249400_mask",
		"laos_admin_1_1758182825568_mask",
	} {
		env.publisher.featureTypes[name] = true
	}

	res, err := env.svc.CleanupCountry(context.Background(), "laos")
	if err != nil {
		t.Fatalf("CleanupCountry() error = %v", err)
	}

	if res.DeletedCount != 3 {
		t.Errorf("DeletedCount = %d, want 3", res.DeletedCount)
	}
	if !env.publisher.featureTypes["laos_admin_1_1758182825568"] {
		t.Error("newest boundary was deleted")
	}
	if !env.publisher.featureTypes["laos_admin_1_1758182825568_mask"] {
		t.Error("newest mask was deleted")
	}
	for _, stale := range []string{
		"laos_admin_1_1758163249400",
		"laos_boundary",
		"laos_admin_1_1758163249400_mask",
	} {
		if env.publisher.featureTypes[stale] {
			t.Errorf("stale layer %q survived cleanup", stale)
		}
	}
}

func TestCleanupCountry_IgnoresOtherCountriesAndRasters(t *testing.T) {
	env := newTestEnv(t)
	for _, name := range []string{
		"laos_boundary",
		"bhutan_boundary",
		"laos_flood_classified",
	} {
		env.publisher.featureTypes[name] = true
	}

	res, err := env.svc.CleanupCountry(context.Background(), "laos")
	if err != nil {
		t.Fatalf("CleanupCountry() error = %v", err)
	}
	if res.DeletedCount != 0 {
		t.Errorf("DeletedCount = %d, want 0", res.DeletedCount)
	}
	if !env.publisher.featureTypes["bhutan_boundary"] {
		t.Error("other country's layer was touched")
	}
	if !env.publisher.featureTypes["laos_flood_classified"] {
		t.Error("classified raster was pruned by vector cleanup")
	}
}

func TestCleanupAll_SweepsEveryCountry(t *testing.T) {
	env := newTestEnv(t)
	for _, name := range []string{
		"laos_admin_1_1758163249400",
		"laos_admin_1_1758182825568",
		"bhutan_districts_1758163249400",
		"bhutan_boundary",
		"bhutan_solar_energy",
	} {
		env.publisher.featureTypes[name] = true
	}

	res, err := env.svc.CleanupAll(context.Background())
	if err != nil {
		t.Fatalf("CleanupAll() error = %v", err)
	}

	if res.DeletedCount != 2 {
		t.Errorf("DeletedCount = %d, want 2", res.DeletedCount)
	}
	for _, kept := range []string{
		"laos_admin_1_1758182825568",
		"bhutan_districts_1758163249400",
		"bhutan_solar_energy",
	} {
		if !env.publisher.featureTypes[kept] {
			t.Errorf("layer %q was deleted", kept)
		}
	}
	for _, stale := range []string{
		"laos_admin_1_1758163249400",
		"bhutan_boundary",
	} {
		if env.publisher.featureTypes[stale] {
			t.Errorf("stale layer %q survived cleanup", stale)
		}
	}
}

func TestGroupCountryLayers_SkipsEnergyLayers(t *testing.T) {
	boundaries, masks := groupCountryLayers([]string{
		"bhutan_boundary",
		"bhutan_solar_energy",
		"bhutan_hydro_energy",
	}, "bhutan")

	if len(boundaries) != 1 || boundaries[0] != "bhutan_boundary" {
		t.Errorf("boundary group = %v, want only bhutan_boundary", boundaries)
	}
	if len(masks) != 0 {
		t.Errorf("mask group = %v, want empty", masks)
	}
}

func TestGroupCountryLayers_SortsNewestFirst(t *testing.T) {
	boundaries, masks := groupCountryLayers([]string{
		"laos_admin_1_1758163249400",
		"laos_admin_1_1758182825568",
		"laos_boundary",
		"laos_admin_1_1758163249400_mask",
	}, "laos")

	if len(boundaries) != 3 {
		t.Fatalf("boundary group = %v, want 3 entries", boundaries)
	}
	if boundaries[0] != "laos_admin_1_1758182825568" {
		t.Errorf("newest boundary = %q, want the highest embedded timestamp", boundaries[0])
	}
	if boundaries[2] != "laos_boundary" {
		t.Errorf("oldest boundary = %q, want the timestampless name", boundaries[2])
	}
	if len(masks) != 1 || masks[0] != "laos_admin_1_1758163249400_mask" {
		t.Errorf("mask group = %v", masks)
	}
}
