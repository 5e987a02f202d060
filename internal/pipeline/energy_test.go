package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/terrasync/terrasync/internal/gdal"
	"github.com/terrasync/terrasync/internal/store"
)

func TestUploadEnergy_DeterministicNameNoMask(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.svc.UploadEnergy(context.Background(), EnergyRequest{
		ArchivePath: boundaryArchive(t),
		Country:     "bhutan",
		EnergyType:  "solar",
	})
	if err != nil {
		t.Fatalf("UploadEnergy() error = %v", err)
	}

	if res.LayerName != "bhutan_solar_energy" {
		t.Errorf("LayerName = %q, want bhutan_solar_energy", res.LayerName)
	}
	if mode := env.tools.imports["bhutan_solar_energy"]; mode != gdal.ModeBoundary {
		t.Errorf("import mode = %q, want %q", mode, gdal.ModeBoundary)
	}
	if !env.publisher.featureTypes["bhutan_solar_energy"] {
		t.Error("energy layer was not published")
	}
	for name := range env.publisher.featureTypes {
		if strings.Contains(name, "_mask") {
			t.Errorf("energy upload derived a mask layer %q", name)
		}
	}

	rec, err := env.records.GetRecord(context.Background(), "bhutan_solar_energy")
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}
	if rec.Kind != store.KindEnergy {
		t.Errorf("Kind = %q, want %q", rec.Kind, store.KindEnergy)
	}
}

func TestUploadEnergy_TypeOptional(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.svc.UploadEnergy(context.Background(), EnergyRequest{
		ArchivePath: boundaryArchive(t),
		Country:     "bhutan",
	})
	if err != nil {
		t.Fatalf("UploadEnergy() error = %v", err)
	}
	if res.LayerName != "bhutan_energy" {
		t.Errorf("LayerName = %q, want bhutan_energy", res.LayerName)
	}
}

func TestUploadEnergy_MissingCountry(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.UploadEnergy(context.Background(), EnergyRequest{
		ArchivePath: boundaryArchive(t),
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
}
