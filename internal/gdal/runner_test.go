package gdal

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRun_ParentDeadlineSurfacesTimeout(t *testing.T) {
	r := NewRunner(30 * time.Second)

	// The request-level deadline is far tighter than the tool budget; its
	// expiry must still come back typed, not as a bare context error.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := r.Run(ctx, "sleep", "5")
	var tmo *TimeoutError
	if !errors.As(err, &tmo) {
		t.Fatalf("Run() error = %v (%T), want *TimeoutError", err, err)
	}
	if tmo.Tool != "sleep" {
		t.Errorf("Tool = %q, want sleep", tmo.Tool)
	}
	if tmo.Timeout > time.Second {
		t.Errorf("Timeout = %v, want the tighter request deadline", tmo.Timeout)
	}
}

func TestRun_ToolBudgetSurfacesTimeout(t *testing.T) {
	r := NewRunner(100 * time.Millisecond)

	_, err := r.Run(context.Background(), "sleep", "5")
	var tmo *TimeoutError
	if !errors.As(err, &tmo) {
		t.Fatalf("Run() error = %v (%T), want *TimeoutError", err, err)
	}
	if tmo.Timeout != 100*time.Millisecond {
		t.Errorf("Timeout = %v, want 100ms", tmo.Timeout)
	}
}

func TestRun_CancelationPassesThrough(t *testing.T) {
	r := NewRunner(30 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := r.Run(ctx, "sleep", "5")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
}
