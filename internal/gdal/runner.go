// Package gdal invokes the external GDAL/OGR tool suite (ogr2ogr, gdalinfo,
// gdaldem, gdal_translate) as child processes.
//
// Every invocation is argv-array based — no shell interpolation — and runs
// under an enforced timeout that force-terminates the child on expiry. All
// tool output is captured into a typed Result so callers can surface stderr
// in their own error types.
package gdal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Result captures the outcome of a single tool invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// TimeoutError reports that a tool exceeded its execution budget and was
// force-terminated.
type TimeoutError struct {
	Tool    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s exceeded %s budget and was terminated", e.Tool, e.Timeout)
}

// ExitError reports a nonzero exit from a tool, carrying its stderr.
type ExitError struct {
	Tool     string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if len(msg) > 400 {
		msg = msg[:400] + "..."
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Tool, e.ExitCode, msg)
}

// Runner executes external tools with a fixed per-invocation timeout.
type Runner struct {
	timeout time.Duration
}

// NewRunner creates a Runner. A non-positive timeout falls back to 30s.
func NewRunner(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Runner{timeout: timeout}
}

// Run executes name with args and waits for completion.
//
// The returned Result is valid even when err is non-nil. Errors are typed:
// *TimeoutError when the budget expired, *ExitError for a nonzero exit, and
// plain errors for start failures (tool not installed, permission).
func (r *Runner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	// The effective budget is the tighter of the per-tool timeout and
	// whatever deadline ctx already carries (the upload pipeline budget).
	budget := r.timeout
	if dl, ok := ctx.Deadline(); ok {
		if remain := time.Until(dl); remain < budget {
			budget = remain
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	slog.Debug("tool finished",
		"tool", name,
		"args", len(args),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if err == nil {
		return res, nil
	}

	// Timeout takes precedence: CommandContext kills the child, which
	// surfaces as a generic exit error otherwise. An expired deadline on
	// either context is a timeout; a plain cancelation (client hung up)
	// passes through untyped.
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return res, &TimeoutError{Tool: name, Timeout: budget}
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, &ExitError{Tool: name, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}

	return res, fmt.Errorf("start %s: %w", name, err)
}
