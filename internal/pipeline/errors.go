package pipeline

import (
	"fmt"
	"strings"
)

// ValidationError rejects an upload before any store is touched: bad input
// shape, wrong projection or an unusable classification.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// DeletionError reports that no store held a resource under any candidate
// name for the requested layer.
type DeletionError struct {
	Layer string
	Tried []string
}

func (e *DeletionError) Error() string {
	return fmt.Sprintf("no deletable resource found for layer %q (tried %s)",
		e.Layer, strings.Join(e.Tried, ", "))
}
