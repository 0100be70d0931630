package lod

import (
	"fmt"

	"go.uber.org/multierr"
)

// Skip records a building left out of the model.
type Skip struct {
	Index int // position in the input collection
	ID    string
	Err   error
}

// Report summarizes a run.
type Report struct {
	Built    int
	Vertices int
	Skipped  []Skip
}

// Err combines the skip reasons into one error, or nil if nothing was skipped.
func (r *Report) Err() error {
	var err error
	for _, s := range r.Skipped {
		err = multierr.Append(err, fmt.Errorf("building %d (%q): %w", s.Index, s.ID, s.Err))
	}
	return err
}

// SkippedIDs lists the identifiers of skipped buildings in input order.
func (r *Report) SkippedIDs() []string {
	ids := make([]string, len(r.Skipped))
	for i, s := range r.Skipped {
		ids[i] = s.ID
	}
	return ids
}
