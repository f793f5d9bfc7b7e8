// Package check counts structural errors in a nested set. The four error
// classes are independent counts over the whole scope, trashed rows
// included, and run concurrently.
package check

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bluesky-social/nestedset/predicate"
	"github.com/bluesky-social/nestedset/store"

	"golang.org/x/sync/errgroup"
)

var log = slog.Default().With("system", "check")

type Report struct {
	// bounds inverted or spanning an odd count of values
	Oddness int64 `json:"oddness"`
	// nodes sharing a boundary value with a node of higher id
	Duplicates int64 `json:"duplicates"`
	// stated parent exists but is not the immediate container
	WrongParent int64 `json:"wrong_parent"`
	// stated parent does not exist
	MissingParent int64 `json:"missing_parent"`
}

func (r Report) Total() int64 {
	return r.Oddness + r.Duplicates + r.WrongParent + r.MissingParent
}

func (r Report) Broken() bool {
	return r.Total() > 0
}

// Map returns the counts keyed by class name.
func (r Report) Map() map[string]int64 {
	return map[string]int64{
		"oddness":        r.Oddness,
		"duplicates":     r.Duplicates,
		"wrong_parent":   r.WrongParent,
		"missing_parent": r.MissingParent,
	}
}

// Err returns a *ConsistencyError for a broken report, nil otherwise.
func (r Report) Err() error {
	if !r.Broken() {
		return nil
	}
	return &ConsistencyError{Report: r}
}

type ConsistencyError struct {
	Report Report
}

func (e *ConsistencyError) Error() string {
	r := e.Report
	return fmt.Sprintf("tree is broken: oddness=%d duplicates=%d wrong_parent=%d missing_parent=%d",
		r.Oddness, r.Duplicates, r.WrongParent, r.MissingParent)
}

// Run counts every error class in scope.
func Run(ctx context.Context, st store.Store, scope string) (Report, error) {
	b := predicate.Builder{Scope: scope}

	var r Report
	classes := []struct {
		name string
		p    predicate.Predicate
		dst  *int64
	}{
		{"oddness", b.Oddness(), &r.Oddness},
		{"duplicates", b.DuplicateBoundary(), &r.Duplicates},
		{"wrong_parent", b.WrongParent(), &r.WrongParent},
		{"missing_parent", b.MissingParent(), &r.MissingParent},
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, c := range classes {
		eg.Go(func() error {
			n, err := st.Count(ctx, c.p)
			if err != nil {
				return fmt.Errorf("counting %s: %w", c.name, err)
			}
			*c.dst = n
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Report{}, err
	}

	if r.Broken() {
		log.Warn("tree consistency errors", "scope", scope, "oddness", r.Oddness, "duplicates", r.Duplicates,
			"wrong_parent", r.WrongParent, "missing_parent", r.MissingParent)
	}
	return r, nil
}
