package search

import (
	"context"
	"fmt"
	"time"

	"github.com/rubiojr/annots/pkg/core"
	"golang.org/x/sync/errgroup"
)

// lookupTerms returns the keys of the annotations that match every term in
// params.TermsInc. A term matches an annotation when any enabled field
// contains it. The result is sorted lexically; callers restore a meaningful
// order once records are resolved.
func lookupTerms(ctx context.Context, store IndexStore, params SearchParams, now time.Time) ([]string, error) {
	if len(params.TermsInc) == 0 {
		return nil, fmt.Errorf("%w: no search terms", ErrInvalidQuery)
	}
	fields := params.fields()
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: highlights and notes are both disabled", ErrInvalidQuery)
	}

	window := params.window(now)

	var matched keySet
	for _, term := range params.TermsInc {
		termMatches, err := lookupTerm(ctx, store, term, fields, window)
		if err != nil {
			return nil, err
		}

		if matched == nil {
			matched = termMatches
		} else {
			matched = matched.intersect(termMatches)
		}

		// No later term can bring keys back.
		if len(matched) == 0 {
			break
		}
	}

	return matched.sorted(), nil
}

// lookupTerm unions the keys matching term across fields. Field lookups are
// independent reads and run concurrently.
func lookupTerm(ctx context.Context, store IndexStore, term string, fields []core.Field, window core.Window) (keySet, error) {
	perField := make([][]string, len(fields))

	g, gctx := errgroup.WithContext(ctx)
	for i, field := range fields {
		g.Go(func() error {
			keys, err := store.TermKeys(gctx, field, term, window)
			if err != nil {
				return fmt.Errorf("looking up term %q in %s: %w", term, field, err)
			}
			perField[i] = keys
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	union := make(keySet)
	for _, keys := range perField {
		union.add(keys...)
	}
	return union, nil
}
