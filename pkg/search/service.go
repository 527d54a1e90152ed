package search

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rubiojr/annots/pkg/core"
	"github.com/rubiojr/annots/pkg/log"
)

var logger = log.ForService("search")

// DefaultInnerLimitMultiplier is how many raw keys ListAnnotsByPage fetches
// per requested annotation before applying facet filters.
const DefaultInnerLimitMultiplier = 2

// DefaultHistoryFloor is the earliest day ListAnnotsByDay scans back to
// when neither StartDate nor a later install time bounds it.
var DefaultHistoryFloor = time.Date(2018, time.June, 1, 0, 0, 0, 0, time.UTC)

// Options tunes a Service. Zero values select the defaults.
type Options struct {
	// Location is the timezone day boundaries are computed in.
	// Defaults to time.Local.
	Location *time.Location

	// HistoryFloor is the lower bound of day listings. Only its calendar
	// date is used; it is re-anchored at midnight in Location.
	// Defaults to DefaultHistoryFloor.
	HistoryFloor time.Time

	// InnerLimitMultiplier is the ListAnnotsByPage over-fetch factor used
	// when the caller passes a non-positive multiplier.
	// Defaults to DefaultInnerLimitMultiplier.
	InnerLimitMultiplier int

	// DefaultLimit replaces a non-positive SearchParams.Limit.
	// Defaults to DefaultLimit.
	DefaultLimit int

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Service answers annotation queries against an IndexStore. It holds no
// per-query state and is safe for concurrent use.
type Service struct {
	store   IndexStore
	install InstallTimeSource
	opts    Options
}

// NewService creates a search service. install may be nil, in which case
// day listings are bounded only by StartDate and the history floor.
func NewService(store IndexStore, install InstallTimeSource, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.HistoryFloor.IsZero() {
		opts.HistoryFloor = DefaultHistoryFloor
	}
	y, m, d := opts.HistoryFloor.Date()
	opts.HistoryFloor = time.Date(y, m, d, 0, 0, 0, 0, opts.Location)
	if opts.InnerLimitMultiplier <= 0 {
		opts.InnerLimitMultiplier = DefaultInnerLimitMultiplier
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		store:   store,
		install: install,
		opts:    opts,
	}
}

// Location returns the timezone the service computes days in.
func (s *Service) Location() *time.Location {
	return s.opts.Location
}

// SearchAnnots finds the annotations containing every term in
// params.TermsInc, narrows them with the facet filters and groups them by
// page. Pages are ordered by their most recently edited match, and Limit
// and Skip count pages.
func (s *Service) SearchAnnots(ctx context.Context, params SearchParams) (*PageClusters, error) {
	params = params.withDefaults(s.opts.DefaultLimit)
	logger.Debugf("searching %d terms (limit=%d skip=%d)", len(params.TermsInc), params.Limit, params.Skip)

	keys, err := lookupTerms(ctx, s.store, params, s.opts.Now())
	if err != nil {
		return nil, err
	}

	keys, err = filterKeys(ctx, s.store, keys, params)
	if err != nil {
		return nil, err
	}

	resolved, err := assemble(ctx, s.store, keys)
	if err != nil {
		return nil, err
	}

	annots := compact(resolved)
	sortByLastEdited(annots)

	clusters := NewPageClusters()
	for _, a := range annots {
		if params.URL != "" && a.PageURL != params.URL {
			continue
		}
		clusters.Add(a)
	}

	return clusters.Slice(params.Skip, params.Limit), nil
}

// ListAnnotsByPage lists the annotations of params.URL, most recently
// edited first, narrowed by the facet filters and sliced by Skip and Limit.
//
// Facet filters can discard any share of a page's annotations, so keys are
// fetched in batches of Limit*innerLimitMultiplier until enough survive or
// the page runs out. A non-positive multiplier selects the service default.
func (s *Service) ListAnnotsByPage(ctx context.Context, params SearchParams, innerLimitMultiplier int) ([]core.Annotation, error) {
	if params.URL == "" {
		return nil, fmt.Errorf("%w: page URL is required", ErrInvalidQuery)
	}
	params = params.withDefaults(s.opts.DefaultLimit)
	if innerLimitMultiplier <= 0 {
		innerLimitMultiplier = s.opts.InnerLimitMultiplier
	}

	window := params.window(s.opts.Now())
	innerLimit := mulCapped(params.Limit, innerLimitMultiplier)
	wanted := addCapped(params.Skip, params.Limit)

	var (
		filtered  []string
		innerSkip int
	)
	for {
		raw, err := s.store.PageKeys(ctx, params.URL, window, innerSkip, innerLimit)
		if err != nil {
			return nil, fmt.Errorf("listing keys of page %s: %w", params.URL, err)
		}

		kept, err := filterKeys(ctx, s.store, raw, params)
		if err != nil {
			return nil, err
		}
		filtered = append(filtered, kept...)
		logger.Debugf("page %s: batch at %d returned %d keys, %d kept (%d total)", params.URL, innerSkip, len(raw), len(kept), len(filtered))

		if len(raw) < innerLimit || len(filtered) >= wanted {
			break
		}
		innerSkip += innerLimit
	}

	resolved, err := assemble(ctx, s.store, paginate(filtered, params.Skip, params.Limit))
	if err != nil {
		return nil, err
	}
	return compact(resolved), nil
}

// ListAnnotsByDay lists annotations clustered by day and page, walking
// backward in time from params.EndDate (default: the end of today).
//
// Each step queries a window ending at the cursor and starting at midnight
// Limit days earlier, filters it, clusters it and merges it into the result,
// then moves the cursor to the window start. The walk stops once Skip+Limit days were collected or the
// lower bound is reached: the later of StartDate (or the history floor)
// and the install time.
//
// Skip and Limit count days. To page through time, callers should move
// EndDate back instead of raising Skip.
func (s *Service) ListAnnotsByDay(ctx context.Context, params SearchParams) (*DayClusters, error) {
	params = params.withDefaults(s.opts.DefaultLimit)
	loc := s.opts.Location

	lower, err := s.lowerBound(ctx, params)
	if err != nil {
		return nil, err
	}

	// Without an explicit end the walk starts at the next midnight, which
	// keeps every window aligned on day boundaries.
	cursor := StartOfDay(s.opts.Now(), loc).AddDate(0, 0, 1)
	includeCursor := false
	if params.EndDate != nil {
		cursor = *params.EndDate
		includeCursor = true
	}

	wanted := addCapped(params.Skip, params.Limit)
	result := NewDayClusters()
	iterations := 0
	for result.Len() < wanted && cursor.After(lower) {
		// Windows start at midnight so the oldest day collected is whole.
		windowStart := StartOfDay(cursor.AddDate(0, 0, -params.Limit), loc)
		if windowStart.Before(lower) || !windowStart.Before(cursor) {
			windowStart = lower
		}

		annots, err := s.store.AnnotationsBetween(ctx, core.Range{
			Low:         windowStart,
			High:        cursor,
			IncludeLow:  true,
			IncludeHigh: includeCursor,
		})
		if err != nil {
			return nil, fmt.Errorf("listing annotations between %s and %s: %w", windowStart.Format(time.RFC3339), cursor.Format(time.RFC3339), err)
		}

		annots, err = filterAnnotations(ctx, s.store, annots, params)
		if err != nil {
			return nil, err
		}

		result.Merge(ClusterByDay(annots, loc))
		iterations++
		logger.Debugf("window %s..%s: %d annotations, %d days so far", windowStart.Format(time.RFC3339), cursor.Format(time.RFC3339), len(annots), result.Len())

		// windowStart was included above; later windows exclude it.
		cursor = windowStart
		includeCursor = false
	}

	logger.Debugf("day listing finished after %d windows with %d days", iterations, result.Len())
	return result.Slice(params.Skip, params.Limit), nil
}

// lowerBound is the earliest time ListAnnotsByDay may query.
func (s *Service) lowerBound(ctx context.Context, params SearchParams) (time.Time, error) {
	lower := s.opts.HistoryFloor
	if params.StartDate != nil {
		lower = *params.StartDate
	}

	if s.install == nil {
		return lower, nil
	}

	installed, ok, err := s.install.InstallTime(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("reading install time: %w", err)
	}
	if ok && installed.After(lower) {
		lower = installed
	}
	return lower, nil
}

// addCapped returns a+b for non-negative operands, saturating at math.MaxInt.
func addCapped(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

// mulCapped returns a*b for positive operands, saturating at math.MaxInt.
func mulCapped(a, b int) int {
	if a > math.MaxInt/b {
		return math.MaxInt
	}
	return a * b
}
