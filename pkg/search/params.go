package search

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rubiojr/annots/pkg/core"
)

// DefaultLimit is the page size used when SearchParams.Limit is not set.
const DefaultLimit = 10

// MaxLimit is the largest page size a query may ask for. Larger limits are
// lowered to it.
const MaxLimit = 1000

// SearchParams describes a single query against the annotation collection.
// The zero value lists everything with the default page size; the Service
// never mutates the params it receives.
type SearchParams struct {
	// TermsInc are the terms every matching annotation must contain, in any
	// enabled text field. Terms are compared exactly, so they must already
	// be folded the way the index folds them (see core.FoldTerm).
	TermsInc []string

	// IncludeHighlights enables matching terms against the highlighted
	// text. nil means true.
	IncludeHighlights *bool

	// IncludeNotes enables matching terms against the note. nil means true.
	IncludeNotes *bool

	// StartDate limits results to annotations edited on or after this time.
	// If nil, no lower bound is applied (day listings still stop at the
	// history floor and the install time).
	StartDate *time.Time

	// EndDate limits results to annotations edited on or before this time.
	// Set to the end of the day when parsed from a date string.
	// If nil, "now" is used (end of the current day for day listings).
	EndDate *time.Time

	// BookmarksOnly keeps only bookmarked annotations.
	BookmarksOnly bool

	// TagsInc keeps only annotations carrying at least one of these tags.
	TagsInc []string

	// TagsExc drops tags before TagsInc is evaluated: an annotation
	// survives only if it still has at least one tag left.
	TagsExc []string

	// Collections keeps only annotations that belong to one of these
	// custom lists, by name.
	Collections []string

	// URL scopes the query to a single page. Required by ListAnnotsByPage.
	URL string

	// Limit is the page size: annotations for ListAnnotsByPage, pages for
	// SearchAnnots and days for ListAnnotsByDay. Defaults to DefaultLimit.
	Limit int

	// Skip is the number of items (of the same unit as Limit) to skip.
	Skip int
}

// withDefaults returns a copy of p with Limit and Skip normalized.
func (p SearchParams) withDefaults(defaultLimit int) SearchParams {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	p.Limit = min(p.Limit, MaxLimit)
	if p.Skip < 0 {
		p.Skip = 0
	}
	return p
}

// fields returns the term indexes enabled by the params.
func (p SearchParams) fields() []core.Field {
	var fields []core.Field
	if p.IncludeHighlights == nil || *p.IncludeHighlights {
		fields = append(fields, core.FieldBodyTerms)
	}
	if p.IncludeNotes == nil || *p.IncludeNotes {
		fields = append(fields, core.FieldCommentTerms)
	}
	return fields
}

// window returns the LastEdited bounds of the params: [StartDate or the
// beginning of time, EndDate or now].
func (p SearchParams) window(now time.Time) core.Window {
	w := core.Window{End: now}
	if p.StartDate != nil {
		w.Start = *p.StartDate
	}
	if p.EndDate != nil {
		w.End = *p.EndDate
	}
	return w
}

// Bool returns a pointer to v, for the optional SearchParams toggles.
func Bool(v bool) *bool {
	return &v
}

// ParseSearchParams parses HTTP query parameters into a SearchParams struct.
// Dates are interpreted in loc (time.Local if nil).
//
// Supported parameters:
//   - q: free text, split into folded terms
//   - term: a single term (can be specified multiple times)
//   - highlights, notes: booleans enabling the text fields
//   - start_date, end_date: YYYY-MM-DD (end date set to end of day)
//   - bookmarks: boolean, bookmarked annotations only
//   - tag, not_tag, collection: facet filters (can be specified multiple times)
//   - url: page URL
//   - limit: positive integer, defaults to DefaultLimit, capped at MaxLimit
//   - skip: non-negative integer, defaults to 0
//
// Invalid dates and booleans return an error; invalid limit and skip fall
// back to their defaults.
func ParseSearchParams(queryParams map[string][]string, loc *time.Location) (SearchParams, error) {
	if loc == nil {
		loc = time.Local
	}
	params := SearchParams{
		Limit: DefaultLimit,
	}

	first := func(key string) string {
		if values := queryParams[key]; len(values) > 0 {
			return values[0]
		}
		return ""
	}

	if q := first("q"); q != "" {
		params.TermsInc = append(params.TermsInc, core.Terms(q)...)
	}
	for _, term := range queryParams["term"] {
		if folded := core.FoldTerm(term); folded != "" {
			params.TermsInc = append(params.TermsInc, folded)
		}
	}

	for _, toggle := range []struct {
		key string
		dst **bool
	}{
		{"highlights", &params.IncludeHighlights},
		{"notes", &params.IncludeNotes},
	} {
		if raw := first(toggle.key); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return params, fmt.Errorf("parsing %s: %w", toggle.key, err)
			}
			*toggle.dst = Bool(v)
		}
	}

	if raw := first("bookmarks"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return params, fmt.Errorf("parsing bookmarks: %w", err)
		}
		params.BookmarksOnly = v
	}

	params.TagsInc = nonEmpty(queryParams["tag"])
	params.TagsExc = nonEmpty(queryParams["not_tag"])
	params.Collections = nonEmpty(queryParams["collection"])
	params.URL = first("url")

	if raw := first("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			params.Limit = min(parsed, MaxLimit)
		}
	}

	if raw := first("skip"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			params.Skip = parsed
		}
	}

	if raw := first("start_date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			return params, fmt.Errorf("parsing start_date: %w", err)
		}
		params.StartDate = &parsed
	}

	if raw := first("end_date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			return params, fmt.Errorf("parsing end_date: %w", err)
		}
		endOfDay := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, 999999999, loc)
		params.EndDate = &endOfDay
	}

	return params, nil
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
