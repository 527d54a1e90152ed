package search

import (
	"context"
	"time"

	"github.com/rubiojr/annots/pkg/core"
)

// IndexStore is the indexed annotation store the search engine reads from.
// Implementations only answer lookups; all ordering, filtering and
// pagination decisions are made by the Service.
type IndexStore interface {
	// TermKeys returns the keys of annotations whose field index contains
	// term and whose LastEdited falls inside window. Order is unspecified.
	TermKeys(ctx context.Context, field core.Field, term string, window core.Window) ([]string, error)

	// PageKeys returns the keys of the annotations attached to pageURL whose
	// LastEdited falls inside window, most recently edited first, skipping
	// offset keys and returning at most limit keys.
	PageKeys(ctx context.Context, pageURL string, window core.Window, offset, limit int) ([]string, error)

	// AnnotationsBetween returns the annotations whose LastEdited falls
	// inside r, most recently edited first.
	AnnotationsBetween(ctx context.Context, r core.Range) ([]core.Annotation, error)

	// Annotations resolves keys to records. Keys without a record are
	// absent from the returned map.
	Annotations(ctx context.Context, keys []string) (map[string]core.Annotation, error)

	// BookmarkedKeys returns the subset of keys that have a bookmark.
	BookmarkedKeys(ctx context.Context, keys []string) ([]string, error)

	// TagsFor returns every tag record attached to any of keys.
	TagsFor(ctx context.Context, keys []string) ([]core.Tag, error)

	// ListIDs resolves custom list names to their ids. Unknown names are
	// skipped.
	ListIDs(ctx context.Context, names []string) ([]int64, error)

	// ListEntriesFor returns every list entry attached to any of keys.
	ListEntriesFor(ctx context.Context, keys []string) ([]core.ListEntry, error)
}

// InstallTimeSource provides the time the host was installed. ok is false
// when the value was never recorded.
type InstallTimeSource interface {
	InstallTime(ctx context.Context) (t time.Time, ok bool, err error)
}
