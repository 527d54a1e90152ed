package search

import (
	"context"
	"fmt"

	"github.com/rubiojr/annots/pkg/core"
	"golang.org/x/sync/errgroup"
)

// facetStage is one optional narrowing step of the facet filter.
type facetStage interface {
	// name identifies the stage in logs.
	name() string
	// triggers reports whether params request this stage.
	triggers(params SearchParams) bool
	// apply returns the keys that pass the stage, in input order.
	apply(ctx context.Context, store IndexStore, keys []string, params SearchParams) ([]string, error)
}

// facetStages run in this order. Each one is a set intersection, so the
// order does not change the result, but it is kept fixed so store access
// stays predictable.
var facetStages = []facetStage{
	bookmarkStage{},
	tagStage{},
	collectionStage{},
}

// filterKeys narrows keys with every triggered facet stage.
func filterKeys(ctx context.Context, store IndexStore, keys []string, params SearchParams) ([]string, error) {
	for _, stage := range facetStages {
		if len(keys) == 0 {
			return keys, nil
		}
		if !stage.triggers(params) {
			continue
		}

		filtered, err := stage.apply(ctx, store, keys, params)
		if err != nil {
			return nil, fmt.Errorf("applying %s filter: %w", stage.name(), err)
		}
		logger.Debugf("%s filter kept %d of %d keys", stage.name(), len(filtered), len(keys))
		keys = filtered
	}
	return keys, nil
}

// filterAnnotations applies filterKeys to records, keeping their order.
func filterAnnotations(ctx context.Context, store IndexStore, annots []core.Annotation, params SearchParams) ([]core.Annotation, error) {
	if !anyFacet(params) || len(annots) == 0 {
		return annots, nil
	}

	keys := make([]string, len(annots))
	for i, a := range annots {
		keys[i] = a.URL
	}

	kept, err := filterKeys(ctx, store, keys, params)
	if err != nil {
		return nil, err
	}

	allowed := newKeySet(kept...)
	out := make([]core.Annotation, 0, len(kept))
	for _, a := range annots {
		if allowed.has(a.URL) {
			out = append(out, a)
		}
	}
	return out, nil
}

func anyFacet(params SearchParams) bool {
	for _, stage := range facetStages {
		if stage.triggers(params) {
			return true
		}
	}
	return false
}

type bookmarkStage struct{}

func (bookmarkStage) name() string { return "bookmark" }

func (bookmarkStage) triggers(params SearchParams) bool {
	return params.BookmarksOnly
}

func (bookmarkStage) apply(ctx context.Context, store IndexStore, keys []string, _ SearchParams) ([]string, error) {
	bookmarked, err := store.BookmarkedKeys(ctx, dedupe(keys))
	if err != nil {
		return nil, err
	}
	return keep(keys, newKeySet(bookmarked...)), nil
}

type tagStage struct{}

func (tagStage) name() string { return "tag" }

func (tagStage) triggers(params SearchParams) bool {
	return len(params.TagsInc) > 0 || len(params.TagsExc) > 0
}

// apply keeps a key when at least one of its tags survives: excluded tags
// are dropped first, then, if TagsInc is set, tags outside it are dropped.
// A tag listed in both TagsExc and TagsInc is therefore never a match.
func (tagStage) apply(ctx context.Context, store IndexStore, keys []string, params SearchParams) ([]string, error) {
	tags, err := store.TagsFor(ctx, dedupe(keys))
	if err != nil {
		return nil, err
	}

	excluded := newKeySet(params.TagsExc...)
	included := newKeySet(params.TagsInc...)

	surviving := make(keySet)
	for _, tag := range tags {
		if excluded.has(tag.Name) {
			continue
		}
		if len(included) > 0 && !included.has(tag.Name) {
			continue
		}
		surviving.add(tag.URL)
	}
	return keep(keys, surviving), nil
}

type collectionStage struct{}

func (collectionStage) name() string { return "collection" }

func (collectionStage) triggers(params SearchParams) bool {
	return len(params.Collections) > 0
}

func (collectionStage) apply(ctx context.Context, store IndexStore, keys []string, params SearchParams) ([]string, error) {
	var (
		listIDs []int64
		entries []core.ListEntry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		listIDs, err = store.ListIDs(gctx, params.Collections)
		return err
	})
	g.Go(func() error {
		var err error
		entries, err = store.ListEntriesFor(gctx, dedupe(keys))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	wanted := make(map[int64]bool, len(listIDs))
	for _, id := range listIDs {
		wanted[id] = true
	}

	members := make(keySet)
	for _, entry := range entries {
		if wanted[entry.ListID] {
			members.add(entry.URL)
		}
	}
	return keep(keys, members), nil
}
