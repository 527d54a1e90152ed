package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/rubiojr/annots/pkg/core"
)

// assemble resolves keys to records in the order the keys were given. The
// output has one slot per input key; a key with no record leaves a nil
// hole instead of failing the call. Repeated keys resolve to the same
// record.
func assemble(ctx context.Context, store IndexStore, keys []string) ([]*core.Annotation, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	records, err := store.Annotations(ctx, dedupe(keys))
	if err != nil {
		return nil, fmt.Errorf("resolving %d annotations: %w", len(keys), err)
	}

	out := make([]*core.Annotation, len(keys))
	for i, key := range keys {
		if record, ok := records[key]; ok {
			out[i] = &record
		}
	}
	return out, nil
}

// compact drops the holes left by assemble.
func compact(annots []*core.Annotation) []core.Annotation {
	out := make([]core.Annotation, 0, len(annots))
	for _, a := range annots {
		if a != nil {
			out = append(out, *a)
		}
	}
	return out
}

// sortByLastEdited orders annotations most recently edited first. Ties are
// broken by key so the order is reproducible.
func sortByLastEdited(annots []core.Annotation) {
	sort.SliceStable(annots, func(i, j int) bool {
		if !annots[i].LastEdited.Equal(annots[j].LastEdited) {
			return annots[i].LastEdited.After(annots[j].LastEdited)
		}
		return annots[i].URL < annots[j].URL
	})
}
