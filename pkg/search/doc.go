// Package search answers queries over a collection of web page annotations.
//
// # Overview
//
// The package knows nothing about how annotations are stored. It reads
// through the IndexStore interface, which exposes the handful of indexed
// lookups the engine needs: term postings, per-page key ranges, time
// ranges over LastEdited, and the facet records (bookmarks, tags and custom
// lists). pkg/storage provides SQLite and in-memory implementations.
//
// # Query shapes
//
// Service exposes three operations:
//
//   - SearchAnnots: every annotation containing all the requested terms,
//     narrowed by facets and grouped by page. Limit and Skip count pages.
//   - ListAnnotsByPage: the annotations of one page, most recent first.
//     Limit and Skip count annotations.
//   - ListAnnotsByDay: annotations grouped by calendar day and page,
//     walking backward from EndDate. Limit and Skip count days.
//
// All three share the same pipeline stages:
//
//	term lookup -> facet filter -> assemble -> group
//
// Term lookup unions the enabled fields of each term and intersects across
// terms. Facet filters (bookmark, tag, collection) keep the input order of
// the keys they do not drop. Assembly resolves keys to records and leaves a
// nil hole for keys without one, which callers drop.
//
// # Usage
//
//	store, err := storage.Open(path)
//	if err != nil {
//		return err
//	}
//	svc := search.NewService(store, store, search.Options{Location: loc})
//
//	pages, err := svc.SearchAnnots(ctx, search.SearchParams{
//		TermsInc: core.Terms("distributed systems"),
//		TagsInc:  []string{"reading"},
//	})
//
// Parsing HTTP parameters:
//
//	params, err := search.ParseSearchParams(r.URL.Query(), svc.Location())
//
// # Day listings
//
// ListAnnotsByDay never scans before the later of StartDate (or the history
// floor, 2018-06-01 by default) and the install time reported by the
// InstallTimeSource. Windows are Limit days wide and adjacent windows never
// overlap, so no annotation is reported twice.
//
// The service holds no per-query state and is safe for concurrent use.
package search
