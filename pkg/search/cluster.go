package search

import (
	"encoding/json"
	"time"

	"github.com/rubiojr/annots/pkg/core"
)

// PageClusters is an insertion-ordered map from page URL to the
// annotations of that page.
type PageClusters struct {
	order []string
	pages map[string][]core.Annotation
}

// PageCluster is one entry of PageClusters.
type PageCluster struct {
	PageURL     string            `json:"pageUrl"`
	Annotations []core.Annotation `json:"annotations"`
}

func NewPageClusters() *PageClusters {
	return &PageClusters{pages: make(map[string][]core.Annotation)}
}

// Add appends a to the bucket of its page, creating the bucket at the end
// if the page was not seen before.
func (pc *PageClusters) Add(a core.Annotation) {
	if _, exists := pc.pages[a.PageURL]; !exists {
		pc.order = append(pc.order, a.PageURL)
	}
	pc.pages[a.PageURL] = append(pc.pages[a.PageURL], a)
}

// Pages returns the page URLs in insertion order.
func (pc *PageClusters) Pages() []string {
	return append([]string(nil), pc.order...)
}

// Get returns the annotations of pageURL.
func (pc *PageClusters) Get(pageURL string) []core.Annotation {
	return pc.pages[pageURL]
}

// Len returns the number of pages.
func (pc *PageClusters) Len() int {
	return len(pc.order)
}

// Count returns the number of annotations across all pages.
func (pc *PageClusters) Count() int {
	n := 0
	for _, annots := range pc.pages {
		n += len(annots)
	}
	return n
}

// Entries returns the clusters in order.
func (pc *PageClusters) Entries() []PageCluster {
	entries := make([]PageCluster, 0, len(pc.order))
	for _, page := range pc.order {
		entries = append(entries, PageCluster{PageURL: page, Annotations: pc.pages[page]})
	}
	return entries
}

// Slice returns a copy holding the pages in [skip, skip+limit).
func (pc *PageClusters) Slice(skip, limit int) *PageClusters {
	out := NewPageClusters()
	for _, page := range paginate(pc.order, skip, limit) {
		out.order = append(out.order, page)
		out.pages[page] = pc.pages[page]
	}
	return out
}

// merge appends other's buckets: existing annotations first, then other's.
func (pc *PageClusters) merge(other *PageClusters) {
	for _, page := range other.order {
		if _, exists := pc.pages[page]; !exists {
			pc.order = append(pc.order, page)
		}
		pc.pages[page] = append(pc.pages[page], other.pages[page]...)
	}
}

func (pc *PageClusters) clone() *PageClusters {
	out := NewPageClusters()
	out.merge(pc)
	return out
}

// MarshalJSON encodes the clusters as an ordered array.
func (pc *PageClusters) MarshalJSON() ([]byte, error) {
	return json.Marshal(pc.Entries())
}

// DayClusters is an ordered map from start-of-day to the PageClusters of
// that day. Days keep the order they were first added in; ClusterByDay
// produces them most recent first.
type DayClusters struct {
	order []time.Time
	days  map[int64]*PageClusters
}

// DayCluster is one entry of DayClusters.
type DayCluster struct {
	Day   time.Time     `json:"day"`
	Pages *PageClusters `json:"pages"`
}

func NewDayClusters() *DayClusters {
	return &DayClusters{days: make(map[int64]*PageClusters)}
}

// ClusterByDay groups annots by the calendar day of their LastEdited time
// in loc, then by page. Input is sorted most recently edited first, so
// days come out in descending order and every bucket lists its most recent
// annotation first.
func ClusterByDay(annots []core.Annotation, loc *time.Location) *DayClusters {
	sorted := append([]core.Annotation(nil), annots...)
	sortByLastEdited(sorted)

	dc := NewDayClusters()
	for _, a := range sorted {
		dc.bucket(StartOfDay(a.LastEdited, loc)).Add(a)
	}
	return dc
}

// bucket returns the PageClusters of day, appending a new one if needed.
func (dc *DayClusters) bucket(day time.Time) *PageClusters {
	key := day.UnixMilli()
	pages, exists := dc.days[key]
	if !exists {
		pages = NewPageClusters()
		dc.days[key] = pages
		dc.order = append(dc.order, day)
	}
	return pages
}

// Days returns the day keys in order.
func (dc *DayClusters) Days() []time.Time {
	return append([]time.Time(nil), dc.order...)
}

// Get returns the page clusters of day, or nil.
func (dc *DayClusters) Get(day time.Time) *PageClusters {
	return dc.days[day.UnixMilli()]
}

// Len returns the number of days.
func (dc *DayClusters) Len() int {
	return len(dc.order)
}

// Count returns the number of annotations across all days.
func (dc *DayClusters) Count() int {
	n := 0
	for _, pages := range dc.days {
		n += pages.Count()
	}
	return n
}

// Entries returns the clusters in order.
func (dc *DayClusters) Entries() []DayCluster {
	entries := make([]DayCluster, 0, len(dc.order))
	for _, day := range dc.order {
		entries = append(entries, DayCluster{Day: day, Pages: dc.days[day.UnixMilli()]})
	}
	return entries
}

// Merge folds other into dc and returns dc. For a day present in both,
// page buckets are unioned with dc's annotations first; a day only in other
// is appended after dc's days. Merge never re-sorts, so merging older
// clusters into newer ones keeps the days descending.
func (dc *DayClusters) Merge(other *DayClusters) *DayClusters {
	if other == nil {
		return dc
	}
	for _, day := range other.order {
		pages := other.days[day.UnixMilli()]
		if existing, ok := dc.days[day.UnixMilli()]; ok {
			existing.merge(pages)
			continue
		}
		dc.days[day.UnixMilli()] = pages.clone()
		dc.order = append(dc.order, day)
	}
	return dc
}

// Slice returns a copy holding the days in [skip, skip+limit).
func (dc *DayClusters) Slice(skip, limit int) *DayClusters {
	out := NewDayClusters()
	for _, day := range paginate(dc.order, skip, limit) {
		out.order = append(out.order, day)
		out.days[day.UnixMilli()] = dc.days[day.UnixMilli()]
	}
	return out
}

// MarshalJSON encodes the clusters as an ordered array.
func (dc *DayClusters) MarshalJSON() ([]byte, error) {
	type dayJSON struct {
		Day   core.Millis   `json:"day"`
		Pages *PageClusters `json:"pages"`
	}
	out := make([]dayJSON, 0, len(dc.order))
	for _, entry := range dc.Entries() {
		out = append(out, dayJSON{Day: core.Millis(entry.Day), Pages: entry.Pages})
	}
	return json.Marshal(out)
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// paginate returns items[skip:skip+limit], clamped to the slice bounds. A
// non-positive limit means no upper bound.
func paginate[T any](items []T, skip, limit int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && limit < end-skip {
		end = skip + limit
	}
	return items[skip:end]
}
