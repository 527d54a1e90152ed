package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rubiojr/annots/pkg/core"
)

// Memory is an in-memory store implementing search.IndexStore and
// search.InstallTimeSource. It is safe for concurrent use and intended
// primarily for testing.
type Memory struct {
	mu          sync.RWMutex
	annotations map[string]core.Annotation
	// postings maps field -> term -> set of annotation URLs.
	postings    map[core.Field]map[string]map[string]struct{}
	bookmarks   map[string]struct{}
	tags        map[core.Tag]struct{}
	lists       map[string]int64
	entries     map[core.ListEntry]struct{}
	nextListID  int64
	installTime time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		annotations: make(map[string]core.Annotation),
		postings:    make(map[core.Field]map[string]map[string]struct{}),
		bookmarks:   make(map[string]struct{}),
		tags:        make(map[core.Tag]struct{}),
		lists:       make(map[string]int64),
		entries:     make(map[core.ListEntry]struct{}),
		nextListID:  1,
	}
}

// Apply implements Writer.
func (m *Memory) Apply(_ context.Context, b Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range b.Annotations {
		if old, ok := m.annotations[a.URL]; ok {
			m.unindex(old)
		}
		a.BodyTerms = append([]string(nil), a.BodyTerms...)
		a.CommentTerms = append([]string(nil), a.CommentTerms...)
		m.annotations[a.URL] = a
		m.index(a)
	}

	for _, url := range b.Bookmarks {
		m.bookmarks[url] = struct{}{}
	}

	for _, tag := range b.Tags {
		m.tags[tag] = struct{}{}
	}

	names := make([]string, 0, len(b.Lists))
	for name := range b.Lists {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		id, ok := m.lists[name]
		if !ok {
			id = m.nextListID
			m.nextListID++
			m.lists[name] = id
		}
		for _, url := range b.Lists[name] {
			m.entries[core.ListEntry{ListID: id, URL: url}] = struct{}{}
		}
	}
	return nil
}

func (m *Memory) index(a core.Annotation) {
	m.post(core.FieldBodyTerms, a.BodyTerms, a.URL)
	m.post(core.FieldCommentTerms, a.CommentTerms, a.URL)
}

func (m *Memory) post(field core.Field, terms []string, url string) {
	byTerm, ok := m.postings[field]
	if !ok {
		byTerm = make(map[string]map[string]struct{})
		m.postings[field] = byTerm
	}
	for _, term := range terms {
		urls, ok := byTerm[term]
		if !ok {
			urls = make(map[string]struct{})
			byTerm[term] = urls
		}
		urls[url] = struct{}{}
	}
}

func (m *Memory) unindex(a core.Annotation) {
	for field, terms := range map[core.Field][]string{
		core.FieldBodyTerms:    a.BodyTerms,
		core.FieldCommentTerms: a.CommentTerms,
	} {
		for _, term := range terms {
			delete(m.postings[field][term], a.URL)
		}
	}
}

// TermKeys implements search.IndexStore.
func (m *Memory) TermKeys(_ context.Context, field core.Field, term string, window core.Window) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for url := range m.postings[field][term] {
		if a, ok := m.annotations[url]; ok && window.Contains(a.LastEdited) {
			keys = append(keys, url)
		}
	}
	return keys, nil
}

// PageKeys implements search.IndexStore.
func (m *Memory) PageKeys(_ context.Context, pageURL string, window core.Window, offset, limit int) ([]string, error) {
	m.mu.RLock()
	var annots []core.Annotation
	for _, a := range m.annotations {
		if a.PageURL == pageURL && window.Contains(a.LastEdited) {
			annots = append(annots, a)
		}
	}
	m.mu.RUnlock()

	sortRecent(annots)

	if offset < 0 {
		offset = 0
	}
	if offset >= len(annots) {
		return nil, nil
	}
	annots = annots[offset:]
	if limit > 0 && limit < len(annots) {
		annots = annots[:limit]
	}

	keys := make([]string, len(annots))
	for i, a := range annots {
		keys[i] = a.URL
	}
	return keys, nil
}

// AnnotationsBetween implements search.IndexStore.
func (m *Memory) AnnotationsBetween(_ context.Context, r core.Range) ([]core.Annotation, error) {
	m.mu.RLock()
	var annots []core.Annotation
	for _, a := range m.annotations {
		if r.Contains(a.LastEdited) {
			annots = append(annots, a)
		}
	}
	m.mu.RUnlock()

	sortRecent(annots)
	return annots, nil
}

// Annotations implements search.IndexStore.
func (m *Memory) Annotations(_ context.Context, keys []string) (map[string]core.Annotation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]core.Annotation, len(keys))
	for _, key := range keys {
		if a, ok := m.annotations[key]; ok {
			out[key] = a
		}
	}
	return out, nil
}

// BookmarkedKeys implements search.IndexStore.
func (m *Memory) BookmarkedKeys(_ context.Context, keys []string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for _, key := range keys {
		if _, ok := m.bookmarks[key]; ok {
			out = append(out, key)
		}
	}
	return out, nil
}

// TagsFor implements search.IndexStore.
func (m *Memory) TagsFor(_ context.Context, keys []string) ([]core.Tag, error) {
	wanted := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		wanted[key] = struct{}{}
	}

	m.mu.RLock()
	var out []core.Tag
	for tag := range m.tags {
		if _, ok := wanted[tag.URL]; ok {
			out = append(out, tag)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].URL != out[j].URL {
			return out[i].URL < out[j].URL
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// ListIDs implements search.IndexStore.
func (m *Memory) ListIDs(_ context.Context, names []string) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []int64
	for _, name := range names {
		if id, ok := m.lists[name]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ListEntriesFor implements search.IndexStore.
func (m *Memory) ListEntriesFor(_ context.Context, keys []string) ([]core.ListEntry, error) {
	wanted := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		wanted[key] = struct{}{}
	}

	m.mu.RLock()
	var out []core.ListEntry
	for entry := range m.entries {
		if _, ok := wanted[entry.URL]; ok {
			out = append(out, entry)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].URL != out[j].URL {
			return out[i].URL < out[j].URL
		}
		return out[i].ListID < out[j].ListID
	})
	return out, nil
}

// InstallTime implements search.InstallTimeSource.
func (m *Memory) InstallTime(_ context.Context) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.installTime, !m.installTime.IsZero(), nil
}

// SetInstallTime records t as the install time. A zero t clears it.
func (m *Memory) SetInstallTime(_ context.Context, t time.Time) error {
	m.mu.Lock()
	m.installTime = t
	m.mu.Unlock()
	return nil
}

// sortRecent orders annotations most recently edited first, URL ascending
// on ties, matching the SQLite store.
func sortRecent(annots []core.Annotation) {
	sort.Slice(annots, func(i, j int) bool {
		if !annots[i].LastEdited.Equal(annots[j].LastEdited) {
			return annots[i].LastEdited.After(annots[j].LastEdited)
		}
		return annots[i].URL < annots[j].URL
	})
}
