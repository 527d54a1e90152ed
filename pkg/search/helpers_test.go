package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rubiojr/annots/pkg/core"
	"github.com/rubiojr/annots/pkg/storage"
)

var errStore = errors.New("store unavailable")

// day returns hour:00 UTC on 2024-03-dd.
func day(dd, hour int) time.Time {
	return time.Date(2024, time.March, dd, hour, 0, 0, 0, time.UTC)
}

func annot(url, page string, edited time.Time, body, comment string) core.Annotation {
	return core.Annotation{
		URL:          url,
		PageURL:      page,
		Body:         body,
		Comment:      comment,
		CreatedWhen:  edited,
		LastEdited:   edited,
		BodyTerms:    core.Terms(body),
		CommentTerms: core.Terms(comment),
	}
}

func newTestStore(t *testing.T, b storage.Batch) *storage.Memory {
	t.Helper()
	store := storage.NewMemory()
	if err := store.Apply(context.Background(), b); err != nil {
		t.Fatalf("seeding store: %v", err)
	}
	return store
}

func newTestService(store IndexStore, install InstallTimeSource, now time.Time) *Service {
	return NewService(store, install, Options{
		Location: time.UTC,
		Now:      func() time.Time { return now },
	})
}

func urls(annots []core.Annotation) []string {
	out := make([]string, 0, len(annots))
	for _, a := range annots {
		out = append(out, a.URL)
	}
	return out
}

// recordingStore records the calls the service makes.
type recordingStore struct {
	IndexStore

	mu        sync.Mutex
	ranges    []core.Range
	pageCalls [][2]int
}

func (r *recordingStore) AnnotationsBetween(ctx context.Context, rng core.Range) ([]core.Annotation, error) {
	r.mu.Lock()
	r.ranges = append(r.ranges, rng)
	r.mu.Unlock()
	return r.IndexStore.AnnotationsBetween(ctx, rng)
}

func (r *recordingStore) PageKeys(ctx context.Context, pageURL string, window core.Window, offset, limit int) ([]string, error) {
	r.mu.Lock()
	r.pageCalls = append(r.pageCalls, [2]int{offset, limit})
	r.mu.Unlock()
	return r.IndexStore.PageKeys(ctx, pageURL, window, offset, limit)
}

// failingStore fails every lookup.
type failingStore struct {
	IndexStore
}

func (failingStore) TermKeys(context.Context, core.Field, string, core.Window) ([]string, error) {
	return nil, errStore
}

func (failingStore) PageKeys(context.Context, string, core.Window, int, int) ([]string, error) {
	return nil, errStore
}

func (failingStore) AnnotationsBetween(context.Context, core.Range) ([]core.Annotation, error) {
	return nil, errStore
}

func (failingStore) Annotations(context.Context, []string) (map[string]core.Annotation, error) {
	return nil, errStore
}

func (failingStore) BookmarkedKeys(context.Context, []string) ([]string, error) {
	return nil, errStore
}

func (failingStore) TagsFor(context.Context, []string) ([]core.Tag, error) {
	return nil, errStore
}

func (failingStore) ListIDs(context.Context, []string) ([]int64, error) {
	return nil, errStore
}

func (failingStore) ListEntriesFor(context.Context, []string) ([]core.ListEntry, error) {
	return nil, errStore
}

// fixedInstall is an InstallTimeSource returning a constant.
type fixedInstall struct {
	t   time.Time
	ok  bool
	err error
}

func (f fixedInstall) InstallTime(context.Context) (time.Time, bool, error) {
	return f.t, f.ok, f.err
}
