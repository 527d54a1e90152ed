package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rubiojr/annots/pkg/core"
	"github.com/rubiojr/annots/pkg/storage"
)

const sampleExport = `{
  "annotations": [
    {"url": "https://example.com/a#1", "pageUrl": "https://example.com/a", "body": "Raft Consensus", "comment": "read again", "createdWhen": 1709900000000, "lastEdited": 1709990000000},
    {"pageUrl": "https://example.com/b", "body": "no key", "createdWhen": 1709900000000},
    {"url": "https://example.com/c#1", "body": "orphan", "lastEdited": 1709900000000},
    {"url": "https://example.com/d#1", "pageUrl": "https://example.com/d"}
  ],
  "bookmarks": ["https://example.com/a#1", ""],
  "tags": [{"name": "papers", "url": "https://example.com/a#1"}, {"name": "", "url": "x"}],
  "lists": [{"name": "reading", "urls": ["https://example.com/a#1"]}]
}`

func TestImport(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	imp := New(store, WithKeyGenerator(func() string { return "generated" }))

	result, err := imp.Import(ctx, strings.NewReader(sampleExport))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if result.Accepted != 2 || result.Rejected != 2 {
		t.Errorf("accepted %d, rejected %d; want 2 and 2", result.Accepted, result.Rejected)
	}
	if result.Bookmarks != 1 || result.Tags != 1 || result.Lists != 1 {
		t.Errorf("result = %+v", result)
	}
	if len(result.Errors) != 3 {
		t.Errorf("errors = %v, want 3", result.Errors)
	}

	records, err := store.Annotations(ctx, []string{"https://example.com/a#1", "generated"})
	if err != nil {
		t.Fatal(err)
	}
	a := records["https://example.com/a#1"]
	if !reflect.DeepEqual(a.BodyTerms, []string{"raft", "consensus"}) {
		t.Errorf("BodyTerms = %v", a.BodyTerms)
	}
	if !reflect.DeepEqual(a.CommentTerms, []string{"read", "again"}) {
		t.Errorf("CommentTerms = %v", a.CommentTerms)
	}
	if !a.LastEdited.Equal(time.UnixMilli(1709990000000)) {
		t.Errorf("LastEdited = %v", a.LastEdited)
	}

	generated, ok := records["generated"]
	if !ok {
		t.Fatal("annotation without url was not stored under a generated key")
	}
	if !generated.LastEdited.Equal(generated.CreatedWhen) {
		t.Errorf("missing lastEdited should default to createdWhen: %v / %v", generated.LastEdited, generated.CreatedWhen)
	}

	keys, err := store.TermKeys(ctx, core.FieldBodyTerms, "raft", core.Window{})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(keys, []string{"https://example.com/a#1"}) {
		t.Errorf("raft keys = %v", keys)
	}

	bookmarked, err := store.BookmarkedKeys(ctx, []string{"https://example.com/a#1"})
	if err != nil || len(bookmarked) != 1 {
		t.Errorf("bookmarks = %v, %v", bookmarked, err)
	}
}

func TestImportGeneratesUUIDKeys(t *testing.T) {
	store := storage.NewMemory()
	result, err := New(store).ImportExport(context.Background(), Export{
		Annotations: []ExportedAnnotation{
			{PageURL: "p", LastEdited: core.Millis(time.UnixMilli(1))},
			{PageURL: "p", LastEdited: core.Millis(time.UnixMilli(2))},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Accepted != 2 {
		t.Fatalf("accepted = %d", result.Accepted)
	}

	keys, err := store.PageKeys(context.Background(), "p", core.Window{}, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] == keys[1] {
		t.Fatalf("keys = %v, want two distinct keys", keys)
	}
	for _, key := range keys {
		if !strings.HasPrefix(key, GeneratedKeyPrefix) || len(key) != len(GeneratedKeyPrefix)+36 {
			t.Errorf("key %q is not a uuid urn", key)
		}
	}
}

// countingWriter counts Apply calls.
type countingWriter struct {
	storage.Writer
	calls int
	err   error
}

func (c *countingWriter) Apply(ctx context.Context, b storage.Batch) error {
	c.calls++
	if c.err != nil {
		return c.err
	}
	return c.Writer.Apply(ctx, b)
}

func TestImportBatches(t *testing.T) {
	export := Export{Bookmarks: []string{"a0"}}
	for i := range 5 {
		export.Annotations = append(export.Annotations, ExportedAnnotation{
			URL:        string(rune('a'+i)) + "0",
			PageURL:    "p",
			LastEdited: core.Millis(time.UnixMilli(int64(i + 1))),
		})
	}

	w := &countingWriter{Writer: storage.NewMemory()}
	if _, err := New(w, WithBatchSize(2)).ImportExport(context.Background(), export); err != nil {
		t.Fatal(err)
	}
	// Two full batches, then the last annotation with the facets.
	if w.calls != 3 {
		t.Errorf("Apply called %d times, want 3", w.calls)
	}
}

func TestImportWriterError(t *testing.T) {
	boom := errors.New("disk full")
	w := &countingWriter{Writer: storage.NewMemory(), err: boom}

	_, err := New(w).Import(context.Background(), strings.NewReader(sampleExport))
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped writer error", err)
	}
}

func TestImportInvalidJSON(t *testing.T) {
	if _, err := New(storage.NewMemory()).Import(context.Background(), strings.NewReader("{")); err == nil {
		t.Error("expected decode error")
	}
}

func TestImportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	if err := os.WriteFile(path, []byte(sampleExport), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := New(storage.NewMemory()).ImportFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if result.Accepted != 2 {
		t.Errorf("accepted = %d", result.Accepted)
	}

	if _, err := New(storage.NewMemory()).ImportFile(context.Background(), filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
