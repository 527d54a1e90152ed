// Package importer loads annotation exports into a store.
//
// An export is a JSON document:
//
//	{
//	  "annotations": [
//	    {"url": "...", "pageUrl": "...", "body": "...", "comment": "...",
//	     "createdWhen": 1700000000000, "lastEdited": 1700000000000}
//	  ],
//	  "bookmarks": ["<annotation url>"],
//	  "tags": [{"name": "go", "url": "<annotation url>"}],
//	  "lists": [{"name": "reading", "urls": ["<annotation url>"]}]
//	}
//
// Times are epoch milliseconds. Highlight and note text is tokenized with
// core.Terms so the records are searchable right after the import.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rubiojr/annots/pkg/core"
	"github.com/rubiojr/annots/pkg/log"
	"github.com/rubiojr/annots/pkg/storage"
)

var logger = log.ForService("importer")

// DefaultBatchSize is the number of annotations written per transaction.
const DefaultBatchSize = 500

// GeneratedKeyPrefix prefixes the keys generated for annotations exported
// without a URL.
const GeneratedKeyPrefix = "urn:uuid:"

// Export is the JSON document accepted by the importer.
type Export struct {
	Annotations []ExportedAnnotation `json:"annotations"`
	Bookmarks   []string             `json:"bookmarks,omitempty"`
	Tags        []core.Tag           `json:"tags,omitempty"`
	Lists       []ExportedList       `json:"lists,omitempty"`
}

type ExportedAnnotation struct {
	URL         string      `json:"url"`
	PageURL     string      `json:"pageUrl"`
	Body        string      `json:"body"`
	Comment     string      `json:"comment"`
	CreatedWhen core.Millis `json:"createdWhen"`
	LastEdited  core.Millis `json:"lastEdited"`
}

type ExportedList struct {
	Name string   `json:"name"`
	URLs []string `json:"urls"`
}

// Result summarizes an import.
type Result struct {
	Accepted  int      `json:"accepted"`
	Rejected  int      `json:"rejected"`
	Bookmarks int      `json:"bookmarks"`
	Tags      int      `json:"tags"`
	Lists     int      `json:"lists"`
	Errors    []string `json:"errors,omitempty"`
}

type Importer struct {
	writer    storage.Writer
	batchSize int
	newKey    func() string
}

// Option configures an Importer.
type Option func(*Importer)

// WithBatchSize sets the number of annotations per transaction.
func WithBatchSize(n int) Option {
	return func(i *Importer) {
		if n > 0 {
			i.batchSize = n
		}
	}
}

// WithKeyGenerator replaces the UUID based key generator.
func WithKeyGenerator(fn func() string) Option {
	return func(i *Importer) {
		if fn != nil {
			i.newKey = fn
		}
	}
}

func New(w storage.Writer, opts ...Option) *Importer {
	i := &Importer{
		writer:    w,
		batchSize: DefaultBatchSize,
		newKey: func() string {
			return GeneratedKeyPrefix + uuid.NewString()
		},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ImportFile imports the export stored at path.
func (i *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening export: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warnf("failed to close %s: %v", path, err)
		}
	}()
	return i.Import(ctx, f)
}

// Import decodes an export from r and writes it.
func (i *Importer) Import(ctx context.Context, r io.Reader) (*Result, error) {
	var export Export
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("decoding export: %w", err)
	}
	return i.ImportExport(ctx, export)
}

// ImportExport writes an already decoded export. Invalid annotations are
// rejected and reported in the result; store errors abort the import.
func (i *Importer) ImportExport(ctx context.Context, export Export) (*Result, error) {
	result := &Result{}
	batch := storage.Batch{}

	for n, exported := range export.Annotations {
		a, err := i.convert(exported)
		if err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, fmt.Sprintf("annotation %d: %v", n, err))
			continue
		}

		batch.Annotations = append(batch.Annotations, a)
		result.Accepted++

		if len(batch.Annotations) >= i.batchSize {
			if err := i.flush(ctx, batch); err != nil {
				return result, err
			}
			batch = storage.Batch{}
		}
	}

	batch.Bookmarks = nonEmpty(export.Bookmarks)
	result.Bookmarks = len(batch.Bookmarks)

	for _, tag := range export.Tags {
		if tag.Name == "" || tag.URL == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("tag %q on %q: name and url are required", tag.Name, tag.URL))
			continue
		}
		batch.Tags = append(batch.Tags, core.Tag{Name: tag.Name, URL: tag.URL})
	}
	result.Tags = len(batch.Tags)

	for _, list := range export.Lists {
		if list.Name == "" {
			result.Errors = append(result.Errors, "list without a name")
			continue
		}
		if batch.Lists == nil {
			batch.Lists = make(map[string][]string)
		}
		batch.Lists[list.Name] = append(batch.Lists[list.Name], nonEmpty(list.URLs)...)
	}
	result.Lists = len(batch.Lists)

	if err := i.flush(ctx, batch); err != nil {
		return result, err
	}

	logger.Infof("imported %d annotations (%d rejected), %d bookmarks, %d tags, %d lists",
		result.Accepted, result.Rejected, result.Bookmarks, result.Tags, result.Lists)
	return result, nil
}

func (i *Importer) flush(ctx context.Context, batch storage.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	logger.Debugf("writing batch of %d records", batch.Len())
	if err := i.writer.Apply(ctx, batch); err != nil {
		return fmt.Errorf("writing batch: %w", err)
	}
	return nil
}

// convert validates an exported annotation and tokenizes its text.
func (i *Importer) convert(e ExportedAnnotation) (core.Annotation, error) {
	if e.PageURL == "" {
		return core.Annotation{}, fmt.Errorf("pageUrl is required")
	}

	created, edited := e.CreatedWhen.Time(), e.LastEdited.Time()
	if unset(edited) {
		edited = created
	}
	if unset(edited) {
		return core.Annotation{}, fmt.Errorf("lastEdited or createdWhen is required")
	}
	if unset(created) {
		created = edited
	}

	key := e.URL
	if key == "" {
		key = i.newKey()
	}

	return core.Annotation{
		URL:          key,
		PageURL:      e.PageURL,
		Body:         e.Body,
		Comment:      e.Comment,
		CreatedWhen:  created,
		LastEdited:   edited,
		BodyTerms:    core.Terms(e.Body),
		CommentTerms: core.Terms(e.Comment),
	}, nil
}

// unset reports whether t is missing from the export, either omitted or 0.
func unset(t time.Time) bool {
	return t.IsZero() || t.UnixMilli() == 0
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
