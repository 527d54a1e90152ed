package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rubiojr/annots/pkg/core"
)

var (
	// ErrNotInitialized is returned when opening a database that was never
	// created with "annots init".
	ErrNotInitialized = errors.New("database not initialized")

	// ErrPendingMigrations is returned when the database schema is older
	// than the binary. Run "annots migrate" to upgrade it.
	ErrPendingMigrations = errors.New("database has pending migrations")
)

// Batch is a set of records written in a single transaction.
type Batch struct {
	Annotations []core.Annotation
	// Bookmarks are annotation URLs.
	Bookmarks []string
	Tags      []core.Tag
	// Lists maps a custom list name to the annotation URLs it contains.
	// Lists are created on first use.
	Lists map[string][]string
}

// Len returns the number of records in the batch.
func (b Batch) Len() int {
	n := len(b.Annotations) + len(b.Bookmarks) + len(b.Tags)
	for _, urls := range b.Lists {
		n += len(urls)
	}
	return n
}

// Writer stores batches. Annotations replace any previous record with the
// same URL, including its indexed terms; facet records are added, never
// removed.
type Writer interface {
	Apply(ctx context.Context, b Batch) error
}

// Stats summarizes a store.
type Stats struct {
	Annotations int        `json:"annotations"`
	Pages       int        `json:"pages"`
	Terms       int        `json:"terms"`
	Bookmarks   int        `json:"bookmarks"`
	Tags        int        `json:"tags"`
	Lists       int        `json:"lists"`
	OldestEdit  *time.Time `json:"oldest_edit,omitempty"`
	NewestEdit  *time.Time `json:"newest_edit,omitempty"`
	InstallTime *time.Time `json:"install_time,omitempty"`
}
