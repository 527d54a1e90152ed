package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/rubiojr/annots/pkg/core"
	"github.com/rubiojr/annots/pkg/db"
	"github.com/rubiojr/annots/pkg/log"
)

var logger = log.ForService("storage")

// maxParams bounds the number of host parameters in a single IN (...) list.
const maxParams = 500

const annotationColumns = "url, page_url, body, comment, created_when, last_edited"

// SQLite is the persistent store. It implements search.IndexStore,
// search.InstallTimeSource and Writer.
type SQLite struct {
	db   *sql.DB
	path string
}

// Create opens the database at path, creating it and its parent directory
// if needed, and applies every pending migration.
func Create(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	s, err := openDB(path)
	if err != nil {
		return nil, err
	}

	if err := db.InitializeDatabase(s.db); err != nil {
		s.Close()
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	return s, nil
}

// Open opens an existing database. It fails with ErrNotInitialized if the
// file does not exist and with ErrPendingMigrations if the schema is out of
// date.
func Open(path string) (*SQLite, error) {
	s, err := OpenWithoutMigrationCheck(path)
	if err != nil {
		return nil, err
	}

	status, err := db.NewMigrationManager(s.db).GetMigrationStatus()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("checking migration status: %w", err)
	}
	if len(status.Applied) == 0 {
		s.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, path)
	}
	if len(status.Pending) > 0 {
		s.Close()
		return nil, fmt.Errorf("%w: %d pending, run 'annots migrate'", ErrPendingMigrations, len(status.Pending))
	}
	return s, nil
}

// OpenWithoutMigrationCheck opens an existing database as is. The migrate
// command uses it to upgrade old schemas.
func OpenWithoutMigrationCheck(path string) (*SQLite, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotInitialized, path)
		}
		return nil, fmt.Errorf("checking database: %w", err)
	}
	return openDB(path)
}

func openDB(path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA temp_store = memory",
		"PRAGMA mmap_size = 268435456", // 256MB mmap
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	return &SQLite{db: conn, path: path}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// DB returns the underlying connection, for migrations.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

// Apply implements Writer.
func (s *SQLite) Apply(ctx context.Context, b Batch) error {
	if b.Len() == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				logger.Warnf("failed to rollback transaction: %v", err)
			}
		}
	}()

	if err := applyAnnotations(ctx, tx, b.Annotations); err != nil {
		return err
	}

	now := time.Now().UnixMilli()

	for _, url := range b.Bookmarks {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO bookmarks (url, created_at) VALUES (?, ?)", url, now); err != nil {
			return fmt.Errorf("inserting bookmark %s: %w", url, err)
		}
	}

	for _, tag := range b.Tags {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO tags (name, url) VALUES (?, ?)", tag.Name, tag.URL); err != nil {
			return fmt.Errorf("inserting tag %s for %s: %w", tag.Name, tag.URL, err)
		}
	}

	for name, urls := range b.Lists {
		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO custom_lists (name, created_at) VALUES (?, ?)", name, now); err != nil {
			return fmt.Errorf("creating list %s: %w", name, err)
		}
		var id int64
		if err := tx.QueryRowContext(ctx, "SELECT id FROM custom_lists WHERE name = ?", name).Scan(&id); err != nil {
			return fmt.Errorf("resolving list %s: %w", name, err)
		}
		for _, url := range urls {
			if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO list_entries (list_id, url, created_at) VALUES (?, ?, ?)", id, url, now); err != nil {
				return fmt.Errorf("adding %s to list %s: %w", url, name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	committed = true
	return nil
}

func applyAnnotations(ctx context.Context, tx *sql.Tx, annots []core.Annotation) error {
	if len(annots) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO annotations (`+annotationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			logger.Warnf("failed to close statement: %v", err)
		}
	}()

	termStmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO annotation_terms (field, term, url) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing terms statement: %w", err)
	}
	defer func() {
		if err := termStmt.Close(); err != nil {
			logger.Warnf("failed to close terms statement: %v", err)
		}
	}()

	for _, a := range annots {
		_, err := stmt.ExecContext(ctx, a.URL, a.PageURL, a.Body, a.Comment, a.CreatedWhen.UnixMilli(), a.LastEdited.UnixMilli())
		if err != nil {
			return fmt.Errorf("inserting annotation %s: %w", a.URL, err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM annotation_terms WHERE url = ?", a.URL); err != nil {
			return fmt.Errorf("clearing terms of %s: %w", a.URL, err)
		}

		for field, terms := range map[core.Field][]string{
			core.FieldBodyTerms:    a.BodyTerms,
			core.FieldCommentTerms: a.CommentTerms,
		} {
			for _, term := range terms {
				if _, err := termStmt.ExecContext(ctx, string(field), term, a.URL); err != nil {
					return fmt.Errorf("indexing term %q of %s: %w", term, a.URL, err)
				}
			}
		}
	}
	return nil
}

// TermKeys implements search.IndexStore.
func (s *SQLite) TermKeys(ctx context.Context, field core.Field, term string, window core.Window) ([]string, error) {
	query := `
		SELECT t.url
		FROM annotation_terms t
		JOIN annotations a ON a.url = t.url
		WHERE t.field = ? AND t.term = ?`
	args := []any{string(field), term}

	conds, windowArgs := windowConditions("a.last_edited", window)
	for _, cond := range conds {
		query += " AND " + cond
	}
	args = append(args, windowArgs...)

	return s.queryKeys(ctx, query, args...)
}

// PageKeys implements search.IndexStore.
func (s *SQLite) PageKeys(ctx context.Context, pageURL string, window core.Window, offset, limit int) ([]string, error) {
	query := "SELECT url FROM annotations WHERE page_url = ?"
	args := []any{pageURL}

	conds, windowArgs := windowConditions("last_edited", window)
	for _, cond := range conds {
		query += " AND " + cond
	}
	args = append(args, windowArgs...)

	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	query += " ORDER BY last_edited DESC, url ASC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	return s.queryKeys(ctx, query, args...)
}

// AnnotationsBetween implements search.IndexStore.
func (s *SQLite) AnnotationsBetween(ctx context.Context, r core.Range) ([]core.Annotation, error) {
	lowOp, highOp := ">", "<"
	if r.IncludeLow {
		lowOp = ">="
	}
	if r.IncludeHigh {
		highOp = "<="
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM annotations
		WHERE last_edited %s ? AND last_edited %s ?
		ORDER BY last_edited DESC, url ASC`, annotationColumns, lowOp, highOp)

	annots, err := s.queryAnnotations(ctx, query, r.Low.UnixMilli(), r.High.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("querying annotations by time: %w", err)
	}
	if err := s.attachTerms(ctx, annots); err != nil {
		return nil, err
	}
	return annots, nil
}

// Annotations implements search.IndexStore.
func (s *SQLite) Annotations(ctx context.Context, keys []string) (map[string]core.Annotation, error) {
	out := make(map[string]core.Annotation, len(keys))
	for _, chunk := range chunks(keys, maxParams) {
		query := fmt.Sprintf("SELECT %s FROM annotations WHERE url IN (%s)", annotationColumns, placeholders(len(chunk)))
		annots, err := s.queryAnnotations(ctx, query, toArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("querying annotations: %w", err)
		}
		if err := s.attachTerms(ctx, annots); err != nil {
			return nil, err
		}
		for _, a := range annots {
			out[a.URL] = a
		}
	}
	return out, nil
}

// BookmarkedKeys implements search.IndexStore.
func (s *SQLite) BookmarkedKeys(ctx context.Context, keys []string) ([]string, error) {
	var out []string
	for _, chunk := range chunks(keys, maxParams) {
		query := fmt.Sprintf("SELECT url FROM bookmarks WHERE url IN (%s)", placeholders(len(chunk)))
		found, err := s.queryKeys(ctx, query, toArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("querying bookmarks: %w", err)
		}
		out = append(out, found...)
	}
	return out, nil
}

// TagsFor implements search.IndexStore.
func (s *SQLite) TagsFor(ctx context.Context, keys []string) ([]core.Tag, error) {
	var out []core.Tag
	for _, chunk := range chunks(keys, maxParams) {
		query := fmt.Sprintf("SELECT name, url FROM tags WHERE url IN (%s)", placeholders(len(chunk)))
		err := s.eachRow(ctx, query, toArgs(chunk), func(rows *sql.Rows) error {
			var tag core.Tag
			if err := rows.Scan(&tag.Name, &tag.URL); err != nil {
				return err
			}
			out = append(out, tag)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("querying tags: %w", err)
		}
	}
	return out, nil
}

// ListIDs implements search.IndexStore.
func (s *SQLite) ListIDs(ctx context.Context, names []string) ([]int64, error) {
	var out []int64
	for _, chunk := range chunks(names, maxParams) {
		query := fmt.Sprintf("SELECT id FROM custom_lists WHERE name IN (%s)", placeholders(len(chunk)))
		err := s.eachRow(ctx, query, toArgs(chunk), func(rows *sql.Rows) error {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			out = append(out, id)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("querying lists: %w", err)
		}
	}
	return out, nil
}

// ListEntriesFor implements search.IndexStore.
func (s *SQLite) ListEntriesFor(ctx context.Context, keys []string) ([]core.ListEntry, error) {
	var out []core.ListEntry
	for _, chunk := range chunks(keys, maxParams) {
		query := fmt.Sprintf("SELECT list_id, url FROM list_entries WHERE url IN (%s)", placeholders(len(chunk)))
		err := s.eachRow(ctx, query, toArgs(chunk), func(rows *sql.Rows) error {
			var entry core.ListEntry
			if err := rows.Scan(&entry.ListID, &entry.URL); err != nil {
				return err
			}
			out = append(out, entry)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("querying list entries: %w", err)
		}
	}
	return out, nil
}

// Stats returns record counts and the LastEdited range of the store.
func (s *SQLite) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	counts := []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM annotations", &stats.Annotations},
		{"SELECT COUNT(DISTINCT page_url) FROM annotations", &stats.Pages},
		{"SELECT COUNT(*) FROM annotation_terms", &stats.Terms},
		{"SELECT COUNT(*) FROM bookmarks", &stats.Bookmarks},
		{"SELECT COUNT(*) FROM tags", &stats.Tags},
		{"SELECT COUNT(*) FROM custom_lists", &stats.Lists},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("counting (%s): %w", c.query, err)
		}
	}

	var oldest, newest sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MIN(last_edited), MAX(last_edited) FROM annotations").Scan(&oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("getting edit time range: %w", err)
	}
	if oldest.Valid && newest.Valid {
		o, n := time.UnixMilli(oldest.Int64), time.UnixMilli(newest.Int64)
		stats.OldestEdit, stats.NewestEdit = &o, &n
	}

	installed, ok, err := s.InstallTime(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		stats.InstallTime = &installed
	}

	return stats, nil
}

func (s *SQLite) Optimize() error {
	_, err := s.db.Exec("PRAGMA optimize")
	return err
}

func (s *SQLite) Analyze() error {
	_, err := s.db.Exec("ANALYZE")
	return err
}

func (s *SQLite) Vacuum() error {
	_, err := s.db.Exec("VACUUM")
	return err
}

func (s *SQLite) WALCheckpoint() error {
	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// IntegrityCheck runs PRAGMA integrity_check and returns an error listing
// the problems found, if any.
func (s *SQLite) IntegrityCheck() error {
	var problems []string
	err := s.eachRow(context.Background(), "PRAGMA integrity_check", nil, func(rows *sql.Rows) error {
		var line string
		if err := rows.Scan(&line); err != nil {
			return err
		}
		if line != "ok" {
			problems = append(problems, line)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("running integrity check: %w", err)
	}
	if len(problems) > 0 {
		return fmt.Errorf("integrity check failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// attachTerms fills the term lists of annots in place.
func (s *SQLite) attachTerms(ctx context.Context, annots []core.Annotation) error {
	if len(annots) == 0 {
		return nil
	}

	index := make(map[string]int, len(annots))
	urls := make([]string, len(annots))
	for i, a := range annots {
		index[a.URL] = i
		urls[i] = a.URL
	}

	for _, chunk := range chunks(urls, maxParams) {
		query := fmt.Sprintf("SELECT field, term, url FROM annotation_terms WHERE url IN (%s)", placeholders(len(chunk)))
		err := s.eachRow(ctx, query, toArgs(chunk), func(rows *sql.Rows) error {
			var field, term, url string
			if err := rows.Scan(&field, &term, &url); err != nil {
				return err
			}
			a := &annots[index[url]]
			switch core.Field(field) {
			case core.FieldBodyTerms:
				a.BodyTerms = append(a.BodyTerms, term)
			case core.FieldCommentTerms:
				a.CommentTerms = append(a.CommentTerms, term)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("loading terms: %w", err)
		}
	}
	return nil
}

func (s *SQLite) queryAnnotations(ctx context.Context, query string, args ...any) ([]core.Annotation, error) {
	var annots []core.Annotation
	err := s.eachRow(ctx, query, args, func(rows *sql.Rows) error {
		var a core.Annotation
		var created, edited int64
		if err := rows.Scan(&a.URL, &a.PageURL, &a.Body, &a.Comment, &created, &edited); err != nil {
			return err
		}
		a.CreatedWhen = time.UnixMilli(created)
		a.LastEdited = time.UnixMilli(edited)
		annots = append(annots, a)
		return nil
	})
	return annots, err
}

func (s *SQLite) queryKeys(ctx context.Context, query string, args ...any) ([]string, error) {
	var keys []string
	err := s.eachRow(ctx, query, args, func(rows *sql.Rows) error {
		var key string
		if err := rows.Scan(&key); err != nil {
			return err
		}
		keys = append(keys, key)
		return nil
	})
	return keys, err
}

func (s *SQLite) eachRow(ctx context.Context, query string, args []any, fn func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Warnf("failed to close rows: %v", err)
		}
	}()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return fmt.Errorf("scanning row: %w", err)
		}
	}
	return rows.Err()
}

// windowConditions renders the bounds of w on column as SQL conditions.
func windowConditions(column string, w core.Window) ([]string, []any) {
	var conds []string
	var args []any
	if !w.Start.IsZero() {
		conds = append(conds, column+" >= ?")
		args = append(args, w.Start.UnixMilli())
	}
	if !w.End.IsZero() {
		conds = append(conds, column+" <= ?")
		args = append(args, w.End.UnixMilli())
	}
	return conds, args
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func toArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

// chunks splits values into slices of at most size elements.
func chunks(values []string, size int) [][]string {
	var out [][]string
	for len(values) > size {
		out = append(out, values[:size])
		values = values[size:]
	}
	if len(values) > 0 {
		out = append(out, values)
	}
	return out
}
