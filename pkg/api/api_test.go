package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rubiojr/annots/pkg/core"
	"github.com/rubiojr/annots/pkg/importer"
	"github.com/rubiojr/annots/pkg/search"
	"github.com/rubiojr/annots/pkg/storage"
)

var now = time.Date(2024, time.March, 11, 12, 0, 0, 0, time.UTC)

func annot(url, page string, edited time.Time, body string) core.Annotation {
	return core.Annotation{
		URL:         url,
		PageURL:     page,
		Body:        body,
		CreatedWhen: edited,
		LastEdited:  edited,
		BodyTerms:   core.Terms(body),
	}
}

func newTestStore(t *testing.T) *storage.Memory {
	t.Helper()
	store := storage.NewMemory()
	batch := storage.Batch{
		Annotations: []core.Annotation{
			annot("a1", "p1", time.Date(2024, time.March, 10, 10, 0, 0, 0, time.UTC), "distributed consensus algorithms"),
			annot("a2", "p1", time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC), "raft consensus"),
			annot("a3", "p2", time.Date(2024, time.March, 8, 12, 0, 0, 0, time.UTC), "paxos made simple consensus"),
		},
		Tags: []core.Tag{{Name: "papers", URL: "a1"}},
	}
	if err := store.Apply(context.Background(), batch); err != nil {
		t.Fatalf("seeding store: %v", err)
	}
	if err := store.SetInstallTime(context.Background(), time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("setting install time: %v", err)
	}
	return store
}

func newTestServer(t *testing.T, store *storage.Memory, opts ...Option) *Server {
	t.Helper()
	service := search.NewService(store, store, search.Options{
		Location: time.UTC,
		Now:      func() time.Time { return now },
	})
	registry := core.NewRegistry()
	if err := service.RegisterOperations(registry); err != nil {
		t.Fatalf("registering operations: %v", err)
	}
	return NewServer(service, registry, opts...)
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return out
}

type pageJSON struct {
	PageURL     string `json:"pageUrl"`
	Annotations []struct {
		URL string `json:"url"`
	} `json:"annotations"`
}

func pageURLs(pages []pageJSON) []string {
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		out = append(out, p.PageURL)
	}
	return out
}

func TestHandleSearch(t *testing.T) {
	h := newTestServer(t, newTestStore(t)).Handler()

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantPages  []string
		wantTotal  int
	}{
		{"all matches", "q=consensus", http.StatusOK, []string{"p1", "p2"}, 3},
		{"two terms", "q=raft+consensus", http.StatusOK, []string{"p1"}, 1},
		{"tag filter", "q=consensus&tag=papers", http.StatusOK, []string{"p1"}, 1},
		{"page limit", "q=consensus&limit=1&skip=1", http.StatusOK, []string{"p2"}, 1},
		{"no match", "q=bitcoin", http.StatusOK, []string{}, 0},
		{"no terms", "", http.StatusBadRequest, nil, 0},
		{"bad date", "q=consensus&start_date=yesterday", http.StatusBadRequest, nil, 0},
		{"no fields", "q=consensus&highlights=false&notes=false", http.StatusBadRequest, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, httptest.NewRequest("GET", "/api/search?"+tt.query, nil))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				resp := decode[ErrorResponse](t, w)
				if resp.Message == "" {
					t.Error("expected an error message")
				}
				return
			}

			resp := decode[struct {
				Pages      []pageJSON `json:"pages"`
				PageCount  int        `json:"page_count"`
				TotalCount int        `json:"total_count"`
			}](t, w)
			if got := pageURLs(resp.Pages); !slices.Equal(got, tt.wantPages) {
				t.Errorf("pages = %v, want %v", got, tt.wantPages)
			}
			if resp.PageCount != len(tt.wantPages) {
				t.Errorf("page_count = %d, want %d", resp.PageCount, len(tt.wantPages))
			}
			if resp.TotalCount != tt.wantTotal {
				t.Errorf("total_count = %d, want %d", resp.TotalCount, tt.wantTotal)
			}
		})
	}
}

func TestHandlePage(t *testing.T) {
	h := newTestServer(t, newTestStore(t)).Handler()

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantURLs   []string
	}{
		{"whole page", "url=p1", http.StatusOK, []string{"a1", "a2"}},
		{"second annotation", "url=p1&limit=1&skip=1", http.StatusOK, []string{"a2"}},
		{"with multiplier", "url=p1&limit=1&multiplier=3", http.StatusOK, []string{"a1"}},
		{"tag filter", "url=p1&tag=papers", http.StatusOK, []string{"a1"}},
		{"unknown page", "url=p9", http.StatusOK, []string{}},
		{"missing url", "", http.StatusBadRequest, nil},
		{"bad multiplier", "url=p1&multiplier=0", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, httptest.NewRequest("GET", "/api/pages?"+tt.query, nil))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			resp := decode[struct {
				Annotations []struct {
					URL string `json:"url"`
				} `json:"annotations"`
				Count int `json:"count"`
			}](t, w)
			got := make([]string, 0, len(resp.Annotations))
			for _, a := range resp.Annotations {
				got = append(got, a.URL)
			}
			if !slices.Equal(got, tt.wantURLs) {
				t.Errorf("annotations = %v, want %v", got, tt.wantURLs)
			}
			if resp.Count != len(tt.wantURLs) {
				t.Errorf("count = %d, want %d", resp.Count, len(tt.wantURLs))
			}
		})
	}
}

func TestHandleDays(t *testing.T) {
	h := newTestServer(t, newTestStore(t)).Handler()

	type daysJSON struct {
		Days []struct {
			Day   int64      `json:"day"`
			Pages []pageJSON `json:"pages"`
		} `json:"days"`
		DayCount    int    `json:"day_count"`
		TotalCount  int    `json:"total_count"`
		NextEndDate string `json:"next_end_date"`
	}

	mar10 := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC).UnixMilli()
	mar8 := time.Date(2024, time.March, 8, 0, 0, 0, 0, time.UTC).UnixMilli()

	tests := []struct {
		name     string
		query    string
		wantDays []int64
		wantNext string
	}{
		{"all days", "", []int64{mar10, mar8}, ""},
		{"first day", "limit=1", []int64{mar10}, "2024-03-09"},
		{"end date paging", "limit=1&end_date=2024-03-09", []int64{mar8}, "2024-03-07"},
		{"skip days", "limit=1&skip=1", []int64{mar8}, "2024-03-07"},
		{"before install", "end_date=2024-02-20", []int64{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, httptest.NewRequest("GET", "/api/days?"+tt.query, nil))
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", w.Code, w.Body.String())
			}
			resp := decode[daysJSON](t, w)

			got := make([]int64, 0, len(resp.Days))
			for _, d := range resp.Days {
				got = append(got, d.Day)
			}
			if !slices.Equal(got, tt.wantDays) {
				t.Errorf("days = %v, want %v", got, tt.wantDays)
			}
			if resp.DayCount != len(tt.wantDays) {
				t.Errorf("day_count = %d, want %d", resp.DayCount, len(tt.wantDays))
			}
			if resp.NextEndDate != tt.wantNext {
				t.Errorf("next_end_date = %q, want %q", resp.NextEndDate, tt.wantNext)
			}
		})
	}
}

func TestHandleOperation(t *testing.T) {
	h := newTestServer(t, newTestStore(t)).Handler()

	t.Run("list", func(t *testing.T) {
		w := do(t, h, httptest.NewRequest("GET", "/api/ops", nil))
		resp := decode[OperationsResponse](t, w)
		want := []string{search.OpListAnnotsByDay, search.OpListAnnotsByPage, search.OpSearchAnnots}
		if !slices.Equal(resp.Operations, want) {
			t.Errorf("operations = %v, want %v", resp.Operations, want)
		}
	})

	t.Run("query args", func(t *testing.T) {
		w := do(t, h, httptest.NewRequest("POST", "/api/ops/searchAnnots?q=raft", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		resp := decode[struct {
			Operation string     `json:"operation"`
			Result    []pageJSON `json:"result"`
		}](t, w)
		if resp.Operation != search.OpSearchAnnots {
			t.Errorf("operation = %q", resp.Operation)
		}
		if got := pageURLs(resp.Result); !slices.Equal(got, []string{"p1"}) {
			t.Errorf("pages = %v, want [p1]", got)
		}
	})

	t.Run("form args", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/ops/listAnnotsByPage", strings.NewReader("url=p2"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := do(t, h, req)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		resp := decode[struct {
			Result []struct {
				URL string `json:"url"`
			} `json:"result"`
		}](t, w)
		if len(resp.Result) != 1 || resp.Result[0].URL != "a3" {
			t.Errorf("result = %+v, want [a3]", resp.Result)
		}
	})

	errorTests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"unknown operation", "/api/ops/deleteEverything", http.StatusNotFound},
		{"invalid query", "/api/ops/listAnnotsByPage", http.StatusBadRequest},
		{"bad multiplier", "/api/ops/listAnnotsByPage?url=p1&multiplier=x", http.StatusBadRequest},
	}
	for _, tt := range errorTests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, httptest.NewRequest("POST", tt.path, nil))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

type fakeStats struct {
	stats *storage.Stats
	err   error
}

func (f fakeStats) Stats(context.Context) (*storage.Stats, error) {
	return f.stats, f.err
}

func TestHandleStats(t *testing.T) {
	store := newTestStore(t)

	tests := []struct {
		name       string
		opts       []Option
		wantStatus int
	}{
		{"not configured", nil, http.StatusNotFound},
		{"ok", []Option{WithStats(fakeStats{stats: &storage.Stats{Annotations: 3, Pages: 2}})}, http.StatusOK},
		{"store error", []Option{WithStats(fakeStats{err: errors.New("disk on fire")})}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, store, tt.opts...).Handler()
			w := do(t, h, httptest.NewRequest("GET", "/api/stats", nil))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				stats := decode[storage.Stats](t, w)
				if stats.Annotations != 3 || stats.Pages != 2 {
					t.Errorf("stats = %+v", stats)
				}
			}
		})
	}
}

func TestHandleHealth(t *testing.T) {
	h := newTestServer(t, newTestStore(t)).Handler()

	w := do(t, h, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode[HealthResponse](t, w)
	if resp.Status != "ok" || resp.Version == "" {
		t.Errorf("health = %+v", resp)
	}
}

func TestHandleImport(t *testing.T) {
	const apiKey = "s3cret"
	body := `{"annotations":[{"url":"a9","pageUrl":"p9","body":"byzantine generals","createdWhen":1710000000000,"lastEdited":1710000000000}]}`

	t.Run("disabled without key", func(t *testing.T) {
		store := newTestStore(t)
		h := newTestServer(t, store, WithImporter(importer.New(store), "")).Handler()
		w := do(t, h, httptest.NewRequest("POST", "/api/import", strings.NewReader(body)))
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})

	tests := []struct {
		name       string
		auth       string
		body       string
		wantStatus int
	}{
		{"missing auth", "", body, http.StatusUnauthorized},
		{"wrong scheme", "Basic " + apiKey, body, http.StatusUnauthorized},
		{"wrong token", "Bearer nope", body, http.StatusUnauthorized},
		{"invalid json", "Bearer " + apiKey, "{", http.StatusBadRequest},
		{"ok", "Bearer " + apiKey, body, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			h := newTestServer(t, store, WithImporter(importer.New(store), apiKey)).Handler()

			req := httptest.NewRequest("POST", "/api/import", strings.NewReader(tt.body))
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			w := do(t, h, req)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			result := decode[importer.Result](t, w)
			if result.Accepted != 1 {
				t.Errorf("accepted = %d, want 1", result.Accepted)
			}
			w = do(t, h, httptest.NewRequest("GET", "/api/search?q=byzantine", nil))
			if !strings.Contains(w.Body.String(), `"a9"`) {
				t.Errorf("imported annotation not searchable: %s", w.Body.String())
			}
		})
	}
}

func TestGzipResponses(t *testing.T) {
	store := newTestStore(t)
	var batch storage.Batch
	for i := range 40 {
		edited := time.Date(2024, time.March, 9, 0, i, 0, 0, time.UTC)
		batch.Annotations = append(batch.Annotations,
			annot(fmt.Sprintf("bulk-%02d", i), "p3", edited, "a rather long highlight about write ahead logs and checkpoints"))
	}
	if err := store.Apply(context.Background(), batch); err != nil {
		t.Fatal(err)
	}
	h := newTestServer(t, store).Handler()

	req := httptest.NewRequest("GET", "/api/pages?url=p3&limit=40", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := do(t, h, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", got)
	}

	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	var resp PageResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 40 {
		t.Errorf("count = %d, want 40", resp.Count)
	}

	plain := do(t, h, httptest.NewRequest("GET", "/api/pages?url=p3&limit=40", nil))
	if plain.Header().Get("Content-Encoding") != "" {
		t.Error("response compressed without Accept-Encoding")
	}
}

func TestCorsPreflight(t *testing.T) {
	h := newTestServer(t, newTestStore(t)).Handler()

	w := do(t, h, httptest.NewRequest("OPTIONS", "/api/search", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}
