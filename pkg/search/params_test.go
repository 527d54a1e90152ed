package search

import (
	"fmt"
	"net/url"
	"reflect"
	"testing"
	"time"
)

func TestParseSearchParams(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		name    string
		query   string
		want    SearchParams
		wantErr bool
	}{
		{
			name:  "defaults",
			query: "",
			want:  SearchParams{Limit: DefaultLimit},
		},
		{
			name:  "free text is folded into terms",
			query: "q=Distributed+SYSTEMS&term=Raft",
			want:  SearchParams{TermsInc: []string{"distributed", "systems", "raft"}, Limit: DefaultLimit},
		},
		{
			name:  "toggles",
			query: "highlights=false&notes=true&bookmarks=1",
			want:  SearchParams{IncludeHighlights: Bool(false), IncludeNotes: Bool(true), BookmarksOnly: true, Limit: DefaultLimit},
		},
		{
			name:  "facets",
			query: "tag=go&tag=&tag=db&not_tag=draft&collection=reading&url=https://example.com",
			want: SearchParams{
				TagsInc:     []string{"go", "db"},
				TagsExc:     []string{"draft"},
				Collections: []string{"reading"},
				URL:         "https://example.com",
				Limit:       DefaultLimit,
			},
		},
		{
			name:  "pagination",
			query: "limit=25&skip=50",
			want:  SearchParams{Limit: 25, Skip: 50},
		},
		{
			name:  "limit capped",
			query: "url=P&limit=4611686018427387904",
			want:  SearchParams{URL: "P", Limit: MaxLimit},
		},
		{
			name:  "invalid pagination falls back",
			query: "limit=-3&skip=abc",
			want:  SearchParams{Limit: DefaultLimit},
		},
		{
			name:    "invalid toggle",
			query:   "notes=maybe",
			wantErr: true,
		},
		{
			name:    "invalid start date",
			query:   "start_date=2024/01/01",
			wantErr: true,
		},
		{
			name:    "invalid end date",
			query:   "end_date=yesterday",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatal(err)
			}

			got, err := ParseSearchParams(values, loc)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSearchParams: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseSearchParams = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseSearchParamsDates(t *testing.T) {
	loc := time.FixedZone("CET", 60*60)
	values := url.Values{"start_date": {"2024-01-01"}, "end_date": {"2024-01-31"}}

	params, err := ParseSearchParams(values, loc)
	if err != nil {
		t.Fatal(err)
	}

	wantStart := time.Date(2024, time.January, 1, 0, 0, 0, 0, loc)
	wantEnd := time.Date(2024, time.January, 31, 23, 59, 59, 999999999, loc)
	if params.StartDate == nil || !params.StartDate.Equal(wantStart) {
		t.Errorf("StartDate = %v, want %v", params.StartDate, wantStart)
	}
	if params.EndDate == nil || !params.EndDate.Equal(wantEnd) {
		t.Errorf("EndDate = %v, want %v", params.EndDate, wantEnd)
	}
}

func TestSearchParamsWindow(t *testing.T) {
	now := day(10, 0)
	start := day(1, 0)

	if w := (SearchParams{}).window(now); !w.Start.IsZero() || !w.End.Equal(now) {
		t.Errorf("default window = %+v", w)
	}
	if w := (SearchParams{StartDate: &start}).window(now); !w.Start.Equal(start) {
		t.Errorf("window start = %v, want %v", w.Start, start)
	}
}

func TestSearchParamsFields(t *testing.T) {
	tests := []struct {
		name   string
		params SearchParams
		want   int
	}{
		{"both by default", SearchParams{}, 2},
		{"highlights off", SearchParams{IncludeHighlights: Bool(false)}, 1},
		{"both off", SearchParams{IncludeHighlights: Bool(false), IncludeNotes: Bool(false)}, 0},
	}
	for _, tt := range tests {
		if got := len(tt.params.fields()); got != tt.want {
			t.Errorf("%s: %d fields, want %d", tt.name, got, tt.want)
		}
	}
}

func ExampleParseSearchParams() {
	values, _ := url.ParseQuery("q=Consensus+algorithms&tag=papers&limit=5")
	params, err := ParseSearchParams(values, time.UTC)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(params.TermsInc, params.TagsInc, params.Limit)
	// Output: [consensus algorithms] [papers] 5
}
