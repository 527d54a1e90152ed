package search

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rubiojr/annots/pkg/core"
	"github.com/rubiojr/annots/pkg/storage"
)

func TestLookupTerms(t *testing.T) {
	store := newTestStore(t, storage.Batch{
		Annotations: []core.Annotation{
			annot("a1", "p1", day(1, 10), "alpha beta", ""),
			annot("a2", "p1", day(2, 10), "alpha", "beta"),
			annot("a3", "p2", day(3, 10), "beta", "gamma"),
			annot("a4", "p2", day(4, 10), "", "alpha"),
		},
	})
	now := day(10, 0)
	start, end := day(2, 0), day(3, 23)

	tests := []struct {
		name   string
		params SearchParams
		want   []string
	}{
		{
			name:   "single term across both fields",
			params: SearchParams{TermsInc: []string{"alpha"}},
			want:   []string{"a1", "a2", "a4"},
		},
		{
			name:   "intersection across fields",
			params: SearchParams{TermsInc: []string{"alpha", "beta"}},
			want:   []string{"a1", "a2"},
		},
		{
			name:   "highlights only",
			params: SearchParams{TermsInc: []string{"alpha", "beta"}, IncludeHighlights: Bool(true), IncludeNotes: Bool(false)},
			want:   []string{"a1"},
		},
		{
			name:   "notes only",
			params: SearchParams{TermsInc: []string{"alpha"}, IncludeHighlights: Bool(false)},
			want:   []string{"a4"},
		},
		{
			name:   "date window",
			params: SearchParams{TermsInc: []string{"beta"}, StartDate: &start, EndDate: &end},
			want:   []string{"a2", "a3"},
		},
		{
			name:   "no match short circuits",
			params: SearchParams{TermsInc: []string{"delta", "alpha"}},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lookupTerms(context.Background(), store, tt.params, now)
			if err != nil {
				t.Fatalf("lookupTerms: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("lookupTerms = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLookupTermsInvalid(t *testing.T) {
	store := storage.NewMemory()
	tests := []struct {
		name   string
		params SearchParams
	}{
		{"no terms", SearchParams{}},
		{"no fields", SearchParams{TermsInc: []string{"go"}, IncludeHighlights: Bool(false), IncludeNotes: Bool(false)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := lookupTerms(context.Background(), store, tt.params, time.Now())
			if !errors.Is(err, ErrInvalidQuery) {
				t.Errorf("error = %v, want ErrInvalidQuery", err)
			}
		})
	}
}

func TestLookupTermsStoreError(t *testing.T) {
	_, err := lookupTerms(context.Background(), failingStore{}, SearchParams{TermsInc: []string{"go"}}, time.Now())
	if !errors.Is(err, errStore) {
		t.Errorf("error = %v, want wrapped store error", err)
	}
}
