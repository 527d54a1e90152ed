package core

import (
	"encoding/json"
	"time"
)

// Annotation is a highlight or a note a user attached to a web page.
//
// URL is the annotation key and is unique across the collection. Every
// annotation belongs to exactly one page, identified by PageURL.
type Annotation struct {
	URL         string    `json:"url"`
	PageURL     string    `json:"pageUrl"`
	Body        string    `json:"body,omitempty"`
	Comment     string    `json:"comment,omitempty"`
	CreatedWhen time.Time `json:"createdWhen"`
	LastEdited  time.Time `json:"lastEdited"`

	// BodyTerms and CommentTerms are the pre-tokenized terms indexed for the
	// highlighted text and the note respectively.
	BodyTerms    []string `json:"-"`
	CommentTerms []string `json:"-"`
}

// Tag associates a tag name with an annotation.
type Tag struct {
	Name string
	URL  string
}

// ListEntry records that an annotation belongs to a custom list (collection).
type ListEntry struct {
	ListID int64
	URL    string
}

// Field names a term index the store can look terms up in.
type Field string

const (
	// FieldBodyTerms indexes the terms of the highlighted text.
	FieldBodyTerms Field = "_body_terms"
	// FieldCommentTerms indexes the terms of the note.
	FieldCommentTerms Field = "_comment_terms"
)

// Window bounds an annotation's LastEdited time. Both ends are inclusive.
// A zero Start or End leaves that side open.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}

// Range is a LastEdited range lookup with explicit boundary inclusion.
type Range struct {
	Low         time.Time
	High        time.Time
	IncludeLow  bool
	IncludeHigh bool
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	if t.Before(r.Low) || (!r.IncludeLow && t.Equal(r.Low)) {
		return false
	}
	if t.After(r.High) || (!r.IncludeHigh && t.Equal(r.High)) {
		return false
	}
	return true
}

// Millis is a time.Time that encodes to and from epoch milliseconds in JSON.
type Millis time.Time

// Time returns the underlying time.Time.
func (m Millis) Time() time.Time {
	return time.Time(m)
}

// MarshalJSON implements json.Marshaler.
func (m Millis) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(m).UnixMilli())
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Millis) UnmarshalJSON(b []byte) error {
	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return err
	}
	*m = Millis(time.UnixMilli(ms))
	return nil
}
