package core

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// minTermLength drops single-character noise such as stray punctuation.
const minTermLength = 2

var folder = cases.Fold()

// FoldTerm normalizes a term the way terms are stored in the index, so
// query terms and indexed terms compare equal.
func FoldTerm(term string) string {
	return folder.String(strings.TrimSpace(term))
}

// Terms splits text into the distinct folded terms it contains, in order of
// first appearance.
func Terms(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := make(map[string]bool, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		term := FoldTerm(w)
		if len([]rune(term)) < minTermLength || seen[term] {
			continue
		}
		seen[term] = true
		terms = append(terms, term)
	}
	return terms
}
