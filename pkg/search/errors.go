package search

import "errors"

// ErrInvalidQuery is returned when the parameters can never produce a
// result: a page listing without a page URL, a term search without terms,
// or a term search with every text field disabled.
var ErrInvalidQuery = errors.New("invalid query")
