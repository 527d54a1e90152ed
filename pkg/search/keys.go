package search

import "sort"

// keySet is an unordered set of annotation keys.
type keySet map[string]struct{}

func newKeySet(keys ...string) keySet {
	s := make(keySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func (s keySet) has(k string) bool {
	_, ok := s[k]
	return ok
}

func (s keySet) add(keys ...string) {
	for _, k := range keys {
		s[k] = struct{}{}
	}
}

// intersect returns the keys present in both sets.
func (s keySet) intersect(other keySet) keySet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(keySet, len(small))
	for k := range small {
		if large.has(k) {
			out[k] = struct{}{}
		}
	}
	return out
}

// sorted returns the keys in lexical order so results built from a set are
// reproducible.
func (s keySet) sorted() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// keep returns the keys of in that are members of allowed, preserving the
// order (and any duplicates) of in.
func keep(in []string, allowed keySet) []string {
	out := make([]string, 0, len(in))
	for _, k := range in {
		if allowed.has(k) {
			out = append(out, k)
		}
	}
	return out
}

// dedupe returns keys without repeats, first occurrence wins.
func dedupe(keys []string) []string {
	seen := make(keySet, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if seen.has(k) {
			continue
		}
		seen.add(k)
		out = append(out, k)
	}
	return out
}
