// Package util holds small helpers shared by the console and the development
// backend.
package util

import (
	"sort"
	"strings"
)

// MakeTextList joins items into a list for a sentence, with conj ("and" or
// "or") before the last item. Lists of three or more get an oxford comma.
func MakeTextList(items []string, conj string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " " + conj + " " + items[1]
	}

	withConj := make([]string, len(items))
	copy(withConj, items)
	withConj[len(withConj)-1] = conj + " " + withConj[len(withConj)-1]
	return strings.Join(withConj, ", ")
}

// OrderedKeys returns the keys of m, ordered a particular way. The order is
// guaranteed to be the same on every run.
//
// As of this writing, the order is alphabetical, but this function does not
// guarantee this will always be the case.
func OrderedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SortBy returns a copy of items sorted stably by the less function.
func SortBy[E any](items []E, less func(l, r E) bool) []E {
	sorted := make([]E, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return less(sorted[i], sorted[j])
	})
	return sorted
}
