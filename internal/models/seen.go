package models

import "sort"

// SeenSet holds identifiers of candidates that were already handled.
type SeenSet map[string]struct{}

// NewSeenSet builds a set from ids.
func NewSeenSet(ids ...string) SeenSet {
	s := make(SeenSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Has reports whether id is in the set.
func (s SeenSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add records id.
func (s SeenSet) Add(id string) {
	s[id] = struct{}{}
}

// Sorted returns the identifiers in ascending order.
func (s SeenSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
