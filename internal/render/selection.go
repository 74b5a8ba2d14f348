package render

import "sort"

// SelectionSet is the set of selected image indexes. Zero value is empty and
// ready to use.
type SelectionSet struct {
	items map[int]struct{}
}

// Toggle adds i if absent and removes it if present. It returns whether i is
// selected afterwards.
func (s *SelectionSet) Toggle(i int) bool {
	if s.items == nil {
		s.items = make(map[int]struct{})
	}
	if _, ok := s.items[i]; ok {
		delete(s.items, i)
		return false
	}
	s.items[i] = struct{}{}
	return true
}

// Has reports whether i is selected.
func (s *SelectionSet) Has(i int) bool {
	_, ok := s.items[i]
	return ok
}

// Len is the number of selected indexes.
func (s *SelectionSet) Len() int { return len(s.items) }

// Sorted returns the indexes in ascending order.
func (s *SelectionSet) Sorted() []int {
	out := make([]int, 0, len(s.items))
	for i := range s.items {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Clear empties the set.
func (s *SelectionSet) Clear() { s.items = nil }
