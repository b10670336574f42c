package state

import "sort"

// SourceSelection is the set of source ids (trainings or coder jobs)
// currently included in the analysis. The zero value is an empty selection.
type SourceSelection struct {
	ids map[int]struct{}
}

// NewSourceSelection creates a selection containing ids
func NewSourceSelection(ids ...int) *SourceSelection {
	s := &SourceSelection{}
	s.SetAll(ids)
	return s
}

// Toggle adds id if absent, removes it otherwise. It reports whether id
// is active afterwards.
func (s *SourceSelection) Toggle(id int) bool {
	if s.ids == nil {
		s.ids = make(map[int]struct{})
	}
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// SetAll replaces the selection with ids
func (s *SourceSelection) SetAll(ids []int) {
	s.ids = make(map[int]struct{}, len(ids))
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

// Clear empties the selection
func (s *SourceSelection) Clear() {
	s.ids = make(map[int]struct{})
}

// Contains reports whether id is active
func (s *SourceSelection) Contains(id int) bool {
	if s == nil {
		return false
	}
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of active ids
func (s *SourceSelection) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ids)
}

// IDs returns the active ids in ascending order
func (s *SourceSelection) IDs() []int {
	out := make([]int, 0, s.Len())
	if s == nil {
		return out
	}
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Clone returns an independent copy
func (s *SourceSelection) Clone() *SourceSelection {
	return NewSourceSelection(s.IDs()...)
}
