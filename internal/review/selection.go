package review

// Selection is an insertion-ordered set of record ids picked for bulk actions.
type Selection struct {
	order []string
	index map[string]struct{}
}

// NewSelection seeds a selection with ids, dropping duplicates.
func NewSelection(ids ...string) *Selection {
	s := &Selection{index: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.Select(id)
	}
	return s
}

// Has reports whether id is selected.
func (s *Selection) Has(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Select adds id.
func (s *Selection) Select(id string) {
	if id == "" || s.Has(id) {
		return
	}
	s.index[id] = struct{}{}
	s.order = append(s.order, id)
}

// Deselect removes id only.
func (s *Selection) Deselect(id string) {
	if !s.Has(id) {
		return
	}
	delete(s.index, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Toggle flips id and returns whether it is now selected.
func (s *Selection) Toggle(id string) bool {
	if s.Has(id) {
		s.Deselect(id)
		return false
	}
	s.Select(id)
	return s.Has(id)
}

// SelectAll replaces the selection with the currently filtered ids.
func (s *Selection) SelectAll(filtered []string) {
	s.Clear()
	for _, id := range filtered {
		s.Select(id)
	}
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.order = nil
	s.index = make(map[string]struct{})
}

// IDs returns the selected ids in the order they were picked.
func (s *Selection) IDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len counts the selected ids.
func (s *Selection) Len() int { return len(s.order) }
