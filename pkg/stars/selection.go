package stars

// Selection is a set of repository ids picked for batch operations
type Selection struct {
	ids map[int64]struct{}
}

// NewSelection creates an empty selection
func NewSelection() *Selection {
	return &Selection{ids: make(map[int64]struct{})}
}

// Toggle flips membership of id and reports whether it is now selected
func (s *Selection) Toggle(id int64) bool {
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Set replaces the selection with ids
func (s *Selection) Set(ids []int64) {
	s.ids = make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

// Clear empties the selection
func (s *Selection) Clear() {
	s.ids = make(map[int64]struct{})
}

// Has reports whether id is selected
func (s *Selection) Has(id int64) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of selected ids
func (s *Selection) Len() int {
	return len(s.ids)
}

// Remove drops ids from the selection
func (s *Selection) Remove(ids ...int64) {
	for _, id := range ids {
		delete(s.ids, id)
	}
}

// In returns the selected ids in the order they appear in repos
func (s *Selection) In(repos []Repository) []int64 {
	var ids []int64
	for _, r := range repos {
		if s.Has(r.ID) {
			ids = append(ids, r.ID)
		}
	}
	return ids
}
