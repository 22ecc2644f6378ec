package catalog

// Selection is the ordered set of variables picked by the user. The newest
// pick comes first. The zero value is not usable; use NewSelection.
type Selection struct {
	cat   *Catalog
	names []string
}

// NewSelection returns an empty selection over c.
func NewSelection(c *Catalog) *Selection {
	return &Selection{cat: c}
}

// Add selects name. It reports false and leaves the selection unchanged when
// name is not in the catalogue or is already selected.
func (s *Selection) Add(name string) bool {
	if _, ok := s.cat.Lookup(name); !ok {
		return false
	}
	if s.Selected(name) {
		return false
	}
	s.names = append([]string{name}, s.names...)
	return true
}

// Selected reports whether name is selected.
func (s *Selection) Selected(name string) bool {
	for _, n := range s.names {
		if n == name {
			return true
		}
	}
	return false
}

// Clear empties the selection.
func (s *Selection) Clear() { s.names = nil }

// Len returns the number of selected variables.
func (s *Selection) Len() int { return len(s.names) }

// Names returns the selected names, newest first.
func (s *Selection) Names() []string {
	return append([]string(nil), s.names...)
}

// IDs returns the codes of the selected variables in catalogue order.
func (s *Selection) IDs() []int { return s.cat.IDs(s.names) }
