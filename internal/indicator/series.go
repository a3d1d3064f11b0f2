package indicator

// Series is a bar-indexed value store. Writing bar i discards everything
// after i, so a series never holds values past the recompute frontier.
// Indices inside the warm-up gap stay undefined.
type Series[T any] struct {
	vals []T
	ok   []bool
}

// Set stores v at bar i and truncates later bars.
func (s *Series[T]) Set(i int, v T) {
	s.grow(i)
	s.vals[i] = v
	s.ok[i] = true
}

// Unset marks bar i undefined and truncates later bars.
func (s *Series[T]) Unset(i int) {
	s.grow(i)
	var zero T
	s.vals[i] = zero
	s.ok[i] = false
}

// At returns the value at bar i and whether it is defined.
func (s *Series[T]) At(i int) (T, bool) {
	if i < 0 || i >= len(s.vals) || !s.ok[i] {
		var zero T
		return zero, false
	}
	return s.vals[i], true
}

// Get returns the value at bar i, or the zero value if undefined.
func (s *Series[T]) Get(i int) T {
	v, _ := s.At(i)
	return v
}

// Defined reports whether bar i holds a value.
func (s *Series[T]) Defined(i int) bool {
	return i >= 0 && i < len(s.ok) && s.ok[i]
}

// Len returns one past the highest written bar.
func (s *Series[T]) Len() int { return len(s.vals) }

// Reset drops all values, keeping capacity.
func (s *Series[T]) Reset() {
	s.vals = s.vals[:0]
	s.ok = s.ok[:0]
}

func (s *Series[T]) grow(i int) {
	if i < 0 {
		panic("indicator: negative bar index")
	}
	for len(s.vals) <= i {
		var zero T
		s.vals = append(s.vals, zero)
		s.ok = append(s.ok, false)
	}
	s.vals = s.vals[:i+1]
	s.ok = s.ok[:i+1]
}
