// Package enumset provides a set of 256-bit values with O(1) add, remove,
// contains and indexed access. Removal swaps the last element into the
// freed slot and truncates, so iteration order is unspecified after any
// removal and callers must not depend on it.
package enumset

import "github.com/core-coin/go-core/v2/common"

type Set struct {
	values []common.Hash
	// index maps a stored value to its position in values.
	index map[common.Hash]int
}

func New() *Set {
	return &Set{index: make(map[common.Hash]int)}
}

// Add inserts the value and reports whether it was not already present.
func (s *Set) Add(v common.Hash) bool {
	if _, ok := s.index[v]; ok {
		return false
	}
	s.index[v] = len(s.values)
	s.values = append(s.values, v)
	return true
}

// Remove deletes the value and reports whether it was present. The last
// element takes over the removed slot.
func (s *Set) Remove(v common.Hash) bool {
	pos, ok := s.index[v]
	if !ok {
		return false
	}
	last := len(s.values) - 1
	moved := s.values[last]
	s.values[pos] = moved
	s.index[moved] = pos
	s.values = s.values[:last]
	delete(s.index, v)
	return true
}

func (s *Set) Contains(v common.Hash) bool {
	_, ok := s.index[v]
	return ok
}

func (s *Set) Len() int {
	return len(s.values)
}

// At returns the value at position i. It panics if i is out of range, like
// a slice index would.
func (s *Set) At(i int) common.Hash {
	return s.values[i]
}

// Page returns up to max values starting at position start. A max of zero
// means all remaining values. ok is false when start is past the end.
func (s *Set) Page(start, max int) (values []common.Hash, ok bool) {
	if start >= len(s.values) || start < 0 {
		return nil, false
	}
	end := len(s.values)
	if max > 0 && start+max < end {
		end = start + max
	}
	return append([]common.Hash(nil), s.values[start:end]...), true
}
