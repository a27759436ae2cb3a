package model

import (
	"encoding/json"
	"slices"
)

// JokeSet is a set of joke IDs.
//
// The zero value (nil) is an empty set that answers Has but panics on Add,
// same as a nil map; use NewJokeSet when the set will be written to.
// On the wire it is a sorted JSON array so responses are deterministic.
type JokeSet map[int64]struct{}

// NewJokeSet returns a set holding ids. Duplicates collapse.
func NewJokeSet(ids ...int64) JokeSet {
	s := make(JokeSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s JokeSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id and reports whether it was newly added.
func (s JokeSet) Add(id int64) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Len returns the number of IDs in the set.
func (s JokeSet) Len() int {
	return len(s)
}

// IDs returns the members in ascending order.
func (s JokeSet) IDs() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s JokeSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

func (s *JokeSet) UnmarshalJSON(data []byte) error {
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewJokeSet(ids...)
	return nil
}
