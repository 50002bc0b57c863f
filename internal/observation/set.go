package observation

import (
	"encoding/json"
	"fmt"
)

// Set is an immutable bundle of records, at most one per domain. The zero
// value is an empty set.
type Set struct {
	records map[Domain]Record
}

// NewSet copies records into a new Set.
func NewSet(records ...Record) (Set, error) {
	m := make(map[Domain]Record, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		d := r.Domain()
		if !d.Known() {
			return Set{}, fmt.Errorf("%w: %s", ErrUnknownDomain, d)
		}
		if _, dup := m[d]; dup {
			return Set{}, fmt.Errorf("%w: %s", ErrDuplicateDomain, d)
		}
		m[d] = r.clone()
	}
	return Set{records: m}, nil
}

// MustSet is NewSet for fixtures and tests; it panics on error.
func MustSet(records ...Record) Set {
	s, err := NewSet(records...)
	if err != nil {
		panic(err)
	}
	return s
}

// Get returns a copy of the record for d.
func (s Set) Get(d Domain) (Record, bool) {
	r, ok := s.records[d]
	if !ok {
		return nil, false
	}
	return r.clone(), true
}

// Has reports whether the set carries a record for d.
func (s Set) Has(d Domain) bool {
	_, ok := s.records[d]
	return ok
}

// Len returns the number of records.
func (s Set) Len() int {
	return len(s.records)
}

// Domains lists the domains present, in declaration order.
func (s Set) Domains() []Domain {
	var out []Domain
	for _, d := range domainOrder {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// Lookup returns the typed record for a domain. The boolean is false if the
// domain is absent or holds a different record type.
func Lookup[T Record](s Set, d Domain) (T, bool) {
	var zero T
	r, ok := s.Get(d)
	if !ok {
		return zero, false
	}
	t, ok := r.(T)
	return t, ok
}

// MarshalJSON encodes the set as an object keyed by domain.
func (s Set) MarshalJSON() ([]byte, error) {
	out := make(map[Domain]Record, len(s.records))
	for d, r := range s.records {
		out[d] = r
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes through DecodeSet so unknown fields are rejected.
func (s *Set) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeSet(data)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}
