package model

import (
	"encoding/json"
	"slices"
	"sort"
)

// SortedMap is a string-keyed map iterated in key order. After Freeze it is
// immutable; mutating a frozen map panics with an InternalError.
type SortedMap[V any] struct {
	entries map[string]V
	keys    []string
	frozen  bool
}

// NewSortedMap returns an empty, mutable map.
func NewSortedMap[V any]() *SortedMap[V] {
	return &SortedMap[V]{entries: make(map[string]V)}
}

func (m *SortedMap[V]) mustBeMutable(op string) {
	if m.frozen {
		panic(Internalf("%s on frozen collection", op))
	}
}

// Put inserts or replaces an entry.
func (m *SortedMap[V]) Put(key string, v V) {
	m.mustBeMutable("put")
	m.entries[key] = v
}

// Delete removes key if present.
func (m *SortedMap[V]) Delete(key string) {
	m.mustBeMutable("delete")
	delete(m.entries, key)
}

// Get returns the entry stored under key.
func (m *SortedMap[V]) Get(key string) (V, bool) {
	if m == nil {
		var zero V
		return zero, false
	}
	v, ok := m.entries[key]
	return v, ok
}

// Has reports whether key is present.
func (m *SortedMap[V]) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Len returns the number of entries.
func (m *SortedMap[V]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Keys returns the keys in ascending order.
func (m *SortedMap[V]) Keys() []string {
	if m == nil {
		return nil
	}
	if m.frozen {
		return slices.Clone(m.keys)
	}
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Values returns the entries in key order.
func (m *SortedMap[V]) Values() []V {
	keys := m.Keys()
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.entries[k])
	}
	return out
}

// Range calls fn for each entry in key order until fn returns false.
func (m *SortedMap[V]) Range(fn func(key string, v V) bool) {
	for _, k := range m.Keys() {
		if !fn(k, m.entries[k]) {
			return
		}
	}
}

// Freeze makes the map immutable. Freezing twice is a no-op.
func (m *SortedMap[V]) Freeze() {
	if m.frozen {
		return
	}
	m.keys = m.Keys()
	m.frozen = true
}

// Frozen reports whether Freeze was called.
func (m *SortedMap[V]) Frozen() bool { return m != nil && m.frozen }

func (m *SortedMap[V]) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m.entries)
}

func (m *SortedMap[V]) MarshalYAML() (any, error) {
	if m == nil {
		return map[string]V{}, nil
	}
	return m.entries, nil
}
