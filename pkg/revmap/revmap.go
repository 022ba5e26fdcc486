// Package revmap implements a revision-keyed map that always iterates in
// descending stable order, the shape every system map and property map in
// the document engine uses on the wire and in memory.
package revmap

import (
	"sort"

	"docstore/pkg/revision"
)

// Map is a revision-keyed map of V, iterated in descending stable order.
// The zero value is an empty, usable Map.
type Map[V any] struct {
	m map[revision.Revision]V
}

// New builds an empty Map.
func New[V any]() *Map[V] {
	return &Map[V]{m: make(map[revision.Revision]V)}
}

// Set records value for r, overwriting any existing entry.
func (m *Map[V]) Set(r revision.Revision, value V) {
	if m.m == nil {
		m.m = make(map[revision.Revision]V)
	}
	m.m[r] = value
}

// Get returns the value stored for r, if any.
func (m *Map[V]) Get(r revision.Revision) (V, bool) {
	v, ok := m.m[r]
	return v, ok
}

// Delete removes r's entry, if any.
func (m *Map[V]) Delete(r revision.Revision) {
	delete(m.m, r)
}

// Len reports the number of entries.
func (m *Map[V]) Len() int { return len(m.m) }

// IsEmpty reports whether the map has no entries.
func (m *Map[V]) IsEmpty() bool { return len(m.m) == 0 }

// Entry is a single (revision, value) pair.
type Entry[V any] struct {
	Rev   revision.Revision
	Value V
}

// Entries returns every entry in descending stable order.
func (m *Map[V]) Entries() []Entry[V] {
	out := make([]Entry[V], 0, len(m.m))
	for r, v := range m.m {
		out = append(out, Entry[V]{Rev: r, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		return revision.CompareStable(out[i].Rev, out[j].Rev) > 0
	})
	return out
}

// Keys returns every key in descending stable order.
func (m *Map[V]) Keys() []revision.Revision {
	entries := m.Entries()
	out := make([]revision.Revision, len(entries))
	for i, e := range entries {
		out[i] = e.Rev
	}
	return out
}

// HeadMap returns the entries strictly newer than r, in descending order —
// the portion of the map a reader positioned at r has not yet observed.
func (m *Map[V]) HeadMap(r revision.Revision) []Entry[V] {
	all := m.Entries()
	out := all[:0:0]
	for _, e := range all {
		if revision.CompareStable(e.Rev, r) > 0 {
			out = append(out, e)
		}
	}
	return out
}

// FloorEntry returns the entry with the greatest key less than or equal to
// r, the standard "which bucket does r fall into" lookup used by
// PreviousIndex and descending merges.
func (m *Map[V]) FloorEntry(r revision.Revision) (Entry[V], bool) {
	var best *Entry[V]
	for _, e := range m.Entries() {
		if revision.CompareStable(e.Rev, r) <= 0 {
			if best == nil || revision.CompareStable(e.Rev, best.Rev) > 0 {
				cp := e
				best = &cp
			}
		}
	}
	if best == nil {
		return Entry[V]{}, false
	}
	return *best, true
}

// Clone returns a shallow copy of m.
func (m *Map[V]) Clone() *Map[V] {
	out := New[V]()
	for r, v := range m.m {
		out.m[r] = v
	}
	return out
}
