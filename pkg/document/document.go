// Package document implements the NodeDocument façade: the per-node
// record of committed and pending revisions, deletion markers, commit
// bookkeeping and split metadata, plus its deterministic serialization
// and the UpdateOp vocabulary used to mutate it.
package document

import (
	"fmt"
	"sort"

	"docstore/pkg/previous"
	"docstore/pkg/revision"
	"docstore/pkg/revmap"
)

// Document is a single node document, main or previous. It is built
// unsealed (via New and the Set* methods, typically by a store decoding
// a stored blob) and becomes read-only once Seal is called. Every
// component downstream of the store — ValueMap, VisibilityEngine,
// ConflictDetector, NewestRevisionFinder, Splitter — operates on sealed
// documents only.
type Document struct {
	id      string
	scalars map[string]interface{}
	maps    map[string]*revmap.Map[interface{}]

	rawPrevious  map[revision.Revision]previous.Range
	rawStalePrev map[revision.Revision]int

	sealed  bool
	prevIdx *previous.Index // built lazily on first PreviousIndex call
}

// New returns an empty, unsealed document with the given id.
func New(id string) *Document {
	return &Document{
		id:           id,
		scalars:      make(map[string]interface{}),
		maps:         make(map[string]*revmap.Map[interface{}]),
		rawPrevious:  make(map[revision.Revision]previous.Range),
		rawStalePrev: make(map[revision.Revision]int),
	}
}

func (d *Document) requireUnsealed() {
	if d.sealed {
		panic(fmt.Sprintf("document: mutation of sealed document %q", d.id))
	}
}

// SetScalar sets a top-level scalar field. Panics if the document is
// sealed.
func (d *Document) SetScalar(key string, value interface{}) {
	d.requireUnsealed()
	d.scalars[key] = value
}

// SetMapEntry sets one entry of a map-valued field (a system map or an
// escaped property's revision map). Panics if the document is sealed.
func (d *Document) SetMapEntry(key string, rev revision.Revision, value interface{}) {
	d.requireUnsealed()
	m, ok := d.maps[key]
	if !ok {
		m = revmap.New[interface{}]()
		d.maps[key] = m
	}
	m.Set(rev, value)
}

// DeleteMapEntry removes one entry of a map-valued field outright, used
// by a store applying RemoveMapEntry and UnsetMapEntry changes (this
// in-memory representation does not distinguish a removed entry from one
// that was never set; only the wire form's UnsetMapEntry marker on the
// serialized diff would). Panics if the document is sealed.
func (d *Document) DeleteMapEntry(key string, rev revision.Revision) {
	d.requireUnsealed()
	if m, ok := d.maps[key]; ok {
		m.Delete(rev)
	}
}

// DeletePreviousRange removes the _previous entry keyed by high. Panics
// if the document is sealed.
func (d *Document) DeletePreviousRange(high revision.Revision) {
	d.requireUnsealed()
	delete(d.rawPrevious, high)
}

// SetPreviousRange records a live entry in the document's _previous map.
// Panics if the document is sealed.
func (d *Document) SetPreviousRange(rng previous.Range) {
	d.requireUnsealed()
	d.rawPrevious[rng.High] = rng
}

// SetStalePrev records an entry in the document's _stalePrev map. Panics
// if the document is sealed.
func (d *Document) SetStalePrev(high revision.Revision, height int) {
	d.requireUnsealed()
	d.rawStalePrev[high] = height
}

// Seal freezes the document against further mutation and returns it for
// chaining.
func (d *Document) Seal() *Document {
	d.sealed = true
	return d
}

// IsSealed reports whether the document has been sealed.
func (d *Document) IsSealed() bool { return d.sealed }

// ID returns the document's id.
func (d *Document) ID() string { return d.id }

// Scalar returns a raw top-level scalar field.
func (d *Document) Scalar(key string) (interface{}, bool) {
	v, ok := d.scalars[key]
	return v, ok
}

// StringScalar returns a top-level scalar field as a string.
func (d *Document) StringScalar(key string) (string, bool) {
	v, ok := d.scalars[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// BoolScalar returns a top-level scalar field as a bool.
func (d *Document) BoolScalar(key string) (bool, bool) {
	v, ok := d.scalars[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Int64Scalar returns a top-level scalar field as an int64.
func (d *Document) Int64Scalar(key string) (int64, bool) {
	v, ok := d.scalars[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// RevisionMap returns the map stored under key (a system map or an
// escaped property name), or an empty map if the document has no such
// field. The returned map must be treated as read-only.
func (d *Document) RevisionMap(key string) *revmap.Map[interface{}] {
	if m, ok := d.maps[key]; ok {
		return m
	}
	return revmap.New[interface{}]()
}

// HasMap reports whether the document has any entries under key.
func (d *Document) HasMap(key string) bool {
	m, ok := d.maps[key]
	return ok && !m.IsEmpty()
}

// Path returns the document's node path, from _path.
func (d *Document) Path() string {
	s, _ := d.StringScalar(KeyPath)
	return s
}

// HasChildren reports the _children flag.
func (d *Document) HasChildren() bool {
	b, _ := d.BoolScalar(KeyChildren)
	return b
}

// WasDeletedOnce reports the sticky _deletedOnce flag: once a document
// has been deleted at least once, later re-creation never clears it,
// since some readers use it as a cheap "might not exist at all
// revisions" hint.
func (d *Document) WasDeletedOnce() bool {
	b, _ := d.BoolScalar(KeyDeletedOnce)
	return b
}

// HasBinary reports whether _bin is set to HasBinaryValue.
func (d *Document) HasBinary() bool {
	n, ok := d.Int64Scalar(KeyHasBinary)
	return ok && n == HasBinaryValue
}

// ModifiedInSeconds returns the _modified bucket, if set.
func (d *Document) ModifiedInSeconds() (int64, bool) {
	return d.Int64Scalar(KeyModified)
}

// ModifiedSince reports whether the document's _modified bucket is at or
// after sinceSeconds. A document with no _modified field has never been
// touched and is reported as not modified.
func (d *Document) ModifiedSince(sinceSeconds int64) bool {
	m, ok := d.ModifiedInSeconds()
	if !ok {
		return false
	}
	return m >= sinceSeconds
}

// AllRevisionsBefore reports whether every revision recorded in the
// document's _revisions map compares stable-less-than before. An empty
// _revisions map trivially satisfies this.
func (d *Document) AllRevisionsBefore(before revision.Revision) bool {
	for _, e := range d.RevisionMap(KeyRevisions).Entries() {
		if revision.CompareStable(e.Rev, before) >= 0 {
			return false
		}
	}
	return true
}

// SplitType decodes the document's _sdType field, defaulting to
// SplitTypeNone when absent.
func (d *Document) SplitType() (SplitType, error) {
	n, ok := d.Int64Scalar(KeySplitType)
	if !ok {
		return SplitTypeNone, nil
	}
	return ParseSplitType(int(n))
}

// SplitMaxRevTime returns the _sdMaxRevTime field, if set: the newest
// revision timestamp folded into a previous document at the time it was
// created, used to decide whether it can be garbage collected as a whole.
func (d *Document) SplitMaxRevTime() (int64, bool) {
	return d.Int64Scalar(KeySplitMaxRev)
}

// LastRevisions decodes the _lastRev map into a per-writer revision
// index: the newest revision each writer has committed anywhere in this
// document's subtree.
func (d *Document) LastRevisions() map[revision.WriterID]revision.Revision {
	return decodeWriterRevisionMap(d.RevisionMap(KeyLastRev))
}

// SweepRevisions decodes the _sweepRev map the same way as LastRevisions,
// one entry per writer recording how far a background sweep has
// progressed through that writer's commits.
func (d *Document) SweepRevisions() map[revision.WriterID]revision.Revision {
	return decodeWriterRevisionMap(d.RevisionMap(KeySweepRev))
}

func decodeWriterRevisionMap(m *revmap.Map[interface{}]) map[revision.WriterID]revision.Revision {
	out := make(map[revision.WriterID]revision.Revision, m.Len())
	for _, e := range m.Entries() {
		s, ok := e.Value.(string)
		if !ok {
			continue
		}
		r, err := revision.Parse(s)
		if err != nil {
			continue
		}
		out[e.Rev.Writer] = r
	}
	return out
}

// Collisions returns the revisions recorded in _collisions, descending.
func (d *Document) Collisions() []revision.Revision {
	entries := d.RevisionMap(KeyCollisions).Entries()
	out := make([]revision.Revision, len(entries))
	for i, e := range entries {
		out[i] = e.Rev
	}
	return out
}

// PreviousIndex returns the document's descending previous-document
// index, built from _previous minus any entries stale-marked in
// _stalePrev. Once the document is sealed the result is cached on first
// call, since the document is immutable from then on.
func (d *Document) PreviousIndex() previous.Index {
	if d.prevIdx != nil {
		return *d.prevIdx
	}
	idx := previous.BuildIndex(d.rawPrevious, d.rawStalePrev)
	if d.sealed {
		d.prevIdx = &idx
	}
	return idx
}

// DeletedEntries returns the document's _deleted map entries, descending,
// with values coerced to bool.
func (d *Document) DeletedEntries() []revmap.Entry[bool] {
	raw := d.RevisionMap(KeyDeleted).Entries()
	out := make([]revmap.Entry[bool], 0, len(raw))
	for _, e := range raw {
		b, _ := coerceBool(e.Value)
		out = append(out, revmap.Entry[bool]{Rev: e.Rev, Value: b})
	}
	return out
}

func coerceBool(v interface{}) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		return t == "true", true
	default:
		return false, false
	}
}

// Clone returns an unsealed, independent copy of d suitable for a store
// to mutate while computing the result of an UpdateOp.
func (d *Document) Clone() *Document {
	out := New(d.id)
	for k, v := range d.scalars {
		out.scalars[k] = v
	}
	for k, m := range d.maps {
		out.maps[k] = m.Clone()
	}
	for high, rng := range d.rawPrevious {
		out.rawPrevious[high] = rng
	}
	for high, height := range d.rawStalePrev {
		out.rawStalePrev[high] = height
	}
	return out
}

// PropertyKeys returns every property key the document carries local
// history for, sorted for deterministic iteration.
func (d *Document) PropertyKeys() []string {
	out := make([]string, 0, len(d.maps))
	for k := range d.maps {
		if IsPropertyKey(k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
