// Package previous implements Range and PreviousIndex, the descending
// index of off-loaded "previous" documents a main document points to once
// its own local history has been split out.
package previous

import (
	"sort"

	"docstore/pkg/revision"
)

// Range identifies one previous document: it holds the revisions of one
// writer between Low and High (inclusive), all at the same split Height.
type Range struct {
	High   revision.Revision
	Low    revision.Revision
	Height int
}

// Writer returns the writer both ends of the range share.
func (r Range) Writer() revision.WriterID { return r.High.Writer }

// Includes reports whether rev falls within [Low, High] for the range's
// writer. A revision from a different writer is never included.
func (r Range) Includes(rev revision.Revision) bool {
	if rev.Writer != r.High.Writer {
		return false
	}
	return revision.CompareStable(rev, r.Low) >= 0 && revision.CompareStable(rev, r.High) <= 0
}

// Index is the descending index of a document's previous ranges, built
// from its _previous map with any entries named in _stalePrev removed.
type Index struct {
	ranges []Range // sorted descending by High in stable order
}

// BuildIndex constructs an Index from the raw _previous entries (keyed by
// High revision) and the _stalePrev entries (keyed by the same High
// revision, valued by the height that was stale when marked). A previous
// entry whose height still matches its stale marker is dropped; one whose
// height has since changed (the range was replaced by a later split) is
// kept, since the stale marker no longer describes the live entry.
func BuildIndex(previous map[revision.Revision]Range, stalePrev map[revision.Revision]int) Index {
	out := make([]Range, 0, len(previous))
	for high, rng := range previous {
		if staleHeight, stale := stalePrev[high]; stale && staleHeight == rng.Height {
			continue
		}
		out = append(out, rng)
	}
	sort.Slice(out, func(i, j int) bool {
		return revision.CompareStable(out[i].High, out[j].High) > 0
	})
	return Index{ranges: out}
}

// Empty reports whether the index has no live ranges.
func (idx Index) Empty() bool { return len(idx.ranges) == 0 }

// Values returns every live range, descending by High.
func (idx Index) Values() []Range { return idx.ranges }

// FloorEntry returns the range with the greatest High <= r, i.e. the
// range that would contain r's writer's history if it was split out. The
// writer of r is not considered: a floor lookup spans all writers because
// a single previous document can hold several writers' history at once
// in its own local maps even though each Range itself names a single
// writer's span.
func (idx Index) FloorEntry(r revision.Revision) (Range, bool) {
	var best *Range
	for i := range idx.ranges {
		rng := idx.ranges[i]
		if revision.CompareStable(rng.High, r) <= 0 {
			if best == nil || revision.CompareStable(rng.High, best.High) > 0 {
				best = &idx.ranges[i]
			}
		}
	}
	if best == nil {
		return Range{}, false
	}
	return *best, true
}

// HeadMap returns every range with High > r, descending — the previous
// documents a reader positioned at r would still need to consult because
// they might carry revisions newer than r.
func (idx Index) HeadMap(r revision.Revision) []Range {
	out := idx.ranges[:0:0]
	for _, rng := range idx.ranges {
		if revision.CompareStable(rng.High, r) > 0 {
			out = append(out, rng)
		}
	}
	return out
}

// ForWriter returns the live ranges belonging to writer, descending.
func (idx Index) ForWriter(writer revision.WriterID) []Range {
	out := idx.ranges[:0:0]
	for _, rng := range idx.ranges {
		if rng.Writer() == writer {
			out = append(out, rng)
		}
	}
	return out
}
