package revision

import (
	"sort"
	"strings"
)

// Vector is a read position: at most one Revision per writer. It is the
// "as of" marker a reader carries: "I have seen up to revision X from
// writer W, for every W I know about."
type Vector struct {
	entries map[WriterID]Revision
}

// NewVector builds a Vector from a set of revisions, keeping, per writer,
// whichever revision was passed last.
func NewVector(revs ...Revision) Vector {
	v := Vector{entries: make(map[WriterID]Revision, len(revs))}
	for _, r := range revs {
		v.entries[r.Writer] = r
	}
	return v
}

// Get returns the revision this vector holds for writer, if any.
func (v Vector) Get(writer WriterID) (Revision, bool) {
	r, ok := v.entries[writer]
	return r, ok
}

// Update returns a copy of v with r recorded for its writer, replacing
// any existing entry for that writer regardless of ordering. Callers that
// want a monotonic update should check IsNewerThan first.
func (v Vector) Update(r Revision) Vector {
	out := v.clone()
	out.entries[r.Writer] = r
	return out
}

// Remove returns a copy of v with writer's entry dropped.
func (v Vector) Remove(writer WriterID) Vector {
	out := v.clone()
	delete(out.entries, writer)
	return out
}

func (v Vector) clone() Vector {
	out := Vector{entries: make(map[WriterID]Revision, len(v.entries))}
	for w, r := range v.entries {
		out.entries[w] = r
	}
	return out
}

// IsNewerThan reports whether v's entry for r's writer is strictly newer
// than r in stable order, or missing entirely: a writer v has no entry for
// is treated as newer than any concrete revision from that writer, per
// spec. Callers asking "has v already observed r" want HasSeen instead.
func (v Vector) IsNewerThan(r Revision) bool {
	own, ok := v.entries[r.Writer]
	if !ok {
		return true
	}
	return CompareStable(own, r) > 0
}

// IsRevisionNewer is an alias for IsNewerThan kept for readers familiar
// with the original's naming.
func (v Vector) IsRevisionNewer(r Revision) bool { return v.IsNewerThan(r) }

// HasSeen reports whether v's entry for r's writer is r or newer, i.e.
// whether a reader positioned at v has already observed r. A writer with
// no entry in v has seen nothing from that writer.
func (v Vector) HasSeen(r Revision) bool {
	own, ok := v.entries[r.Writer]
	if !ok {
		return false
	}
	return CompareStable(own, r) >= 0
}

// IsBranch reports whether v carries at least one branch-flagged entry.
func (v Vector) IsBranch() bool {
	for _, r := range v.entries {
		if r.Branch {
			return true
		}
	}
	return false
}

// BranchRevision returns the branch-flagged entry of v, if any. A Vector
// produced for a branch read carries exactly one such entry: the local
// writer's own branch tip.
func (v Vector) BranchRevision() (Revision, bool) {
	for _, r := range v.entries {
		if r.Branch {
			return r, true
		}
	}
	return Revision{}, false
}

// Base returns v with every branch-flagged entry folded back onto its
// trunk view. Used when a branch read's vector must be compared against
// commit values recorded on the trunk.
func (v Vector) Base() Vector {
	out := v.clone()
	for w, r := range out.entries {
		if r.Branch {
			out.entries[w] = r.AsTrunk()
		}
	}
	return out
}

// Len reports the number of writers tracked by v.
func (v Vector) Len() int { return len(v.entries) }

// Revisions returns v's entries in descending stable order.
func (v Vector) Revisions() []Revision {
	out := make([]Revision, 0, len(v.entries))
	for _, r := range v.entries {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return CompareStable(out[i], out[j]) > 0 })
	return out
}

// String renders v as a comma-separated list of its revisions in
// descending order, for logging and tests.
func (v Vector) String() string {
	revs := v.Revisions()
	parts := make([]string, len(revs))
	for i, r := range revs {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}
