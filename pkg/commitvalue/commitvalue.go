// Package commitvalue decodes the small set of strings a commit-value
// oracle returns for a revision recorded in a document's _revisions or
// _bc map. The oracle itself (looking up a commit root and asking it
// whether a revision committed) lives in pkg/clusterctx; this package
// only knows how to parse and interpret the strings it returns.
package commitvalue

import (
	"fmt"
	"strings"

	"docstore/pkg/revision"
)

// Kind discriminates the four possible readings of a commit value.
type Kind int

const (
	// Unknown means the oracle has no entry for the revision: treat it as
	// uncommitted.
	Unknown Kind = iota
	// Trunk means the revision committed directly on the trunk.
	Trunk
	// Merged means the revision was a branch commit that has since merged;
	// Rev holds the trunk revision at which the merge became visible.
	Merged
	// Unmerged means the revision is a branch commit that has not merged
	// yet; Rev holds the branch-tagged revision identifying which writer's
	// branch it belongs to.
	Unmerged
)

// Value is a decoded commit value.
type Value struct {
	Kind Kind
	Rev  revision.Revision
}

// String re-encodes v in the wire form Parse accepts.
func (v Value) String() string {
	switch v.Kind {
	case Trunk:
		return "c"
	case Merged:
		return "c-" + v.Rev.String()
	case Unmerged:
		return "b" + v.Rev.String()
	default:
		return ""
	}
}

// Parse decodes a commit-value string:
//
//	"c"          -> Trunk
//	"c-<rev>"    -> Merged, with Rev set to the merge revision
//	"b<rev>"     -> Unmerged, with Rev set to the branch-tagged revision
//
// Any other string is an error; callers must not propagate that error to
// a reader, instead treating the revision as Unknown (see IsCommitted).
func Parse(s string) (Value, error) {
	switch {
	case s == "c":
		return Value{Kind: Trunk}, nil
	case strings.HasPrefix(s, "c-"):
		r, err := revision.Parse(s[2:])
		if err != nil {
			return Value{}, fmt.Errorf("commitvalue: malformed merged commit value %q: %w", s, err)
		}
		return Value{Kind: Merged, Rev: r}, nil
	case strings.HasPrefix(s, "b"):
		r, err := revision.Parse(s[1:])
		if err != nil {
			return Value{}, fmt.Errorf("commitvalue: malformed branch commit value %q: %w", s, err)
		}
		return Value{Kind: Unmerged, Rev: r}, nil
	default:
		return Value{}, fmt.Errorf("commitvalue: unrecognized commit value %q", s)
	}
}

// ParseOrUnknown is Parse with malformed input folded into Unknown instead
// of an error, matching how a caller with a commit value of questionable
// origin should treat it: an unparseable entry is as good as absent.
func ParseOrUnknown(s string) Value {
	v, err := Parse(s)
	if err != nil {
		return Value{Kind: Unknown}
	}
	return v
}

// IsCommitted reports whether v represents a revision visible to any
// reader that has merged up to its commit point: trunk commits and merged
// branch commits, but not unmerged branch commits or unknown values.
func IsCommitted(v Value) bool {
	return v.Kind == Trunk || v.Kind == Merged
}

// ResolveCommitRevision returns the revision against which a reader's
// position should be compared to decide visibility of r: r itself for a
// trunk commit, or the recorded merge revision for a merged branch commit.
// Callers must check IsCommitted first; for Unmerged and Unknown values
// resolution is meaningless and ResolveCommitRevision returns r unchanged.
func ResolveCommitRevision(r revision.Revision, v Value) revision.Revision {
	if v.Kind == Merged {
		return v.Rev
	}
	return r
}
