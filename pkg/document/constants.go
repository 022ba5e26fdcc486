package document

import "docstore/pkg/docerrors"

// SplitType is the numeric taxonomy stored under _sdType on a previous
// document, matching the original's own historical values exactly
// (including the two deprecated codes, which must still round-trip).
type SplitType int

const (
	SplitTypeNone            SplitType = -1
	SplitTypeDefault         SplitType = 10
	SplitTypeDefaultNoChild  SplitType = 20 // deprecated: never emitted, still parsed
	SplitTypePropCommitOnly  SplitType = 30 // deprecated: never emitted, still parsed
	SplitTypeIntermediate    SplitType = 40
	SplitTypeDefaultLeaf     SplitType = 50
	SplitTypeCommitRootOnly  SplitType = 60
	SplitTypeDefaultNoBranch SplitType = 70
)

var knownSplitTypes = map[SplitType]bool{
	SplitTypeNone:            true,
	SplitTypeDefault:         true,
	SplitTypeDefaultNoChild:  true,
	SplitTypePropCommitOnly:  true,
	SplitTypeIntermediate:    true,
	SplitTypeDefaultLeaf:     true,
	SplitTypeCommitRootOnly:  true,
	SplitTypeDefaultNoBranch: true,
}

// ParseSplitType validates a raw numeric split-type code.
func ParseSplitType(v int) (SplitType, error) {
	st := SplitType(v)
	if !knownSplitTypes[st] {
		return SplitTypeNone, docerrors.ErrMalformedSplitType
	}
	return st, nil
}

// Split and document-size thresholds, matched exactly to the values the
// original system this engine models uses.
const (
	// SplitRevisionCountThreshold is the number of local revisions a
	// property's history accumulates before it becomes a split candidate.
	SplitRevisionCountThreshold = 100

	// SplitForceSizeBytes is the serialized document size above which a
	// split is forced regardless of revision count.
	SplitForceSizeBytes = 1048576

	// SplitCandidateBytes is the minimum serialized size a document must
	// reach before it is even considered for a split scan.
	SplitCandidateBytes = 8192

	// IntermediateFanOut is the number of previous documents of the same
	// height collected under a document before an intermediate previous
	// document is created to fan them out.
	IntermediateFanOut = 10
)
