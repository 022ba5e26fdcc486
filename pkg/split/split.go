// Package split implements the emission side of document splitting:
// deciding when a document has grown enough local history to warrant
// moving it into previous documents, and producing the UpdateOps and new
// previous documents that do so.
package split

import (
	"sort"

	"docstore/pkg/document"
	"docstore/pkg/previous"
	"docstore/pkg/revision"
)

// candidateKeys returns every key (system maps plus properties) a split
// pass considers moving entries out of.
func candidateKeys(doc *document.Document) []string {
	keys := []string{document.KeyRevisions, document.KeyCommitRoot, document.KeyDeleted, document.KeyBranchCommit}
	return append(keys, doc.PropertyKeys()...)
}

// ShouldSplit reports whether doc is a split candidate at its current
// serializedSize: below SplitCandidateBytes a document is never even
// considered; at or above SplitForceSizeBytes a split always triggers;
// in between, a split triggers once any single candidate key accumulates
// SplitRevisionCountThreshold local entries.
func ShouldSplit(doc *document.Document, serializedSize int64) bool {
	if serializedSize < document.SplitCandidateBytes {
		return false
	}
	if serializedSize >= document.SplitForceSizeBytes {
		return true
	}
	for _, key := range candidateKeys(doc) {
		if doc.RevisionMap(key).Len() >= document.SplitRevisionCountThreshold {
			return true
		}
	}
	return false
}

// Result is what one Split pass wants applied: an update to the main
// document's own bookkeeping (retracting the moved entries and pointing
// at their new home), plus the previous documents to create alongside it.
type Result struct {
	MainUpdate *document.UpdateOp
	NewDocs    []*document.Document
}

// movedEntry is one (key, revision, value) triple lifted out of the main
// document's local maps during a split.
type movedEntry struct {
	key   string
	rev   revision.Revision
	value interface{}
}

// Split computes the previous documents and main-document update needed
// to move each writer's older local history for doc into a leaf previous
// document, keeping that writer's newest entry for each key local. A writer whose leaf previous documents at height 0 reach
// IntermediateFanOut is further folded into one intermediate previous
// document that holds no property data of its own, only pointers to the
// leaves it replaces.
//
// headRevisions supplies, per writer, the newest revision known to have
// committed anywhere in doc's subtree (typically doc.LastRevisions());
// entries at or newer than a writer's head revision are never moved,
// since they are still the writer's most recent state.
func Split(doc *document.Document, headRevisions map[revision.WriterID]revision.Revision) Result {
	result := Result{MainUpdate: document.NewUpdateOp(doc.ID())}

	byWriter := groupByWriter(doc)
	depth, _ := document.Depth(doc.ID())
	mainPath := doc.Path()

	for writer, entries := range byWriter {
		head, hasHead := headRevisions[writer]
		moved := make([]movedEntry, 0, len(entries))
		keptNewest := make(map[string]bool)
		for _, e := range entries {
			if !keptNewest[e.key] {
				keptNewest[e.key] = true
				continue // entries arrive newest first per key; the newest stays local
			}
			if hasHead && revision.CompareStable(e.rev, head) >= 0 {
				continue // this writer's current head stays local
			}
			moved = append(moved, e)
		}
		if len(moved) == 0 {
			continue
		}

		sort.Slice(moved, func(i, j int) bool { return revision.CompareStable(moved[i].rev, moved[j].rev) > 0 })
		high, low := moved[0].rev, moved[len(moved)-1].rev

		leaf := document.New(document.PreviousID(depth, mainPath, high, 0))
		leaf.SetScalar(document.KeyPath, mainPath)
		leaf.SetScalar(document.KeySplitType, int64(document.SplitTypeDefault))
		leaf.SetScalar(document.KeySplitMaxRev, high.TimestampMs)
		for _, e := range moved {
			leaf.SetMapEntry(e.key, e.rev, e.value)
			result.MainUpdate.RemoveEntry(e.key, e.rev.String())
		}
		leaf.Seal()
		result.MainUpdate.SetPrevious(high, low, 0)
		result.NewDocs = append(result.NewDocs, leaf)

		leafRange := previous.Range{High: high, Low: low, Height: 0}
		if intermediate, folded := foldIntermediate(doc, writer, leafRange, depth, mainPath); folded {
			for _, r := range foldedLeaves(doc, writer) {
				result.MainUpdate.RemovePrevious(r.High)
			}
			result.MainUpdate.RemovePrevious(high)
			result.MainUpdate.SetPrevious(intermediate.high, intermediate.low, intermediate.height)
			result.NewDocs = append(result.NewDocs, intermediate.doc)
		}
	}

	return result
}

func groupByWriter(doc *document.Document) map[revision.WriterID][]movedEntry {
	out := make(map[revision.WriterID][]movedEntry)
	for _, key := range candidateKeys(doc) {
		for _, e := range doc.RevisionMap(key).Entries() {
			out[e.Rev.Writer] = append(out[e.Rev.Writer], movedEntry{key: key, rev: e.Rev, value: e.Value})
		}
	}
	return out
}

func foldedLeaves(doc *document.Document, writer revision.WriterID) []previous.Range {
	out := make([]previous.Range, 0)
	for _, r := range doc.PreviousIndex().ForWriter(writer) {
		if r.Height == 0 {
			out = append(out, r)
		}
	}
	return out
}

type intermediateResult struct {
	doc       *document.Document
	high, low revision.Revision
	height    int
}

// foldIntermediate checks whether writer now has IntermediateFanOut or
// more leaf (height 0) previous documents once newLeaf is included, and
// if so builds the intermediate document that replaces them all.
func foldIntermediate(doc *document.Document, writer revision.WriterID, newLeaf previous.Range, depth int, mainPath string) (intermediateResult, bool) {
	leaves := foldedLeaves(doc, writer)
	leaves = append(leaves, newLeaf)
	if len(leaves) < document.IntermediateFanOut {
		return intermediateResult{}, false
	}
	sort.Slice(leaves, func(i, j int) bool { return revision.CompareStable(leaves[i].High, leaves[j].High) > 0 })
	high, low := leaves[0].High, leaves[len(leaves)-1].Low

	inter := document.New(document.PreviousID(depth, mainPath, high, 1))
	inter.SetScalar(document.KeyPath, mainPath)
	inter.SetScalar(document.KeySplitType, int64(document.SplitTypeIntermediate))
	for _, r := range leaves {
		inter.SetPreviousRange(r)
	}
	inter.Seal()

	return intermediateResult{doc: inter, high: high, low: low, height: 1}, true
}
