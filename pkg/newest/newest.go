// Package newest implements NewestRevisionFinder: given a commit attempt
// (its base read position and the revision it is about to write), find
// the newest already-committed revision of a property or system map that
// the attempt must be aware of, and collect any concurrent, still-
// uncommitted commits ("collisions") the attempt raced with.
package newest

import (
	"context"

	"docstore/pkg/commitvalue"
	"docstore/pkg/document"
	"docstore/pkg/revision"
	"docstore/pkg/visibility"
)

// RevisionContext bundles the collaborators a commit attempt needs to
// classify the revisions it finds on a document: a commit-value oracle,
// the branch registry, and its own writer identity.
type RevisionContext interface {
	visibility.CommitOracle
	Branches() visibility.BranchRegistry
	WriterID() revision.WriterID
}

// FindNewestRevision scans key's revision map on doc, descending, and
// returns the newest revision the commit attempt (based on base, writing
// change, optionally on branch) must consider a predecessor. Any
// concurrent commit found along the way that base has not observed yet,
// and that does not belong to this same commit attempt's own branch, is
// appended to collisions.
//
// The scan classifies each candidate revision r into one of five cases:
//
//  1. r is already visible to base (base has observed a commit at or
//     newer than r's resolved commit revision): r cannot be newer than
//     anything base already knows, so it is skipped, and every earlier
//     (older) entry in the descending map is skipped too, since they can
//     only be visible to base as well; the scan stops.
//  2. r is uncommitted (the oracle has no entry): skipped, r does not
//     exist as far as any reader is concerned.
//  3. r is change itself: skipped, a commit never conflicts with its own
//     write.
//  4. r is an unmerged branch commit belonging to a writer or branch
//     other than this attempt's own: skipped, foreign branch state is
//     invisible to a trunk (or different-branch) commit attempt.
//  5. r is committed (trunk, merged, or this attempt's own unmerged
//     branch commit) and not yet visible to base: a genuine concurrent
//     change. It becomes a candidate for the returned newest revision,
//     and is also recorded as a collision unless it belongs to this
//     attempt's own branch.
func FindNewestRevision(
	ctx context.Context,
	rc RevisionContext,
	doc *document.Document,
	key string,
	base revision.Vector,
	change revision.Revision,
	branch visibility.Branch,
	collisions *[]revision.Revision,
) (revision.Revision, bool) {
	var newest revision.Revision
	found := false

	for _, e := range doc.RevisionMap(key).Entries() {
		r := e.Rev
		if r == change {
			continue // case 3
		}
		cv, ok := rc.GetCommitValue(ctx, r, doc)
		if !ok {
			continue // case 2
		}

		if commitvalue.IsCommitted(cv) {
			m := commitvalue.ResolveCommitRevision(r, cv)
			if base.HasSeen(m) {
				break // case 1: descending order, nothing older is newer either
			}
			// case 5: concurrent trunk/merged commit
			if !found || revision.CompareStable(r, newest) > 0 {
				newest, found = r, true
			}
			if collisions != nil {
				*collisions = append(*collisions, r)
			}
			continue
		}

		if cv.Kind == commitvalue.Unmerged {
			branchRev := cv.Rev
			ownBranch := branchRev.Writer == rc.WriterID() && branch != nil && branch.ContainsCommit(r)
			if !ownBranch {
				continue // case 4
			}
			// case 5, own branch: candidate but not a collision
			if !found || revision.CompareStable(r, newest) > 0 {
				newest, found = r, true
			}
		}
	}

	return newest, found
}
