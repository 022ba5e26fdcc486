// Package visibility implements the branch-aware visibility rules that
// decide whether a revision recorded on a document is visible to a
// reader positioned at a given RevisionVector.
package visibility

import (
	"context"
	"iter"

	"docstore/pkg/commitvalue"
	"docstore/pkg/document"
	"docstore/pkg/metrics"
	"docstore/pkg/revision"
)

// CommitOracle resolves the commit value recorded for a revision. Its
// concrete implementation (walking up to the revision's commit root and
// consulting that document's _revisions map) lives outside this package.
type CommitOracle interface {
	GetCommitValue(ctx context.Context, r revision.Revision, doc *document.Document) (commitvalue.Value, bool)
}

// Branch represents one writer's in-progress branch.
type Branch interface {
	// Base returns the trunk-relative vector this branch was forked from,
	// as of branchRev.
	Base(branchRev revision.Revision) revision.Vector
	// ContainsCommit reports whether r was committed on this branch.
	ContainsCommit(r revision.Revision) bool
}

// BranchRegistry resolves which Branch, if any, a read vector belongs to.
type BranchRegistry interface {
	BranchFor(read revision.Vector) (Branch, bool)
}

// RevisionCache is a caller-scoped cache of already-resolved commit
// values, avoiding repeated oracle lookups within a single read
// operation. It is never shared across operations: a commit value
// resolved before a concurrent merge could otherwise go stale.
type RevisionCache map[revision.Revision]commitvalue.Value

// Engine evaluates visibility for one read operation.
type Engine struct {
	Oracle   CommitOracle
	Branches BranchRegistry
	// Writer is the local writer id; a reader can see its own unmerged
	// branch commits but never another writer's.
	Writer revision.WriterID
	// Metrics is optional; when set, every resolution is counted by
	// outcome.
	Metrics *metrics.Metrics
}

// IsVisible reports whether the revision r, recorded on doc with the
// resolved commit value cv, is visible to a reader positioned at read.
func (e Engine) IsVisible(ctx context.Context, doc *document.Document, r revision.Revision, cv commitvalue.Value, read revision.Vector) bool {
	visible := e.isVisible(doc, r, cv, read)
	if e.Metrics != nil {
		if visible {
			e.Metrics.VisibilityChecks.WithLabelValues("visible").Inc()
		} else {
			e.Metrics.VisibilityChecks.WithLabelValues("hidden").Inc()
		}
	}
	return visible
}

func (e Engine) isVisible(doc *document.Document, r revision.Revision, cv commitvalue.Value, read revision.Vector) bool {
	switch {
	case commitvalue.IsCommitted(cv):
		m := commitvalue.ResolveCommitRevision(r, cv)
		if branch, ok := e.Branches.BranchFor(read); ok {
			if branchRev, ok := read.BranchRevision(); ok {
				base := branch.Base(branchRev)
				return base.HasSeen(m)
			}
		}
		return read.HasSeen(m)

	case cv.Kind == commitvalue.Unmerged:
		branchRev := cv.Rev
		if branchRev.Writer != e.Writer {
			return false
		}
		branch, ok := e.Branches.BranchFor(read)
		if !ok {
			return false
		}
		if !branch.ContainsCommit(r) {
			return false
		}
		return read.HasSeen(r)

	default:
		return false
	}
}

// LatestValue scans seq (a ValueMap.All iterator, already in descending
// order) and returns the first entry visible to read, resolving commit
// values through oracle and cache as it goes. It stops as soon as it
// finds a visible entry, never touching entries or previous documents
// beyond that point.
func (e Engine) LatestValue(ctx context.Context, doc *document.Document, seq iter.Seq2[revision.Revision, interface{}], read revision.Vector, cache RevisionCache) (revision.Revision, interface{}, bool) {
	var (
		foundRev revision.Revision
		foundVal interface{}
		found    bool
	)
	seq(func(r revision.Revision, v interface{}) bool {
		cv, ok := e.resolve(ctx, doc, r, cache)
		if !ok {
			return true
		}
		if e.IsVisible(ctx, doc, r, cv, read) {
			foundRev, foundVal, found = r, v, true
			return false
		}
		return true
	})
	return foundRev, foundVal, found
}

func (e Engine) resolve(ctx context.Context, doc *document.Document, r revision.Revision, cache RevisionCache) (commitvalue.Value, bool) {
	if cache != nil {
		if v, ok := cache[r]; ok {
			return v, true
		}
	}
	v, ok := e.Oracle.GetCommitValue(ctx, r, doc)
	if !ok {
		return commitvalue.Value{}, false
	}
	if cache != nil {
		cache[r] = v
	}
	return v, true
}

// RequiresCompleteMapCheck reports whether determining visibility of the
// most recent entry in a property's local map requires also consulting
// its previous documents: true whenever the High revision of the
// document's newest live previous range is at or newer than the local
// map's oldest entry, since in that case an older-but-still-visible value
// held in a previous document could otherwise be missed behind an
// invisible newer local one. False when the document has no live
// previous range.
func RequiresCompleteMapCheck(localOldest revision.Revision, doc *document.Document) bool {
	idx := doc.PreviousIndex()
	if idx.Empty() {
		return false
	}
	newestPrevious := idx.Values()[0].High
	return revision.CompareStable(localOldest, newestPrevious) <= 0
}

// IsMostRecentCommitted reports whether the newest entry in a property's
// local map (ignoring previous documents entirely) is both present and
// committed as of read, letting a caller skip the previous-document walk
// entirely in the common case of an unsplit, recently-written property.
func (e Engine) IsMostRecentCommitted(ctx context.Context, doc *document.Document, key string, read revision.Vector, cache RevisionCache) bool {
	entries := doc.RevisionMap(key).Entries()
	if len(entries) == 0 {
		return false
	}
	newest := entries[0]
	cv, ok := e.resolve(ctx, doc, newest.Rev, cache)
	if !ok {
		return false
	}
	return e.IsVisible(ctx, doc, newest.Rev, cv, read)
}
