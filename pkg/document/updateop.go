package document

import (
	"strconv"

	"docstore/pkg/revision"
)

// Operation is one of the six primitive mutations an UpdateOp can carry.
type Operation int

const (
	// Set replaces a scalar field's value outright.
	Set Operation = iota
	// Max replaces a scalar field's value only if the new value compares
	// greater than the current one (numeric comparison); used for
	// monotonic fields like _modified.
	Max
	// SetMapEntry sets one entry of a map field.
	SetMapEntry
	// RemoveMapEntry removes one entry of a map field outright.
	RemoveMapEntry
	// UnsetMapEntry marks one entry of a map field as explicitly absent,
	// distinct from never having been set: used to retract a revision
	// entry written by a since-aborted commit without disturbing the
	// document's other bookkeeping.
	UnsetMapEntry
	// Equals is a precondition, not a mutation: the update only applies if
	// the named field (scalar or map entry) currently equals Value.
	Equals
)

// Change is a single field-level mutation or precondition within an
// UpdateOp.
type Change struct {
	Key    string      // system key or escaped property name
	MapKey string      // set for map operations; empty for scalar operations
	Op     Operation
	Value  interface{}
}

// UpdateOp describes a conditional mutation to apply to one document. It
// is a pure value: building one has no effect until a DocumentStore
// applies it.
type UpdateOp struct {
	ID       string
	IsNew    bool // true if the store should create the document if absent
	IsDelete bool // true if the store should remove the document outright
	Changes  []Change
}

// NewUpdateOp returns an UpdateOp targeting the document with the given id.
func NewUpdateOp(id string) *UpdateOp {
	return &UpdateOp{ID: id}
}

func (op *UpdateOp) add(c Change) *UpdateOp {
	op.Changes = append(op.Changes, c)
	return op
}

// SetScalar sets a scalar field outright.
func (op *UpdateOp) SetScalar(key string, value interface{}) *UpdateOp {
	return op.add(Change{Key: key, Op: Set, Value: value})
}

// MaxScalar applies a Max mutation to a scalar field.
func (op *UpdateOp) MaxScalar(key string, value interface{}) *UpdateOp {
	return op.add(Change{Key: key, Op: Max, Value: value})
}

// SetEntry sets one entry of a map field.
func (op *UpdateOp) SetEntry(key, mapKey string, value interface{}) *UpdateOp {
	return op.add(Change{Key: key, MapKey: mapKey, Op: SetMapEntry, Value: value})
}

// RemoveEntry removes one entry of a map field outright.
func (op *UpdateOp) RemoveEntry(key, mapKey string) *UpdateOp {
	return op.add(Change{Key: key, MapKey: mapKey, Op: RemoveMapEntry})
}

// UnsetEntry marks one entry of a map field as explicitly absent.
func (op *UpdateOp) UnsetEntry(key, mapKey string) *UpdateOp {
	return op.add(Change{Key: key, MapKey: mapKey, Op: UnsetMapEntry})
}

// EqualsScalar adds a precondition that a scalar field currently equals
// value.
func (op *UpdateOp) EqualsScalar(key string, value interface{}) *UpdateOp {
	return op.add(Change{Key: key, Op: Equals, Value: value})
}

// EqualsEntry adds a precondition that a map entry currently equals value.
func (op *UpdateOp) EqualsEntry(key, mapKey string, value interface{}) *UpdateOp {
	return op.add(Change{Key: key, MapKey: mapKey, Op: Equals, Value: value})
}

// --- mandated helper constructors, one per system-map operation ---

// SetRevision records that rev committed with the given commit value.
func (op *UpdateOp) SetRevision(rev revision.Revision, commitValue string) *UpdateOp {
	return op.SetEntry(KeyRevisions, rev.String(), commitValue)
}

// UnsetRevision marks rev's _revisions entry as explicitly absent.
func (op *UpdateOp) UnsetRevision(rev revision.Revision) *UpdateOp {
	return op.UnsetEntry(KeyRevisions, rev.String())
}

// RemoveRevision removes rev's _revisions entry outright.
func (op *UpdateOp) RemoveRevision(rev revision.Revision) *UpdateOp {
	return op.RemoveEntry(KeyRevisions, rev.String())
}

// SetCommitRoot records that rev's commit root is this document's
// ancestor at depth, counted in path segments from the root ("/" is
// depth 0).
func (op *UpdateOp) SetCommitRoot(rev revision.Revision, depth int) *UpdateOp {
	return op.SetEntry(KeyCommitRoot, rev.String(), depth)
}

// RemoveCommitRoot removes rev's _commitRoot entry outright.
func (op *UpdateOp) RemoveCommitRoot(rev revision.Revision) *UpdateOp {
	return op.RemoveEntry(KeyCommitRoot, rev.String())
}

// UnsetCommitRoot marks rev's _commitRoot entry as explicitly absent.
func (op *UpdateOp) UnsetCommitRoot(rev revision.Revision) *UpdateOp {
	return op.UnsetEntry(KeyCommitRoot, rev.String())
}

// SetDeleted records rev's deletion state and, when deleted is true, also
// flips the sticky _deletedOnce flag.
func (op *UpdateOp) SetDeleted(rev revision.Revision, deleted bool) *UpdateOp {
	op.SetEntry(KeyDeleted, rev.String(), strconv.FormatBool(deleted))
	if deleted {
		op.SetScalar(KeyDeletedOnce, true)
	}
	return op
}

// SetPrevious records a previous-document range under its High revision.
func (op *UpdateOp) SetPrevious(high, low revision.Revision, height int) *UpdateOp {
	return op.SetEntry(KeyPrevious, high.String(), lowHeightValue(low, height))
}

// RemovePrevious removes a previous-document range outright.
func (op *UpdateOp) RemovePrevious(high revision.Revision) *UpdateOp {
	return op.RemoveEntry(KeyPrevious, high.String())
}

// SetStalePrevious marks the previous range keyed by high as stale at the
// given height.
func (op *UpdateOp) SetStalePrevious(high revision.Revision, height int) *UpdateOp {
	return op.SetEntry(KeyStalePrev, high.String(), height)
}

// SetBranchCommit records rev as a branch commit.
func (op *UpdateOp) SetBranchCommit(rev revision.Revision) *UpdateOp {
	return op.SetEntry(KeyBranchCommit, rev.String(), true)
}

// RemoveBranchCommit removes rev's _bc entry outright.
func (op *UpdateOp) RemoveBranchCommit(rev revision.Revision) *UpdateOp {
	return op.RemoveEntry(KeyBranchCommit, rev.String())
}

// SetHasBinary flips the document-level "has at least one binary
// property" flag.
func (op *UpdateOp) SetHasBinary() *UpdateOp {
	return op.SetScalar(KeyHasBinary, HasBinaryValue)
}

// SetChildrenFlag records whether this document has known children.
func (op *UpdateOp) SetChildrenFlag(hasChildren bool) *UpdateOp {
	return op.SetScalar(KeyChildren, hasChildren)
}

// sweepSentinel builds the fixed (0, 0, writer) pseudo-revision used as
// the _lastRev / _sweepRev map key for a writer, preserved verbatim from
// the original rather than normalized to a plain writer-id string.
func sweepSentinel(writer revision.WriterID) revision.Revision {
	return revision.New(0, 0, writer)
}

// SetLastRev records the newest revision a writer has committed anywhere
// in this document's subtree, keyed by the writer's sentinel entry.
func (op *UpdateOp) SetLastRev(rev revision.Revision) *UpdateOp {
	return op.SetEntry(KeyLastRev, sweepSentinel(rev.Writer).String(), rev.String())
}

// SetSweepRev records the revision up to which a background sweep has
// processed this writer's commits, keyed by the writer's sentinel entry.
func (op *UpdateOp) SetSweepRev(rev revision.Revision) *UpdateOp {
	return op.SetEntry(KeySweepRev, sweepSentinel(rev.Writer).String(), rev.String())
}

// ModifiedResolutionSeconds is the bucket width _modified is rounded down
// to, keeping the field cheap to maintain under concurrent writers.
const ModifiedResolutionSeconds = 5

// SetModified applies a Max mutation to _modified using rev's timestamp
// floored to the nearest ModifiedResolutionSeconds bucket.
func (op *UpdateOp) SetModified(rev revision.Revision) *UpdateOp {
	seconds := rev.TimestampMs / 1000
	bucket := (seconds / ModifiedResolutionSeconds) * ModifiedResolutionSeconds
	return op.MaxScalar(KeyModified, bucket)
}

// AddCollision records that a commit attempt observed a concurrent
// change at rev while computing the newest revision for this document.
func (op *UpdateOp) AddCollision(rev revision.Revision) *UpdateOp {
	return op.SetEntry(KeyCollisions, rev.String(), true)
}

// RemoveCollision clears a previously recorded collision once resolved.
func (op *UpdateOp) RemoveCollision(rev revision.Revision) *UpdateOp {
	return op.RemoveEntry(KeyCollisions, rev.String())
}

func lowHeightValue(low revision.Revision, height int) string {
	return low.String() + "/" + strconv.Itoa(height)
}
