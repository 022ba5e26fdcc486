// Package conflict implements ConflictDetector: the pre-commit check that
// a proposed update does not race a concurrent, already-committed change
// its author never saw.
package conflict

import (
	"context"
	"fmt"

	"docstore/pkg/commitvalue"
	"docstore/pkg/docerrors"
	"docstore/pkg/document"
	"docstore/pkg/metrics"
	"docstore/pkg/revision"
	"docstore/pkg/valuemap"
	"docstore/pkg/visibility"
)

// Detector checks a proposed UpdateOp against the document it targets.
type Detector struct {
	Oracle   visibility.CommitOracle
	Loader   valuemap.Loader
	Silencer *docerrors.Silencer
	Metrics  *metrics.Metrics
}

// Detect reports whether applying op to doc, whose author last observed
// the document as of base, conflicts with a change committed since then
// that base never saw. It returns docerrors.ErrConflictDetected wrapped
// with the offending key when a conflict is found, and nil otherwise.
//
// A pure structural change to a hidden path — an add or delete touching
// no user-visible property, only bookkeeping under a ":"-prefixed segment
// — is exempted: two writers concurrently creating and deleting the same
// hidden node race harmlessly, since neither observes user-visible state
// the other could have invalidated.
func (d Detector) Detect(ctx context.Context, doc *document.Document, op *document.UpdateOp, base revision.Vector) error {
	touched := touchedKeys(op)
	if len(touched) == 0 {
		return nil
	}
	if allowConcurrentAddRemove(doc, op, touched) {
		return nil
	}
	for _, key := range touched {
		if conflicting, r := d.conflictsOn(ctx, doc, key, base); conflicting {
			if d.Metrics != nil {
				d.Metrics.ConflictsTotal.WithLabelValues(key).Inc()
			}
			return fmt.Errorf("conflict: %s changed concurrently at %s on %q: %w", key, r, doc.ID(), docerrors.ErrConflictDetected)
		}
	}
	return nil
}

func (d Detector) conflictsOn(ctx context.Context, doc *document.Document, key string, base revision.Vector) (bool, revision.Revision) {
	vm := valuemap.New(key, doc, d.Loader, d.Silencer)
	var (
		conflict bool
		culprit  revision.Revision
	)
	vm.All(ctx)(func(r revision.Revision, _ interface{}) bool {
		cv, ok := d.Oracle.GetCommitValue(ctx, r, doc)
		if !ok {
			return true
		}
		if !commitvalue.IsCommitted(cv) {
			return true
		}
		m := commitvalue.ResolveCommitRevision(r, cv)
		if base.HasSeen(m) {
			return false // descending order: everything older is seen too
		}
		conflict, culprit = true, r
		return false
	})
	return conflict, culprit
}

// touchedKeys returns the distinct _deleted and property keys op writes,
// the two categories ConflictDetector checks. System bookkeeping keys
// (_revisions, _commitRoot, _lastRev, ...) are never conflict-checked on
// their own: they are consequences of a commit, not user-visible state.
func touchedKeys(op *document.UpdateOp) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, c := range op.Changes {
		switch {
		case c.Key == document.KeyDeleted:
			add(c.Key)
		case document.IsPropertyKey(c.Key):
			add(c.Key)
		}
	}
	return out
}

// allowConcurrentAddRemove reports whether op qualifies for the hidden-
// path add/delete exception: the document's path is hidden, the op is a
// pure creation or deletion (IsNew or IsDelete), and it touches no
// property keys — only the _deleted bookkeeping.
func allowConcurrentAddRemove(doc *document.Document, op *document.UpdateOp, touched []string) bool {
	if !document.IsHiddenPath(doc.Path()) {
		return false
	}
	if !op.IsNew && !op.IsDelete {
		return false
	}
	for _, k := range touched {
		if k != document.KeyDeleted {
			return false
		}
	}
	return true
}
