// Package clusterctx provides the concrete collaborators the rest of this
// module only sees as interfaces: a CommitOracle that resolves a
// revision's commit value by walking its document's own _revisions map
// or, failing that, its _commitRoot ancestor; an in-memory BranchRegistry
// tracking each writer's single in-progress branch; and a Context that
// bundles both together with the local writer identity and head revision,
// the shape newest.RevisionContext expects.
package clusterctx

import (
	"context"
	"fmt"
	"sync"

	"docstore/pkg/commitlog"
	"docstore/pkg/commitvalue"
	"docstore/pkg/document"
	"docstore/pkg/logger"
	"docstore/pkg/revision"
	"docstore/pkg/visibility"
	"time"

	"go.uber.org/zap"
)

// Finder loads a document by id, the same shape store.Store.Find and
// valuemap.Loader both already satisfy.
type Finder interface {
	Find(ctx context.Context, id string) (*document.Document, bool, error)
}

type oracleKey struct {
	docID string
	rev   revision.Revision
}

// Oracle resolves commit values for revisions, consulting an in-memory
// cache first, then the revision's own document, then (for revisions
// committed under a different document's commit root) that ancestor
// document. Resolved values are recorded both in memory and, if a commit
// log is attached, durably, so a restarted process does not have to
// re-walk commit roots for revisions it already resolved once.
type Oracle struct {
	Finder Finder
	Log    *commitlog.Log

	mu    sync.RWMutex
	cache map[oracleKey]commitvalue.Value
}

// NewOracle builds an Oracle backed by finder, optionally replaying log
// (if non-nil) to prime its in-memory cache.
func NewOracle(finder Finder, log *commitlog.Log) *Oracle {
	o := &Oracle{
		Finder: finder,
		Log:    log,
		cache:  make(map[oracleKey]commitvalue.Value),
	}
	if log != nil {
		_ = log.Replay(func(rec commitlog.Record) error {
			o.mu.Lock()
			o.cache[oracleKey{rec.DocID, rec.Rev}] = rec.Value
			o.mu.Unlock()
			return nil
		})
	}
	return o
}

// GetCommitValue implements visibility.CommitOracle.
func (o *Oracle) GetCommitValue(ctx context.Context, r revision.Revision, doc *document.Document) (commitvalue.Value, bool) {
	if v, ok := o.lookup(doc.ID(), r); ok {
		return v, true
	}

	if s, ok := doc.RevisionMap(document.KeyRevisions).Get(r); ok {
		if str, ok2 := s.(string); ok2 {
			if v, err := commitvalue.Parse(str); err == nil {
				o.record(doc.ID(), r, v)
				return v, true
			}
		}
	}

	depthVal, ok := doc.RevisionMap(document.KeyCommitRoot).Get(r)
	if !ok {
		return commitvalue.Value{}, false
	}
	depth, ok := asInt(depthVal)
	if !ok {
		return commitvalue.Value{}, false
	}
	rootID := document.AncestorID(doc.Path(), depth)
	root, found, err := o.Finder.Find(ctx, rootID)
	if err != nil {
		logger.Log.Warn("commit_root_lookup_failed", zap.String("id", rootID), zap.Error(err))
		return commitvalue.Value{}, false
	}
	if !found {
		return commitvalue.Value{}, false
	}
	s, ok := root.RevisionMap(document.KeyRevisions).Get(r)
	if !ok {
		return commitvalue.Value{}, false
	}
	str, ok := s.(string)
	if !ok {
		return commitvalue.Value{}, false
	}
	v, err := commitvalue.Parse(str)
	if err != nil {
		return commitvalue.Value{}, false
	}
	o.record(doc.ID(), r, v)
	return v, true
}

func (o *Oracle) lookup(docID string, r revision.Revision) (commitvalue.Value, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.cache[oracleKey{docID, r}]
	return v, ok
}

func (o *Oracle) record(docID string, r revision.Revision, v commitvalue.Value) {
	o.mu.Lock()
	o.cache[oracleKey{docID, r}] = v
	o.mu.Unlock()
	if o.Log != nil {
		if _, err := o.Log.Append(commitlog.Record{DocID: docID, Rev: r, Value: v}); err != nil {
			logger.Log.Warn("commitlog_append_failed", zap.String("id", docID), zap.Error(err))
		}
	}
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// branch is one writer's single in-progress branch: the trunk-relative
// vector it was forked from, and the set of revisions committed on it so
// far.
type branch struct {
	mu      sync.RWMutex
	base    revision.Vector
	commits map[revision.Revision]bool
}

func (b *branch) Base(branchRev revision.Revision) revision.Vector {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.base
}

func (b *branch) ContainsCommit(r revision.Revision) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.commits[r]
}

// Branches is an in-memory visibility.BranchRegistry: one branch per
// writer at a time, matching this module's single-branch-per-writer
// model (a writer starts a branch, accumulates commits on it, then
// merges or discards it before starting another).
type Branches struct {
	mu       sync.RWMutex
	byWriter map[revision.WriterID]*branch
}

// NewBranches returns an empty branch registry.
func NewBranches() *Branches {
	return &Branches{byWriter: make(map[revision.WriterID]*branch)}
}

// StartBranch opens a new branch for writer forked from base, discarding
// any previous branch that writer had open.
func (r *Branches) StartBranch(writer revision.WriterID, base revision.Vector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byWriter[writer] = &branch{base: base, commits: make(map[revision.Revision]bool)}
}

// RecordCommit marks rev as committed on writer's open branch. It is a
// no-op if writer has no open branch.
func (r *Branches) RecordCommit(writer revision.WriterID, rev revision.Revision) {
	r.mu.RLock()
	b, ok := r.byWriter[writer]
	r.mu.RUnlock()
	if !ok {
		return
	}
	b.mu.Lock()
	b.commits[rev] = true
	b.mu.Unlock()
}

// EndBranch discards writer's open branch, whether merged or abandoned.
func (r *Branches) EndBranch(writer revision.WriterID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byWriter, writer)
}

// BranchFor implements visibility.BranchRegistry: a read vector belongs
// to a branch when it carries a branch-flagged entry for some writer with
// an open branch.
func (r *Branches) BranchFor(read revision.Vector) (visibility.Branch, bool) {
	bw, ok := read.BranchRevision()
	if !ok {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byWriter[bw.Writer]
	if !ok {
		return nil, false
	}
	return b, true
}

// Context bundles a CommitOracle, a BranchRegistry and the local writer's
// identity and head revision vector into the shape newest.RevisionContext
// and visibility.Engine both need, so callers only have to build and
// thread one object through the commit path.
type Context struct {
	*Oracle
	branches *Branches
	writer   revision.WriterID

	headMu sync.RWMutex
	head   revision.Vector

	revMu       sync.Mutex
	lastMs      int64
	lastCounter uint32
}

// New builds a Context for writer, resolving commit values through
// finder and (optionally) accelerated by log.
func New(writer revision.WriterID, finder Finder, log *commitlog.Log) *Context {
	return &Context{
		Oracle:   NewOracle(finder, log),
		branches: NewBranches(),
		writer:   writer,
		head:     revision.NewVector(),
	}
}

// Branches implements newest.RevisionContext.
func (c *Context) Branches() visibility.BranchRegistry { return c.branches }

// WriterID implements newest.RevisionContext.
func (c *Context) WriterID() revision.WriterID { return c.writer }

// BranchRegistry exposes the concrete registry for callers (such as a
// branch-commit or merge operation) that need StartBranch/RecordCommit/
// EndBranch, which the narrower visibility.BranchRegistry interface does
// not carry.
func (c *Context) BranchRegistry() *Branches { return c.branches }

// HeadRevision returns the local writer's current view of the cluster:
// the newest revision it has observed for each writer it knows about.
func (c *Context) HeadRevision() revision.Vector {
	c.headMu.RLock()
	defer c.headMu.RUnlock()
	return c.head
}

// AdvanceHead folds r into the head vector, the bookkeeping step every
// successful commit and every externally observed revision must perform
// so that later reads see it.
func (c *Context) AdvanceHead(r revision.Revision) {
	c.headMu.Lock()
	defer c.headMu.Unlock()
	c.head = c.head.Update(r)
}

// NewRevision allocates the next revision for a local write: the current
// wall-clock millisecond, a monotonic counter distinguishing same-
// millisecond writes from this writer, and this context's writer id.
// Callers on the trunk pass branch=false; a branch commit passes true.
func (c *Context) NewRevision(branch bool) revision.Revision {
	c.revMu.Lock()
	ms := time.Now().UnixMilli()
	if ms <= c.lastMs {
		c.lastCounter++
	} else {
		c.lastMs = ms
		c.lastCounter = 0
	}
	ts := c.lastMs
	counter := c.lastCounter
	c.revMu.Unlock()

	r := revision.New(ts, counter, c.writer)
	if branch {
		r = r.AsBranch()
	}
	c.AdvanceHead(r)
	return r
}

// PendingModifications reports the revisions this writer has committed
// locally but not yet flushed to the document store's _lastRev pointer.
// This module has no separate pending-modification ledger distinct from
// the store's own per-id lock and cache: a write is visible the moment
// FindAndUpdate returns, so there is never a gap to report. Kept as a
// named method because RevisionContext implementations conventionally
// expose one; it always returns nil here.
func (c *Context) PendingModifications() []revision.Revision { return nil }

// String is for debugging only.
func (c *Context) String() string {
	return fmt.Sprintf("clusterctx.Context{writer=%d head=%s}", c.writer, c.HeadRevision())
}
