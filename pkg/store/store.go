// Package store implements DocumentStore against Pebble: the collection
// abstraction other packages in this module use to find documents and
// apply UpdateOps to them. Grounded on the teacher's pkg/store/pebble.go
// (global handle, Open/Close/Ready, db.Get/db.Set/NewIter idioms), now
// storing serialized document.Document blobs keyed by document id
// instead of thread/message JSON, and applying UpdateOp changes with
// EQUALS preconditions realized as a read-check-write under a per-id
// lock, since Pebble itself has no native compare-and-swap.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"docstore/pkg/document"
	"docstore/pkg/logger"
	"docstore/pkg/metrics"
)

// Store is a Pebble-backed DocumentStore.
type Store struct {
	db   *pebble.DB
	path string

	// Metrics is optional; when set, Find and FindAndUpdate report cache
	// and latency counters through it.
	Metrics *metrics.Metrics

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	cacheMu sync.RWMutex
	cache   map[string]*document.Document

	prevNoProp PrevNoPropCache
}

// Open opens (or creates) a Pebble database at path.
func Open(path string) (*Store, error) {
	logger.Log.Info("opening_pebble_db", zap.String("path", path))
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Log.Error("pebble_open_failed", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	logger.Log.Info("pebble_opened", zap.String("path", path))
	return &Store{
		db:    db,
		path:  path,
		locks: make(map[string]*sync.Mutex),
		cache: make(map[string]*document.Document),
	}, nil
}

// Close closes the underlying Pebble database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	s.db = nil
	logger.Log.Info("pebble_closed")
	return nil
}

// Ready reports whether the store has an open database handle.
func (s *Store) Ready() bool { return s.db != nil }

func (s *Store) lockFor(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// GetIfCached returns a document from the process-local read cache
// without touching Pebble, the fast path most reads should take once a
// document has been loaded once.
func (s *Store) GetIfCached(id string) (*document.Document, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	doc, ok := s.cache[id]
	return doc, ok
}

// InvalidateCache drops id from the read cache, forcing the next Find to
// hit Pebble.
func (s *Store) InvalidateCache(id string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	delete(s.cache, id)
}

func (s *Store) putCache(doc *document.Document) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cache[doc.ID()] = doc
}

// Find loads a document by id, consulting the cache first.
func (s *Store) Find(ctx context.Context, id string) (*document.Document, bool, error) {
	start := time.Now()
	defer func() {
		if s.Metrics != nil {
			metrics.ObserveSince(s.Metrics.FindDuration, start)
		}
	}()

	if doc, ok := s.GetIfCached(id); ok {
		if s.Metrics != nil {
			s.Metrics.StoreCacheHits.Inc()
		}
		return doc, true, nil
	}
	if s.Metrics != nil {
		s.Metrics.StoreCacheMisses.Inc()
	}
	return s.findFromStore(id)
}

func (s *Store) findFromStore(id string) (*document.Document, bool, error) {
	if s.db == nil {
		return nil, false, fmt.Errorf("store: not opened")
	}
	val, closer, err := s.db.Get([]byte(id))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: get %q: %w", id, err)
	}
	blob := append([]byte(nil), val...)
	_ = closer.Close()

	doc, err := document.FromString(string(blob))
	if err != nil {
		return nil, false, err
	}
	s.putCache(doc)
	return doc, true, nil
}

// FindAndUpdate applies op to the document it targets, retrying nothing
// itself: the per-id lock serializes concurrent updates to the same
// document from within this process, and Equals changes act as the
// optimistic precondition against whatever value Pebble currently holds.
// It returns the document as it existed *before* the update, matching
// the convention the newest-revision / conflict machinery relies on to
// see the prior state.
func (s *Store) FindAndUpdate(ctx context.Context, op *document.UpdateOp) (*document.Document, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store: not opened")
	}
	start := time.Now()
	defer func() {
		if s.Metrics != nil {
			metrics.ObserveSince(s.Metrics.CommitDuration, start)
		}
	}()

	lock := s.lockFor(op.ID)
	lock.Lock()
	defer lock.Unlock()

	before, found, err := s.findFromStore(op.ID)
	if err != nil {
		return nil, err
	}

	if op.IsDelete {
		if err := s.db.Delete([]byte(op.ID), pebble.Sync); err != nil {
			return nil, fmt.Errorf("store: delete %q: %w", op.ID, err)
		}
		s.InvalidateCache(op.ID)
		return before, nil
	}

	if !found {
		if !op.IsNew {
			return nil, fmt.Errorf("store: update of nonexistent document %q", op.ID)
		}
		before = document.New(op.ID)
	}

	working := before.Clone()
	if err := checkPreconditions(before, op); err != nil {
		return before, err
	}
	for _, c := range op.Changes {
		if c.Op == document.Equals {
			continue
		}
		applyChange(working, c)
	}
	working.Seal()

	if err := s.db.Set([]byte(op.ID), []byte(document.AsString(working)), pebble.Sync); err != nil {
		return nil, fmt.Errorf("store: set %q: %w", op.ID, err)
	}
	s.putCache(working)
	logger.Log.Debug("document_updated", zap.String("id", op.ID))
	return before, nil
}

// CreatePrevious stores a previous document that was never local, used
// by the maintenance sweep to persist the output of pkg/split.Split.
func (s *Store) CreatePrevious(ctx context.Context, doc *document.Document) error {
	if s.db == nil {
		return fmt.Errorf("store: not opened")
	}
	if err := s.db.Set([]byte(doc.ID()), []byte(document.AsString(doc)), pebble.Sync); err != nil {
		return fmt.Errorf("store: create previous %q: %w", doc.ID(), err)
	}
	s.putCache(doc)
	return nil
}

// PrevNoPropCache returns the store's process-wide cache of "this
// previous document has no entries for this property" negative results.
func (s *Store) PrevNoPropCache() *PrevNoPropCache { return &s.prevNoProp }

// Iterate calls fn once for every document in the store, main and
// previous alike, in ascending id order, stopping early if fn returns an
// error. Used by the maintenance sweep to find split candidates; not on
// any read or write hot path.
func (s *Store) Iterate(ctx context.Context, fn func(*document.Document) error) error {
	if s.db == nil {
		return fmt.Errorf("store: not opened")
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return fmt.Errorf("store: new iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		doc, err := document.FromString(string(iter.Value()))
		if err != nil {
			logger.Log.Warn("iterate_skip_malformed_document", zap.String("id", string(iter.Key())), zap.Error(err))
			continue
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return iter.Error()
}
