// Package valuemap implements the virtual, descending view of a
// property's full revision history: the local document's own map merged
// with every previous document that still holds older entries for the
// same property.
package valuemap

import (
	"context"
	"errors"
	"iter"

	"docstore/pkg/docerrors"
	"docstore/pkg/document"
	"docstore/pkg/previous"
	"docstore/pkg/revision"
)

// Loader loads a document by id, the same collaborator a DocumentStore
// provides to every other component in this module.
type Loader interface {
	Find(ctx context.Context, id string) (*document.Document, bool, error)
}

// ValueMap is a pull-based, lazily realized view over one property's
// history across a document and its previous-document chain. Values are
// never eagerly materialized: All only touches previous documents its
// caller actually iterates far enough to need.
type ValueMap struct {
	key      string
	doc      *document.Document
	loader   Loader
	silencer *docerrors.Silencer
}

// New builds a ValueMap over property/system key key on doc, using loader
// to resolve previous documents on demand. silencer may be nil, in which
// case missing previous documents are silently skipped without logging.
func New(key string, doc *document.Document, loader Loader, silencer *docerrors.Silencer) *ValueMap {
	return &ValueMap{key: key, doc: doc, loader: loader, silencer: silencer}
}

// All returns a pull iterator over (revision, value) pairs in descending
// stable order: the local document's own entries first, then each live
// previous range's contribution, recursively, in descending order of the
// range's High revision. Consumers may stop iterating at any point (for
// example once VisibilityEngine finds the first visible entry) without
// paying the cost of loading previous documents they never reach.
func (vm *ValueMap) All(ctx context.Context) iter.Seq2[revision.Revision, interface{}] {
	return func(yield func(revision.Revision, interface{}) bool) {
		vm.emit(ctx, vm.doc, yield)
	}
}

// emit yields doc's own local entries for vm.key, then recurses into
// doc's previous ranges. Recursion (rather than a single flat lookup per
// range) is required because intermediate previous documents hold no
// property data of their own, only further _prev pointers fanning out to
// the leaf previous documents that do.
func (vm *ValueMap) emit(ctx context.Context, doc *document.Document, yield func(revision.Revision, interface{}) bool) bool {
	for _, e := range doc.RevisionMap(vm.key).Entries() {
		if !yield(e.Rev, e.Value) {
			return false
		}
	}
	for _, rng := range doc.PreviousIndex().Values() {
		if !vm.emitRange(ctx, doc, rng, yield) {
			return false
		}
	}
	return true
}

func (vm *ValueMap) emitRange(ctx context.Context, main *document.Document, rng previous.Range, yield func(revision.Revision, interface{}) bool) bool {
	mainPath := main.Path()
	depth := document.PathDepth(mainPath)
	id := document.PreviousID(depth, mainPath, rng.High, rng.Height)

	prevDoc, found, err := vm.loader.Find(ctx, id)
	if err != nil || !found {
		if vm.silencer != nil {
			e := err
			if e == nil {
				e = docerrors.ErrMissingPreviousDocument
			}
			vm.silencer.Observe(ctx, id, errors.Join(docerrors.ErrMissingPreviousDocument, e))
		}
		return true
	}
	return vm.emit(ctx, prevDoc, yield)
}
