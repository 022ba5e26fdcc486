package store

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"docstore/pkg/document"
	"docstore/pkg/previous"
	"docstore/pkg/revision"
)

func parseLowHeight(high revision.Revision, s string) (previous.Range, bool) {
	idx := strings.LastIndex(s, "/")
	if idx < 0 {
		return previous.Range{}, false
	}
	low, err := revision.Parse(s[:idx])
	if err != nil {
		return previous.Range{}, false
	}
	height, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return previous.Range{}, false
	}
	return previous.Range{High: high, Low: low, Height: height}, true
}

// checkPreconditions validates every Equals change in op against before,
// the document as currently stored. A failing precondition means another
// writer changed the field since op's author last read it.
func checkPreconditions(before *document.Document, op *document.UpdateOp) error {
	for _, c := range op.Changes {
		if c.Op != document.Equals {
			continue
		}
		var current interface{}
		var ok bool
		if c.MapKey != "" {
			rev, err := revision.Parse(c.MapKey)
			if err != nil {
				return fmt.Errorf("store: precondition on %s has malformed map key %q: %w", c.Key, c.MapKey, err)
			}
			current, ok = before.RevisionMap(c.Key).Get(rev)
		} else {
			current, ok = before.Scalar(c.Key)
		}
		if !ok || !reflect.DeepEqual(current, c.Value) {
			return fmt.Errorf("store: precondition failed on document %q field %s", op.ID, c.Key)
		}
	}
	return nil
}

// applyChange mutates working in place for one non-precondition Change.
func applyChange(working *document.Document, c document.Change) {
	switch c.Key {
	case document.KeyPrevious:
		applyPreviousChange(working, c)
		return
	case document.KeyStalePrev:
		applyStalePrevChange(working, c)
		return
	}

	if c.MapKey == "" {
		applyScalarChange(working, c)
		return
	}

	rev, err := revision.Parse(c.MapKey)
	if err != nil {
		return // malformed map key on an already-validated op should not happen
	}
	switch c.Op {
	case document.SetMapEntry:
		working.SetMapEntry(c.Key, rev, c.Value)
	case document.RemoveMapEntry, document.UnsetMapEntry:
		working.DeleteMapEntry(c.Key, rev)
	}
}

func applyScalarChange(working *document.Document, c document.Change) {
	switch c.Op {
	case document.Set:
		working.SetScalar(c.Key, c.Value)
	case document.Max:
		current, ok := working.Scalar(c.Key)
		if !ok || less(current, c.Value) {
			working.SetScalar(c.Key, c.Value)
		}
	}
}

func less(a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af < bf
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func applyPreviousChange(working *document.Document, c document.Change) {
	high, err := revision.Parse(c.MapKey)
	if err != nil {
		return
	}
	switch c.Op {
	case document.SetMapEntry:
		s, _ := c.Value.(string)
		rng, ok := parseLowHeight(high, s)
		if ok {
			working.SetPreviousRange(rng)
		}
	case document.RemoveMapEntry, document.UnsetMapEntry:
		working.DeletePreviousRange(high)
	}
}

func applyStalePrevChange(working *document.Document, c document.Change) {
	high, err := revision.Parse(c.MapKey)
	if err != nil {
		return
	}
	switch c.Op {
	case document.SetMapEntry:
		if n, ok := toFloat(c.Value); ok {
			working.SetStalePrev(high, int(n))
		}
	}
}
