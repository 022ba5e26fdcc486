package store

import "sync"

// PrevNoPropCache records, for a (previous document id, property key)
// pair, that the previous document is known to hold no entries for that
// property at all. It is safe to evict at any time: a false negative
// only costs a redundant load, never an incorrect read. Process-wide
// rather than caller-scoped, since the fact it records never goes stale
// for an immutable previous document.
type PrevNoPropCache struct {
	m sync.Map // key: docID + "\x00" + property -> struct{}
}

func prevNoPropKey(docID, property string) string {
	return docID + "\x00" + property
}

// Known reports whether docID is already known to have no entries for
// property.
func (c *PrevNoPropCache) Known(docID, property string) bool {
	_, ok := c.m.Load(prevNoPropKey(docID, property))
	return ok
}

// Mark records that docID has no entries for property.
func (c *PrevNoPropCache) Mark(docID, property string) {
	c.m.Store(prevNoPropKey(docID, property), struct{}{})
}

// Evict drops any recorded fact about docID/property. Safe to call even
// if nothing was recorded.
func (c *PrevNoPropCache) Evict(docID, property string) {
	c.m.Delete(prevNoPropKey(docID, property))
}
