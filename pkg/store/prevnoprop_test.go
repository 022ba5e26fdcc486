package store

import "testing"

func TestPrevNoPropCacheMarkKnownEvict(t *testing.T) {
	var c PrevNoPropCache

	if c.Known("prev-1", "title") {
		t.Error("expected Known false before any Mark")
	}
	c.Mark("prev-1", "title")
	if !c.Known("prev-1", "title") {
		t.Error("expected Known true after Mark")
	}
	if c.Known("prev-1", "body") {
		t.Error("Mark should not affect an unrelated property key")
	}

	c.Evict("prev-1", "title")
	if c.Known("prev-1", "title") {
		t.Error("expected Known false after Evict")
	}
}

func TestPrevNoPropCacheEvictOfUnknownIsSafe(t *testing.T) {
	var c PrevNoPropCache
	c.Evict("never-marked", "title")
}
