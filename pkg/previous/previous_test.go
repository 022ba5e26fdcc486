package previous

import (
	"testing"

	"docstore/pkg/revision"
)

func TestBuildIndexDropsExactStale(t *testing.T) {
	high := revision.New(100, 0, 1)
	low := revision.New(50, 0, 1)
	raw := map[revision.Revision]Range{high: {High: high, Low: low, Height: 0}}
	stale := map[revision.Revision]int{high: 0}

	idx := BuildIndex(raw, stale)
	if !idx.Empty() {
		t.Fatalf("expected stale-marked range to be dropped, got %v", idx.Values())
	}
}

func TestBuildIndexKeepsMismatchedStaleHeight(t *testing.T) {
	high := revision.New(100, 0, 1)
	low := revision.New(50, 0, 1)
	raw := map[revision.Revision]Range{high: {High: high, Low: low, Height: 1}}
	stale := map[revision.Revision]int{high: 0} // stale marker names height 0, but live entry is height 1

	idx := BuildIndex(raw, stale)
	if idx.Empty() {
		t.Fatal("expected mismatched-height stale marker to leave the range live")
	}
}

func TestIndexFloorEntryAndHeadMap(t *testing.T) {
	r1 := Range{High: revision.New(100, 0, 1), Low: revision.New(50, 0, 1), Height: 0}
	r2 := Range{High: revision.New(200, 0, 1), Low: revision.New(150, 0, 1), Height: 0}
	idx := BuildIndex(map[revision.Revision]Range{r1.High: r1, r2.High: r2}, nil)

	floor, ok := idx.FloorEntry(revision.New(120, 0, 1))
	if !ok || floor.High != r1.High {
		t.Fatalf("FloorEntry(120) = %v, %v, want r1", floor, ok)
	}

	head := idx.HeadMap(revision.New(100, 0, 1))
	if len(head) != 1 || head[0].High != r2.High {
		t.Fatalf("HeadMap(100) = %v, want just r2", head)
	}
}

func TestRangeIncludes(t *testing.T) {
	r := Range{High: revision.New(100, 0, 1), Low: revision.New(50, 0, 1), Height: 0}
	if !r.Includes(revision.New(75, 0, 1)) {
		t.Error("expected 75 to be included in [50,100]")
	}
	if r.Includes(revision.New(75, 0, 2)) {
		t.Error("a different writer's revision must never be included")
	}
	if r.Includes(revision.New(200, 0, 1)) {
		t.Error("a revision above High must not be included")
	}
}

func TestIndexForWriter(t *testing.T) {
	r1 := Range{High: revision.New(100, 0, 1), Low: revision.New(50, 0, 1)}
	r2 := Range{High: revision.New(100, 0, 2), Low: revision.New(50, 0, 2)}
	idx := BuildIndex(map[revision.Revision]Range{r1.High: r1, r2.High: r2}, nil)

	for _, w := range []revision.WriterID{1, 2} {
		got := idx.ForWriter(w)
		if len(got) != 1 || got[0].Writer() != w {
			t.Fatalf("ForWriter(%d) = %v", w, got)
		}
	}
}
