package document

import (
	"testing"

	"docstore/pkg/revision"
)

func TestSetScalarChange(t *testing.T) {
	op := NewUpdateOp("1:/a").SetScalar(KeyChildren, true)
	if len(op.Changes) != 1 {
		t.Fatalf("len(Changes) = %d, want 1", len(op.Changes))
	}
	c := op.Changes[0]
	if c.Key != KeyChildren || c.Op != Set || c.Value != true {
		t.Fatalf("Changes[0] = %+v", c)
	}
}

func TestSetRevisionHelper(t *testing.T) {
	r := revision.New(100, 0, 1)
	op := NewUpdateOp("1:/a").SetRevision(r, "c")
	c := op.Changes[0]
	if c.Key != KeyRevisions || c.MapKey != r.String() || c.Op != SetMapEntry || c.Value != "c" {
		t.Fatalf("SetRevision change = %+v", c)
	}
}

func TestSetDeletedAlsoSetsDeletedOnce(t *testing.T) {
	r := revision.New(1, 0, 1)
	op := NewUpdateOp("1:/a").SetDeleted(r, true)
	if len(op.Changes) != 2 {
		t.Fatalf("len(Changes) = %d, want 2 (entry + sticky flag)", len(op.Changes))
	}
	if op.Changes[1].Key != KeyDeletedOnce || op.Changes[1].Value != true {
		t.Fatalf("Changes[1] = %+v, want _deletedOnce=true", op.Changes[1])
	}
}

func TestSetDeletedFalseSkipsStickyFlag(t *testing.T) {
	r := revision.New(1, 0, 1)
	op := NewUpdateOp("1:/a").SetDeleted(r, false)
	if len(op.Changes) != 1 {
		t.Fatalf("len(Changes) = %d, want 1 (entry only)", len(op.Changes))
	}
}

func TestSetPreviousEncoding(t *testing.T) {
	high := revision.New(100, 0, 1)
	low := revision.New(50, 0, 1)
	op := NewUpdateOp("1:/a").SetPrevious(high, low, 2)
	c := op.Changes[0]
	if c.Key != KeyPrevious || c.MapKey != high.String() || c.Value != low.String()+"/2" {
		t.Fatalf("SetPrevious change = %+v", c)
	}
}

func TestSetLastRevUsesSentinelKey(t *testing.T) {
	r := revision.New(100, 0, 7)
	op := NewUpdateOp("1:/a").SetLastRev(r)
	c := op.Changes[0]
	wantKey := revision.New(0, 0, 7).String()
	if c.Key != KeyLastRev || c.MapKey != wantKey || c.Value != r.String() {
		t.Fatalf("SetLastRev change = %+v, want key %q", c, wantKey)
	}
}

func TestSetModifiedFloorsToBucket(t *testing.T) {
	r := revision.New(12345*1000, 0, 1) // 12345 seconds
	op := NewUpdateOp("1:/a").SetModified(r)
	c := op.Changes[0]
	wantBucket := int64((12345 / ModifiedResolutionSeconds) * ModifiedResolutionSeconds)
	if c.Key != KeyModified || c.Op != Max || c.Value != wantBucket {
		t.Fatalf("SetModified change = %+v, want bucket %d", c, wantBucket)
	}
}

func TestAddAndRemoveCollision(t *testing.T) {
	r := revision.New(1, 0, 1)
	op := NewUpdateOp("1:/a").AddCollision(r)
	if op.Changes[0].Op != SetMapEntry || op.Changes[0].Key != KeyCollisions {
		t.Fatalf("AddCollision change = %+v", op.Changes[0])
	}
	op2 := NewUpdateOp("1:/a").RemoveCollision(r)
	if op2.Changes[0].Op != RemoveMapEntry {
		t.Fatalf("RemoveCollision change = %+v", op2.Changes[0])
	}
}

func TestEqualsPreconditionHelpers(t *testing.T) {
	op := NewUpdateOp("1:/a").EqualsScalar(KeyChildren, true).EqualsEntry("title", "r", "v")
	if op.Changes[0].Op != Equals || op.Changes[1].Op != Equals {
		t.Fatalf("Changes = %+v, want both Equals", op.Changes)
	}
}

func TestChainedChangesAccumulate(t *testing.T) {
	r := revision.New(1, 0, 1)
	op := NewUpdateOp("1:/a").
		SetScalar(KeyChildren, true).
		SetRevision(r, "c").
		RemoveCommitRoot(r)
	if len(op.Changes) != 3 {
		t.Fatalf("len(Changes) = %d, want 3", len(op.Changes))
	}
}
