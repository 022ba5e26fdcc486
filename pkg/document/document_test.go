package document

import (
	"testing"

	"docstore/pkg/previous"
	"docstore/pkg/revision"
)

func TestSetScalarAndSeal(t *testing.T) {
	d := New("1:/a")
	d.SetScalar(KeyPath, "/a")
	d.SetScalar(KeyChildren, true)
	d.Seal()

	if d.Path() != "/a" {
		t.Errorf("Path() = %q", d.Path())
	}
	if !d.HasChildren() {
		t.Error("expected HasChildren true")
	}
}

func TestMutationAfterSealPanics(t *testing.T) {
	d := New("1:/a").Seal()
	defer func() {
		if recover() == nil {
			t.Error("expected panic mutating a sealed document")
		}
	}()
	d.SetScalar(KeyPath, "/a")
}

func TestSetMapEntryAndRevisionMap(t *testing.T) {
	d := New("1:/a")
	r1 := revision.New(100, 0, 1)
	r2 := revision.New(200, 0, 1)
	d.SetMapEntry("title", r1, "old")
	d.SetMapEntry("title", r2, "new")
	d.Seal()

	m := d.RevisionMap("title")
	if m.Len() != 2 {
		t.Fatalf("RevisionMap len = %d, want 2", m.Len())
	}
	entries := m.Entries()
	if entries[0].Rev != r2 {
		t.Fatalf("expected descending order, got head %v", entries[0].Rev)
	}
}

func TestHasMap(t *testing.T) {
	d := New("1:/a")
	if d.HasMap("title") {
		t.Error("expected HasMap false for an absent field")
	}
	d.SetMapEntry("title", revision.New(1, 0, 1), "x")
	if !d.HasMap("title") {
		t.Error("expected HasMap true once an entry is set")
	}
}

func TestDeleteMapEntry(t *testing.T) {
	d := New("1:/a")
	r := revision.New(1, 0, 1)
	d.SetMapEntry("title", r, "x")
	d.DeleteMapEntry("title", r)
	if d.HasMap("title") {
		t.Error("expected entry to be gone after DeleteMapEntry")
	}
}

func TestHasBinary(t *testing.T) {
	d := New("1:/a")
	d.SetScalar(KeyHasBinary, HasBinaryValue)
	d.Seal()
	if !d.HasBinary() {
		t.Error("expected HasBinary true")
	}
}

func TestWasDeletedOnce(t *testing.T) {
	d := New("1:/a")
	d.Seal()
	if d.WasDeletedOnce() {
		t.Error("expected false with no _deletedOnce field")
	}
}

func TestModifiedSince(t *testing.T) {
	d := New("1:/a")
	d.SetScalar(KeyModified, int64(1000))
	d.Seal()

	if !d.ModifiedSince(1000) {
		t.Error("expected ModifiedSince(1000) true when bucket == 1000")
	}
	if d.ModifiedSince(1001) {
		t.Error("expected ModifiedSince(1001) false when bucket < 1001")
	}

	fresh := New("2:/b").Seal()
	if fresh.ModifiedSince(0) {
		t.Error("a document with no _modified field must never report modified")
	}
}

func TestAllRevisionsBefore(t *testing.T) {
	d := New("1:/a")
	d.SetMapEntry(KeyRevisions, revision.New(100, 0, 1), "c")
	d.Seal()

	if !d.AllRevisionsBefore(revision.New(200, 0, 1)) {
		t.Error("expected all revisions to be before 200")
	}
	if d.AllRevisionsBefore(revision.New(50, 0, 1)) {
		t.Error("expected false since a revision is not before 50")
	}

	empty := New("2:/b").Seal()
	if !empty.AllRevisionsBefore(revision.New(1, 0, 1)) {
		t.Error("an empty _revisions map should trivially satisfy AllRevisionsBefore")
	}
}

func TestSplitTypeDefaultsToNone(t *testing.T) {
	d := New("1:/a").Seal()
	st, err := d.SplitType()
	if err != nil || st != SplitTypeNone {
		t.Fatalf("SplitType() = %v, %v, want SplitTypeNone, nil", st, err)
	}
}

func TestSplitTypeRejectsUnknownCode(t *testing.T) {
	d := New("1:/a")
	d.SetScalar(KeySplitType, int64(999))
	d.Seal()
	if _, err := d.SplitType(); err == nil {
		t.Error("expected error decoding an unknown split type code")
	}
}

func TestLastRevisionsDecoding(t *testing.T) {
	d := New("1:/a")
	rev := revision.New(100, 0, 1)
	d.SetMapEntry(KeyLastRev, revision.New(0, 0, 1), rev.String())
	d.Seal()

	got := d.LastRevisions()
	if got[1] != rev {
		t.Fatalf("LastRevisions()[1] = %v, want %v", got[1], rev)
	}
}

func TestCollisionsDescending(t *testing.T) {
	d := New("1:/a")
	r1 := revision.New(100, 0, 1)
	r2 := revision.New(200, 0, 1)
	d.SetMapEntry(KeyCollisions, r1, true)
	d.SetMapEntry(KeyCollisions, r2, true)
	d.Seal()

	got := d.Collisions()
	if len(got) != 2 || got[0] != r2 {
		t.Fatalf("Collisions() = %v, want [%v, %v]", got, r2, r1)
	}
}

func TestPreviousIndexCaching(t *testing.T) {
	d := New("1:/a")
	high := revision.New(100, 0, 1)
	low := revision.New(50, 0, 1)
	d.SetPreviousRange(previous.Range{High: high, Low: low, Height: 0})
	d.Seal()

	idx1 := d.PreviousIndex()
	idx2 := d.PreviousIndex()
	if idx1.Empty() || idx2.Empty() {
		t.Fatal("expected a non-empty previous index")
	}
}

func TestDeletedEntriesCoercesBool(t *testing.T) {
	d := New("1:/a")
	r := revision.New(1, 0, 1)
	d.SetMapEntry(KeyDeleted, r, "true")
	d.Seal()

	entries := d.DeletedEntries()
	if len(entries) != 1 || entries[0].Value != true {
		t.Fatalf("DeletedEntries() = %v, want [true]", entries)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	d := New("1:/a")
	d.SetScalar(KeyPath, "/a")
	d.SetMapEntry("title", revision.New(1, 0, 1), "x")
	d.Seal()

	clone := d.Clone()
	clone.SetMapEntry("title", revision.New(2, 0, 1), "y")

	if d.RevisionMap("title").Len() != 1 {
		t.Fatalf("original mutated by clone, len = %d", d.RevisionMap("title").Len())
	}
	if clone.RevisionMap("title").Len() != 2 {
		t.Fatalf("clone len = %d, want 2", clone.RevisionMap("title").Len())
	}
}

func TestPropertyKeysExcludesSystemKeys(t *testing.T) {
	d := New("1:/a")
	d.SetMapEntry("title", revision.New(1, 0, 1), "x")
	d.SetMapEntry(KeyRevisions, revision.New(1, 0, 1), "c")
	d.Seal()

	keys := d.PropertyKeys()
	if len(keys) != 1 || keys[0] != "title" {
		t.Fatalf("PropertyKeys() = %v, want [title]", keys)
	}
}
