package document

import (
	"testing"

	"docstore/pkg/previous"
	"docstore/pkg/revision"
)

func TestAsStringFromStringRoundTrip(t *testing.T) {
	d := New("1:/a")
	d.SetScalar(KeyPath, "/a")
	d.SetScalar(KeyChildren, true)
	r1 := revision.New(100, 0, 1)
	r2 := revision.New(200, 0, 1)
	d.SetMapEntry(KeyRevisions, r1, "c")
	d.SetMapEntry("title", r1, "old")
	d.SetMapEntry("title", r2, "new")
	d.SetPreviousRange(previous.Range{High: r2, Low: r1, Height: 0})
	d.Seal()

	s := AsString(d)
	got, err := FromString(s)
	if err != nil {
		t.Fatalf("FromString(%q) = %v", s, err)
	}

	if got.ID() != d.ID() || got.Path() != d.Path() || !got.HasChildren() {
		t.Fatalf("round trip lost scalars: %+v", got)
	}
	if got.RevisionMap("title").Len() != 2 {
		t.Fatalf("round trip lost property history: len = %d", got.RevisionMap("title").Len())
	}
	if got.PreviousIndex().Empty() {
		t.Fatal("round trip lost the previous-document index")
	}
}

func TestAsStringIsDeterministic(t *testing.T) {
	build := func() *Document {
		d := New("1:/a")
		d.SetScalar(KeyChildren, true)
		d.SetMapEntry("title", revision.New(1, 0, 1), "x")
		d.SetMapEntry("title", revision.New(2, 0, 1), "y")
		return d.Seal()
	}
	a := AsString(build())
	b := AsString(build())
	if a != b {
		t.Fatalf("AsString not deterministic:\n%s\nvs\n%s", a, b)
	}
}

func TestFromStringRejectsMissingID(t *testing.T) {
	if _, err := FromString(`{"_path":"/a"}`); err == nil {
		t.Error("expected error for a document with no _id")
	}
}

func TestFromStringRejectsMalformedJSON(t *testing.T) {
	if _, err := FromString(`not json`); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestFromStringRejectsMalformedRevisionKey(t *testing.T) {
	s := `{"_id":"1:/a","_revisions":{"not-a-revision":"c"}}`
	if _, err := FromString(s); err == nil {
		t.Error("expected error for a malformed revision key in a revision map")
	}
}

func TestFromStringRejectsMalformedPreviousValue(t *testing.T) {
	r := revision.New(1, 0, 1)
	s := `{"_id":"1:/a","_prev":{"` + r.String() + `":"no-slash-here"}}`
	if _, err := FromString(s); err == nil {
		t.Error("expected error for a _prev value missing its height suffix")
	}
}

func TestFromStringDecodesDeletedAsBool(t *testing.T) {
	r := revision.New(1, 0, 1)
	s := `{"_id":"1:/a","_deleted":{"` + r.String() + `":"true"}}`
	doc, err := FromString(s)
	if err != nil {
		t.Fatalf("FromString = %v", err)
	}
	entries := doc.DeletedEntries()
	if len(entries) != 1 || entries[0].Value != true {
		t.Fatalf("DeletedEntries() = %v, want [true]", entries)
	}
}

func TestFromStringNormalizesIntegerScalar(t *testing.T) {
	s := `{"_id":"1:/a","_modified":42}`
	doc, err := FromString(s)
	if err != nil {
		t.Fatalf("FromString = %v", err)
	}
	got, ok := doc.ModifiedInSeconds()
	if !ok || got != 42 {
		t.Fatalf("ModifiedInSeconds() = %v, %v, want 42, true", got, ok)
	}
}

func TestFromStringSealsResult(t *testing.T) {
	doc, err := FromString(`{"_id":"1:/a"}`)
	if err != nil {
		t.Fatalf("FromString = %v", err)
	}
	if !doc.IsSealed() {
		t.Error("FromString must return a sealed document")
	}
}
