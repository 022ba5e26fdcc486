package revision

import "testing"

func TestStringParseRoundTrip(t *testing.T) {
	r := New(1700000000000, 7, 42)
	s := r.String()
	got, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q) = %v", s, err)
	}
	if got != r {
		t.Fatalf("round trip = %+v, want %+v", got, r)
	}
}

func TestStringBranchPrefix(t *testing.T) {
	r := New(1, 0, 1).AsBranch()
	s := r.String()
	if s[0] != 'b' {
		t.Fatalf("String() = %q, want leading 'b'", s)
	}
	got, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q) = %v", s, err)
	}
	if !got.Branch {
		t.Fatalf("Parse(%q).Branch = false, want true", s)
	}
}

func TestParseMalformed(t *testing.T) {
	for _, s := range []string{"", "not-a-revision", "1-2", "g-0-0"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", s)
		}
	}
}

func TestCompareStableOrdering(t *testing.T) {
	a := New(100, 0, 1)
	b := New(100, 1, 1)
	c := New(200, 0, 1)
	if !Less(a, b) {
		t.Error("expected a < b on counter")
	}
	if !Less(b, c) {
		t.Error("expected b < c on timestamp")
	}
	if CompareStable(a, a) != 0 {
		t.Error("expected a == a")
	}
}

func TestCompareStableIgnoresBranch(t *testing.T) {
	trunk := New(100, 0, 1)
	branch := trunk.AsBranch()
	if CompareStable(trunk, branch) != 0 {
		t.Error("CompareStable should ignore the branch flag")
	}
}

func TestCompareBranchAwareOrdersTrunkBeforeBranch(t *testing.T) {
	trunk := New(100, 0, 1)
	branch := trunk.AsBranch()
	if CompareBranchAware(trunk, branch) >= 0 {
		t.Error("expected trunk revision to sort before its branch view")
	}
	if CompareBranchAware(branch, trunk) <= 0 {
		t.Error("expected branch revision to sort after its trunk view")
	}
}

func TestIsZero(t *testing.T) {
	var zero Revision
	if !zero.IsZero() {
		t.Error("zero value should report IsZero")
	}
	if New(1, 0, 0).IsZero() {
		t.Error("non-zero timestamp should not report IsZero")
	}
}
