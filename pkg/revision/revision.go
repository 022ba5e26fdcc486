// Package revision implements the Revision and RevisionVector types that
// identify a single writer's commit and a multi-writer read position,
// respectively.
package revision

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"docstore/pkg/docerrors"
)

// WriterID identifies the cluster member that created a Revision. Called
// "clusterId" in the original system this engine is modeled on.
type WriterID uint32

// Revision is an immutable (timestamp_ms, counter, writer_id) triple with a
// branch flag. Two revisions with the same triple but different branch
// flags are the trunk and branch views of the same logical commit.
type Revision struct {
	TimestampMs int64
	Counter     uint32
	Writer      WriterID
	Branch      bool
}

// New builds a Revision. Use AsBranch to mark it as a branch-local commit.
func New(timestampMs int64, counter uint32, writer WriterID) Revision {
	return Revision{TimestampMs: timestampMs, Counter: counter, Writer: writer}
}

// AsTrunk returns r with the branch flag cleared.
func (r Revision) AsTrunk() Revision {
	r.Branch = false
	return r
}

// AsBranch returns r with the branch flag set.
func (r Revision) AsBranch() Revision {
	r.Branch = true
	return r
}

// IsZero reports whether r is the zero Revision, used as a "no entry"
// sentinel in maps keyed by WriterID.
func (r Revision) IsZero() bool {
	return r.TimestampMs == 0 && r.Counter == 0 && r.Writer == 0 && !r.Branch
}

// String encodes r as "<ts_hex>-<counter_hex>-<writer_hex>", prefixed with
// "b" when r is a branch revision. This is the exact wire form used in
// document system maps and commit values.
func (r Revision) String() string {
	s := fmt.Sprintf("%x-%x-%x", r.TimestampMs, r.Counter, uint32(r.Writer))
	if r.Branch {
		return "b" + s
	}
	return s
}

var revisionPattern = regexp.MustCompile(`^(b)?([0-9a-fA-F]+)-([0-9a-fA-F]+)-([0-9a-fA-F]+)$`)

// Parse parses the wire form produced by String. Any deviation from the
// exact format is a MalformedRevision error.
func Parse(s string) (Revision, error) {
	m := revisionPattern.FindStringSubmatch(s)
	if m == nil {
		return Revision{}, fmt.Errorf("revision: malformed revision %q: %w", s, docerrors.ErrMalformedRevision)
	}
	ts, err := strconv.ParseInt(m[2], 16, 64)
	if err != nil {
		return Revision{}, fmt.Errorf("revision: malformed timestamp in %q: %w", s, docerrors.ErrMalformedRevision)
	}
	counter, err := strconv.ParseUint(m[3], 16, 32)
	if err != nil {
		return Revision{}, fmt.Errorf("revision: malformed counter in %q: %w", s, docerrors.ErrMalformedRevision)
	}
	writer, err := strconv.ParseUint(m[4], 16, 32)
	if err != nil {
		return Revision{}, fmt.Errorf("revision: malformed writer id in %q: %w", s, docerrors.ErrMalformedRevision)
	}
	return Revision{
		TimestampMs: ts,
		Counter:     uint32(counter),
		Writer:      WriterID(writer),
		Branch:      m[1] == "b",
	}, nil
}

// MustParse is Parse, panicking on error. Used in tests and constant setup.
func MustParse(s string) Revision {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return r
}

// CompareStable implements the stable total order over revisions:
// lexicographic on (timestamp_ms, counter, writer_id), ignoring the branch
// flag. Every revision-keyed map in this module iterates in descending
// CompareStable order.
func CompareStable(a, b Revision) int {
	switch {
	case a.TimestampMs != b.TimestampMs:
		return cmpInt64(a.TimestampMs, b.TimestampMs)
	case a.Counter != b.Counter:
		return cmpUint32(a.Counter, b.Counter)
	default:
		return cmpUint32(uint32(a.Writer), uint32(b.Writer))
	}
}

// CompareBranchAware extends CompareStable by treating the trunk view of a
// commit as older than its branch view when the (timestamp, counter,
// writer) triple is otherwise identical. A branch commit has not merged
// yet, so it sorts after the trunk revision that represents its eventual
// merge point.
func CompareBranchAware(a, b Revision) int {
	if c := CompareStable(a, b); c != 0 {
		return c
	}
	if a.Branch == b.Branch {
		return 0
	}
	if a.Branch {
		return 1
	}
	return -1
}

// Less reports whether a sorts strictly before b in stable order.
func Less(a, b Revision) bool { return CompareStable(a, b) < 0 }

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpUint32(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// IsHex reports whether s only contains hexadecimal digits; exposed for
// callers validating document ids that embed revision strings.
func IsHex(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return !strings.ContainsRune("0123456789abcdefABCDEF", r)
	}) == -1
}
