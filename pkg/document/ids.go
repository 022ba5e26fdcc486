package document

import (
	"fmt"
	"strconv"
	"strings"

	"docstore/pkg/revision"
)

// MinID and MaxID bound the id keyspace; a range scan from MinID to MaxID
// covers every document, main or previous.
const (
	MinID = "0000000"
	MaxID = ";"
)

// HasBinaryValue is the sentinel value stored under _bin when a document
// has at least one binary property.
const HasBinaryValue = 1

// MainID returns the id of the main document at path, encoded as
// "<depth>:<path>" where depth is the number of path segments from the
// root (the root itself has depth 0).
func MainID(depth int, path string) string {
	return fmt.Sprintf("%d:%s", depth, path)
}

// PreviousID returns the id of a previous document holding history for
// the main document at mainPath, encoded as
// "<depth+2>:p/<mainPath>/<high>/<height>" where depth is the main
// document's own depth. The "+2" keeps previous documents sorted after
// all main documents at the same nominal depth and after intermediate
// documents one level up.
func PreviousID(depth int, mainPath string, high revision.Revision, height int) string {
	return fmt.Sprintf("%d:p/%s/%s/%d", depth+2, mainPath, high.String(), height)
}

// IsPreviousID reports whether id names a previous document.
func IsPreviousID(id string) bool {
	_, rest, ok := splitDepth(id)
	if !ok {
		return false
	}
	return strings.HasPrefix(rest, "p/")
}

// ParsePreviousID decodes a previous document id back into its main path,
// high revision and height.
func ParsePreviousID(id string) (mainPath string, high revision.Revision, height int, err error) {
	_, rest, ok := splitDepth(id)
	if !ok || !strings.HasPrefix(rest, "p/") {
		return "", revision.Revision{}, 0, fmt.Errorf("document: not a previous document id %q", id)
	}
	rest = strings.TrimPrefix(rest, "p/")
	idx := strings.LastIndex(rest, "/")
	if idx < 0 {
		return "", revision.Revision{}, 0, fmt.Errorf("document: malformed previous document id %q", id)
	}
	heightStr := rest[idx+1:]
	rest = rest[:idx]
	idx = strings.LastIndex(rest, "/")
	if idx < 0 {
		return "", revision.Revision{}, 0, fmt.Errorf("document: malformed previous document id %q", id)
	}
	highStr := rest[idx+1:]
	mainPath = rest[:idx]

	high, err = revision.Parse(highStr)
	if err != nil {
		return "", revision.Revision{}, 0, err
	}
	height, err = strconv.Atoi(heightStr)
	if err != nil {
		return "", revision.Revision{}, 0, fmt.Errorf("document: malformed previous document height in %q: %w", id, err)
	}
	return mainPath, high, height, nil
}

// Depth returns the depth prefix of id.
func Depth(id string) (int, bool) {
	d, _, ok := splitDepth(id)
	return d, ok
}

// Path returns the path portion of a main document id (unused for
// previous ids, which carry a synthetic "p/..." path instead).
func Path(id string) (string, bool) {
	_, rest, ok := splitDepth(id)
	if !ok || strings.HasPrefix(rest, "p/") {
		return "", false
	}
	return rest, true
}

func splitDepth(id string) (depth int, rest string, ok bool) {
	idx := strings.Index(id, ":")
	if idx < 0 {
		return 0, "", false
	}
	d, err := strconv.Atoi(id[:idx])
	if err != nil {
		return 0, "", false
	}
	return d, id[idx+1:], true
}

// PathDepth returns the number of segments in path, the depth value used
// in MainID for a document at that path ("/" has depth 0).
func PathDepth(path string) int {
	if path == "/" || path == "" {
		return 0
	}
	return strings.Count(strings.Trim(path, "/"), "/") + 1
}

// AncestorPath truncates path to its first depth segments from the root,
// the path of the ancestor a _commitRoot depth value points at.
func AncestorPath(path string, depth int) string {
	if depth <= 0 || path == "/" || path == "" {
		return "/"
	}
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if depth > len(segs) {
		depth = len(segs)
	}
	return "/" + strings.Join(segs[:depth], "/")
}

// AncestorID returns the main document id of the ancestor of path at
// depth, the document a _commitRoot indirection points at.
func AncestorID(path string, depth int) string {
	return MainID(depth, AncestorPath(path, depth))
}
