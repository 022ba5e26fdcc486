package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"docstore/pkg/docerrors"
	"docstore/pkg/previous"
	"docstore/pkg/revision"
	"docstore/pkg/revmap"
)

// systemMapOrder fixes the emission order of system maps in AsString's
// output, purely for readability; parsing does not depend on it.
var systemMapOrder = []string{
	KeyRevisions, KeyCommitRoot, KeyDeleted, KeyLastRev,
	KeyBranchCommit, KeySweepRev, KeyCollisions,
}

// AsString renders doc into its deterministic wire form: a JSON object
// with every revision-keyed map written in descending stable order and
// every other key written in a fixed, sorted order, so that two calls to
// AsString on documents with identical content always produce byte-
// identical output.
func AsString(doc *Document) string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true

	writeSep := func() {
		if !first {
			buf.WriteByte(',')
		}
		first = false
	}
	writeKey := func(k string) {
		writeSep()
		writeJSONValue(&buf, k)
		buf.WriteByte(':')
	}

	writeKey(KeyID)
	writeJSONValue(&buf, doc.id)

	scalarKeys := make([]string, 0, len(doc.scalars))
	for k := range doc.scalars {
		scalarKeys = append(scalarKeys, k)
	}
	sort.Strings(scalarKeys)
	for _, k := range scalarKeys {
		writeKey(k)
		writeJSONValue(&buf, doc.scalars[k])
	}

	for _, k := range systemMapOrder {
		m, ok := doc.maps[k]
		if !ok || m.IsEmpty() {
			continue
		}
		writeKey(k)
		writeRevisionMapObject(&buf, m.Entries())
	}

	if len(doc.rawPrevious) > 0 {
		writeKey(KeyPrevious)
		writePreviousObject(&buf, doc.rawPrevious)
	}
	if len(doc.rawStalePrev) > 0 {
		writeKey(KeyStalePrev)
		writeStalePrevObject(&buf, doc.rawStalePrev)
	}

	propKeys := doc.PropertyKeys()
	for _, k := range propKeys {
		m := doc.maps[k]
		if m.IsEmpty() {
			continue
		}
		writeKey(k)
		writeRevisionMapObject(&buf, m.Entries())
	}

	buf.WriteByte('}')
	return buf.String()
}

func writeJSONValue(buf *bytes.Buffer, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		// Values only ever come from SetScalar/SetMapEntry callers within
		// this module, all of which pass JSON-marshalable primitives.
		panic(fmt.Sprintf("document: unmarshalable value %v: %v", v, err))
	}
	buf.Write(b)
}

func writeRevisionMapObject(buf *bytes.Buffer, entries []revmap.Entry[interface{}]) {
	buf.WriteByte('{')
	for i, e := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONValue(buf, e.Rev.String())
		buf.WriteByte(':')
		writeJSONValue(buf, e.Value)
	}
	buf.WriteByte('}')
}

func writePreviousObject(buf *bytes.Buffer, ranges map[revision.Revision]previous.Range) {
	highs := make([]revision.Revision, 0, len(ranges))
	for h := range ranges {
		highs = append(highs, h)
	}
	sort.Slice(highs, func(i, j int) bool { return revision.CompareStable(highs[i], highs[j]) > 0 })
	buf.WriteByte('{')
	for i, h := range highs {
		if i > 0 {
			buf.WriteByte(',')
		}
		rng := ranges[h]
		writeJSONValue(buf, h.String())
		buf.WriteByte(':')
		writeJSONValue(buf, rng.Low.String()+"/"+strconv.Itoa(rng.Height))
	}
	buf.WriteByte('}')
}

func writeStalePrevObject(buf *bytes.Buffer, stale map[revision.Revision]int) {
	highs := make([]revision.Revision, 0, len(stale))
	for h := range stale {
		highs = append(highs, h)
	}
	sort.Slice(highs, func(i, j int) bool { return revision.CompareStable(highs[i], highs[j]) > 0 })
	buf.WriteByte('{')
	for i, h := range highs {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONValue(buf, h.String())
		buf.WriteByte(':')
		writeJSONValue(buf, stale[h])
	}
	buf.WriteByte('}')
}

// FromString parses the form AsString produces. Any structural deviation
// (not a JSON object, a map value of the wrong shape, an unparseable
// revision key) is a MalformedDocument error.
func FromString(s string) (*Document, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("document: %w: %v", docerrors.ErrMalformedDocument, err)
	}
	id, _ := raw[KeyID].(string)
	if id == "" {
		return nil, fmt.Errorf("document: missing _id: %w", docerrors.ErrMalformedDocument)
	}
	doc := New(id)

	for k, v := range raw {
		if k == KeyID {
			continue
		}
		switch k {
		case KeyPrevious:
			if err := decodePreviousField(doc, v); err != nil {
				return nil, err
			}
		case KeyStalePrev:
			if err := decodeStalePrevField(doc, v); err != nil {
				return nil, err
			}
		default:
			obj, isMap := v.(map[string]interface{})
			if !isMap {
				doc.SetScalar(k, normalizeScalar(v))
				continue
			}
			if err := decodeRevisionMapField(doc, k, obj); err != nil {
				return nil, err
			}
		}
	}
	return doc.Seal(), nil
}

func normalizeScalar(v interface{}) interface{} {
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return int64(f)
	}
	return v
}

func decodeRevisionMapField(doc *Document, key string, obj map[string]interface{}) error {
	for revStr, v := range obj {
		r, err := revision.Parse(revStr)
		if err != nil {
			return fmt.Errorf("document: %s entry %q: %w", key, revStr, docerrors.ErrMalformedDocument)
		}
		doc.SetMapEntry(key, r, normalizeMapValue(key, v))
	}
	return nil
}

func normalizeMapValue(key string, v interface{}) interface{} {
	switch key {
	case KeyDeleted:
		if s, ok := v.(string); ok {
			return s == "true"
		}
	case KeyCommitRoot:
		return normalizeScalar(v)
	}
	return v
}

func decodePreviousField(doc *Document, v interface{}) error {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return fmt.Errorf("document: _prev is not an object: %w", docerrors.ErrMalformedDocument)
	}
	for highStr, raw := range obj {
		high, err := revision.Parse(highStr)
		if err != nil {
			return fmt.Errorf("document: _prev key %q: %w", highStr, docerrors.ErrMalformedDocument)
		}
		s, ok := raw.(string)
		if !ok {
			return fmt.Errorf("document: _prev value for %q is not a string: %w", highStr, docerrors.ErrMalformedDocument)
		}
		idx := strings.LastIndex(s, "/")
		if idx < 0 {
			return fmt.Errorf("document: malformed _prev value %q: %w", s, docerrors.ErrMalformedDocument)
		}
		low, err := revision.Parse(s[:idx])
		if err != nil {
			return fmt.Errorf("document: _prev low revision %q: %w", s[:idx], docerrors.ErrMalformedDocument)
		}
		height, err := strconv.Atoi(s[idx+1:])
		if err != nil {
			return fmt.Errorf("document: _prev height %q: %w", s[idx+1:], docerrors.ErrMalformedDocument)
		}
		doc.SetPreviousRange(previous.Range{High: high, Low: low, Height: height})
	}
	return nil
}

func decodeStalePrevField(doc *Document, v interface{}) error {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return fmt.Errorf("document: _stalePrev is not an object: %w", docerrors.ErrMalformedDocument)
	}
	for highStr, raw := range obj {
		high, err := revision.Parse(highStr)
		if err != nil {
			return fmt.Errorf("document: _stalePrev key %q: %w", highStr, docerrors.ErrMalformedDocument)
		}
		f, ok := raw.(float64)
		if !ok {
			return fmt.Errorf("document: _stalePrev height for %q is not a number: %w", highStr, docerrors.ErrMalformedDocument)
		}
		doc.SetStalePrev(high, int(f))
	}
	return nil
}
