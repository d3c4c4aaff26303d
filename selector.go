package protect

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
)

// selectorSeparator joins the table/column identity and path segments into a
// selector string. Two equal logical paths always produce byte-identical
// selectors; the engine compares selectors at rest, so this is load-bearing.
const selectorSeparator = "/"

// selectorLeaf pairs a selector with the plaintext leaf value found at that
// location during a containment walk. The leaf value is forwarded to the
// engine for term encryption; it never appears in the selector itself or in
// any error message.
type selectorLeaf struct {
	selector string
	value    any
}

// pathSegments converts a path expression into its segment list.
//
// A string path is split on "." (one piece per segment). A []string path is
// taken verbatim: each element is exactly one segment, literal dots included.
// The two shapes are deliberately distinct; ["user.email"] addresses a single
// key containing a dot, while "user.email" addresses two nested keys.
//
// Error messages name the column only, never the path content.
func pathSegments(col Column, path any) ([]string, error) {
	switch p := path.(type) {
	case string:
		if p == "" {
			return nil, validationErrorf(ValidationInvalidPath,
				"empty JSON path for %s", col.qualified())
		}
		segs := strings.Split(p, ".")
		for _, s := range segs {
			if s == "" {
				return nil, validationErrorf(ValidationInvalidPath,
					"malformed JSON path for %s (empty segment)", col.qualified())
			}
		}
		return segs, nil
	case []string:
		if len(p) == 0 {
			return nil, validationErrorf(ValidationInvalidPath,
				"empty JSON path for %s", col.qualified())
		}
		for _, s := range p {
			if s == "" {
				return nil, validationErrorf(ValidationInvalidPath,
					"malformed JSON path for %s (empty segment)", col.qualified())
			}
		}
		return slices.Clone(p), nil
	default:
		return nil, validationErrorf(ValidationInvalidPath,
			"unsupported JSON path type %T for %s (want string or []string)", path, col.qualified())
	}
}

// selectorFor builds the canonical selector string table/column/seg1/.../segN.
func selectorFor(col Column, segs []string) string {
	parts := make([]string, 0, len(segs)+2)
	parts = append(parts, col.table, col.name)
	parts = append(parts, segs...)
	return strings.Join(parts, selectorSeparator)
}

// requireSteVec rejects JSON query shapes against columns without the tree
// index. The remediation is part of the message; the path content is not.
func requireSteVec(col Column) error {
	if !col.HasIndex(IndexSteVec) {
		return validationErrorf(ValidationMissingIndex,
			"column %s has no ste_vec index; add ste_vec to the column's indexes to query JSON paths",
			col.qualified())
	}
	return nil
}

// flattenContainment walks a containment object depth-first and emits one
// (selector, leaf) pair per leaf. Recursion descends only through JSON
// objects; arrays and all scalars are leaves. The resulting group is
// encrypted by the engine as one atomic selector-vector.
//
// Key order is canonical and documented: json.RawMessage input is walked in
// document order, while decoded map[string]any input is walked in
// lexicographic key order (Go maps carry no insertion order to preserve).
func flattenContainment(col Column, v any) ([]selectorLeaf, error) {
	var leaves []selectorLeaf
	if err := walkContainment(col, v, nil, &leaves); err != nil {
		return nil, err
	}
	if len(leaves) == 0 {
		return nil, validationErrorf(ValidationInvalidPath,
			"containment object for %s has no leaves", col.qualified())
	}
	return leaves, nil
}

func walkContainment(col Column, v any, prefix []string, out *[]selectorLeaf) error {
	switch t := v.(type) {
	case json.RawMessage:
		return walkRawContainment(col, t, prefix, out)
	case []byte:
		return walkRawContainment(col, t, prefix, out)
	case map[string]any:
		if len(t) == 0 {
			return nil
		}
		for _, key := range sortedMapKeys(t) {
			next := append(slices.Clone(prefix), key)
			if err := walkContainment(col, t[key], next, out); err != nil {
				return err
			}
		}
		return nil
	case nil, bool, string,
		float32, float64,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		json.Number,
		[]any, []string, []float64, []int:
		*out = append(*out, selectorLeaf{selector: selectorFor(col, prefix), value: t})
		return nil
	default:
		return validationErrorf(ValidationInvalidInput,
			"unsupported containment value type %T for %s", v, col.qualified())
	}
}

// walkRawContainment walks raw JSON in document order, so callers that care
// about key order can pass the original bytes instead of a decoded map.
func walkRawContainment(col Column, raw []byte, prefix []string, out *[]selectorLeaf) error {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return validationErrorf(ValidationInvalidPath,
			"empty containment document for %s", col.qualified())
	}

	if trimmed[0] != '{' {
		// Non-object roots and nested non-objects are leaves.
		var leaf any
		if err := json.Unmarshal(trimmed, &leaf); err != nil {
			return validationErrorf(ValidationInvalidPath,
				"invalid containment document for %s", col.qualified())
		}
		*out = append(*out, selectorLeaf{selector: selectorFor(col, prefix), value: leaf})
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if _, err := dec.Token(); err != nil { // opening brace
		return validationErrorf(ValidationInvalidPath,
			"invalid containment document for %s", col.qualified())
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return validationErrorf(ValidationInvalidPath,
				"invalid containment document for %s", col.qualified())
		}
		key, ok := keyTok.(string)
		if !ok {
			return validationErrorf(ValidationInvalidPath,
				"invalid containment document for %s", col.qualified())
		}
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return validationErrorf(ValidationInvalidPath,
				"invalid containment document for %s", col.qualified())
		}
		next := append(slices.Clone(prefix), key)
		if err := walkRawContainment(col, val, next, out); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil { // closing brace
		return validationErrorf(ValidationInvalidPath,
			"invalid containment document for %s", col.qualified())
	}
	return nil
}
