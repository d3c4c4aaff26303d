package protect

import (
	"fmt"
	"math"
	"reflect"
)

// QueryTerm is one logical encryption or search request: a value (or JSON
// query shape) bound to a column. Terms are constructed per call and
// discarded after execution.
//
// Exactly one query shape applies per term:
//   - scalar: Value set (or null), Path and Contains empty
//   - path: Path set (string or []string), Value optionally set
//   - containment: Contains set, Value empty
type QueryTerm struct {
	// Value is the plaintext. nil (or a typed nil pointer/slice/map) marks a
	// null term: it is never sent to the engine and comes back as a null slot.
	Value any

	// Column is the capability descriptor the term targets.
	Column Column

	// IndexKind optionally forces the index kind. When empty it is inferred
	// from the column's configured indexes (unique > match > ore).
	IndexKind IndexKind

	// Path is a JSON path for ste_vec columns: a dotted string (split on ".")
	// or a []string of verbatim segments.
	Path any

	// Contains is a containment object or array for ste_vec columns.
	Contains any

	// ReturnType selects the output encoding for this term's result.
	// Empty means ReturnTypeRecord.
	ReturnType ReturnType

	// Normalizer, when set, canonicalizes string values before index-term
	// computation (the ciphertext always covers the original value). Use the
	// same normalizer on write and search. Non-string values are indexed
	// as-is.
	Normalizer Normalizer
}

// SelectorEntry is the wire shape of one containment leaf: a selector plus
// the plaintext leaf value the engine turns into an equality term.
type SelectorEntry struct {
	Selector string `json:"s"`
	Value    any    `json:"v,omitempty"`
}

// TermRequest is the canonical per-term engine request. This is the shape the
// external engine consumes; adapters marshal it verbatim.
type TermRequest struct {
	Value          any             `json:"value,omitempty"`
	IndexValue     *string         `json:"indexValue,omitempty"`
	Table          string          `json:"table"`
	Column         string          `json:"column"`
	IndexKind      IndexKind       `json:"indexKind"`
	Selector       string          `json:"selector,omitempty"`
	SelectorVector []SelectorEntry `json:"selectorVector,omitempty"`
}

// resolvedTerm carries a canonical request together with the descriptor and
// formatting choices needed to shape its result.
type resolvedTerm struct {
	req        TermRequest
	col        Column
	returnType ReturnType
}

// canonicalBatch is the internal representation both call shapes (scalar and
// batch) funnel through. terms holds the non-null requests in input order;
// nullPos records the original indexes of null inputs.
//
// Invariant: len(terms) + len(nullPos) == size, and every output slot's
// origin is reconstructible by index alone.
type canonicalBatch struct {
	terms   []resolvedTerm
	nullPos []int
	size    int
}

func (b *canonicalBatch) empty() bool { return len(b.terms) == 0 }

func (b *canonicalBatch) requests() []TermRequest {
	reqs := make([]TermRequest, len(b.terms))
	for i, t := range b.terms {
		reqs[i] = t.req
	}
	return reqs
}

// normalizeTerms canonicalizes a batch: null bookkeeping, numeric guards,
// index resolution, and selector flattening. Any malformed term fails the
// whole batch; only null values are exempt because they are never sent.
//
// encrypt relaxes index resolution for columns with no configured indexes:
// an encryption against such a column produces a ciphertext-only record,
// while a search term against it still fails (there is nothing to search).
func normalizeTerms(terms []QueryTerm, encrypt bool) (*canonicalBatch, error) {
	batch := &canonicalBatch{size: len(terms)}
	for i, t := range terms {
		rt, null, err := resolveTerm(t, encrypt)
		if err != nil {
			return nil, err
		}
		if null {
			batch.nullPos = append(batch.nullPos, i)
			continue
		}
		batch.terms = append(batch.terms, rt)
	}
	return batch, nil
}

// resolveTerm canonicalizes one term. null reports that the term carries no
// value and no query shape and must become a null slot.
func resolveTerm(t QueryTerm, encrypt bool) (resolvedTerm, bool, error) {
	col := t.Column
	rt := resolvedTerm{col: col, returnType: t.ReturnType}
	switch t.ReturnType {
	case "", ReturnTypeRecord, ReturnTypeCompositeLiteral, ReturnTypeEscapedCompositeLiteral:
	default:
		return rt, false, validationErrorf(ValidationUnknownQueryOp,
			"unknown return type %q for %s", t.ReturnType, col.qualified())
	}
	value := t.Value
	if isNullValue(value) {
		value = nil
	}

	switch {
	case t.Contains != nil:
		if value != nil {
			return rt, false, validationErrorf(ValidationUnknownQueryOp,
				"term for %s sets both Value and Contains", col.qualified())
		}
		if t.Path != nil {
			return rt, false, validationErrorf(ValidationUnknownQueryOp,
				"term for %s sets both Path and Contains", col.qualified())
		}
		if t.IndexKind != "" && t.IndexKind != IndexSteVec {
			return rt, false, validationErrorf(ValidationUnknownQueryOp,
				"containment term for %s cannot use index %q", col.qualified(), t.IndexKind)
		}
		if err := requireSteVec(col); err != nil {
			return rt, false, err
		}
		leaves, err := flattenContainment(col, t.Contains)
		if err != nil {
			return rt, false, err
		}
		entries := make([]SelectorEntry, len(leaves))
		for i, leaf := range leaves {
			if err := rejectNonFinite(col, leaf.value); err != nil {
				return rt, false, err
			}
			entries[i] = SelectorEntry{Selector: leaf.selector, Value: leaf.value}
		}
		rt.req = TermRequest{
			Table:          col.table,
			Column:         col.name,
			IndexKind:      IndexSteVec,
			SelectorVector: entries,
		}
		return rt, false, nil

	case t.Path != nil:
		if t.IndexKind != "" && t.IndexKind != IndexSteVec {
			return rt, false, validationErrorf(ValidationUnknownQueryOp,
				"path term for %s cannot use index %q", col.qualified(), t.IndexKind)
		}
		if err := requireSteVec(col); err != nil {
			return rt, false, err
		}
		segs, err := pathSegments(col, t.Path)
		if err != nil {
			return rt, false, err
		}
		selector := selectorFor(col, segs)
		req := TermRequest{
			Table:     col.table,
			Column:    col.name,
			IndexKind: IndexSteVec,
		}
		if value != nil {
			// Path-with-value terms take the containment shape: a single
			// selector-vector entry, encrypted as a one-element group.
			if err := rejectNonFinite(col, value); err != nil {
				return rt, false, err
			}
			req.SelectorVector = []SelectorEntry{{Selector: selector, Value: value}}
		} else {
			req.Selector = selector
		}
		rt.req = req
		return rt, false, nil

	default:
		if value == nil {
			return rt, true, nil
		}
		if t.IndexKind == IndexSteVec {
			return rt, false, validationErrorf(ValidationUnknownQueryOp,
				"scalar term for %s cannot use index %q; use a Path or Contains query shape",
				col.qualified(), t.IndexKind)
		}
		var kind IndexKind
		if encrypt && t.IndexKind == "" && len(col.indexes) == 0 {
			// Encrypt-only column: ciphertext record with no index term.
			kind = ""
		} else {
			var err error
			kind, err = ResolveIndexKind(col, t.IndexKind)
			if err != nil {
				return rt, false, err
			}
		}
		if err := rejectNonFinite(col, value); err != nil {
			return rt, false, err
		}
		req := TermRequest{
			Value:     value,
			Table:     col.table,
			Column:    col.name,
			IndexKind: kind,
		}
		if t.Normalizer != nil {
			if s, ok := value.(string); ok {
				normalized := t.Normalizer(s)
				req.IndexValue = &normalized
			}
		}
		rt.req = req
		return rt, false, nil
	}
}

// isNullValue treats nil and typed nil pointers/slices/maps as null, so
// callers working with *string fields get NULL preservation for free.
func isNullValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// rejectNonFinite guards against NaN and positive/negative Infinity anywhere
// in the value, including inside array leaves. These are local validation
// failures and never reach the engine.
func rejectNonFinite(col Column, v any) error {
	switch t := v.(type) {
	case float64:
		return nonFiniteError(col, t)
	case float32:
		return nonFiniteError(col, float64(t))
	case []any:
		for _, e := range t {
			if err := rejectNonFinite(col, e); err != nil {
				return err
			}
		}
	case []float64:
		for _, e := range t {
			if err := nonFiniteError(col, e); err != nil {
				return err
			}
		}
	case map[string]any:
		for _, e := range t {
			if err := rejectNonFinite(col, e); err != nil {
				return err
			}
		}
	}
	return nil
}

func nonFiniteError(col Column, f float64) error {
	switch {
	case math.IsNaN(f):
		return validationErrorf(ValidationInvalidInput,
			"%s: NaN is not an encryptable value", col.qualified())
	case math.IsInf(f, 1):
		return validationErrorf(ValidationInvalidInput,
			"%s: Infinity is not an encryptable value", col.qualified())
	case math.IsInf(f, -1):
		return validationErrorf(ValidationInvalidInput,
			"%s: -Infinity is not an encryptable value", col.qualified())
	}
	return nil
}

// resultCountError reports an engine that broke the one-result-per-request
// contract.
func resultCountError(got, want int) *EngineError {
	return &EngineError{
		Code:    CodeInvariantViolation,
		Message: fmt.Sprintf("engine returned %d results for %d requests", got, want),
	}
}

// restoreSlots re-inserts null slots at their recorded positions. filled must
// hold exactly one element per non-null input, in input order.
func restoreSlots[T any](size int, nullPos []int, filled []T) ([]T, error) {
	if len(filled) != size-len(nullPos) {
		return nil, resultCountError(len(filled), size-len(nullPos))
	}
	nulls := make(map[int]struct{}, len(nullPos))
	for _, p := range nullPos {
		nulls[p] = struct{}{}
	}
	out := make([]T, size)
	next := 0
	for i := range out {
		if _, ok := nulls[i]; ok {
			continue // leave the zero value in the null slot
		}
		out[i] = filled[next]
		next++
	}
	return out, nil
}
