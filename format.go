package protect

import (
	"encoding/json"
	"strings"
)

// SchemaVersion is the envelope version stamped on every record this layer
// produces. Storage adapters key their parsing off it.
const SchemaVersion = 2

// ReturnType selects the output encoding for a term's result.
type ReturnType string

const (
	// ReturnTypeRecord returns the structured *Encrypted record. This is the
	// default and the only encoding storage adapters should parse.
	ReturnTypeRecord ReturnType = "record"
	// ReturnTypeCompositeLiteral serializes the record and wraps it as a
	// relational composite literal: ("..."), inner quotes doubled.
	ReturnTypeCompositeLiteral ReturnType = "composite-literal"
	// ReturnTypeEscapedCompositeLiteral re-encodes the composite literal as a
	// quoted string literal for embedding inside another quoted context.
	ReturnTypeEscapedCompositeLiteral ReturnType = "escaped-composite-literal"
)

// Ident is the table/column identity stamped on a record.
type Ident struct {
	Table  string `json:"t"`
	Column string `json:"c"`
}

// Encrypted is the structured per-term record: ciphertext, identity, and
// schema version, plus exactly one index field matching the term's resolved
// index kind. Absent index fields are omitted from the serialized form.
type Encrypted struct {
	Ciphertext     string                `json:"c,omitempty"`
	Ident          Ident                 `json:"i"`
	Version        int                   `json:"v"`
	UniqueTag      *string               `json:"hm,omitempty"`
	OreTags        []string              `json:"ob,omitempty"`
	BloomFilter    []uint32              `json:"bf,omitempty"`
	Selector       *string               `json:"s,omitempty"`
	SelectorVector []SelectorVectorEntry `json:"sv,omitempty"`
}

// SearchTerm is one formatted result slot. Record is nil for null inputs.
// Literal is set only when the term requested a textual composite encoding.
type SearchTerm struct {
	Record  *Encrypted
	Literal string
}

// formatRecord shapes one raw engine result into the structured record. The
// switch over the index-term union is exhaustive; an engine handing back a
// term kind this layer has never heard of is an invariant violation.
func formatRecord(res TermResult, col Column) (*Encrypted, error) {
	e := &Encrypted{
		Ciphertext: res.Ciphertext,
		Ident:      Ident{Table: col.table, Column: col.name},
		Version:    SchemaVersion,
	}
	switch term := res.Term.(type) {
	case nil:
		// Ciphertext-only record: the column has no searchable index.
	case UniqueTag:
		tag := string(term)
		e.UniqueTag = &tag
	case OreTags:
		e.OreTags = []string(term)
	case BloomFilter:
		e.BloomFilter = []uint32(term)
	case SelectorTag:
		sel := string(term)
		e.Selector = &sel
	case SelectorVector:
		e.SelectorVector = []SelectorVectorEntry(term)
	default:
		return nil, &EngineError{
			Code:    CodeInvariantViolation,
			Message: "engine returned an unknown index term variant",
		}
	}
	return e, nil
}

// formatSearchTerm applies the term's requested return type on top of the
// structured record. Purely a string/structure transform.
func formatSearchTerm(record *Encrypted, returnType ReturnType) (SearchTerm, error) {
	st := SearchTerm{Record: record}
	switch returnType {
	case "", ReturnTypeRecord:
		return st, nil
	case ReturnTypeCompositeLiteral:
		lit, err := record.CompositeLiteral()
		if err != nil {
			return SearchTerm{}, err
		}
		st.Literal = lit
		return st, nil
	case ReturnTypeEscapedCompositeLiteral:
		lit, err := record.EscapedCompositeLiteral()
		if err != nil {
			return SearchTerm{}, err
		}
		st.Literal = lit
		return st, nil
	default:
		return SearchTerm{}, validationErrorf(ValidationUnknownQueryOp,
			"unknown return type %q", returnType)
	}
}

// CompositeLiteral renders the record as a relational composite literal:
// the canonical JSON form, inner double quotes doubled per composite quoting
// rules, wrapped in ("..."). UnwrapCompositeLiteral inverts it.
func (e *Encrypted) CompositeLiteral() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	escaped := strings.ReplaceAll(string(data), `"`, `""`)
	return `("` + escaped + `")`, nil
}

// EscapedCompositeLiteral renders the composite literal as a quoted string
// literal (outer quotes, inner quotes backslash-escaped) for embedding inside
// another quoted context.
func (e *Encrypted) EscapedCompositeLiteral() (string, error) {
	lit, err := e.CompositeLiteral()
	if err != nil {
		return "", err
	}
	return `"` + strings.ReplaceAll(lit, `"`, `\"`) + `"`, nil
}

// UnwrapCompositeLiteral parses a composite literal back into the structured
// record. Intended for tests and storage adapters verifying round trips.
func UnwrapCompositeLiteral(lit string) (*Encrypted, error) {
	if !strings.HasPrefix(lit, `("`) || !strings.HasSuffix(lit, `")`) {
		return nil, validationErrorf(ValidationInvalidInput,
			"malformed composite literal")
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(lit, `("`), `")`)
	inner = strings.ReplaceAll(inner, `""`, `"`)
	var e Encrypted
	if err := json.Unmarshal([]byte(inner), &e); err != nil {
		return nil, validationErrorf(ValidationInvalidInput,
			"composite literal does not contain a record: %v", err)
	}
	return &e, nil
}
