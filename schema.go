package protect

import "slices"

// IndexKind is the class of searchable encryption scheme applied to a value.
type IndexKind string

const (
	// IndexUnique is a deterministic HMAC equality tag for exact-match queries.
	IndexUnique IndexKind = "unique"
	// IndexMatch is a bloom-filter token set for partial-match queries.
	IndexMatch IndexKind = "match"
	// IndexOre is an order-revealing encoding for range queries.
	IndexOre IndexKind = "ore"
	// IndexSteVec is the tree-structured encryption scheme for JSON path and
	// containment queries. It is never inferred for scalar terms; it is only
	// reachable through a Path or Contains query shape.
	IndexSteVec IndexKind = "ste_vec"
)

// knownIndexKinds lists every index kind this layer understands, in inference
// priority order for the scalar kinds.
var knownIndexKinds = []IndexKind{IndexUnique, IndexMatch, IndexOre, IndexSteVec}

func (k IndexKind) known() bool {
	return slices.Contains(knownIndexKinds, k)
}

// Column is an immutable capability descriptor for one encrypted column:
// table/column identity plus the set of searchable index kinds the schema
// layer configured for it. Columns are created once when the schema is
// declared and never mutated; copy semantics are safe because the index set
// is never exposed by reference.
type Column struct {
	table   string
	name    string
	indexes []IndexKind
}

// NewColumn builds a column descriptor. The index kinds may be empty for a
// column that is encrypted but not searchable.
func NewColumn(table, name string, kinds ...IndexKind) Column {
	return Column{
		table:   table,
		name:    name,
		indexes: slices.Clone(kinds),
	}
}

// Table returns the table identity.
func (c Column) Table() string { return c.table }

// Name returns the column identity.
func (c Column) Name() string { return c.name }

// Indexes returns a copy of the configured index kinds.
func (c Column) Indexes() []IndexKind {
	return slices.Clone(c.indexes)
}

// HasIndex reports whether the column is configured with the given index kind.
func (c Column) HasIndex(k IndexKind) bool {
	return slices.Contains(c.indexes, k)
}

// qualified returns the table.column form used in error messages.
func (c Column) qualified() string {
	return c.table + "." + c.name
}
