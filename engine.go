package protect

import "context"

// Engine is the boundary to the external cryptographic engine. Implementations
// wrap whatever transport the engine lives behind (FFI, gRPC, HTTP); this
// package only composes requests and reshapes results.
//
// Apply handles one canonical batch in a single round trip and must return
// exactly one TermResult per request, in request order, or an *EngineError.
// Reveal inverts previously produced records back to plaintext values.
type Engine interface {
	Apply(ctx context.Context, requests []TermRequest, call CallOptions) ([]TermResult, error)
	Reveal(ctx context.Context, records []*Encrypted, call CallOptions) ([]any, error)
}

// CallOptions carries the per-operation access context and audit metadata to
// the engine. Either field may be nil.
type CallOptions struct {
	Access *ResolvedAccess
	Audit  *Audit
}

// TermResult is the engine's raw answer for one term: the ciphertext (empty
// for query-only terms such as path selectors) and the index term for the
// term's resolved kind.
type TermResult struct {
	Ciphertext string
	Term       IndexTerm
}

// IndexTerm is the tagged union of engine index fragments, one variant per
// index kind. The union is closed: the kind method is unexported, so only the
// variants below satisfy it, and the result formatter switches over them
// exhaustively.
type IndexTerm interface {
	kind() IndexKind
}

// UniqueTag is a deterministic HMAC equality tag (the engine's hm field).
type UniqueTag string

// OreTags is an ordered list of order-revealing encoding blocks (ob).
type OreTags []string

// BloomFilter is the set of bloom-filter bit positions for a match term (bf).
type BloomFilter []uint32

// SelectorTag is an encrypted selector for a path-only query (s).
type SelectorTag string

// SelectorVector is an atomic group of encrypted (selector, term) pairs for
// containment and path-with-value queries (sv).
type SelectorVector []SelectorVectorEntry

// SelectorVectorEntry is one encrypted selector/term pair.
type SelectorVectorEntry struct {
	Selector string `json:"s"`
	Term     string `json:"t"`
}

func (UniqueTag) kind() IndexKind      { return IndexUnique }
func (OreTags) kind() IndexKind        { return IndexOre }
func (BloomFilter) kind() IndexKind    { return IndexMatch }
func (SelectorTag) kind() IndexKind    { return IndexSteVec }
func (SelectorVector) kind() IndexKind { return IndexSteVec }
