package protect

import "sort"

// Client composes searchable-encryption requests for a single Engine.
// It is safe for concurrent use; individual operations are not, so concurrent
// callers construct independent operations.
type Client struct {
	engine Engine
}

// config holds client construction options.
type config struct {
	engine Engine
}

func defaultConfig() *config {
	return &config{}
}

// sortedMapKeys returns map keys sorted alphabetically.
func sortedMapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Option is a functional option for configuring a Client.
type Option func(*config)

// WithEngine sets the cryptographic engine the client dispatches to.
// Required.
func WithEngine(e Engine) Option {
	return func(c *config) { c.engine = e }
}

// New creates a Client. Configuration is validated here, once, at the
// boundary; core logic never re-reads ambient process state.
//
// Example:
//
//	client, err := protect.New(
//	    protect.WithEngine(engine),
//	)
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.engine == nil {
		return nil, ErrNoEngine
	}
	return &Client{engine: cfg.engine}, nil
}

// Encrypt builds a deferred encryption of a single value against a column.
// The caller sees a scalar result even though dispatch is batched internally.
func (c *Client) Encrypt(value any, col Column, opts ...TermOption) *EncryptOperation {
	term := QueryTerm{Value: value, Column: col}
	for _, opt := range opts {
		opt(&term)
	}
	batch, err := normalizeTerms([]QueryTerm{term}, true)
	return &EncryptOperation{op: operation{client: c, batch: batch, err: err}}
}

// EncryptBatch builds a deferred encryption of an ordered term list. The
// whole batch travels in one engine round trip; null values become nil output
// slots at their original positions.
func (c *Client) EncryptBatch(terms []QueryTerm) *BatchEncryptOperation {
	batch, err := normalizeTerms(terms, true)
	return &BatchEncryptOperation{op: operation{client: c, batch: batch, err: err}}
}

// CreateSearchTerms builds a deferred search-term request. Terms may mix
// scalar, path, and containment shapes, and may each request their own output
// encoding.
func (c *Client) CreateSearchTerms(terms []QueryTerm) *SearchTermsOperation {
	batch, err := normalizeTerms(terms, false)
	return &SearchTermsOperation{op: operation{client: c, batch: batch, err: err}}
}

// Decrypt builds a deferred decryption of a single record. Decrypting nil
// yields nil without an engine call.
func (c *Client) Decrypt(record *Encrypted) *DecryptOperation {
	return &DecryptOperation{
		op:    operation{client: c},
		batch: newDecryptBatch([]*Encrypted{record}),
	}
}

// DecryptBatch builds a deferred decryption of an ordered record list. nil
// records stay nil in the output, at the same positions.
func (c *Client) DecryptBatch(records []*Encrypted) *BatchDecryptOperation {
	return &BatchDecryptOperation{
		op:    operation{client: c},
		batch: newDecryptBatch(records),
	}
}
