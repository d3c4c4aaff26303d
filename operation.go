package protect

import (
	"context"

	"github.com/google/uuid"
)

// Audit is opaque metadata forwarded verbatim to the engine call. It has no
// effect on the term list or result shape. RequestID is filled with a fresh
// UUID at execution time when left empty, so every engine round trip is
// correlatable.
type Audit struct {
	RequestID string         `json:"requestId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// operation is the shared deferred core behind every builder: a canonical
// batch plus optional access context and audit metadata. Before Execute it is
// pure configuration; a partially configured operation carries no outstanding
// work and can be discarded freely. Each Execute runs as a fresh call (the
// terminal call is what performs work, not a cached value).
type operation struct {
	client *Client
	batch  *canonicalBatch
	err    error // construction-time validation failure, surfaced at Execute
	access *AccessContext
	audit  *Audit
}

// callOptions resolves the access context (the only suspension point besides
// the engine call itself) and stamps the audit request ID.
func (o *operation) callOptions(ctx context.Context) (CallOptions, error) {
	var call CallOptions
	if o.access != nil {
		resolved, err := o.access.resolve(ctx)
		if err != nil {
			return CallOptions{}, err
		}
		call.Access = resolved
	}
	if o.audit != nil {
		audit := *o.audit
		if audit.RequestID == "" {
			audit.RequestID = uuid.NewString()
		}
		call.Audit = &audit
	}
	return call, nil
}

// run performs the single engine round trip for an encrypt/search batch and
// restores null slots to their original positions.
func (o *operation) run(ctx context.Context) ([]*Encrypted, error) {
	if o.err != nil {
		return nil, o.err
	}
	b := o.batch
	if b.empty() {
		// Nothing to encrypt: all inputs were null (or the batch was empty).
		return restoreSlots[*Encrypted](b.size, b.nullPos, nil)
	}

	call, err := o.callOptions(ctx)
	if err != nil {
		return nil, err
	}
	results, err := o.client.engine.Apply(ctx, b.requests(), call)
	if err != nil {
		return nil, err
	}

	if len(results) != len(b.terms) {
		return nil, resultCountError(len(results), len(b.terms))
	}
	records := make([]*Encrypted, 0, len(results))
	for i, res := range results {
		record, err := formatRecord(res, b.terms[i].col)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return restoreSlots(b.size, b.nullPos, records)
}

// TermOption adjusts a single scalar term built by Client.Encrypt.
type TermOption func(*QueryTerm)

// WithIndexKind forces the index kind instead of inferring it.
func WithIndexKind(k IndexKind) TermOption {
	return func(t *QueryTerm) { t.IndexKind = k }
}

// WithNormalizer canonicalizes the string value before index computation.
func WithNormalizer(n Normalizer) TermOption {
	return func(t *QueryTerm) { t.Normalizer = n }
}

// EncryptOperation is the deferred scalar encryption call built by
// Client.Encrypt.
type EncryptOperation struct {
	op operation
}

// WithAccessContext binds the operation to a caller identity. The context is
// stored as-is; resolution happens at Execute.
func (o *EncryptOperation) WithAccessContext(a *AccessContext) *EncryptOperation {
	o.op.access = a
	return o
}

// WithAudit attaches audit metadata forwarded verbatim to the engine.
func (o *EncryptOperation) WithAudit(a Audit) *EncryptOperation {
	o.op.audit = &a
	return o
}

// Execute performs the engine round trip. Encrypting a null value returns
// (nil, nil) without contacting the engine.
func (o *EncryptOperation) Execute(ctx context.Context) (*Encrypted, error) {
	out, err := o.op.run(ctx)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// BatchEncryptOperation is the deferred batch call built by
// Client.EncryptBatch. One engine round trip regardless of batch size.
type BatchEncryptOperation struct {
	op operation
}

func (o *BatchEncryptOperation) WithAccessContext(a *AccessContext) *BatchEncryptOperation {
	o.op.access = a
	return o
}

func (o *BatchEncryptOperation) WithAudit(a Audit) *BatchEncryptOperation {
	o.op.audit = &a
	return o
}

// Execute returns one slot per input term, nil at the positions of null
// inputs, in input order.
func (o *BatchEncryptOperation) Execute(ctx context.Context) ([]*Encrypted, error) {
	return o.op.run(ctx)
}

// SearchTermsOperation is the deferred search-term call built by
// Client.CreateSearchTerms.
type SearchTermsOperation struct {
	op operation
}

func (o *SearchTermsOperation) WithAccessContext(a *AccessContext) *SearchTermsOperation {
	o.op.access = a
	return o
}

func (o *SearchTermsOperation) WithAudit(a Audit) *SearchTermsOperation {
	o.op.audit = &a
	return o
}

// Execute returns one SearchTerm per input term in input order; null inputs
// produce a zero SearchTerm (nil Record). Each term's requested return type
// is applied after null restoration bookkeeping, as a pure transform.
func (o *SearchTermsOperation) Execute(ctx context.Context) ([]SearchTerm, error) {
	if o.op.err != nil {
		return nil, o.op.err
	}
	b := o.op.batch
	if b.empty() {
		return restoreSlots[SearchTerm](b.size, b.nullPos, nil)
	}

	call, err := o.op.callOptions(ctx)
	if err != nil {
		return nil, err
	}
	results, err := o.op.client.engine.Apply(ctx, b.requests(), call)
	if err != nil {
		return nil, err
	}
	if len(results) != len(b.terms) {
		return nil, resultCountError(len(results), len(b.terms))
	}

	terms := make([]SearchTerm, 0, len(results))
	for i, res := range results {
		record, err := formatRecord(res, b.terms[i].col)
		if err != nil {
			return nil, err
		}
		st, err := formatSearchTerm(record, b.terms[i].returnType)
		if err != nil {
			return nil, err
		}
		terms = append(terms, st)
	}
	return restoreSlots(b.size, b.nullPos, terms)
}

// decryptBatch mirrors canonicalBatch for the reveal direction: non-nil
// records in input order plus the original positions of nil slots.
type decryptBatch struct {
	records []*Encrypted
	nullPos []int
	size    int
}

func newDecryptBatch(records []*Encrypted) *decryptBatch {
	b := &decryptBatch{size: len(records)}
	for i, r := range records {
		if r == nil {
			b.nullPos = append(b.nullPos, i)
			continue
		}
		b.records = append(b.records, r)
	}
	return b
}

// DecryptOperation is the deferred scalar decryption call built by
// Client.Decrypt.
type DecryptOperation struct {
	op    operation
	batch *decryptBatch
}

func (o *DecryptOperation) WithAccessContext(a *AccessContext) *DecryptOperation {
	o.op.access = a
	return o
}

func (o *DecryptOperation) WithAudit(a Audit) *DecryptOperation {
	o.op.audit = &a
	return o
}

// Execute reveals the plaintext. Decrypting nil returns (nil, nil) without
// contacting the engine.
func (o *DecryptOperation) Execute(ctx context.Context) (any, error) {
	out, err := runReveal(ctx, &o.op, o.batch)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// BatchDecryptOperation is the deferred batch decryption call built by
// Client.DecryptBatch.
type BatchDecryptOperation struct {
	op    operation
	batch *decryptBatch
}

func (o *BatchDecryptOperation) WithAccessContext(a *AccessContext) *BatchDecryptOperation {
	o.op.access = a
	return o
}

func (o *BatchDecryptOperation) WithAudit(a Audit) *BatchDecryptOperation {
	o.op.audit = &a
	return o
}

// Execute returns one plaintext per input record, nil at nil slots, in input
// order.
func (o *BatchDecryptOperation) Execute(ctx context.Context) ([]any, error) {
	return runReveal(ctx, &o.op, o.batch)
}

func runReveal(ctx context.Context, op *operation, b *decryptBatch) ([]any, error) {
	if op.err != nil {
		return nil, op.err
	}
	if len(b.records) == 0 {
		return restoreSlots[any](b.size, b.nullPos, nil)
	}
	call, err := op.callOptions(ctx)
	if err != nil {
		return nil, err
	}
	values, err := op.client.engine.Reveal(ctx, b.records, call)
	if err != nil {
		return nil, err
	}
	return restoreSlots(b.size, b.nullPos, values)
}
