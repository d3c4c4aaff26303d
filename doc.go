// Package protect composes searchable-encryption requests for an external
// encryption engine and reshapes the engine's raw index fragments back into
// application-facing records.
//
// The package does not implement any encryption scheme itself. It resolves
// which searchable index applies to a column/value pair, canonicalizes single
// values and batches (preserving null positions), flattens JSON paths and
// containment objects into selector strings for tree-structured encryption,
// and defers the engine round trip behind a chainable operation that can carry
// an identity-bound access context and audit metadata.
//
// # Basic Usage
//
//	client, err := protect.New(
//	    protect.WithEngine(engine), // any protect.Engine implementation
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	email := protect.NewColumn("users", "email", protect.IndexUnique, protect.IndexMatch)
//
//	// Encrypt
//	record, err := client.Encrypt("alice@example.com", email).Execute(ctx)
//
//	// Decrypt
//	value, err := client.Decrypt(record).Execute(ctx)
//
// # Search Terms
//
// Search terms are produced in batches; one engine round trip covers any
// number of terms. Null values are never sent to the engine and come back as
// null slots at their original positions:
//
//	terms, err := client.CreateSearchTerms([]protect.QueryTerm{
//	    {Value: "alice@example.com", Column: email},
//	    {Value: nil, Column: email},
//	}).Execute(ctx)
//	// terms[1].Record == nil
//
// # JSON Paths and Containment
//
// Columns with the ste_vec index support path and containment queries over
// encrypted JSON. A dotted string path is split on "."; a []string path keeps
// each element verbatim (literal dots included):
//
//	profile := protect.NewColumn("users", "profile", protect.IndexSteVec)
//	client.CreateSearchTerms([]protect.QueryTerm{
//	    {Column: profile, Path: "settings.theme"},
//	    {Column: profile, Contains: map[string]any{"role": "admin"}},
//	})
//
// # Access Context and Audit
//
// Operations accept an identity-bound access context and opaque audit
// metadata. Both are stored during configuration and take effect only when
// Execute runs; an expired or unresolvable token surfaces as a *ContextError
// without an engine call:
//
//	record, err := client.Encrypt(value, column).
//	    WithAccessContext(protect.NewAccessContext(token, "tenant:acme")).
//	    WithAudit(protect.Audit{Metadata: map[string]any{"actor": "billing"}}).
//	    Execute(ctx)
//
// # Development Engine
//
// DevEngine is an in-process Engine for development and tests. It produces
// deterministic index terms (HMAC equality tags, bloom-filter positions,
// order-preserving byte encodings, selector tags) and real authenticated
// ciphertext, but its order-revealing encoding is NOT a secure ORE scheme.
// Never point production traffic at it.
package protect
