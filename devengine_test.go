package protect

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testRootKey(seed string) []byte {
	key := make([]byte, 32)
	copy(key, seed)
	return key
}

func newTestEngine(t *testing.T, opts ...DevOption) *DevEngine {
	t.Helper()
	engine, err := NewDevEngine(append([]DevOption{WithRootKey("v1", testRootKey("v1"))}, opts...)...)
	require.NoError(t, err)
	return engine
}

func TestNewDevEngine_Validation(t *testing.T) {
	tests := []struct {
		name     string
		opts     []DevOption
		expected error
	}{
		{"no keys", nil, ErrNoRootKeys},
		{"short key", []DevOption{WithRootKey("v1", []byte("short"))}, ErrInvalidKeySize},
		{"default not registered", []DevOption{
			WithRootKey("v1", testRootKey("v1")),
			WithDefaultRootKey("v9"),
		}, ErrDefaultKeyNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDevEngine(tt.opts...)
			require.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestDevEngine_UniqueTagDeterministic(t *testing.T) {
	engine := newTestEngine(t)
	req := TermRequest{Value: "alice@example.com", Table: "users", Column: "email", IndexKind: IndexUnique}

	first, err := engine.Apply(context.Background(), []TermRequest{req}, CallOptions{})
	require.NoError(t, err)
	second, err := engine.Apply(context.Background(), []TermRequest{req}, CallOptions{})
	require.NoError(t, err)

	require.Equal(t, first[0].Term, second[0].Term)
	// Ciphertext uses a fresh nonce per call.
	require.NotEqual(t, first[0].Ciphertext, second[0].Ciphertext)
}

func TestDevEngine_UniqueTagScopedToColumn(t *testing.T) {
	engine := newTestEngine(t)

	results, err := engine.Apply(context.Background(), []TermRequest{
		{Value: "same", Table: "users", Column: "email", IndexKind: IndexUnique},
		{Value: "same", Table: "users", Column: "username", IndexKind: IndexUnique},
	}, CallOptions{})
	require.NoError(t, err)
	require.NotEqual(t, results[0].Term, results[1].Term)
}

func TestDevEngine_IndexValueOverridesValue(t *testing.T) {
	engine := newTestEngine(t)
	normalized := "alice@example.com"

	results, err := engine.Apply(context.Background(), []TermRequest{
		{Value: " Alice@Example.COM ", IndexValue: &normalized, Table: "users", Column: "email", IndexKind: IndexUnique},
		{Value: "alice@example.com", Table: "users", Column: "email", IndexKind: IndexUnique},
	}, CallOptions{})
	require.NoError(t, err)
	// Normalized write and normalized search produce the same tag.
	require.Equal(t, results[0].Term, results[1].Term)
}

func TestDevEngine_MatchSubsetProperty(t *testing.T) {
	engine := newTestEngine(t)

	results, err := engine.Apply(context.Background(), []TermRequest{
		{Value: "alice@example.com", Table: "users", Column: "email", IndexKind: IndexMatch},
		{Value: "alice", Table: "users", Column: "email", IndexKind: IndexMatch},
	}, CallOptions{})
	require.NoError(t, err)

	stored := results[0].Term.(BloomFilter)
	query := results[1].Term.(BloomFilter)
	require.NotEmpty(t, query)

	// Every query position must be present in the stored filter, otherwise
	// substring search cannot work.
	storedSet := make(map[uint32]struct{}, len(stored))
	for _, pos := range stored {
		storedSet[pos] = struct{}{}
	}
	for _, pos := range query {
		require.Contains(t, storedSet, pos)
	}
}

func TestDevEngine_BloomPositionsBounded(t *testing.T) {
	engine := newTestEngine(t, WithBloomParameters(512, 4))

	results, err := engine.Apply(context.Background(), []TermRequest{
		{Value: "some searchable text here", Table: "users", Column: "bio", IndexKind: IndexMatch},
	}, CallOptions{})
	require.NoError(t, err)

	for _, pos := range results[0].Term.(BloomFilter) {
		require.Less(t, pos, uint32(512))
	}
}

func TestDevEngine_OreOrderPreserved(t *testing.T) {
	values := []float64{-1000.5, -1, 0, 0.25, 1, 42, 1e9}

	var previous []byte
	for i, v := range values {
		encoded, err := encodeOrderable(v)
		require.NoError(t, err)
		if i > 0 {
			require.Negative(t, bytes.Compare(previous, encoded),
				"encoding of %v must sort before %v", values[i-1], v)
		}
		previous = encoded
	}
}

func TestDevEngine_OreTagsShape(t *testing.T) {
	engine := newTestEngine(t)

	results, err := engine.Apply(context.Background(), []TermRequest{
		{Value: float64(42), Table: "users", Column: "score", IndexKind: IndexOre},
	}, CallOptions{})
	require.NoError(t, err)

	tags := results[0].Term.(OreTags)
	require.Len(t, tags, 8) // one block per encoded byte
	for _, tag := range tags {
		require.Len(t, tag, 2)
	}
}

func TestDevEngine_OreRejectsUnorderable(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Apply(context.Background(), []TermRequest{
		{Value: map[string]any{"not": "orderable"}, Table: "users", Column: "score", IndexKind: IndexOre},
	}, CallOptions{})
	require.Error(t, err)

	var eerr *EngineError
	require.ErrorAs(t, err, &eerr)
	require.Equal(t, CodeInvalidQueryInput, eerr.Code)
}

func TestDevEngine_SteVecSelectorTag(t *testing.T) {
	engine := newTestEngine(t)
	req := TermRequest{Table: "users", Column: "profile", IndexKind: IndexSteVec, Selector: "users/profile/settings/theme"}

	first, err := engine.Apply(context.Background(), []TermRequest{req}, CallOptions{})
	require.NoError(t, err)
	second, err := engine.Apply(context.Background(), []TermRequest{req}, CallOptions{})
	require.NoError(t, err)

	require.Equal(t, first[0].Term, second[0].Term)
	require.Empty(t, first[0].Ciphertext) // path-only query carries no value

	tag := first[0].Term.(SelectorTag)
	require.NotContains(t, string(tag), "theme") // derived bytes, not plaintext
}

func TestDevEngine_SteVecSelectorVector(t *testing.T) {
	engine := newTestEngine(t)

	results, err := engine.Apply(context.Background(), []TermRequest{
		{Table: "users", Column: "profile", IndexKind: IndexSteVec, SelectorVector: []SelectorEntry{
			{Selector: "users/profile/role", Value: "admin"},
			{Selector: "users/profile/status", Value: "active"},
		}},
	}, CallOptions{})
	require.NoError(t, err)

	sv := results[0].Term.(SelectorVector)
	require.Len(t, sv, 2)
	require.NotEqual(t, sv[0].Selector, sv[1].Selector)
	for _, entry := range sv {
		require.NotContains(t, entry.Selector, "role")
		require.NotContains(t, entry.Term, "admin")
	}
}

func TestDevEngine_SteVecWithoutSelector(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Apply(context.Background(), []TermRequest{
		{Table: "users", Column: "profile", IndexKind: IndexSteVec},
	}, CallOptions{})
	require.Error(t, err)

	var eerr *EngineError
	require.ErrorAs(t, err, &eerr)
	require.Equal(t, CodeInvalidJSONPath, eerr.Code)
}

func TestDevEngine_UnknownIndexKind(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Apply(context.Background(), []TermRequest{
		{Value: "x", Table: "users", Column: "email", IndexKind: IndexKind("fuzzy")},
	}, CallOptions{})
	require.Error(t, err)

	var eerr *EngineError
	require.ErrorAs(t, err, &eerr)
	require.Equal(t, CodeUnknownQueryOp, eerr.Code)
}

func TestDevEngine_RevealRoundTrip(t *testing.T) {
	engine := newTestEngine(t)
	req := TermRequest{Value: "hello, world", Table: "users", Column: "notes"}

	results, err := engine.Apply(context.Background(), []TermRequest{req}, CallOptions{})
	require.NoError(t, err)

	record := &Encrypted{
		Ciphertext: results[0].Ciphertext,
		Ident:      Ident{Table: "users", Column: "notes"},
		Version:    SchemaVersion,
	}
	values, err := engine.Reveal(context.Background(), []*Encrypted{record}, CallOptions{})
	require.NoError(t, err)
	require.Equal(t, "hello, world", values[0])
}

func TestDevEngine_RevealAfterRotation(t *testing.T) {
	oldEngine := newTestEngine(t)
	results, err := oldEngine.Apply(context.Background(), []TermRequest{
		{Value: "survives rotation", Table: "users", Column: "notes"},
	}, CallOptions{})
	require.NoError(t, err)

	// New default key, old key still registered: old ciphertext must open.
	rotated, err := NewDevEngine(
		WithRootKey("v1", testRootKey("v1")),
		WithRootKey("v2", testRootKey("v2")),
		WithDefaultRootKey("v2"),
	)
	require.NoError(t, err)

	record := &Encrypted{
		Ciphertext: results[0].Ciphertext,
		Ident:      Ident{Table: "users", Column: "notes"},
		Version:    SchemaVersion,
	}
	values, err := rotated.Reveal(context.Background(), []*Encrypted{record}, CallOptions{})
	require.NoError(t, err)
	require.Equal(t, "survives rotation", values[0])
}

func TestDevEngine_RevealWrongColumnFails(t *testing.T) {
	engine := newTestEngine(t)
	results, err := engine.Apply(context.Background(), []TermRequest{
		{Value: "bound to notes", Table: "users", Column: "notes"},
	}, CallOptions{})
	require.NoError(t, err)

	// Column identity participates in key derivation, so a record replayed
	// against another column must not open.
	record := &Encrypted{
		Ciphertext: results[0].Ciphertext,
		Ident:      Ident{Table: "users", Column: "email"},
		Version:    SchemaVersion,
	}
	_, err = engine.Reveal(context.Background(), []*Encrypted{record}, CallOptions{})
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDevEngine_RevealTamperedCiphertext(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Reveal(context.Background(), []*Encrypted{
		{Ciphertext: "bm90IGEgcmVhbCBjaXBoZXJ0ZXh0IGF0IGFsbCwgc29ycnk=", Ident: Ident{Table: "users", Column: "notes"}, Version: SchemaVersion},
	}, CallOptions{})
	require.Error(t, err)
}

func TestDevEngine_CompressionRoundTrip(t *testing.T) {
	engine := newTestEngine(t)
	large := strings.Repeat("compressible content ", 200) // ~4KB, above threshold

	results, err := engine.Apply(context.Background(), []TermRequest{
		{Value: large, Table: "users", Column: "notes"},
	}, CallOptions{})
	require.NoError(t, err)

	record := &Encrypted{
		Ciphertext: results[0].Ciphertext,
		Ident:      Ident{Table: "users", Column: "notes"},
		Version:    SchemaVersion,
	}
	values, err := engine.Reveal(context.Background(), []*Encrypted{record}, CallOptions{})
	require.NoError(t, err)
	require.Equal(t, large, values[0])
}

func TestDevEngine_CompressionDisabled(t *testing.T) {
	engine := newTestEngine(t, WithCompressionDisabled())
	large := strings.Repeat("incompressible? no, just unprocessed ", 100)

	results, err := engine.Apply(context.Background(), []TermRequest{
		{Value: large, Table: "users", Column: "notes"},
	}, CallOptions{})
	require.NoError(t, err)

	record := &Encrypted{
		Ciphertext: results[0].Ciphertext,
		Ident:      Ident{Table: "users", Column: "notes"},
		Version:    SchemaVersion,
	}
	values, err := engine.Reveal(context.Background(), []*Encrypted{record}, CallOptions{})
	require.NoError(t, err)
	require.Equal(t, large, values[0])
}

func TestNewDevEngineWithProvider(t *testing.T) {
	provider := NewStaticRootKeyProvider(map[string][]byte{
		"v1": testRootKey("v1"),
		"v2": testRootKey("v2"),
	}, "v2")

	engine, err := NewDevEngineWithProvider(provider)
	require.NoError(t, err)

	results, err := engine.Apply(context.Background(), []TermRequest{
		{Value: "via provider", Table: "users", Column: "notes"},
	}, CallOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, results[0].Ciphertext)
}

func TestStaticRootKeyProvider_UnknownKey(t *testing.T) {
	provider := NewStaticRootKeyProvider(map[string][]byte{"v1": testRootKey("v1")}, "v1")

	_, err := provider.RootKey("v9")
	require.ErrorIs(t, err, ErrKeyNotFound)
}
