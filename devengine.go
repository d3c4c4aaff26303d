package protect

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
)

// DevEngine is an in-process Engine for development and tests. Ciphertext is
// XSalsa20-Poly1305 with per-column HKDF subkeys and optional zstd
// compression; index terms are deterministic HMAC tags, bloom-filter
// positions, and a plain order-preserving encoding. The order index is NOT a
// secure ORE scheme; see ore.go. It enforces no access policy: the attached
// access context and audit metadata are accepted and ignored.
//
// Safe for concurrent use.
type DevEngine struct {
	rootKeys             map[string][]byte
	defaultID            string
	compressionThreshold int
	compressionDisabled  bool
	bloomSize            int
	bloomHashes          int

	mu      sync.RWMutex
	derived map[string]*columnKeys
}

// devConfig holds development engine construction options.
type devConfig struct {
	rootKeys             map[string][]byte
	defaultID            string
	compressionThreshold int
	compressionDisabled  bool
	bloomSize            int
	bloomHashes          int
}

// DevOption is a functional option for configuring a DevEngine.
type DevOption func(*devConfig)

// WithRootKey registers a 32-byte root key under the given key ID. Multiple
// keys can be registered for key rotation; the first registered key becomes
// the default. The key is copied, so the caller may zero the original.
func WithRootKey(keyID string, key []byte) DevOption {
	return func(c *devConfig) {
		if c.rootKeys == nil {
			c.rootKeys = make(map[string][]byte)
		}
		keyCopy := make([]byte, len(key))
		copy(keyCopy, key)
		c.rootKeys[keyID] = keyCopy
		if c.defaultID == "" {
			c.defaultID = keyID
		}
	}
}

// WithDefaultRootKey selects which registered root key new encryptions use.
func WithDefaultRootKey(keyID string) DevOption {
	return func(c *devConfig) { c.defaultID = keyID }
}

// WithCompressionThreshold sets the minimum payload size in bytes before
// compression is attempted. Default is 1024.
func WithCompressionThreshold(bytes int) DevOption {
	return func(c *devConfig) { c.compressionThreshold = bytes }
}

// WithCompressionDisabled disables ciphertext compression entirely.
func WithCompressionDisabled() DevOption {
	return func(c *devConfig) { c.compressionDisabled = true }
}

// WithBloomParameters overrides the match index's filter size (bits) and
// hash count. Write and search must use the same parameters.
func WithBloomParameters(bits, hashes int) DevOption {
	return func(c *devConfig) {
		c.bloomSize = bits
		c.bloomHashes = hashes
	}
}

// NewDevEngine creates a development engine. At least one root key must be
// provided via WithRootKey.
func NewDevEngine(opts ...DevOption) (*DevEngine, error) {
	cfg := &devConfig{
		compressionThreshold: defaultCompressionThreshold,
		bloomSize:            defaultBloomFilterSize,
		bloomHashes:          defaultBloomHashCount,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.rootKeys) == 0 {
		return nil, ErrNoRootKeys
	}
	if _, ok := cfg.rootKeys[cfg.defaultID]; !ok {
		return nil, ErrDefaultKeyNotFound
	}
	for keyID, key := range cfg.rootKeys {
		if len(keyID) == 0 || len(keyID) > 255 {
			return nil, ErrInvalidKeyID
		}
		if len(key) != 32 {
			return nil, ErrInvalidKeySize
		}
	}

	return &DevEngine{
		rootKeys:             cfg.rootKeys,
		defaultID:            cfg.defaultID,
		compressionThreshold: cfg.compressionThreshold,
		compressionDisabled:  cfg.compressionDisabled,
		bloomSize:            cfg.bloomSize,
		bloomHashes:          cfg.bloomHashes,
		derived:              make(map[string]*columnKeys),
	}, nil
}

// Apply encrypts and indexes one canonical batch. Results come back in
// request order, one per request; the first failing term fails the batch.
func (e *DevEngine) Apply(ctx context.Context, requests []TermRequest, call CallOptions) ([]TermResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := make([]TermResult, len(requests))
	for i, req := range requests {
		res, err := e.applyTerm(req)
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}

func (e *DevEngine) applyTerm(req TermRequest) (TermResult, error) {
	keys, err := e.keysFor(e.defaultID, req.Table, req.Column)
	if err != nil {
		return TermResult{}, err
	}

	var res TermResult
	if req.Value != nil {
		payload, err := json.Marshal(req.Value)
		if err != nil {
			return TermResult{}, &EngineError{
				Code:    CodeInvalidQueryInput,
				Message: "value is not JSON-encodable",
			}
		}
		res.Ciphertext = e.seal(e.defaultID, keys, payload)
	}

	switch req.IndexKind {
	case "":
		// Encrypt-only column: no index term.
	case IndexUnique:
		text, err := indexText(req)
		if err != nil {
			return TermResult{}, err
		}
		res.Term = UniqueTag(hexHMAC(&keys.equality, text))
	case IndexMatch:
		text, err := indexText(req)
		if err != nil {
			return TermResult{}, err
		}
		res.Term = BloomFilter(bloomPositions(&keys.match, matchTokens(text), e.bloomSize, e.bloomHashes))
	case IndexOre:
		encoded, err := encodeOrderable(req.Value)
		if err != nil {
			return TermResult{}, err
		}
		res.Term = OreTags(oreBlocks(encoded))
	case IndexSteVec:
		term, err := steVecTerm(keys, req)
		if err != nil {
			return TermResult{}, err
		}
		res.Term = term
	default:
		return TermResult{}, &EngineError{
			Code:    CodeUnknownQueryOp,
			Message: "unknown index kind " + strconv.Quote(string(req.IndexKind)),
		}
	}
	return res, nil
}

func steVecTerm(keys *columnKeys, req TermRequest) (IndexTerm, error) {
	switch {
	case len(req.SelectorVector) > 0:
		sv := make(SelectorVector, len(req.SelectorVector))
		for i, entry := range req.SelectorVector {
			text, err := canonicalText(entry.Value)
			if err != nil {
				return nil, err
			}
			sv[i] = SelectorVectorEntry{
				Selector: hexHMAC(&keys.selector, entry.Selector),
				Term:     hexHMAC(&keys.equality, text),
			}
		}
		return sv, nil
	case req.Selector != "":
		return SelectorTag(hexHMAC(&keys.selector, req.Selector)), nil
	default:
		return nil, &EngineError{
			Code:    CodeInvalidJSONPath,
			Message: "ste_vec term carries no selector",
		}
	}
}

// Reveal decrypts previously produced records. The root key is auto-detected
// from the ciphertext frame, so records sealed before a key rotation still
// open. JSON numbers come back as float64.
func (e *DevEngine) Reveal(ctx context.Context, records []*Encrypted, call CallOptions) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]any, len(records))
	for i, rec := range records {
		if rec == nil || rec.Ciphertext == "" {
			return nil, &EngineError{
				Code:    CodeInvalidQueryInput,
				Message: "record carries no ciphertext",
			}
		}
		raw, err := base64.StdEncoding.DecodeString(rec.Ciphertext)
		if err != nil {
			return nil, ErrInvalidCiphertext
		}
		flag, keyID, nonce, box, err := parseFrame(raw)
		if err != nil {
			return nil, err
		}
		keys, err := e.keysFor(keyID, rec.Ident.Table, rec.Ident.Column)
		if err != nil {
			return nil, err
		}
		opened, ok := secretbox.Open(nil, box, &nonce, &keys.encryption)
		if !ok {
			return nil, ErrDecryptionFailed
		}
		payload, err := decompress(opened, flag)
		if err != nil {
			return nil, err
		}
		var value any
		if err := json.Unmarshal(payload, &value); err != nil {
			return nil, ErrInvalidCiphertext
		}
		out[i] = value
	}
	return out, nil
}

// seal encrypts a JSON payload under the given column keys.
func (e *DevEngine) seal(keyID string, keys *columnKeys, payload []byte) string {
	toSeal, flag := maybeCompress(payload, e.compressionThreshold, e.compressionDisabled)
	nonce := generateNonce()
	box := secretbox.Seal(nil, toSeal, &nonce, &keys.encryption)
	return base64.StdEncoding.EncodeToString(frameCiphertext(flag, keyID, nonce, box))
}

// keysFor returns the cached per-column subkeys, deriving them on first use.
func (e *DevEngine) keysFor(keyID, table, column string) (*columnKeys, error) {
	cacheKey := keyID + "\x00" + table + "." + column

	e.mu.RLock()
	keys, ok := e.derived[cacheKey]
	e.mu.RUnlock()
	if ok {
		return keys, nil
	}

	rootKey, ok := e.rootKeys[keyID]
	if !ok {
		return nil, ErrKeyNotFound
	}
	derived, err := deriveColumnKeys(rootKey, table, column)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.derived[cacheKey]; ok {
		return existing, nil
	}
	e.derived[cacheKey] = derived
	return derived, nil
}

// indexText is the value form index terms are computed over: the normalized
// form when the term carried one, the canonical text form otherwise.
func indexText(req TermRequest) (string, error) {
	if req.IndexValue != nil {
		return *req.IndexValue, nil
	}
	return canonicalText(req.Value)
}

// canonicalText renders a value deterministically for HMAC and tokenization.
// Strings are used verbatim; numbers use their shortest decimal form;
// composites use compact JSON.
func canonicalText(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "null", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case uint64:
		return strconv.FormatUint(t, 10), nil
	case json.Number:
		return t.String(), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", &EngineError{
				Code:    CodeInvalidQueryInput,
				Message: "value is not JSON-encodable",
			}
		}
		return string(data), nil
	}
}

func hexHMAC(key *[32]byte, text string) string {
	mac := hmac.New(sha256.New, key[:])
	mac.Write([]byte(text))
	return hex.EncodeToString(mac.Sum(nil))
}

func generateNonce() [24]byte {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		panic("protect: nonce generation failed: " + err.Error())
	}
	return nonce
}
