package protect

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Purpose strings for HKDF derivation - distinct strings ensure separate
// subkeys per indexing concern.
const (
	purposeEncryption = "protect-dev-encryption"
	purposeEquality   = "protect-dev-equality"
	purposeMatch      = "protect-dev-match"
	purposeSelector   = "protect-dev-selector"
)

// columnKeys holds the subkeys one (root key, table, column) triple derives.
// Cached after first derivation.
type columnKeys struct {
	encryption [32]byte // XSalsa20-Poly1305 key
	equality   [32]byte // HMAC-SHA256 key for unique tags and sv terms
	match      [32]byte // HMAC-SHA256 key for bloom-filter positions
	selector   [32]byte // HMAC-SHA256 key for selector tags
}

// deriveColumnKeys derives per-column subkeys from a 32-byte root key using
// HKDF-SHA256. The info string binds each subkey to its purpose and to the
// table.column identity, so no two columns share index keys.
func deriveColumnKeys(rootKey []byte, table, column string) (*columnKeys, error) {
	if len(rootKey) != 32 {
		return nil, ErrInvalidKeySize
	}

	keys := &columnKeys{}
	scope := "|" + table + "." + column
	derivations := []struct {
		purpose string
		out     []byte
	}{
		{purposeEncryption, keys.encryption[:]},
		{purposeEquality, keys.equality[:]},
		{purposeMatch, keys.match[:]},
		{purposeSelector, keys.selector[:]},
	}
	for _, d := range derivations {
		if err := hkdfDerive(rootKey, d.purpose+scope, d.out); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// hkdfDerive performs HKDF-SHA256 key derivation with the given info string.
// No salt is used (nil salt means HKDF uses a zero-filled salt of HashLen bytes).
func hkdfDerive(rootKey []byte, info string, out []byte) error {
	reader := hkdf.New(sha256.New, rootKey, nil, []byte(info))
	_, err := io.ReadFull(reader, out)
	return err
}
