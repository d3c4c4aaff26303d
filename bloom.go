package protect

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"slices"
	"strconv"
	"strings"
)

// Bloom-filter parameters for the development engine's match index. These
// must match on write and search, so they are engine configuration, not
// per-term options.
const (
	defaultBloomFilterSize = 2048 // bits
	defaultBloomHashCount  = 3
	matchNgramSize         = 3
)

// matchTokens tokenizes a string the way the match index expects: trim,
// lowercase, split on whitespace, then 3-grams per word. Words shorter than
// the n-gram size are kept whole so short values stay searchable.
func matchTokens(s string) []string {
	var tokens []string
	for _, word := range strings.Fields(strings.ToLower(strings.TrimSpace(s))) {
		runes := []rune(word)
		if len(runes) <= matchNgramSize {
			tokens = append(tokens, word)
			continue
		}
		for i := 0; i+matchNgramSize <= len(runes); i++ {
			tokens = append(tokens, string(runes[i:i+matchNgramSize]))
		}
	}
	return tokens
}

// bloomPositions maps tokens to bit positions in an m-bit bloom filter using
// k HMAC-derived hash functions per token. Positions are deduplicated and
// sorted so equal token sets always produce identical filters.
func bloomPositions(key *[32]byte, tokens []string, m, k int) []uint32 {
	seen := make(map[uint32]struct{})
	for _, token := range tokens {
		for i := 0; i < k; i++ {
			mac := hmac.New(sha256.New, key[:])
			mac.Write([]byte(strconv.Itoa(i)))
			mac.Write([]byte{0})
			mac.Write([]byte(token))
			sum := mac.Sum(nil)
			pos := binary.BigEndian.Uint32(sum[:4]) % uint32(m)
			seen[pos] = struct{}{}
		}
	}
	positions := make([]uint32, 0, len(seen))
	for pos := range seen {
		positions = append(positions, pos)
	}
	slices.Sort(positions)
	return positions
}
