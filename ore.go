package protect

import (
	"encoding/binary"
	"encoding/hex"
	"math"
)

// The development engine's order index is a plain order-preserving byte
// encoding emitted as hex blocks. Lexicographic comparison of the blocks
// matches the plaintext order, which is what range queries need. But the
// encoding reveals the plaintext structure outright: it is NOT a secure ORE
// scheme and exists only so range queries behave during development.

// oreStringPrefixLen caps how much of a string participates in ordering.
const oreStringPrefixLen = 16

// encodeOrderable turns a scalar into bytes whose lexicographic order equals
// the value's natural order.
func encodeOrderable(v any) ([]byte, error) {
	switch t := v.(type) {
	case float64:
		return encodeOrderedFloat(t), nil
	case float32:
		return encodeOrderedFloat(float64(t)), nil
	case int:
		return encodeOrderedFloat(float64(t)), nil
	case int8:
		return encodeOrderedFloat(float64(t)), nil
	case int16:
		return encodeOrderedFloat(float64(t)), nil
	case int32:
		return encodeOrderedFloat(float64(t)), nil
	case int64:
		return encodeOrderedFloat(float64(t)), nil
	case uint:
		return encodeOrderedFloat(float64(t)), nil
	case uint8:
		return encodeOrderedFloat(float64(t)), nil
	case uint16:
		return encodeOrderedFloat(float64(t)), nil
	case uint32:
		return encodeOrderedFloat(float64(t)), nil
	case uint64:
		return encodeOrderedFloat(float64(t)), nil
	case string:
		b := []byte(t)
		if len(b) > oreStringPrefixLen {
			b = b[:oreStringPrefixLen]
		}
		return b, nil
	case bool:
		if t {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	default:
		return nil, &EngineError{
			Code:    CodeInvalidQueryInput,
			Message: "value type is not orderable",
		}
	}
}

// encodeOrderedFloat maps a float64 onto 8 bytes whose big-endian byte order
// equals numeric order: non-negative values get the sign bit set, negative
// values are bit-flipped.
func encodeOrderedFloat(f float64) []byte {
	bits := math.Float64bits(f)
	if f >= 0 {
		bits |= 1 << 63
	} else {
		bits = ^bits
	}
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, bits)
	return out
}

// oreBlocks splits an orderable encoding into per-byte hex blocks, the shape
// the engine's ob field carries.
func oreBlocks(encoded []byte) []string {
	blocks := make([]string, len(encoded))
	for i, b := range encoded {
		blocks[i] = hex.EncodeToString([]byte{b})
	}
	return blocks
}
