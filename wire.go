package protect

// Development-engine ciphertext format (binary, base64-encoded on the wire):
// [flag:1][keyIDLen:1][keyID:n][nonce:24][secretbox(payload)]
//
// Flag byte values:
//   0x00 = no compression
//   0x01 = zstd compressed
//
// The payload is the JSON encoding of the plaintext value, possibly
// compressed before sealing.

const (
	flagNoCompression byte = 0x00
	flagZstd          byte = 0x01

	nonceSize = 24
)

// frameCiphertext assembles the outer ciphertext format.
// Returns: [flag:1][keyIDLen:1][keyID:n][nonce:24][box]
func frameCiphertext(flag byte, keyID string, nonce [24]byte, box []byte) []byte {
	keyIDBytes := []byte(keyID)
	totalSize := 1 + 1 + len(keyIDBytes) + nonceSize + len(box)

	result := make([]byte, 0, totalSize)
	result = append(result, flag)
	result = append(result, byte(len(keyIDBytes)))
	result = append(result, keyIDBytes...)
	result = append(result, nonce[:]...)
	result = append(result, box...)
	return result
}

// parseFrame parses the outer ciphertext format.
func parseFrame(data []byte) (flag byte, keyID string, nonce [24]byte, box []byte, err error) {
	// Minimum: flag(1) + keyIDLen(1) + keyID(1) + nonce(24) + some box bytes
	minSize := 1 + 1 + 1 + nonceSize + 1
	if len(data) < minSize {
		err = ErrInvalidCiphertext
		return
	}

	flag = data[0]
	keyIDLen := int(data[1])
	if keyIDLen == 0 {
		err = ErrInvalidCiphertext
		return
	}

	headerSize := 1 + 1 + keyIDLen + nonceSize
	if len(data) < headerSize+1 {
		err = ErrInvalidCiphertext
		return
	}

	keyID = string(data[2 : 2+keyIDLen])
	copy(nonce[:], data[2+keyIDLen:2+keyIDLen+nonceSize])
	box = data[headerSize:]
	return
}
