package canlink

// Challenge/response key derivation for the gateway unlock handshake.
// TEA-style mixer over two 32-bit words: the gateway-specific cypher and the
// 4-byte seed read from the SEED characteristic. All arithmetic wraps mod
// 2^32. The derived key is written back little-endian to the KEY
// characteristic.

import (
	"encoding/binary"
	"fmt"
)

const (
	cipherRounds = 32
	cipherDelta  = 0x9E3779B9

	// Sub-key constants burned into the gateway firmware.
	cipherKey0 = 0x78E0A2B5
	cipherKey1 = 0x31C9D04F
	cipherKey2 = 0xD6A8F37C
	cipherKey3 = 0x5B3E91E8
)

// DeriveKey runs the block transform over (cypher, seed) and returns the
// unlock key. Same inputs always produce the same key.
func DeriveKey(cypher, seed uint32) uint32 {
	w0, w1 := cypher, seed
	var sum uint32
	for i := 0; i < cipherRounds; i++ {
		sum += cipherDelta
		w1 += ((w0 << 4) + cipherKey0) ^ (w0 + sum) ^ ((w0 >> 5) + cipherKey1)
		w0 += ((w1 << 4) + cipherKey2) ^ (w1 + sum) ^ ((w1 >> 5) + cipherKey3)
	}
	return w1
}

// UnpackSeed parses the 4-byte little-endian seed value.
func UnpackSeed(data []byte) (uint32, error) {
	if len(data) != 4 {
		return 0, fmt.Errorf("canlink: seed must be 4 bytes, got %d", len(data))
	}
	return binary.LittleEndian.Uint32(data), nil
}

// PackKey encodes a derived key for the KEY characteristic write.
func PackKey(key uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, key)
	return buf
}
