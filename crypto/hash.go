// Package crypto provides the game's hash/randomness oracle and the ed25519
// admission signature scheme.
//
// Every pseudo-random value in the engine (defog samples, PoW targets, flag
// commitments, reward draws) is derived from Keccak-256 over concatenated,
// domain-separated inputs. The oracle is treated as H(bytes) -> 256-bit
// value: collision-resistant and non-invertible, nothing more.
package crypto

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"

	"golang.org/x/crypto/sha3"
)

// Hash returns the Keccak-256 hash of the concatenation of parts as a
// lowercase hex string.
func Hash(parts ...[]byte) string {
	return hex.EncodeToString(HashBytes(parts...))
}

// HashBytes returns the raw Keccak-256 bytes of the concatenation of parts.
func HashBytes(parts ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// HashInt interprets the Keccak-256 hash of parts as a big-endian 256-bit
// unsigned integer.
func HashInt(parts ...[]byte) *big.Int {
	return new(big.Int).SetBytes(HashBytes(parts...))
}

// Uint64Bytes encodes v as 8 big-endian bytes, the canonical integer
// encoding fed to the oracle.
func Uint64Bytes(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

// HexBytes decodes a hex string, returning nil on malformed input. Block
// hashes and seeds travel through the API as hex; a nil result hashes as the
// empty string, which can never collide with a 32-byte identity.
func HexBytes(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}
