package crypto

import (
	"crypto/sha256"
	"encoding/binary"

	b58 "github.com/mr-tron/base58/base58"
)

// compute sha256 checksum (32 bytes)
func SHA256Hash(b []byte) string {
	v := sha256.Sum256(b)
	return b58.Encode(v[:])
}

// compute sha256 checksum and take the first 8 bytes as an integer
func Uint64Hash(b []byte) uint64 {
	v := sha256.Sum256(b)
	return binary.BigEndian.Uint64(v[:8])
}
