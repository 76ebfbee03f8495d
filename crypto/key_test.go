package crypto

import (
	"bytes"
	"encoding/binary"
	"testing"

	b58 "github.com/mr-tron/base58/base58"
	"github.com/stretchr/testify/assert"
)

var testHash = "05319d6e01057b489715b5c0cf9562059595a6d2cbbd0a080360937b82f831fc"

func TestKeyValidity(t *testing.T) {
	nk := &Key{Code: KeyTypeNodeID}
	copy(nk.Hash[:], testHash)
	assert.Equal(t, true, IsValidKey(EncodeKey(nk)))

	sk := &Key{Code: KeyTypeSeed}
	copy(sk.Hash[:], testHash)
	assert.Equal(t, true, IsValidKey(EncodeKey(sk)))

	// test empty key string
	assert.Equal(t, false, IsValidKey(""))

	// construct an invalid key type
	tk := Key{Code: KeyType(128)}
	copy(tk.Hash[:], testHash)

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, tk)
	assert.Equal(t, false, IsValidKey(b58.Encode(buf.Bytes())))
}

func TestKeyRoundTrip(t *testing.T) {
	k := &Key{Code: KeyTypeNodeID}
	copy(k.Hash[:], testHash)

	decoded, err := DecodeKey(EncodeKey(k))
	assert.Nil(t, err)
	assert.Equal(t, k, decoded)
}
