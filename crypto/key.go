package crypto

import (
	"bytes"
	"encoding/binary"
	"errors"

	b58 "github.com/mr-tron/base58/base58"
)

type KeyType uint8

const (
	_ KeyType = iota // skip zero
	KeyTypeNodeID
	KeyTypeSeed
)

var (
	ErrInvalidKey = errors.New("invalid key string")
)

// Key is the typed 32 bytes payload behind every encoded key.
type Key struct {
	Code KeyType
	Hash [32]byte
}

func DecodeKey(key string) (*Key, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	b, err := b58.Decode(key)
	if err != nil {
		return nil, ErrInvalidKey
	}

	var k Key
	r := bytes.NewReader(b)
	if err := binary.Read(r, binary.BigEndian, &k); err != nil {
		return nil, ErrInvalidKey
	}

	switch k.Code {
	case KeyTypeNodeID, KeyTypeSeed:
		return &k, nil
	}
	return nil, ErrInvalidKey
}

func EncodeKey(k *Key) string {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, k)
	return b58.Encode(buf.Bytes())
}

func IsValidKey(key string) bool {
	if _, err := DecodeKey(key); err != nil {
		return false
	}
	return true
}
