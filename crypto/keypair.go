// Copyright 2019 The go-ultiledger Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package crypto

import (
	"crypto/rand"
	"errors"
	"io"

	b58 "github.com/mr-tron/base58/base58"
	"golang.org/x/crypto/ed25519"
)

// NodeKeypair generates a random node keypair and returns the
// encoded public key and seed.
func NodeKeypair() (string, string, error) {
	var seed [32]byte
	if _, err := io.ReadFull(rand.Reader, seed[:]); err != nil {
		return "", "", err
	}
	return NodeKeypairFromSeed(seed[:])
}

func NodeKeypairFromSeed(seed []byte) (string, string, error) {
	if len(seed) != ed25519.SeedSize {
		return "", "", errors.New("invalid seed, byte length is not 32")
	}
	privateKey := ed25519.NewKeyFromSeed(seed)
	publicKey := privateKey.Public().(ed25519.PublicKey)

	pub := &Key{Code: KeyTypeNodeID}
	copy(pub.Hash[:], publicKey)
	sd := &Key{Code: KeyTypeSeed}
	copy(sd.Hash[:], seed)

	return EncodeKey(pub), EncodeKey(sd), nil
}

// PublicKeyFromSeed derives the encoded public key of an encoded seed.
func PublicKeyFromSeed(seed string) (string, error) {
	k, err := DecodeKey(seed)
	if err != nil {
		return "", err
	}
	if k.Code != KeyTypeSeed {
		return "", ErrInvalidKey
	}
	pub, _, err := NodeKeypairFromSeed(k.Hash[:])
	return pub, err
}

func getPrivateKey(seed string) (ed25519.PrivateKey, error) {
	k, err := DecodeKey(seed)
	if err != nil {
		return nil, err
	}
	if k.Code != KeyTypeSeed {
		return nil, ErrInvalidKey
	}
	return ed25519.NewKeyFromSeed(k.Hash[:]), nil
}

// Sign the data with the private key derived from the encoded seed.
func Sign(seed string, data []byte) (string, error) {
	pk, err := getPrivateKey(seed)
	if err != nil {
		return "", err
	}
	return b58.Encode(ed25519.Sign(pk, data)), nil
}

// Verify the signature of the data against the encoded public key.
func Verify(publicKey, signature string, data []byte) bool {
	pk, err := DecodeKey(publicKey)
	if err != nil || pk.Code != KeyTypeNodeID {
		return false
	}
	sn, err := b58.Decode(signature)
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pk.Hash[:]), data, sn)
}
