package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testData = "federated voting"

func TestKeypair(t *testing.T) {
	pub, seed, err := NodeKeypair()
	assert.Nil(t, err)
	assert.Equal(t, true, IsValidKey(pub))
	assert.Equal(t, true, IsValidKey(seed))
}

func TestKeypairFromSeed(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	pub1, seed1, err := NodeKeypairFromSeed(seed)
	assert.Nil(t, err)
	pub2, seed2, err := NodeKeypairFromSeed(seed)
	assert.Nil(t, err)
	assert.Equal(t, pub1, pub2)
	assert.Equal(t, seed1, seed2)

	_, _, err = NodeKeypairFromSeed(seed[:16])
	assert.NotNil(t, err)

	pub3, err := PublicKeyFromSeed(seed1)
	assert.Nil(t, err)
	assert.Equal(t, pub1, pub3)

	_, err = PublicKeyFromSeed(pub1)
	assert.Equal(t, ErrInvalidKey, err)
}

func TestSignAndVerify(t *testing.T) {
	pub, seed, err := NodeKeypair()
	assert.Nil(t, err)

	signature, err := Sign(seed, []byte(testData))
	assert.Nil(t, err)
	assert.Equal(t, true, Verify(pub, signature, []byte(testData)))
	assert.Equal(t, false, Verify(pub, signature, []byte("tampered")))

	// the seed is not a public key
	assert.Equal(t, false, Verify(seed, signature, []byte(testData)))

	// the public key cannot sign
	_, err = Sign(pub, []byte(testData))
	assert.NotNil(t, err)
}
