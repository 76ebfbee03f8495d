package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var key string = "hello world!"

func TestSHA256Hash(t *testing.T) {
	digest := SHA256Hash([]byte(key))
	assert.Equal(t, len(digest), 44)
}

func TestUint64Hash(t *testing.T) {
	a := Uint64Hash([]byte(key))
	b := Uint64Hash([]byte(key))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, Uint64Hash([]byte("hello world?")))
}
