package memdb

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ultiledger/go-fba/db"
)

// Test Memdb.
func TestMemDB(t *testing.T) {
	// open the database
	mdb, err := db.Open("memdb", "")
	assert.Nil(t, err)

	// unknown bucket
	_, err = mdb.Get("TEST", []byte("none"))
	assert.NotEqual(t, nil, err)

	assert.Nil(t, mdb.NewBucket("TEST"))

	// test get nonexistance key
	val, err := mdb.Get("TEST", []byte("none"))
	assert.Equal(t, nil, err)
	assert.Equal(t, []byte(nil), val)

	// test set key/value pair
	err = mdb.Put("TEST", []byte("testKey"), []byte("testValue"))
	assert.Equal(t, nil, err)
	err = mdb.Put("TEST", []byte("testKey2"), []byte("testValue2"))
	assert.Equal(t, nil, err)
	err = mdb.Put("TEST", []byte("zz"), []byte("zzValue"))
	assert.Equal(t, nil, err)

	// test get value of key
	val, err = mdb.Get("TEST", []byte("testKey"))
	assert.Equal(t, err, nil)
	assert.Equal(t, []byte("testValue"), val)

	vals, err := mdb.GetAll("TEST", []byte("test"))
	assert.Nil(t, err)
	assert.Equal(t, [][]byte{[]byte("testValue"), []byte("testValue2")}, vals)

	assert.Nil(t, mdb.Delete("TEST", []byte("testKey")))
	val, err = mdb.Get("TEST", []byte("testKey"))
	assert.Nil(t, err)
	assert.Nil(t, val)

	assert.Nil(t, mdb.Close())
	assert.Equal(t, db.ErrDatabaseClosed, mdb.Put("TEST", []byte("k"), []byte("v")))
}
