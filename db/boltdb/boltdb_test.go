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

package boltdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ultiledger/go-fba/db"
)

func TestBoltDB(t *testing.T) {
	bt, err := db.Open("boltdb", filepath.Join(t.TempDir(), "test.db"))
	require.Nil(t, err)
	defer bt.Close()

	// create bucket
	err = bt.NewBucket("TEST")
	assert.Equal(t, nil, err)
	assert.NotNil(t, bt.NewBucket(""))

	// test get nonexistance key
	val, err := bt.Get("TEST", []byte("none"))
	assert.Equal(t, nil, err)
	assert.Equal(t, []byte(nil), val)

	// test set key/value pair
	err = bt.Put("TEST", []byte("testKey"), []byte("testValue"))
	assert.Equal(t, nil, err)
	err = bt.Put("TEST", []byte("testKey2"), []byte("testValue2"))
	assert.Equal(t, nil, err)
	err = bt.Put("TEST", []byte("other"), []byte("otherValue"))
	assert.Equal(t, nil, err)

	// test get value of key
	val, err = bt.Get("TEST", []byte("testKey"))
	assert.Equal(t, err, nil)
	assert.Equal(t, []byte("testValue"), val)

	// test prefix scan
	vals, err := bt.GetAll("TEST", []byte("testKey"))
	assert.Equal(t, nil, err)
	assert.Equal(t, [][]byte{[]byte("testValue"), []byte("testValue2")}, vals)

	// test delete
	assert.Nil(t, bt.Delete("TEST", []byte("testKey")))
	val, err = bt.Get("TEST", []byte("testKey"))
	assert.Nil(t, err)
	assert.Nil(t, val)

	// missing bucket
	assert.NotNil(t, bt.Put("MISSING", []byte("k"), []byte("v")))

	assert.Nil(t, bt.Close())
	_, err = bt.Get("TEST", []byte("testKey2"))
	assert.Equal(t, db.ErrDatabaseClosed, err)
}
