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

package badger

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/ultiledger/go-fba/db"
)

func init() {
	db.Register("badger", New)
}

type badgerDB struct {
	db      *badger.DB
	mu      sync.RWMutex
	buckets map[string]struct{}
}

// New opens a badger database in the path, an empty path opens
// an in-memory instance.
func New(path string) (db.Database, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %s failed: %v", path, err)
	}
	return &badgerDB{db: bdb, buckets: make(map[string]struct{})}, nil
}

func (b *badgerDB) NewBucket(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return db.ErrDatabaseClosed
	}
	if name == "" {
		return db.ErrEmptyBucket
	}
	b.buckets[name] = struct{}{}
	return nil
}

func (b *badgerDB) Put(bucket string, key, value []byte) error {
	bdb, err := b.open(bucket)
	if err != nil {
		return err
	}
	return bdb.Update(func(txn *badger.Txn) error {
		return txn.Set(bucketKey(bucket, key), value)
	})
}

func (b *badgerDB) Delete(bucket string, key []byte) error {
	bdb, err := b.open(bucket)
	if err != nil {
		return err
	}
	return bdb.Update(func(txn *badger.Txn) error {
		return txn.Delete(bucketKey(bucket, key))
	})
}

func (b *badgerDB) Get(bucket string, key []byte) ([]byte, error) {
	bdb, err := b.open(bucket)
	if err != nil {
		return nil, err
	}
	var val []byte
	err = bdb.View(func(txn *badger.Txn) error {
		item, err := txn.Get(bucketKey(bucket, key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (b *badgerDB) GetAll(bucket string, keyPrefix []byte) ([][]byte, error) {
	bdb, err := b.open(bucket)
	if err != nil {
		return nil, err
	}
	prefix := bucketKey(bucket, keyPrefix)
	var vals [][]byte
	err = bdb.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			vals = append(vals, val)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vals, nil
}

func (b *badgerDB) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

func (b *badgerDB) open(bucket string) (*badger.DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return nil, db.ErrDatabaseClosed
	}
	if _, ok := b.buckets[bucket]; !ok {
		return nil, fmt.Errorf("bucket %s not exist", bucket)
	}
	return b.db, nil
}

func bucketKey(bucket string, key []byte) []byte {
	k := make([]byte, 0, len(bucket)+1+len(key))
	k = append(k, bucket...)
	k = append(k, '/')
	return append(k, key...)
}
