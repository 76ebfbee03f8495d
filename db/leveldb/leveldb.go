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

package leveldb

import (
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/ultiledger/go-fba/db"
)

func init() {
	db.Register("leveldb", New)
}

// bucket keys are stored as <bucket>/<key>, buckets themselves are
// tracked in memory and created on demand.
type levelDB struct {
	db      *leveldb.DB
	mu      sync.RWMutex
	buckets map[string]struct{}
}

// New opens a leveldb database in the path.
func New(path string) (db.Database, error) {
	ldb, err := leveldb.OpenFile(path, &opt.Options{BlockCacheCapacity: 8 * opt.MiB})
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s failed: %v", path, err)
	}
	return &levelDB{db: ldb, buckets: make(map[string]struct{})}, nil
}

func (l *levelDB) NewBucket(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return db.ErrDatabaseClosed
	}
	if name == "" {
		return db.ErrEmptyBucket
	}
	l.buckets[name] = struct{}{}
	return nil
}

func (l *levelDB) Put(bucket string, key, value []byte) error {
	ldb, err := l.open(bucket)
	if err != nil {
		return err
	}
	return ldb.Put(bucketKey(bucket, key), value, nil)
}

func (l *levelDB) Delete(bucket string, key []byte) error {
	ldb, err := l.open(bucket)
	if err != nil {
		return err
	}
	return ldb.Delete(bucketKey(bucket, key), nil)
}

func (l *levelDB) Get(bucket string, key []byte) ([]byte, error) {
	ldb, err := l.open(bucket)
	if err != nil {
		return nil, err
	}
	val, err := ldb.Get(bucketKey(bucket, key), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (l *levelDB) GetAll(bucket string, keyPrefix []byte) ([][]byte, error) {
	ldb, err := l.open(bucket)
	if err != nil {
		return nil, err
	}
	iter := ldb.NewIterator(util.BytesPrefix(bucketKey(bucket, keyPrefix)), nil)
	defer iter.Release()

	var vals [][]byte
	for iter.Next() {
		vals = append(vals, append([]byte(nil), iter.Value()...))
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return vals, nil
}

func (l *levelDB) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

func (l *levelDB) open(bucket string) (*leveldb.DB, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.db == nil {
		return nil, db.ErrDatabaseClosed
	}
	if _, ok := l.buckets[bucket]; !ok {
		return nil, fmt.Errorf("bucket %s not exist", bucket)
	}
	return l.db, nil
}

func bucketKey(bucket string, key []byte) []byte {
	b := make([]byte, 0, len(bucket)+1+len(key))
	b = append(b, bucket...)
	b = append(b, '/')
	return append(b, key...)
}
