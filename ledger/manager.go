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

package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/ultiledger/go-fba/consensus"
	"github.com/ultiledger/go-fba/db"
)

var ErrRecordNotExist = errors.New("externalize record not exist")

// Manager persists the externalized slots of a node so that
// a restarted node keeps answering peers with its decisions.
type Manager struct {
	database db.Database
	bucket   string
	codec    ValueCodec

	// LRU cache for records
	records *lru.Cache
}

func NewManager(d db.Database, codec ValueCodec) (*Manager, error) {
	lm := &Manager{
		database: d,
		bucket:   "EXTERNALIZE",
		codec:    codec,
	}
	err := lm.database.NewBucket(lm.bucket)
	if err != nil {
		return nil, fmt.Errorf("create db bucket %s failed: %v", lm.bucket, err)
	}
	cache, err := lru.New(1000)
	if err != nil {
		return nil, fmt.Errorf("create ledger manager LRU cache failed: %v", err)
	}
	lm.records = cache
	return lm, nil
}

// Save the externalized ballot of the slot.
func (lm *Manager) Save(slotID consensus.SlotID, ext *consensus.ExternalizeTopic) error {
	rec := &Record{SlotID: slotID, Externalize: ext}
	b, err := encodeRecord(lm.codec, rec)
	if err != nil {
		return fmt.Errorf("encode record of slot %d failed: %v", slotID, err)
	}
	err = lm.database.Put(lm.bucket, slotKey(slotID), b)
	if err != nil {
		return fmt.Errorf("save record of slot %d in db failed: %v", slotID, err)
	}
	lm.records.Add(slotID, rec)
	return nil
}

// Get the externalized ballot of the slot.
func (lm *Manager) Get(slotID consensus.SlotID) (*consensus.ExternalizeTopic, error) {
	if rec, ok := lm.records.Get(slotID); ok {
		ext := *rec.(*Record).Externalize
		return &ext, nil
	}

	b, err := lm.database.Get(lm.bucket, slotKey(slotID))
	if err != nil {
		return nil, fmt.Errorf("get record of slot %d failed: %v", slotID, err)
	}
	if b == nil {
		return nil, ErrRecordNotExist
	}
	rec, err := decodeRecord(lm.codec, b)
	if err != nil {
		return nil, fmt.Errorf("record of slot %d decode failed: %v", slotID, err)
	}
	lm.records.Add(slotID, rec)

	ext := *rec.Externalize
	return &ext, nil
}

// Load all the persisted records, the result seeds a consensus node.
func (lm *Manager) Load() (map[consensus.SlotID]*consensus.ExternalizeTopic, error) {
	bs, err := lm.database.GetAll(lm.bucket, nil)
	if err != nil {
		return nil, fmt.Errorf("load records failed: %v", err)
	}
	exts := make(map[consensus.SlotID]*consensus.ExternalizeTopic, len(bs))
	for _, b := range bs {
		rec, err := decodeRecord(lm.codec, b)
		if err != nil {
			return nil, err
		}
		exts[rec.SlotID] = rec.Externalize
	}
	return exts, nil
}

// slot keys are big endian so that iteration follows slot order
func slotKey(slotID consensus.SlotID) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(slotID))
	return k
}
