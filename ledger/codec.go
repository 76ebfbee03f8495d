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
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ultiledger/go-fba/consensus"
)

// ValueCodec converts application values to and from bytes.
type ValueCodec interface {
	EncodeValue(v consensus.Value) ([]byte, error)
	DecodeValue(b []byte) (consensus.Value, error)
}

// field numbers of an externalize record
const (
	fieldSlot    protowire.Number = 1
	fieldCounter protowire.Number = 2
	fieldValue   protowire.Number = 3
	fieldHighest protowire.Number = 4
)

var ErrMalformedRecord = errors.New("malformed externalize record")

// Record is a persisted externalization of a slot.
type Record struct {
	SlotID      consensus.SlotID
	Externalize *consensus.ExternalizeTopic
}

func encodeRecord(codec ValueCodec, rec *Record) ([]byte, error) {
	ext := rec.Externalize
	if ext == nil || ext.Ballot.X == nil {
		return nil, fmt.Errorf("slot %d has no externalized value", rec.SlotID)
	}
	vb, err := codec.EncodeValue(ext.Ballot.X)
	if err != nil {
		return nil, fmt.Errorf("encode value failed: %v", err)
	}

	var b []byte
	b = protowire.AppendTag(b, fieldSlot, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.SlotID))
	b = protowire.AppendTag(b, fieldCounter, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(ext.Ballot.N))
	b = protowire.AppendTag(b, fieldValue, protowire.BytesType)
	b = protowire.AppendBytes(b, vb)
	b = protowire.AppendTag(b, fieldHighest, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(ext.Highest))
	return b, nil
}

func decodeRecord(codec ValueCodec, b []byte) (*Record, error) {
	rec := &Record{Externalize: &consensus.ExternalizeTopic{}}
	var value []byte
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, ErrMalformedRecord
		}
		b = b[n:]
		switch {
		case num == fieldValue && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, ErrMalformedRecord
			}
			value = v
			b = b[n:]
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, ErrMalformedRecord
			}
			switch num {
			case fieldSlot:
				rec.SlotID = consensus.SlotID(v)
			case fieldCounter:
				rec.Externalize.Ballot.N = uint32(v)
			case fieldHighest:
				rec.Externalize.Highest = uint32(v)
			}
			b = b[n:]
		default:
			// skip unknown fields
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, ErrMalformedRecord
			}
			b = b[n:]
		}
	}
	if value == nil {
		return nil, ErrMalformedRecord
	}
	v, err := codec.DecodeValue(value)
	if err != nil {
		return nil, fmt.Errorf("decode value failed: %v", err)
	}
	rec.Externalize.Ballot.X = v
	return rec, nil
}
