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

package app

import (
	"encoding/binary"
	"fmt"

	"github.com/ultiledger/go-fba/consensus"
	"github.com/ultiledger/go-fba/crypto"
)

// StringValue is the value type decided by the simulated nodes.
type StringValue string

func (v StringValue) Less(o consensus.Value) bool {
	return v < o.(StringValue)
}

func (v StringValue) String() string {
	return string(v)
}

// Combine keeps the value with the larger hash salted by the slot,
// so that no proposer is favored across slots.
func (v StringValue) Combine(o consensus.Value, slotID consensus.SlotID) consensus.Value {
	ov := o.(StringValue)
	hv, ho := v.saltedHash(slotID), ov.saltedHash(slotID)
	if hv > ho || (hv == ho && v >= ov) {
		return v
	}
	return ov
}

func (v StringValue) saltedHash(slotID consensus.SlotID) uint64 {
	buf := make([]byte, 8, 8+len(v))
	binary.BigEndian.PutUint64(buf, uint64(slotID))
	buf = append(buf, v...)
	return crypto.Uint64Hash(buf)
}

// codec of string values for the ledger
type stringCodec struct{}

func (stringCodec) EncodeValue(v consensus.Value) ([]byte, error) {
	sv, ok := v.(StringValue)
	if !ok {
		return nil, fmt.Errorf("unexpected value type %T", v)
	}
	return []byte(sv), nil
}

func (stringCodec) DecodeValue(b []byte) (consensus.Value, error) {
	return StringValue(b), nil
}
