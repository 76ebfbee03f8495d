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

package consensus

import (
	"time"

	"github.com/ultiledger/go-fba/log"
)

// testValue combines to the larger of the two values.
type testValue string

func (v testValue) Less(o Value) bool {
	return v < o.(testValue)
}

func (v testValue) Combine(o Value, _ SlotID) Value {
	if v.Less(o) {
		return o
	}
	return v
}

func (v testValue) String() string {
	return string(v)
}

func vals(vs ...string) ValueSet {
	set := NewValueSet()
	for _, v := range vs {
		set = set.Add(testValue(v))
	}
	return set
}

func ballot(n uint32, x string) Ballot {
	return Ballot{N: n, X: testValue(x)}
}

var testQuorum = FlatQuorum(3, "A", "B", "C", "D")

func msg(sender NodeID, topic Topic) *Message {
	return &Message{Sender: sender, SlotID: 1, Quorum: testQuorum, Topic: topic}
}

func testSlot(self NodeID) *Slot {
	return newSlot(1, self, testQuorum, DefaultConfig(), time.Time{}, log.Named("test"))
}
