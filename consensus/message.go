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

import "fmt"

// Message is the envelope of a statement, it carries the quorum of
// the sender so that receivers can check transitive agreement.
type Message struct {
	// strictly increasing in the send order of the sender
	Counter uint64
	Sender  NodeID
	SlotID  SlotID
	Quorum  *Quorum
	Topic   Topic
}

// Valid checks the envelope and the structural rules of the statement.
func (m *Message) Valid() error {
	if m == nil {
		return ErrNilMessage
	}
	if m.Sender == "" {
		return invalidf("empty sender")
	}
	if m.Topic == nil {
		return invalidf("nil topic from %s", m.Sender)
	}
	if m.Quorum == nil {
		return invalidf("nil quorum from %s", m.Sender)
	}
	if err := m.Quorum.Validate(); err != nil {
		return invalidf("quorum of %s: %v", m.Sender, err)
	}
	return m.Topic.Valid()
}

func (m *Message) String() string {
	return fmt.Sprintf("(%s#%d slot %d: %v)", m.Sender, m.Counter, m.SlotID, m.Topic)
}

// Equal compares the statements of two messages, the counter
// and the envelope are ignored.
func (m *Message) Equal(o *Message) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.SlotID == o.SlotID && m.Topic.Equal(o.Topic)
}
