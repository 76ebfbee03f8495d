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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testIDs = []NodeID{"A", "B", "C", "D"}

// testNetwork delivers every statement to all other nodes in order.
type testNetwork struct {
	t     *testing.T
	nodes map[NodeID]*Node
	queue []*Message
	now   time.Time
}

func newTestNetwork(t *testing.T) *testNetwork {
	nw := &testNetwork{t: t, nodes: make(map[NodeID]*Node), now: time.Unix(1000, 0)}
	for _, id := range testIDs {
		n, err := NewNode(id, testQuorum, nil, DefaultConfig())
		require.Nil(t, err)
		nw.nodes[id] = n
	}
	return nw
}

func (nw *testNetwork) send(msg *Message) {
	if msg != nil {
		nw.queue = append(nw.queue, msg)
	}
}

func (nw *testNetwork) pump() {
	for i := 0; len(nw.queue) > 0; i++ {
		require.Less(nw.t, i, 100000, "network did not settle")
		msg := nw.queue[0]
		nw.queue = nw.queue[1:]
		for _, id := range testIDs {
			if id == msg.Sender {
				continue
			}
			out, err := nw.nodes[id].Handle(msg)
			require.Nil(nw.t, err)
			nw.send(out)
		}
	}
}

func (nw *testNetwork) done(slotID SlotID) bool {
	for _, n := range nw.nodes {
		if _, ok := n.ExternalizedValue(slotID); !ok {
			return false
		}
	}
	return true
}

// run until every node externalized the slot, ticking an hour at a time
func (nw *testNetwork) run(slotID SlotID) {
	nw.pump()
	for round := 0; !nw.done(slotID); round++ {
		require.Less(nw.t, round, 100, "slot %d not externalized", slotID)
		nw.now = nw.now.Add(time.Hour)
		for _, id := range testIDs {
			for _, out := range nw.nodes[id].Tick(nw.now) {
				nw.send(out)
			}
		}
		nw.pump()
	}
}

func TestNodesAgreeOnSameValue(t *testing.T) {
	nw := newTestNetwork(t)
	for _, id := range testIDs {
		out, err := nw.nodes[id].Propose(1, testValue("v"))
		require.Nil(t, err)
		nw.send(out)
	}
	nw.run(1)

	for _, id := range testIDs {
		v, ok := nw.nodes[id].ExternalizedValue(1)
		assert.Equal(t, true, ok)
		assert.Equal(t, testValue("v"), v)
		assert.Equal(t, 0, len(nw.nodes[id].Pending()))
		assert.Equal(t, PhaseExternalize, nw.nodes[id].Phase(1))
	}
}

func TestNodesAgreeOnDifferentValues(t *testing.T) {
	nw := newTestNetwork(t)
	for _, id := range testIDs {
		out, err := nw.nodes[id].Propose(1, testValue("v"+string(id)))
		require.Nil(t, err)
		nw.send(out)
	}
	nw.run(1)

	first, _ := nw.nodes["A"].ExternalizedValue(1)
	assert.Contains(t, []Value{testValue("vA"), testValue("vB"), testValue("vC"), testValue("vD")}, first)
	for _, id := range testIDs {
		v, _ := nw.nodes[id].ExternalizedValue(1)
		assert.Equal(t, first, v)
	}
}

func TestNodesRunIndependentSlots(t *testing.T) {
	nw := newTestNetwork(t)
	for _, slotID := range []SlotID{1, 2} {
		for _, id := range testIDs {
			out, err := nw.nodes[id].Propose(slotID, testValue("s"+string(rune('0'+slotID))))
			require.Nil(t, err)
			nw.send(out)
		}
	}
	nw.run(1)
	nw.run(2)

	for _, id := range testIDs {
		v1, _ := nw.nodes[id].ExternalizedValue(1)
		v2, _ := nw.nodes[id].ExternalizedValue(2)
		assert.Equal(t, testValue("s1"), v1)
		assert.Equal(t, testValue("s2"), v2)
	}
}

func TestNodeExternalizeHook(t *testing.T) {
	nw := newTestNetwork(t)
	var got []SlotID
	nw.nodes["A"].OnExternalize(func(slotID SlotID, ext *ExternalizeTopic) {
		got = append(got, slotID)
		assert.Equal(t, testValue("v"), ext.Ballot.X)
	})
	for _, id := range testIDs {
		out, err := nw.nodes[id].Propose(1, testValue("v"))
		require.Nil(t, err)
		nw.send(out)
	}
	nw.run(1)
	assert.Equal(t, []SlotID{1}, got)
}

func externalizedNode(t *testing.T) *Node {
	seed := map[SlotID]*ExternalizeTopic{
		1: {Ballot: ballot(2, "v1"), Highest: 3},
	}
	n, err := NewNode("A", testQuorum, seed, DefaultConfig())
	require.Nil(t, err)
	return n
}

func TestNodeDivergence(t *testing.T) {
	n := externalizedNode(t)

	out, err := n.Handle(msg("B", &ExternalizeTopic{Ballot: ballot(2, "v2"), Highest: 3}))
	assert.Nil(t, out)
	var div *ConsensusDivergence
	require.Equal(t, true, errors.As(err, &div))
	assert.Equal(t, SlotID(1), div.SlotID)
	assert.Equal(t, NodeID("B"), div.Peer)
	assert.Equal(t, testValue("v1"), div.Own)
	assert.Equal(t, testValue("v2"), div.PeerValue)

	// the peer is quarantined
	assert.Equal(t, true, n.IsFaulty("B"))
	_, err = n.Handle(msg("B", &NominateTopic{Nominated: vals("x")}))
	assert.Equal(t, ErrQuarantined, err)

	// and released after the quarantine
	n.Tick(time.Time{}.Add(n.config.QuarantineTTL))
	assert.Equal(t, false, n.IsFaulty("B"))
}

func TestNodeAgreeingExternalize(t *testing.T) {
	n := externalizedNode(t)
	out, err := n.Handle(msg("B", &ExternalizeTopic{Ballot: ballot(2, "v1"), Highest: 5}))
	assert.Nil(t, err)
	assert.Nil(t, out)
	assert.Equal(t, false, n.IsFaulty("B"))
}

func TestNodeAnswersLatePeer(t *testing.T) {
	n := externalizedNode(t)
	out, err := n.Handle(msg("B", &NominateTopic{Nominated: vals("x")}))
	require.Nil(t, err)
	require.NotNil(t, out)
	assert.Equal(t, NodeID("A"), out.Sender)
	assert.Equal(t, uint64(1), out.Counter)
	assert.Equal(t, true, out.Topic.Equal(&ExternalizeTopic{Ballot: ballot(2, "v1"), Highest: 3}))
	assert.Equal(t, 0, len(n.Pending()))
}

func TestNodeRejectsInvalid(t *testing.T) {
	n, err := NewNode("A", testQuorum, nil, DefaultConfig())
	require.Nil(t, err)

	_, err = n.Handle(msg("B", &NominateTopic{Nominated: vals("a"), Accepted: vals("b")}))
	assert.Equal(t, true, errors.Is(err, ErrInvalidTopic))
	assert.Equal(t, 0, len(n.Pending()))

	_, err = n.Handle(nil)
	assert.Equal(t, ErrNilMessage, err)
}

func TestNodePropose(t *testing.T) {
	n := externalizedNode(t)
	_, err := n.Propose(1, testValue("x"))
	assert.Equal(t, ErrSlotExternalized, err)
	_, err = n.Propose(2, nil)
	assert.Equal(t, ErrNilValue, err)

	_, err = n.Propose(2, testValue("x"))
	assert.Nil(t, err)
	assert.Equal(t, []SlotID{2}, n.Pending())
}

func TestNodeCountersIncrease(t *testing.T) {
	nw := newTestNetwork(t)
	var last uint64
	n := nw.nodes["A"]
	for slotID := SlotID(1); slotID <= 3; slotID++ {
		n.slot(slotID).priorityPeers = NewNodeIDSet("A")
		out, err := n.Propose(slotID, testValue("v"))
		require.Nil(t, err)
		require.NotNil(t, out)
		assert.Equal(t, true, out.Counter > last)
		last = out.Counter
	}
}

func TestNewNodeValidation(t *testing.T) {
	_, err := NewNode("", testQuorum, nil, DefaultConfig())
	assert.NotNil(t, err)
	_, err = NewNode("A", nil, nil, DefaultConfig())
	assert.NotNil(t, err)
	_, err = NewNode("A", FlatQuorum(5, "A"), nil, DefaultConfig())
	assert.NotNil(t, err)

	n, err := NewNode("A", testQuorum, nil, Config{})
	assert.Nil(t, err)
	assert.NotNil(t, n)
	assert.Equal(t, DefaultConfig(), n.config)

	conf := Config{BallotTimeout: 3 * time.Second}
	n, err = NewNode("A", testQuorum, nil, conf)
	require.Nil(t, err)
	assert.Equal(t, 3*time.Second, n.config.BallotTimeout)
	assert.Equal(t, DefaultConfig().QuarantineTTL, n.config.QuarantineTTL)
	assert.Equal(t, DefaultConfig().NominationTimeout, n.config.NominationTimeout)
	assert.NotNil(t, n.SetQuorum(FlatQuorum(0, "A")))
	assert.Nil(t, n.SetQuorum(FlatQuorum(1, "A")))
	assert.Equal(t, 1, n.Quorum().Threshold)
}
