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
	"encoding/binary"
	"math"

	"github.com/ultiledger/go-fba/crypto"
)

const (
	hashNeighbor = "N"
	hashPriority = "P"
)

// Compute the round hash of a node for the slot.
func (s *Slot) roundHash(round uint32, tag string, id NodeID) uint64 {
	buf := make([]byte, 12, 12+len(tag)+len(id))
	binary.BigEndian.PutUint64(buf[:8], uint64(s.id))
	binary.BigEndian.PutUint32(buf[8:], round)
	buf = append(buf, tag...)
	buf = append(buf, string(id)...)
	return crypto.Uint64Hash(buf)
}

// Weight of the node scaled to the uint64 range, the local
// node always has full weight.
func (s *Slot) weight(id NodeID) uint64 {
	if id == s.self {
		return math.MaxUint64
	}
	w := s.quorum.Weight(id)
	if w >= 1 {
		return math.MaxUint64
	}
	return uint64(w * float64(math.MaxUint64))
}

// Nodes eligible as leader in the round.
func (s *Slot) neighbors(round uint32) []NodeID {
	var ids []NodeID
	for _, id := range s.candidateNodes() {
		if s.roundHash(round, hashNeighbor, id) < s.weight(id) || id == s.self {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Slot) candidateNodes() []NodeID {
	ids := s.quorum.Nodes()
	for _, id := range ids {
		if id == s.self {
			return ids
		}
	}
	return append(ids, s.self)
}

// Leader of the round is the neighbor with the highest priority.
func (s *Slot) leader(round uint32) NodeID {
	var leader NodeID
	var top uint64
	for i, id := range s.neighbors(round) {
		p := s.roundHash(round, hashPriority, id)
		if i == 0 || p > top || (p == top && id < leader) {
			leader, top = id, p
		}
	}
	return leader
}

// Add the leader of the current round to the priority peers and pick
// up its votes while no candidate is confirmed.
func (s *Slot) electLeader() {
	leader := s.leader(s.priorityRound)
	s.priorityPeers = s.priorityPeers.Add(leader)
	s.logger.Debugw("nomination leader", "slot", s.id, "round", s.priorityRound, "leader", leader)

	if s.confirmed.Len() > 0 {
		return
	}
	if leader == s.self {
		if s.proposed != nil {
			s.nominated = s.nominated.Add(s.proposed)
		}
		return
	}
	if msg, ok := s.messages[leader]; ok {
		if nom := nominationOf(msg.Topic); nom != nil {
			s.nominated = s.nominated.Union(nom.Nominated).Union(nom.Accepted)
		}
	}
}
