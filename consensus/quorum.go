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
	"fmt"
	"strings"

	"github.com/ultiledger/go-fba/crypto"
)

// MaxQuorumDepth bounds the nesting of quorums so that the recursive
// searches cannot exhaust the stack.
const MaxQuorumDepth = 4

// Member of a quorum is either a node or a nested quorum.
type Member struct {
	Node   *NodeID
	Quorum *Quorum
}

// Quorum is a threshold over a list of members, any Threshold of
// the members form a quorum slice.
type Quorum struct {
	Threshold int
	Members   []Member
}

// NodeMember builds a member referencing a node.
func NodeMember(id NodeID) Member {
	return Member{Node: &id}
}

// QuorumMember builds a member referencing a nested quorum.
func QuorumMember(q *Quorum) Member {
	return Member{Quorum: q}
}

func NewQuorum(threshold int, members ...Member) *Quorum {
	return &Quorum{Threshold: threshold, Members: members}
}

// Build a quorum with flat structure.
func FlatQuorum(threshold int, ids ...NodeID) *Quorum {
	q := &Quorum{Threshold: threshold}
	for _, id := range ids {
		q.Members = append(q.Members, NodeMember(id))
	}
	return q
}

// Build a quorum with one node.
func SingletonQuorum(id NodeID) *Quorum {
	return FlatQuorum(1, id)
}

// Needed returns the number of members that must agree to block
// every slice of the quorum.
func (q *Quorum) Needed() int {
	return 1 + len(q.Members) - q.Threshold
}

// Validate checks the threshold of every nested quorum and
// the nesting depth.
func (q *Quorum) Validate() error {
	return q.validate(1)
}

func (q *Quorum) validate(depth int) error {
	if depth > MaxQuorumDepth {
		return fmt.Errorf("quorum nested deeper than %d", MaxQuorumDepth)
	}
	if len(q.Members) == 0 {
		return errors.New("quorum has no members")
	}
	if q.Threshold < 1 || q.Threshold > len(q.Members) {
		return fmt.Errorf("threshold %d out of range [1, %d]", q.Threshold, len(q.Members))
	}
	for _, m := range q.Members {
		switch {
		case m.Node != nil && m.Quorum != nil:
			return errors.New("member is both node and quorum")
		case m.Node != nil:
			if *m.Node == "" {
				return errors.New("empty node id")
			}
		case m.Quorum != nil:
			if err := m.Quorum.validate(depth + 1); err != nil {
				return err
			}
		default:
			return errors.New("empty member")
		}
	}
	return nil
}

// Nodes returns the distinct nodes of the quorum in declared order.
func (q *Quorum) Nodes() []NodeID {
	var ids []NodeID
	seen := make(map[NodeID]bool)
	q.collect(&ids, seen)
	return ids
}

func (q *Quorum) collect(ids *[]NodeID, seen map[NodeID]bool) {
	for _, m := range q.Members {
		if m.Node != nil {
			if !seen[*m.Node] {
				seen[*m.Node] = true
				*ids = append(*ids, *m.Node)
			}
		} else if m.Quorum != nil {
			m.Quorum.collect(ids, seen)
		}
	}
}

// Weight returns the fraction of quorum slices containing the node.
func (q *Quorum) Weight(id NodeID) float64 {
	if len(q.Members) == 0 {
		return 0
	}
	ratio := float64(q.Threshold) / float64(len(q.Members))
	for _, m := range q.Members {
		if m.Node != nil && *m.Node == id {
			return ratio
		}
	}
	for _, m := range q.Members {
		if m.Quorum != nil {
			if w := m.Quorum.Weight(id); w > 0 {
				return ratio * w
			}
		}
	}
	return 0
}

func (q *Quorum) String() string {
	var parts []string
	for _, m := range q.Members {
		if m.Node != nil {
			parts = append(parts, string(*m.Node))
		} else if m.Quorum != nil {
			parts = append(parts, m.Quorum.String())
		}
	}
	return fmt.Sprintf("{%d: [%s]}", q.Threshold, strings.Join(parts, " "))
}

// Hash computes the base58 encoded sha256 checksum of the quorum.
func (q *Quorum) Hash() string {
	return crypto.SHA256Hash([]byte(q.String()))
}

// FindBlockingSet looks for a set of nodes whose statements satisfy
// the predicate and which intersect every slice of the quorum. It
// returns an empty set if there is none, otherwise the nodes found
// together with the predicate narrowed by their statements.
func (q *Quorum) FindBlockingSet(msgs map[NodeID]*Message, pred Predicate) (NodeIDSet, Predicate) {
	return findBlockingSet(q.Needed(), q.Members, msgs, pred, NodeIDSet{})
}

func findBlockingSet(needed int, members []Member, msgs map[NodeID]*Message, pred Predicate, sofar NodeIDSet) (NodeIDSet, Predicate) {
	if needed == 0 {
		return sofar, pred
	}
	if needed > len(members) {
		return NodeIDSet{}, pred
	}

	m, rest := members[0], members[1:]
	switch {
	case m.Node != nil:
		if sofar.Contains(*m.Node) {
			return findBlockingSet(needed-1, rest, msgs, pred, sofar)
		}
		if msg, ok := msgs[*m.Node]; ok {
			if next, ok := pred.Clone().Test(msg); ok {
				found, fpred := findBlockingSet(needed-1, rest, msgs, next, sofar.Add(*m.Node))
				if found.Len() > 0 {
					return found, fpred
				}
			}
		}
	case m.Quorum != nil:
		inner, ipred := findBlockingSet(m.Quorum.Needed(), m.Quorum.Members, msgs, pred.Clone(), sofar)
		if inner.Len() > 0 {
			found, fpred := findBlockingSet(needed-1, rest, msgs, ipred, inner)
			if found.Len() > 0 {
				return found, fpred
			}
		}
	}

	// skip the first member
	return findBlockingSet(needed, rest, msgs, pred, sofar)
}

// FindQuorum looks for a quorum containing a slice of this quorum in
// which every node satisfies the predicate. A node other than self only
// counts if a blocking set of its own declared quorum satisfies the
// predicate as well. It returns an empty set if there is no such quorum.
func (q *Quorum) FindQuorum(self NodeID, msgs map[NodeID]*Message, pred Predicate) (NodeIDSet, Predicate) {
	s := newQuorumSearch(self, msgs, pred)
	return s.find(q.Threshold, q.Members, pred, NodeIDSet{})
}

// quorumSearch holds the nodes that satisfy the unnarrowed predicate and
// are vouched for under it. Narrowing only rejects more messages, so no
// other node can join a quorum during the search.
type quorumSearch struct {
	self   NodeID
	msgs   map[NodeID]*Message
	viable map[NodeID]bool
	// predicates that never narrow keep the viable set exact
	narrowing bool
}

func newQuorumSearch(self NodeID, msgs map[NodeID]*Message, pred Predicate) *quorumSearch {
	s := &quorumSearch{
		self:      self,
		msgs:      msgs,
		viable:    make(map[NodeID]bool, len(msgs)),
		narrowing: pred.narrows(),
	}
	for id, msg := range msgs {
		next, ok := pred.Clone().Test(msg)
		if !ok {
			continue
		}
		if _, ok := vouch(self, msg, msgs, next); ok {
			s.viable[id] = true
		}
	}
	return s
}

// Count the members that can still be satisfied, an inner quorum counts
// once if enough of its own members can.
func (s *quorumSearch) reachable(members []Member, sofar NodeIDSet) int {
	count := 0
	for _, m := range members {
		switch {
		case m.Node != nil:
			if s.viable[*m.Node] || sofar.Contains(*m.Node) {
				count++
			}
		case m.Quorum != nil:
			if s.reachable(m.Quorum.Members, sofar) >= m.Quorum.Threshold {
				count++
			}
		}
	}
	return count
}

func (s *quorumSearch) find(threshold int, members []Member, pred Predicate, sofar NodeIDSet) (NodeIDSet, Predicate) {
	if threshold == 0 {
		return sofar, pred
	}
	if s.reachable(members, sofar) < threshold {
		return NodeIDSet{}, pred
	}

	m, rest := members[0], members[1:]
	switch {
	case m.Node != nil:
		id := *m.Node
		if sofar.Contains(id) {
			return s.find(threshold-1, rest, pred, sofar)
		}
		if s.viable[id] {
			next, ok := pred, true
			if s.narrowing {
				msg := s.msgs[id]
				if next, ok = pred.Clone().Test(msg); ok {
					next, ok = vouch(s.self, msg, s.msgs, next)
				}
			}
			if ok {
				found, fpred := s.find(threshold-1, rest, next, sofar.Add(id))
				if found.Len() > 0 {
					return found, fpred
				}
			}
		}
	case m.Quorum != nil:
		inner, ipred := s.find(m.Quorum.Threshold, m.Quorum.Members, pred.Clone(), sofar)
		if inner.Len() > 0 {
			found, fpred := s.find(threshold-1, rest, ipred, inner)
			if found.Len() > 0 {
				return found, fpred
			}
		}
	}

	// skip the first member
	return s.find(threshold, rest, pred, sofar)
}

// Check that the sender of the message is backed by a blocking set of
// its own quorum, the local node trusts its own statements.
func vouch(self NodeID, msg *Message, msgs map[NodeID]*Message, pred Predicate) (Predicate, bool) {
	if msg.Sender == self || msg.Quorum == nil {
		return pred, msg.Sender == self
	}
	found, next := msg.Quorum.FindBlockingSet(msgs, pred.Clone())
	if found.Len() == 0 {
		return pred, false
	}
	return next, true
}
