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

// Run the nomination protocol: adopt the votes of priority peers while
// this node has not nominated anything, then promote nominated values
// to accepted and accepted values to confirmed.
func (s *Slot) updateNomination() {
	if s.nominated.Len() == 0 {
		s.adoptPriorityVotes()
	}
	s.acceptNominations()
	s.confirmNominations()
}

// Copy the nominations of the priority peers into our own votes.
func (s *Slot) adoptPriorityVotes() {
	for _, id := range s.priorityPeers.Sorted() {
		if id == s.self {
			if s.proposed != nil && s.nominated.Len() == 0 {
				s.nominated = NewValueSet(s.proposed)
			}
			continue
		}
		msg, ok := s.messages[id]
		if !ok {
			continue
		}
		if nom := nominationOf(msg.Topic); nom != nil {
			s.nominated = s.nominated.Union(nom.Nominated).Union(nom.Accepted)
		}
	}
}

// Values mentioned by any cached nomination.
func (s *Slot) seenValues() ValueSet {
	vals := NewValueSet()
	for _, msg := range s.messages {
		if nom := nominationOf(msg.Topic); nom != nil {
			vals = vals.Union(nom.Nominated).Union(nom.Accepted)
		}
	}
	return vals
}

func (s *Slot) acceptNominations() bool {
	updated := false
	candidates := s.seenValues().Difference(s.accepted)
	for candidates.Len() > 0 {
		found, pred := s.accept(nominateFilter(candidates))
		if found.Len() == 0 {
			break
		}
		vals := pred.Values()
		s.nominated = s.nominated.Union(vals)
		s.accepted = s.accepted.Union(vals)
		candidates = candidates.Difference(vals)
		updated = true
		s.logger.Debugw("accepted nomination", "slot", s.id, "values", vals, "nodes", found.Sorted())
	}
	return updated
}

func (s *Slot) confirmNominations() bool {
	updated := false
	candidates := s.accepted.Difference(s.confirmed)
	for candidates.Len() > 0 {
		found, pred := s.quorum.FindQuorum(s.self, s.messages, nominateAcceptFilter(candidates)(true))
		if found.Len() == 0 {
			break
		}
		vals := pred.Values()
		s.confirmed = s.confirmed.Union(vals)
		candidates = candidates.Difference(vals)
		updated = true
		s.logger.Debugw("confirmed nomination", "slot", s.id, "values", vals, "nodes", found.Sorted())
	}
	return updated
}

// accept runs the federated accept procedure. A statement is accepted
// if our own last statement already accepts it, if a blocking set
// accepts it, or if we voted for it and a quorum voted for or accepted
// it. The returned predicate is narrowed to what the found nodes agree
// on, an empty node set means nothing was accepted.
func (s *Slot) accept(f PredicateFactory) (NodeIDSet, Predicate) {
	if s.sent != nil {
		if p, ok := f(false).Test(s.sent); ok {
			return NewNodeIDSet(s.self), p
		}
	}
	if found, p := s.quorum.FindBlockingSet(s.messages, f(false)); found.Len() > 0 {
		return found, p
	}
	if s.sent != nil {
		if _, ok := f(true).Test(s.sent); ok {
			return s.quorum.FindQuorum(s.self, s.messages, f(true))
		}
	}
	return NodeIDSet{}, f(false)
}
