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

// Enter the ballot protocol unless a ballot was already chosen.
func (s *Slot) startBallot(b Ballot) {
	if s.ballot.IsZero() {
		s.ballot = b
		s.logger.Debugw("start ballot", "slot", s.id, "ballot", b)
	}
}

// Value of the next ballot: the confirmed prepared value if there is
// one, else the composite of the confirmed nominations, else the value
// of the highest accepted prepared ballot.
func (s *Slot) ballotValue() Value {
	switch {
	case !s.highest.IsZero():
		return s.highest.X
	case s.confirmed.Len() > 0:
		return s.confirmed.Combine(s.id)
	case !s.preparedA.IsZero():
		return s.preparedA.X
	}
	return nil
}

// Move to the next ballot counter after the ballot timer expired.
func (s *Slot) bumpBallot() {
	x := s.ballot.X
	if s.phase < PhaseCommit {
		if v := s.ballotValue(); v != nil {
			x = v
		}
	}
	s.ballot = Ballot{N: s.ballot.N + 1, X: x}
	s.logger.Debugw("ballot timer expired", "slot", s.id, "ballot", s.ballot)
}

func (s *Slot) updatePrepare() {
	s.acceptPrepared()
	s.confirmPrepared()
	s.acceptCommit()
}

// Find the highest candidate ballot we can accept as prepared.
func (s *Slot) acceptPrepared() bool {
	for _, b := range prepareCandidates(s.messages) {
		if s.phase == PhaseCommit && !b.Compatible(s.ballot) {
			continue
		}
		if !s.preparedB.IsZero() && b.Compare(s.preparedB) <= 0 {
			continue
		}
		if !s.preparedA.IsZero() && lessAndCompatibleBallots(b, s.preparedA) {
			continue
		}
		found, _ := s.accept(prepareFilter(b))
		if found.Len() == 0 {
			continue
		}
		s.setPrepared(b)
		s.logger.Debugw("accepted prepared", "slot", s.id, "ballot", b, "nodes", found.Sorted())
		return true
	}
	return false
}

func (s *Slot) setPrepared(b Ballot) {
	if s.preparedA.IsZero() || s.preparedA.Less(b) {
		if !s.preparedA.IsZero() && !s.preparedA.Compatible(b) {
			s.preparedB = s.preparedA
		}
		s.preparedA = b
	} else if !s.preparedA.Compatible(b) {
		s.preparedB = b
	}
	if s.phase < PhaseCommit && s.aborted(s.highest) {
		s.lowest = Ballot{}
	}
}

// Check whether an accepted prepared ballot aborts the input ballot.
func (s *Slot) aborted(b Ballot) bool {
	if b.IsZero() {
		return false
	}
	return (!s.preparedA.IsZero() && lessAndIncompatibleBallots(b, s.preparedA)) ||
		(!s.preparedB.IsZero() && lessAndIncompatibleBallots(b, s.preparedB))
}

// Find the highest candidate ballot a quorum accepted as prepared.
func (s *Slot) confirmPrepared() bool {
	for _, b := range prepareCandidates(s.messages) {
		if !s.highest.IsZero() && b.Compare(s.highest) <= 0 {
			break
		}
		found, _ := s.quorum.FindQuorum(s.self, s.messages, prepareAcceptFilter(b)(true))
		if found.Len() == 0 {
			continue
		}
		s.highest = b
		if s.ballot.Less(b) {
			s.ballot = b
		}
		if s.lowest.IsZero() && lessAndCompatibleBallots(s.ballot, b) && !s.aborted(b) {
			s.lowest = s.ballot
		}
		s.logger.Debugw("confirmed prepared", "slot", s.id, "ballot", b, "nodes", found.Sorted())
		return true
	}
	return false
}

// Try to accept commit for one of the candidate values, success moves
// the slot to the commit phase.
func (s *Slot) acceptCommit() bool {
	for _, x := range commitValues(s.messages) {
		found, pred := s.accept(commitFilter(x))
		if found.Len() == 0 {
			continue
		}
		lo, hi := pred.Window()
		lo, hi = boundWindow(lo, hi, s.ballot, x)

		s.lowest = Ballot{N: lo, X: x}
		s.highest = Ballot{N: hi, X: x}
		if !s.ballot.Compatible(s.highest) || s.ballot.Less(s.highest) {
			n := s.ballot.N
			if n < hi {
				n = hi
			}
			s.ballot = Ballot{N: n, X: x}
		}
		if !s.preparedA.Compatible(s.highest) || s.preparedA.Less(s.highest) {
			s.preparedA = s.highest
		}
		s.preparedB = Ballot{}
		s.logger.Debugw("accepted commit", "slot", s.id, "lowest", s.lowest, "highest", s.highest, "nodes", found.Sorted())
		s.setPhase(PhaseCommit)
		return true
	}
	return false
}

// Check whether a quorum accepted commit of the ballot value, success
// externalizes the slot.
func (s *Slot) confirmCommit() bool {
	x := s.ballot.X
	found, pred := s.quorum.FindQuorum(s.self, s.messages, commitAcceptFilter(x)(true))
	if found.Len() == 0 {
		return false
	}
	lo, hi := pred.Window()
	lo, hi = boundWindow(lo, hi, s.ballot, x)
	s.lowest = Ballot{N: lo, X: x}
	s.highest = Ballot{N: hi, X: x}
	s.logger.Debugw("confirmed commit", "slot", s.id, "lowest", s.lowest, "highest", s.highest, "nodes", found.Sorted())
	s.setPhase(PhaseExternalize)
	return true
}

// Restore the ordering of the ballot fields after an update.
func (s *Slot) normalize() {
	if s.phase < PhaseNominatePrepare || s.phase == PhaseExternalize {
		return
	}
	if s.ballot.Less(s.preparedA) {
		s.ballot = s.preparedA
	}
	if s.phase < PhaseCommit && !s.lowest.IsZero() && !s.lowest.Compatible(s.ballot) {
		s.lowest = Ballot{}
	}
}
