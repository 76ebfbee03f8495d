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

	"go.uber.org/zap"
)

// Phase of a slot, it only ever moves forward.
type Phase uint8

const (
	PhaseNominate Phase = iota
	PhaseNominatePrepare
	PhasePrepare
	PhaseCommit
	PhaseExternalize
)

func (p Phase) String() string {
	switch p {
	case PhaseNominate:
		return "NOMINATE"
	case PhaseNominatePrepare:
		return "NOMINATE_PREPARE"
	case PhasePrepare:
		return "PREPARE"
	case PhaseCommit:
		return "COMMIT"
	case PhaseExternalize:
		return "EXTERNALIZE"
	}
	return "UNKNOWN"
}

// upper bound of update rounds triggered by a single input
const maxAdvanceRounds = 32

// Slot holds the consensus state of a single decision.
type Slot struct {
	id     SlotID
	self   NodeID
	quorum *Quorum
	config Config
	logger *zap.SugaredLogger

	phase   Phase
	created time.Time

	// latest statement of each node including our own
	messages map[NodeID]*Message
	// last statement built by the slot
	sent *Message
	// statement built but not yet handed out
	outbound *Message

	nominated ValueSet
	accepted  ValueSet
	confirmed ValueSet
	proposed  Value

	ballot    Ballot
	preparedA Ballot
	preparedB Ballot
	highest   Ballot
	lowest    Ballot

	priorityPeers NodeIDSet
	priorityRound uint32
	priorityTimer time.Time

	ballotTimer  time.Time
	ballotTimerN uint32
}

func newSlot(id SlotID, self NodeID, quorum *Quorum, config Config, created time.Time, logger *zap.SugaredLogger) *Slot {
	s := &Slot{
		id:            id,
		self:          self,
		quorum:        quorum,
		config:        config,
		logger:        logger,
		phase:         PhaseNominate,
		created:       created,
		messages:      make(map[NodeID]*Message),
		nominated:     NewValueSet(),
		accepted:      NewValueSet(),
		confirmed:     NewValueSet(),
		priorityPeers: NewNodeIDSet(),
		priorityRound: 1,
	}
	s.electLeader()
	return s
}

// Refresh the node identity and quorum the slot works with.
func (s *Slot) setSnapshot(self NodeID, quorum *Quorum) {
	s.self = self
	s.quorum = quorum
}

func (s *Slot) Phase() Phase {
	return s.phase
}

// handle processes a statement from a peer and returns the new
// statement of this node if there is one.
func (s *Slot) handle(msg *Message) (*Message, error) {
	if err := msg.Valid(); err != nil {
		return nil, err
	}
	if msg.Sender == s.self || s.phase == PhaseExternalize {
		return nil, nil
	}
	if !isNewerStatement(s.messages[msg.Sender], msg) {
		return nil, nil
	}
	s.messages[msg.Sender] = msg
	s.advance()
	return s.flush(), nil
}

// propose records the application candidate of this node, it is
// nominated once the node becomes a priority peer of the slot.
func (s *Slot) propose(v Value) *Message {
	s.proposed = v
	if s.phase <= PhaseNominatePrepare && s.nominated.Len() == 0 && s.priorityPeers.Contains(s.self) {
		s.nominated = NewValueSet(v)
	}
	s.advance()
	return s.flush()
}

// tick progresses the nomination round and the ballot timer.
func (s *Slot) tick(now time.Time) *Message {
	if s.phase == PhaseExternalize {
		return nil
	}
	if s.phase <= PhaseNominatePrepare {
		if s.priorityTimer.IsZero() {
			s.priorityTimer = now.Add(time.Duration(s.priorityRound) * s.config.NominationTimeout)
		} else if !now.Before(s.priorityTimer) {
			s.priorityRound++
			s.electLeader()
			s.priorityTimer = now.Add(time.Duration(s.priorityRound) * s.config.NominationTimeout)
		}
	}
	if s.phase >= PhaseNominatePrepare && !s.ballot.IsZero() {
		if s.ballotTimer.IsZero() || s.ballotTimerN != s.ballot.N {
			s.ballotTimerN = s.ballot.N
			s.ballotTimer = now.Add(time.Duration(s.ballot.N) * s.config.BallotTimeout)
		} else if !now.Before(s.ballotTimer) {
			s.bumpBallot()
		}
	}
	s.advance()
	return s.flush()
}

// Run the update rules until the slot stops producing new statements.
func (s *Slot) advance() {
	for i := 0; i < maxAdvanceRounds; i++ {
		s.update()
		if !s.emit() {
			return
		}
	}
	s.logger.Warnw("slot did not settle", "slot", s.id, "phase", s.phase)
}

func (s *Slot) update() {
	switch s.phase {
	case PhaseNominate:
		s.updateNomination()
		s.acceptPrepared()
		if s.confirmed.Len() > 0 {
			s.startBallot(Ballot{N: 1, X: s.confirmed.Combine(s.id)})
			s.setPhase(PhaseNominatePrepare)
		} else if !s.preparedA.IsZero() {
			s.startBallot(s.preparedA)
			s.setPhase(PhasePrepare)
		}
	case PhaseNominatePrepare:
		s.updateNomination()
		s.updatePrepare()
		if !s.preparedA.IsZero() && s.phase == PhaseNominatePrepare {
			s.setPhase(PhasePrepare)
		}
	case PhasePrepare:
		if s.highest.IsZero() {
			// keep the composite value fresh for the next ballot
			s.updateNomination()
		}
		s.updatePrepare()
	case PhaseCommit:
		s.acceptPrepared()
		s.confirmCommit()
	}
	s.normalize()
}

func (s *Slot) setPhase(p Phase) {
	if p <= s.phase {
		return
	}
	s.logger.Debugw("phase transition", "slot", s.id, "from", s.phase, "to", p)
	s.phase = p
}

// Build the current statement and keep it if it differs from the
// last one, it returns whether a new statement was built.
func (s *Slot) emit() bool {
	topic := s.buildTopic()
	if topic == nil {
		return false
	}
	if s.sent != nil && s.sent.Topic.Equal(topic) {
		return false
	}
	msg := &Message{
		Sender: s.self,
		SlotID: s.id,
		Quorum: s.quorum,
		Topic:  topic,
	}
	s.sent = msg
	s.outbound = msg
	s.messages[s.self] = msg
	return true
}

func (s *Slot) flush() *Message {
	msg := s.outbound
	s.outbound = nil
	return msg
}

func (s *Slot) buildTopic() Topic {
	switch s.phase {
	case PhaseNominate:
		if s.nominated.Len()+s.accepted.Len() == 0 {
			return nil
		}
		return s.nominateTopic()
	case PhaseNominatePrepare:
		return &NominatePrepareTopic{
			Nominate: *s.nominateTopic(),
			Prepare:  *s.prepareTopic(),
		}
	case PhasePrepare:
		return s.prepareTopic()
	case PhaseCommit:
		return &CommitTopic{
			Ballot:   s.ballot,
			Prepared: s.preparedA.N,
			Highest:  s.highest.N,
			Lowest:   s.lowest.N,
		}
	case PhaseExternalize:
		return s.externalizeTopic()
	}
	return nil
}

func (s *Slot) nominateTopic() *NominateTopic {
	return &NominateTopic{Nominated: s.nominated, Accepted: s.accepted}
}

func (s *Slot) prepareTopic() *PrepareTopic {
	t := &PrepareTopic{
		Ballot:    s.ballot,
		PreparedA: s.preparedA,
		PreparedB: s.preparedB,
	}
	if !s.highest.IsZero() && s.highest.Compatible(s.ballot) {
		t.Highest = s.highest.N
		if !s.lowest.IsZero() {
			t.Lowest = s.lowest.N
		}
	}
	return t
}

func (s *Slot) externalizeTopic() *ExternalizeTopic {
	return &ExternalizeTopic{Ballot: s.lowest, Highest: s.highest.N}
}

// result returns the externalized statement once the slot is done.
func (s *Slot) result() *ExternalizeTopic {
	if s.phase != PhaseExternalize {
		return nil
	}
	return s.externalizeTopic()
}
