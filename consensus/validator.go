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
)

var (
	ErrNilMessage   = errors.New("message is nil")
	ErrQuarantined  = errors.New("sender is quarantined")
	// ErrInvalidTopic is wrapped by every ValidityError.
	ErrInvalidTopic = errors.New("invalid statement")
)

// ValidityError is returned for structurally malformed statements,
// the statement is dropped without touching the slot state.
type ValidityError struct {
	Reason string
}

func (e *ValidityError) Error() string {
	return ErrInvalidTopic.Error() + ": " + e.Reason
}

func (e *ValidityError) Unwrap() error {
	return ErrInvalidTopic
}

func invalidf(format string, args ...interface{}) error {
	return &ValidityError{Reason: fmt.Sprintf(format, args...)}
}

// ConsensusDivergence is returned when a peer externalized a different
// value than the local node for the same slot.
type ConsensusDivergence struct {
	SlotID    SlotID
	Peer      NodeID
	Own       Value
	PeerValue Value
}

func (e *ConsensusDivergence) Error() string {
	return fmt.Sprintf("consensus divergence on slot %d: peer %s externalized %v, own %v",
		e.SlotID, e.Peer, e.PeerValue, e.Own)
}

// A nomination claiming accepted values must also vote for some of
// them, accepted values are never dropped from the vote set.
func (t *NominateTopic) Valid() error {
	if t.Nominated.Len()+t.Accepted.Len() == 0 {
		return invalidf("empty nomination")
	}
	if t.Accepted.Len() > 0 && t.Nominated.Intersect(t.Accepted).Len() == 0 {
		return invalidf("accepted values %v disjoint from nominated %v", t.Accepted, t.Nominated)
	}
	return nil
}

func (t *NominatePrepareTopic) Valid() error {
	if err := t.Nominate.Valid(); err != nil {
		return err
	}
	return t.Prepare.Valid()
}

func (t *PrepareTopic) Valid() error {
	if !t.Ballot.IsZero() && t.Ballot.X == nil {
		return invalidf("ballot %d without value", t.Ballot.N)
	}
	if t.PreparedA.Compare(t.Ballot) > 0 {
		return invalidf("prepared %v above ballot %v", t.PreparedA, t.Ballot)
	}
	if !t.PreparedB.IsZero() && t.PreparedB.Compare(t.PreparedA) >= 0 {
		return invalidf("prepared' %v not below prepared %v", t.PreparedB, t.PreparedA)
	}
	if t.Lowest > t.Highest {
		return invalidf("lowest %d above highest %d", t.Lowest, t.Highest)
	}
	if t.Highest > t.Ballot.N {
		return invalidf("highest %d above ballot counter %d", t.Highest, t.Ballot.N)
	}
	return nil
}

func (t *CommitTopic) Valid() error {
	if t.Lowest > t.Highest {
		return invalidf("lowest %d above highest %d", t.Lowest, t.Highest)
	}
	return nil
}

func (t *ExternalizeTopic) Valid() error {
	return nil
}
