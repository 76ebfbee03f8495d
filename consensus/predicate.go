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
	"math"

	"github.com/ultiledger/go-fba/util"
)

type predicateKind uint8

const (
	nominateVote predicateKind = iota
	nominateAccept
	prepareVote
	prepareAccept
	commitVote
	commitAccept
)

// Predicate is tested against one message at a time during the quorum
// searches. A successful test returns the predicate narrowed by the
// message, so the predicate held when a search succeeds carries the
// values or the ballot window the found nodes agree on. Predicates are
// plain values, copying one gives an independent predicate.
type Predicate struct {
	kind predicateKind

	// candidate values of nominate predicates
	values ValueSet
	// ballot of prepare predicates
	ballot Ballot
	// value and counter window of commit predicates
	x        Value
	min, max uint32
}

// Clone returns a copy that can be narrowed independently.
func (p Predicate) Clone() Predicate {
	return p
}

// Values returns the candidate values left after narrowing.
func (p Predicate) Values() ValueSet {
	return p.values
}

// Ballot returns the ballot tested by prepare predicates.
func (p Predicate) Ballot() Ballot {
	return p.ballot
}

// Window returns the commit counter window left after narrowing.
func (p Predicate) Window() (uint32, uint32) {
	return p.min, p.max
}

// Prepare predicates test a fixed ballot, the others narrow.
func (p Predicate) narrows() bool {
	return p.kind != prepareVote && p.kind != prepareAccept
}

// Test checks the message against the predicate and returns the
// narrowed predicate if the message satisfies it.
func (p Predicate) Test(msg *Message) (Predicate, bool) {
	if msg == nil || msg.Topic == nil {
		return p, false
	}
	switch p.kind {
	case nominateVote, nominateAccept:
		return p.testNominate(msg.Topic)
	case prepareVote:
		return p, votedPrepare(p.ballot, msg.Topic)
	case prepareAccept:
		return p, acceptedPrepare(p.ballot, msg.Topic)
	case commitVote, commitAccept:
		return p.testCommit(msg.Topic)
	}
	return p, false
}

func (p Predicate) testNominate(t Topic) (Predicate, bool) {
	nom := nominationOf(t)
	if nom == nil {
		return p, false
	}
	seen := nom.Accepted
	if p.kind == nominateVote {
		seen = seen.Union(nom.Nominated)
	}
	narrowed := p.values.Intersect(seen)
	if narrowed.Len() == 0 {
		return p, false
	}
	p.values = narrowed
	return p, true
}

// Check whether the statement implies a vote for prepare(b).
func votedPrepare(b Ballot, t Topic) bool {
	switch tt := t.(type) {
	case *PrepareTopic, *NominatePrepareTopic:
		prep := prepareOf(tt)
		return lessAndCompatibleBallots(b, prep.Ballot) || acceptedPrepare(b, tt)
	case *CommitTopic:
		return b.Compatible(tt.Ballot)
	case *ExternalizeTopic:
		return b.Compatible(tt.Ballot)
	}
	return false
}

// Check whether the statement implies prepare(b) was accepted.
func acceptedPrepare(b Ballot, t Topic) bool {
	switch tt := t.(type) {
	case *PrepareTopic, *NominatePrepareTopic:
		prep := prepareOf(tt)
		return lessAndCompatibleBallots(b, prep.PreparedA) ||
			lessAndCompatibleBallots(b, prep.PreparedB)
	case *CommitTopic:
		return lessAndCompatibleBallots(b, Ballot{N: tt.Prepared, X: tt.Ballot.X})
	case *ExternalizeTopic:
		return b.Compatible(tt.Ballot)
	}
	return false
}

func (p Predicate) testCommit(t Topic) (Predicate, bool) {
	var lo, hi uint32
	switch tt := t.(type) {
	case *PrepareTopic, *NominatePrepareTopic:
		prep := prepareOf(tt)
		if p.kind != commitVote || prep.Lowest == 0 || prep.Ballot.X != p.x {
			return p, false
		}
		lo, hi = prep.Lowest, prep.Highest
	case *CommitTopic:
		if tt.Ballot.X != p.x {
			return p, false
		}
		lo, hi = tt.Lowest, tt.Highest
		if p.kind == commitVote {
			hi = math.MaxUint32
		}
	case *ExternalizeTopic:
		if tt.Ballot.X != p.x {
			return p, false
		}
		lo, hi = tt.Ballot.N, math.MaxUint32
	default:
		return p, false
	}

	p.min = util.MaxUint32(p.min, lo)
	p.max = util.MinUint32(p.max, hi)
	if p.min > p.max {
		return p, false
	}
	return p, true
}
