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

// Topic is the statement a node makes about a slot. It is implemented
// by *NominateTopic, *NominatePrepareTopic, *PrepareTopic, *CommitTopic
// and *ExternalizeTopic only.
type Topic interface {
	// Phase returns the slot phase the statement belongs to, which
	// doubles as the precedence of the statement kind.
	Phase() Phase
	// Valid checks the structural rules of the statement.
	Valid() error
	// Equal reports whether the two statements carry the same content.
	Equal(Topic) bool
	String() string

	isTopic()
}

// NominateTopic votes to nominate the values in Nominated and claims
// the values in Accepted as accepted nominated.
type NominateTopic struct {
	Nominated ValueSet
	Accepted  ValueSet
}

// NominatePrepareTopic is sent while the slot runs nomination and
// the prepare step of the ballot protocol at the same time.
type NominatePrepareTopic struct {
	Nominate NominateTopic
	Prepare  PrepareTopic
}

// PrepareTopic votes to prepare Ballot, accepts PreparedA and PreparedB
// as prepared and votes to commit (n, Ballot.X) for Lowest <= n <= Highest
// when Lowest is not zero.
type PrepareTopic struct {
	Ballot    Ballot
	PreparedA Ballot
	PreparedB Ballot
	Highest   uint32
	Lowest    uint32
}

// CommitTopic accepts commit (n, Ballot.X) for Lowest <= n <= Highest
// and accepts (Prepared, Ballot.X) as prepared.
type CommitTopic struct {
	Ballot   Ballot
	Prepared uint32
	Highest  uint32
	Lowest   uint32
}

// ExternalizeTopic is the final statement of a slot, Ballot is the
// lowest committed ballot and Highest the highest confirmed counter.
type ExternalizeTopic struct {
	Ballot  Ballot
	Highest uint32
}

func (*NominateTopic) isTopic()        {}
func (*NominatePrepareTopic) isTopic() {}
func (*PrepareTopic) isTopic()         {}
func (*CommitTopic) isTopic()          {}
func (*ExternalizeTopic) isTopic()     {}

func (t *NominateTopic) Phase() Phase        { return PhaseNominate }
func (t *NominatePrepareTopic) Phase() Phase { return PhaseNominatePrepare }
func (t *PrepareTopic) Phase() Phase         { return PhasePrepare }
func (t *CommitTopic) Phase() Phase          { return PhaseCommit }
func (t *ExternalizeTopic) Phase() Phase     { return PhaseExternalize }

func (t *NominateTopic) String() string {
	return fmt.Sprintf("NOM X=%v Y=%v", t.Nominated, t.Accepted)
}

func (t *NominatePrepareTopic) String() string {
	return fmt.Sprintf("NOM/PREP X=%v Y=%v B=%v P=%v PP=%v H=%d C=%d",
		t.Nominate.Nominated, t.Nominate.Accepted, t.Prepare.Ballot,
		t.Prepare.PreparedA, t.Prepare.PreparedB, t.Prepare.Highest, t.Prepare.Lowest)
}

func (t *PrepareTopic) String() string {
	return fmt.Sprintf("PREP B=%v P=%v PP=%v H=%d C=%d",
		t.Ballot, t.PreparedA, t.PreparedB, t.Highest, t.Lowest)
}

func (t *CommitTopic) String() string {
	return fmt.Sprintf("COMMIT B=%v P=%d H=%d C=%d", t.Ballot, t.Prepared, t.Highest, t.Lowest)
}

func (t *ExternalizeTopic) String() string {
	return fmt.Sprintf("EXT C=%v H=%d", t.Ballot, t.Highest)
}

func (t *NominateTopic) Equal(o Topic) bool {
	ot, ok := o.(*NominateTopic)
	if !ok {
		return false
	}
	return t.Nominated.Equal(ot.Nominated) && t.Accepted.Equal(ot.Accepted)
}

func (t *NominatePrepareTopic) Equal(o Topic) bool {
	ot, ok := o.(*NominatePrepareTopic)
	if !ok {
		return false
	}
	return t.Nominate.Equal(&ot.Nominate) && t.Prepare.Equal(&ot.Prepare)
}

func (t *PrepareTopic) Equal(o Topic) bool {
	ot, ok := o.(*PrepareTopic)
	if !ok {
		return false
	}
	return t.Ballot.Equal(ot.Ballot) && t.PreparedA.Equal(ot.PreparedA) &&
		t.PreparedB.Equal(ot.PreparedB) && t.Highest == ot.Highest && t.Lowest == ot.Lowest
}

func (t *CommitTopic) Equal(o Topic) bool {
	ot, ok := o.(*CommitTopic)
	if !ok {
		return false
	}
	return t.Ballot.Equal(ot.Ballot) && t.Prepared == ot.Prepared &&
		t.Highest == ot.Highest && t.Lowest == ot.Lowest
}

func (t *ExternalizeTopic) Equal(o Topic) bool {
	ot, ok := o.(*ExternalizeTopic)
	if !ok {
		return false
	}
	return t.Ballot.Equal(ot.Ballot) && t.Highest == ot.Highest
}

// CompareTopics orders two statements. Statements of different kinds
// are ordered by phase precedence, statements of the same kind by the
// kind specific rules.
func CompareTopics(a Topic, b Topic) int {
	if a.Phase() != b.Phase() {
		if a.Phase() < b.Phase() {
			return -1
		}
		return 1
	}

	switch at := a.(type) {
	case *NominateTopic:
		return compareNominate(at, b.(*NominateTopic))
	case *NominatePrepareTopic:
		bt := b.(*NominatePrepareTopic)
		if cmp := comparePrepare(&at.Prepare, &bt.Prepare); cmp != 0 {
			return cmp
		}
		return compareNominate(&at.Nominate, &bt.Nominate)
	case *PrepareTopic:
		return comparePrepare(at, b.(*PrepareTopic))
	case *CommitTopic:
		bt := b.(*CommitTopic)
		if cmp := at.Ballot.Compare(bt.Ballot); cmp != 0 {
			return cmp
		}
		if cmp := compareCounters(at.Prepared, bt.Prepared); cmp != 0 {
			return cmp
		}
		return compareCounters(at.Highest, bt.Highest)
	case *ExternalizeTopic:
		return compareCounters(at.Highest, b.(*ExternalizeTopic).Highest)
	}
	return 0
}

// more accepted values wins, more nominated values breaks ties
func compareNominate(a *NominateTopic, b *NominateTopic) int {
	if cmp := compareCounters(uint32(a.Accepted.Len()), uint32(b.Accepted.Len())); cmp != 0 {
		return cmp
	}
	return compareCounters(uint32(a.Nominated.Len()), uint32(b.Nominated.Len()))
}

// compare order: b, p, p', h
func comparePrepare(a *PrepareTopic, b *PrepareTopic) int {
	if cmp := a.Ballot.Compare(b.Ballot); cmp != 0 {
		return cmp
	}
	if cmp := a.PreparedA.Compare(b.PreparedA); cmp != 0 {
		return cmp
	}
	if cmp := a.PreparedB.Compare(b.PreparedB); cmp != 0 {
		return cmp
	}
	return compareCounters(a.Highest, b.Highest)
}

func compareCounters(a uint32, b uint32) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

// Extract the nomination part of the statement if there is one.
func nominationOf(t Topic) *NominateTopic {
	switch tt := t.(type) {
	case *NominateTopic:
		return tt
	case *NominatePrepareTopic:
		return &tt.Nominate
	}
	return nil
}

// Extract the prepare part of the statement if there is one.
func prepareOf(t Topic) *PrepareTopic {
	switch tt := t.(type) {
	case *PrepareTopic:
		return tt
	case *NominatePrepareTopic:
		return &tt.Prepare
	}
	return nil
}
