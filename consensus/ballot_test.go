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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBallotOrder(t *testing.T) {
	ballots := []Ballot{{}, ballot(1, "a"), ballot(1, "b"), ballot(2, "a"), ballot(3, "c")}
	for i, a := range ballots {
		for j, b := range ballots {
			// a < b iff a.N < b.N or a.N == b.N and a.X < b.X
			assert.Equal(t, i < j, a.Less(b))
			assert.Equal(t, i == j, a.Equal(b))
			assert.Equal(t, -b.Compare(a), a.Compare(b))
		}
	}
	assert.Equal(t, true, Ballot{}.IsZero())
	assert.Equal(t, false, ballot(1, "a").IsZero())
}

func TestBallotCompatible(t *testing.T) {
	assert.Equal(t, true, ballot(1, "a").Compatible(ballot(5, "a")))
	assert.Equal(t, false, ballot(1, "a").Compatible(ballot(1, "b")))
	assert.Equal(t, false, Ballot{}.Compatible(Ballot{}))

	assert.Equal(t, true, lessAndCompatibleBallots(ballot(1, "a"), ballot(2, "a")))
	assert.Equal(t, true, lessAndCompatibleBallots(ballot(2, "a"), ballot(2, "a")))
	assert.Equal(t, false, lessAndCompatibleBallots(ballot(3, "a"), ballot(2, "a")))
	assert.Equal(t, false, lessAndCompatibleBallots(ballot(1, "a"), ballot(2, "b")))

	assert.Equal(t, true, lessAndIncompatibleBallots(ballot(1, "a"), ballot(2, "b")))
	assert.Equal(t, false, lessAndIncompatibleBallots(ballot(1, "a"), ballot(2, "a")))
	assert.Equal(t, false, lessAndIncompatibleBallots(ballot(3, "a"), ballot(2, "b")))
}

func TestBallotString(t *testing.T) {
	assert.Equal(t, "<0>", Ballot{}.String())
	assert.Equal(t, "<2,a>", ballot(2, "a").String())
}

func TestPrepareCandidates(t *testing.T) {
	msgs := map[NodeID]*Message{
		"A": msg("A", &PrepareTopic{Ballot: ballot(1, "a"), PreparedA: ballot(1, "a")}),
		"B": msg("B", &CommitTopic{Ballot: ballot(3, "b"), Prepared: 2, Lowest: 2, Highest: 3}),
		"C": msg("C", &PrepareTopic{Ballot: ballot(3, "c")}),
	}
	candidates := prepareCandidates(msgs)

	assert.Equal(t, []Ballot{ballot(3, "c"), ballot(3, "b"), ballot(2, "b"), ballot(1, "a")}, candidates)
}
