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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNominatePredicate(t *testing.T) {
	vote := nominateFilter(vals("a", "b", "c"))(true)
	accept := nominateFilter(vals("a", "b", "c"))(false)
	m := msg("B", &NominateTopic{Nominated: vals("a", "b"), Accepted: vals("a")})

	p, ok := vote.Test(m)
	assert.Equal(t, true, ok)
	assert.Equal(t, true, p.Values().Equal(vals("a", "b")))

	p, ok = accept.Test(m)
	assert.Equal(t, true, ok)
	assert.Equal(t, true, p.Values().Equal(vals("a")))

	// the original predicate is not narrowed by the tests
	assert.Equal(t, 3, vote.Values().Len())

	_, ok = accept.Test(msg("B", &NominateTopic{Nominated: vals("d")}))
	assert.Equal(t, false, ok)
	_, ok = vote.Test(msg("B", &PrepareTopic{Ballot: ballot(1, "a")}))
	assert.Equal(t, false, ok)
	_, ok = vote.Test(nil)
	assert.Equal(t, false, ok)
}

func TestNominatePredicateOnNominatePrepare(t *testing.T) {
	accept := nominateAcceptFilter(vals("a"))(true)
	m := msg("B", &NominatePrepareTopic{
		Nominate: NominateTopic{Nominated: vals("a"), Accepted: vals("a")},
		Prepare:  PrepareTopic{Ballot: ballot(1, "a")},
	})
	_, ok := accept.Test(m)
	assert.Equal(t, true, ok)
}

func TestPreparePredicate(t *testing.T) {
	vote := prepareFilter(ballot(2, "a"))(true)
	accept := prepareFilter(ballot(2, "a"))(false)

	// voted through a higher compatible ballot
	m := msg("B", &PrepareTopic{Ballot: ballot(3, "a")})
	_, ok := vote.Test(m)
	assert.Equal(t, true, ok)
	_, ok = accept.Test(m)
	assert.Equal(t, false, ok)

	// incompatible ballot
	_, ok = vote.Test(msg("B", &PrepareTopic{Ballot: ballot(3, "b")}))
	assert.Equal(t, false, ok)

	// accepted through prepared'
	m = msg("B", &PrepareTopic{Ballot: ballot(3, "b"), PreparedA: ballot(3, "b"), PreparedB: ballot(2, "a")})
	_, ok = accept.Test(m)
	assert.Equal(t, true, ok)
	_, ok = vote.Test(m)
	assert.Equal(t, true, ok)

	// commit statements accept up to their prepared counter
	m = msg("B", &CommitTopic{Ballot: ballot(4, "a"), Prepared: 2, Highest: 3, Lowest: 2})
	_, ok = accept.Test(m)
	assert.Equal(t, true, ok)
	_, ok = prepareFilter(ballot(3, "a"))(false).Test(m)
	assert.Equal(t, false, ok)
	_, ok = prepareFilter(ballot(9, "a"))(true).Test(m)
	assert.Equal(t, true, ok)

	m = msg("B", &ExternalizeTopic{Ballot: ballot(1, "a"), Highest: 1})
	_, ok = prepareFilter(ballot(9, "a"))(false).Test(m)
	assert.Equal(t, true, ok)
	_, ok = prepareFilter(ballot(9, "b"))(false).Test(m)
	assert.Equal(t, false, ok)
}

func TestCommitPredicate(t *testing.T) {
	vote := commitFilter(testValue("a"))(true)

	p, ok := vote.Test(msg("B", &PrepareTopic{Ballot: ballot(5, "a"), PreparedA: ballot(5, "a"), Highest: 4, Lowest: 2}))
	assert.Equal(t, true, ok)
	lo, hi := p.Window()
	assert.Equal(t, uint32(2), lo)
	assert.Equal(t, uint32(4), hi)

	// narrowed by a commit vote
	p, ok = p.Test(msg("C", &CommitTopic{Ballot: ballot(5, "a"), Prepared: 5, Highest: 5, Lowest: 3}))
	assert.Equal(t, true, ok)
	lo, hi = p.Window()
	assert.Equal(t, uint32(3), lo)
	assert.Equal(t, uint32(4), hi)

	// disjoint window
	_, ok = p.Test(msg("D", &CommitTopic{Ballot: ballot(9, "a"), Prepared: 9, Highest: 9, Lowest: 6}))
	assert.Equal(t, false, ok)

	// prepare without commit vote
	_, ok = vote.Test(msg("B", &PrepareTopic{Ballot: ballot(5, "a")}))
	assert.Equal(t, false, ok)
	// other value
	_, ok = vote.Test(msg("B", &CommitTopic{Ballot: ballot(5, "b"), Highest: 5, Lowest: 1}))
	assert.Equal(t, false, ok)
}

func TestCommitAcceptPredicate(t *testing.T) {
	accept := commitAcceptFilter(testValue("a"))(true)

	_, ok := accept.Test(msg("B", &PrepareTopic{Ballot: ballot(5, "a"), Highest: 4, Lowest: 2}))
	assert.Equal(t, false, ok)

	p, ok := accept.Test(msg("B", &CommitTopic{Ballot: ballot(5, "a"), Prepared: 5, Highest: 4, Lowest: 2}))
	assert.Equal(t, true, ok)
	lo, hi := p.Window()
	assert.Equal(t, uint32(2), lo)
	assert.Equal(t, uint32(4), hi)

	p, ok = accept.Test(msg("B", &ExternalizeTopic{Ballot: ballot(3, "a"), Highest: 4}))
	assert.Equal(t, true, ok)
	lo, hi = p.Window()
	assert.Equal(t, uint32(3), lo)
	assert.Equal(t, uint32(math.MaxUint32), hi)
}

func TestPredicateClone(t *testing.T) {
	p := commitFilter(testValue("a"))(true)
	c := p.Clone()
	c, ok := c.Test(msg("B", &CommitTopic{Ballot: ballot(5, "a"), Highest: 5, Lowest: 3}))
	assert.Equal(t, true, ok)

	lo, _ := c.Window()
	assert.Equal(t, uint32(3), lo)
	lo, _ = p.Window()
	assert.Equal(t, uint32(1), lo)
}
