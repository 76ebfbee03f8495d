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
	"sort"

	"github.com/ultiledger/go-fba/util"
)

// Check whether the latter statement is newer than the first one.
func isNewerStatement(old *Message, msg *Message) bool {
	if old == nil {
		return true
	}
	return CompareTopics(old.Topic, msg.Topic) < 0
}

// Collect the distinct non-zero ballots referenced by the statements,
// highest first.
func prepareCandidates(msgs map[NodeID]*Message) []Ballot {
	seen := make(map[Ballot]bool)
	var ballots []Ballot
	add := func(b Ballot) {
		if b.IsZero() || b.X == nil || seen[b] {
			return
		}
		seen[b] = true
		ballots = append(ballots, b)
	}
	for _, msg := range msgs {
		switch t := msg.Topic.(type) {
		case *PrepareTopic, *NominatePrepareTopic:
			prep := prepareOf(t)
			add(prep.Ballot)
			add(prep.PreparedA)
			add(prep.PreparedB)
		case *CommitTopic:
			add(t.Ballot)
			add(Ballot{N: t.Prepared, X: t.Ballot.X})
		case *ExternalizeTopic:
			add(t.Ballot)
			add(Ballot{N: t.Highest, X: t.Ballot.X})
		}
	}
	sort.Slice(ballots, func(i, j int) bool {
		return ballots[i].Compare(ballots[j]) > 0
	})
	return ballots
}

// Collect the values the statements voted or accepted to commit,
// in ascending order.
func commitValues(msgs map[NodeID]*Message) []Value {
	vals := NewValueSet()
	for _, msg := range msgs {
		switch t := msg.Topic.(type) {
		case *PrepareTopic, *NominatePrepareTopic:
			if prep := prepareOf(t); prep.Lowest != 0 {
				vals = vals.Add(prep.Ballot.X)
			}
		case *CommitTopic:
			vals = vals.Add(t.Ballot.X)
		case *ExternalizeTopic:
			vals = vals.Add(t.Ballot.X)
		}
	}
	return vals.Sorted()
}

// Resolve an unbounded commit window against the counter of the
// current ballot.
func boundWindow(lo, hi uint32, current Ballot, x Value) (uint32, uint32) {
	if hi != math.MaxUint32 {
		return lo, hi
	}
	if current.X == x {
		return lo, util.MaxUint32(lo, current.N)
	}
	return lo, lo
}
