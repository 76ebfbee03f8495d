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

// Ballot is a numbered proposal of a value in the ballot protocol,
// the zero ballot (N == 0) means no ballot.
type Ballot struct {
	N uint32
	X Value
}

// IsZero reports whether the ballot is the sentinel ballot.
func (b Ballot) IsZero() bool {
	return b.N == 0
}

// Compare two ballots by counter then value.
func (b Ballot) Compare(o Ballot) int {
	if b.N < o.N {
		return -1
	} else if b.N > o.N {
		return 1
	}
	return compareValues(b.X, o.X)
}

func (b Ballot) Less(o Ballot) bool {
	return b.Compare(o) < 0
}

// Equal reports whether the two ballots have the same counter and value.
func (b Ballot) Equal(o Ballot) bool {
	return b.Compare(o) == 0
}

// Compatible reports whether the two ballots carry the same value.
func (b Ballot) Compatible(o Ballot) bool {
	if b.X == nil || o.X == nil {
		return false
	}
	return b.X == o.X
}

func (b Ballot) String() string {
	if b.IsZero() {
		return "<0>"
	}
	return fmt.Sprintf("<%d,%v>", b.N, b.X)
}

// Check whether lb <= rb and the two ballots are compatible.
func lessAndCompatibleBallots(lb Ballot, rb Ballot) bool {
	return lb.Compare(rb) <= 0 && lb.Compatible(rb)
}

// Check whether lb <= rb and the two ballots are incompatible.
func lessAndIncompatibleBallots(lb Ballot, rb Ballot) bool {
	return lb.Compare(rb) <= 0 && !lb.Compatible(rb)
}
