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

import "math"

// PredicateFactory builds the predicate used by the accept procedure,
// quorum selects the vote-or-accept variant over the accept-only one.
type PredicateFactory func(quorum bool) Predicate

// Filter to choose nominate statements that voted for or accepted
// some of the input values.
func nominateFilter(vals ValueSet) PredicateFactory {
	return func(quorum bool) Predicate {
		if quorum {
			return Predicate{kind: nominateVote, values: vals}
		}
		return Predicate{kind: nominateAccept, values: vals}
	}
}

// Filter to choose nominate statements that accepted some of the
// input values, used for confirmation where votes do not count.
func nominateAcceptFilter(vals ValueSet) PredicateFactory {
	return func(bool) Predicate {
		return Predicate{kind: nominateAccept, values: vals}
	}
}

// Filter to choose ballot statements that voted for or accepted
// prepare(b).
func prepareFilter(b Ballot) PredicateFactory {
	return func(quorum bool) Predicate {
		if quorum {
			return Predicate{kind: prepareVote, ballot: b}
		}
		return Predicate{kind: prepareAccept, ballot: b}
	}
}

// Filter to choose ballot statements that accepted prepare(b).
func prepareAcceptFilter(b Ballot) PredicateFactory {
	return func(bool) Predicate {
		return Predicate{kind: prepareAccept, ballot: b}
	}
}

// Filter to choose ballot statements that voted for or accepted commit
// of the value for every counter in the returned window.
func commitFilter(x Value) PredicateFactory {
	return func(quorum bool) Predicate {
		if quorum {
			return Predicate{kind: commitVote, x: x, min: 1, max: math.MaxUint32}
		}
		return Predicate{kind: commitAccept, x: x, min: 1, max: math.MaxUint32}
	}
}

// Filter to choose ballot statements that accepted commit of the value.
func commitAcceptFilter(x Value) PredicateFactory {
	return func(bool) Predicate {
		return Predicate{kind: commitAccept, x: x, min: 1, max: math.MaxUint32}
	}
}
