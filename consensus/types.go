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
	"sort"
	"strings"

	"github.com/deckarep/golang-set"
)

// NodeID identifies a participant of the network. It is opaque to the
// consensus engine and is usually derived from the node public key.
type NodeID string

// SlotID identifies an independent consensus decision.
type SlotID uint64

// Value is the abstract value the network votes on. Concrete types are
// supplied by the application and must be comparable with == because
// values are kept in sets.
type Value interface {
	// Less reports whether the value sorts before the input value.
	Less(Value) bool
	// Combine reduces two values into one. It must be deterministic,
	// commutative and associative for a fixed slot.
	Combine(Value, SlotID) Value
	String() string
}

// Compare two values, nil values sort first.
func compareValues(a Value, b Value) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case a == b:
		return 0
	case a.Less(b):
		return -1
	}
	return 1
}

// ValueSet is an immutable set of values, every mutating method
// returns a new set so statements can share sets safely.
type ValueSet struct {
	s mapset.Set
}

// NewValueSet creates a set with the input values.
func NewValueSet(vals ...Value) ValueSet {
	s := mapset.NewSet()
	for _, v := range vals {
		if v != nil {
			s.Add(v)
		}
	}
	return ValueSet{s: s}
}

func (vs ValueSet) set() mapset.Set {
	if vs.s == nil {
		return mapset.NewSet()
	}
	return vs.s
}

// Len returns the cardinality of the set.
func (vs ValueSet) Len() int {
	if vs.s == nil {
		return 0
	}
	return vs.s.Cardinality()
}

func (vs ValueSet) Contains(v Value) bool {
	if vs.s == nil || v == nil {
		return false
	}
	return vs.s.Contains(v)
}

func (vs ValueSet) Add(vals ...Value) ValueSet {
	s := vs.set().Clone()
	for _, v := range vals {
		if v != nil {
			s.Add(v)
		}
	}
	return ValueSet{s: s}
}

func (vs ValueSet) Remove(vals ...Value) ValueSet {
	s := vs.set().Clone()
	for _, v := range vals {
		s.Remove(v)
	}
	return ValueSet{s: s}
}

func (vs ValueSet) Union(other ValueSet) ValueSet {
	return ValueSet{s: vs.set().Union(other.set())}
}

func (vs ValueSet) Intersect(other ValueSet) ValueSet {
	return ValueSet{s: vs.set().Intersect(other.set())}
}

func (vs ValueSet) Difference(other ValueSet) ValueSet {
	return ValueSet{s: vs.set().Difference(other.set())}
}

func (vs ValueSet) Equal(other ValueSet) bool {
	return vs.set().Equal(other.set())
}

// Clone returns an independent copy of the set.
func (vs ValueSet) Clone() ValueSet {
	return ValueSet{s: vs.set().Clone()}
}

// Sorted returns the values in ascending order.
func (vs ValueSet) Sorted() []Value {
	if vs.s == nil {
		return nil
	}
	vals := make([]Value, 0, vs.s.Cardinality())
	for _, v := range vs.s.ToSlice() {
		vals = append(vals, v.(Value))
	}
	sort.Slice(vals, func(i, j int) bool {
		return compareValues(vals[i], vals[j]) < 0
	})
	return vals
}

// Combine folds the values of the set in ascending order, it
// returns nil for an empty set.
func (vs ValueSet) Combine(slotID SlotID) Value {
	var res Value
	for _, v := range vs.Sorted() {
		if res == nil {
			res = v
			continue
		}
		res = res.Combine(v, slotID)
	}
	return res
}

func (vs ValueSet) String() string {
	var parts []string
	for _, v := range vs.Sorted() {
		parts = append(parts, v.String())
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// NodeIDSet is an immutable set of node IDs.
type NodeIDSet struct {
	s mapset.Set
}

func NewNodeIDSet(ids ...NodeID) NodeIDSet {
	s := mapset.NewSet()
	for _, id := range ids {
		s.Add(id)
	}
	return NodeIDSet{s: s}
}

func (ns NodeIDSet) Len() int {
	if ns.s == nil {
		return 0
	}
	return ns.s.Cardinality()
}

func (ns NodeIDSet) Contains(id NodeID) bool {
	if ns.s == nil {
		return false
	}
	return ns.s.Contains(id)
}

// Add returns a new set with the input id added, the original
// set is left untouched for backtracking.
func (ns NodeIDSet) Add(id NodeID) NodeIDSet {
	var s mapset.Set
	if ns.s == nil {
		s = mapset.NewSet()
	} else {
		s = ns.s.Clone()
	}
	s.Add(id)
	return NodeIDSet{s: s}
}

// Sorted returns the node IDs in lexicographical order.
func (ns NodeIDSet) Sorted() []NodeID {
	if ns.s == nil {
		return nil
	}
	ids := make([]NodeID, 0, ns.s.Cardinality())
	for _, id := range ns.s.ToSlice() {
		ids = append(ids, id.(NodeID))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
