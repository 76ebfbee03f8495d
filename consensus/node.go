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
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/ultiledger/go-fba/log"
)

var (
	ErrSlotExternalized = errors.New("slot already externalized")
	ErrNilValue         = errors.New("value is nil")
)

// Config holds the timing parameters of the protocol.
type Config struct {
	// duration unit of a nomination round, round r lasts r units
	NominationTimeout time.Duration
	// duration unit of a ballot, ballot n lasts n units
	BallotTimeout time.Duration
	// how long the statements of a divergent peer are discounted
	QuarantineTTL time.Duration
	// max number of peers remembered as faulty
	FaultyCacheSize int
}

func DefaultConfig() Config {
	return Config{
		NominationTimeout: time.Second,
		BallotTimeout:     time.Second,
		QuarantineTTL:     10 * time.Minute,
		FaultyCacheSize:   128,
	}
}

// Fill the unset fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.NominationTimeout <= 0 {
		c.NominationTimeout = def.NominationTimeout
	}
	if c.BallotTimeout <= 0 {
		c.BallotTimeout = def.BallotTimeout
	}
	if c.QuarantineTTL <= 0 {
		c.QuarantineTTL = def.QuarantineTTL
	}
	if c.FaultyCacheSize <= 0 {
		c.FaultyCacheSize = def.FaultyCacheSize
	}
	return c
}

// ExternalizeFunc receives every slot the node externalizes.
type ExternalizeFunc func(SlotID, *ExternalizeTopic)

// Node runs the consensus of a single participant over many slots. It
// is not safe for concurrent use, callers serialize access to it.
type Node struct {
	id     NodeID
	quorum *Quorum
	config Config
	logger *zap.SugaredLogger

	// counter of the last sent message
	counter uint64
	// time of the last tick
	now time.Time

	pending      map[SlotID]*Slot
	externalized map[SlotID]*ExternalizeTopic

	// node id to the time it was flagged
	faulty *lru.Cache

	onExternalize ExternalizeFunc
}

// NewNode creates a node seeded with the previously externalized slots.
func NewNode(id NodeID, quorum *Quorum, externalized map[SlotID]*ExternalizeTopic, config Config) (*Node, error) {
	if id == "" {
		return nil, errors.New("empty node id")
	}
	if quorum == nil {
		return nil, errors.New("nil quorum")
	}
	if err := quorum.Validate(); err != nil {
		return nil, fmt.Errorf("validate quorum failed: %v", err)
	}
	config = config.withDefaults()
	faulty, err := lru.New(config.FaultyCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create faulty cache failed: %v", err)
	}
	n := &Node{
		id:           id,
		quorum:       quorum,
		config:       config,
		logger:       log.Named("consensus").With("node", id),
		pending:      make(map[SlotID]*Slot),
		externalized: make(map[SlotID]*ExternalizeTopic),
		faulty:       faulty,
	}
	for slotID, ext := range externalized {
		n.externalized[slotID] = ext
	}
	return n, nil
}

func (n *Node) ID() NodeID {
	return n.id
}

func (n *Node) Quorum() *Quorum {
	return n.quorum
}

// SetQuorum replaces the quorum, pending slots pick it up on
// their next update.
func (n *Node) SetQuorum(quorum *Quorum) error {
	if err := quorum.Validate(); err != nil {
		return err
	}
	n.quorum = quorum
	return nil
}

// OnExternalize registers the function receiving new externalizations.
func (n *Node) OnExternalize(f ExternalizeFunc) {
	n.onExternalize = f
}

// Handle processes an inbound message and returns the statement to
// broadcast, which is nil when there is nothing new to say.
func (n *Node) Handle(msg *Message) (*Message, error) {
	if err := msg.Valid(); err != nil {
		return nil, err
	}
	if n.IsFaulty(msg.Sender) {
		return nil, ErrQuarantined
	}
	if ext, ok := n.externalized[msg.SlotID]; ok {
		return n.handleExternalized(msg, ext)
	}

	slot := n.slot(msg.SlotID)
	out, err := slot.handle(msg)
	if err != nil {
		return nil, err
	}
	n.finalize(slot)
	return n.stamp(out), nil
}

// Answer a message for a finished slot with our own externalize
// statement, a peer externalizing another value is quarantined.
func (n *Node) handleExternalized(msg *Message, ext *ExternalizeTopic) (*Message, error) {
	peer, ok := msg.Topic.(*ExternalizeTopic)
	if !ok {
		return n.stamp(n.externalizeMessage(msg.SlotID, ext)), nil
	}
	if peer.Ballot.X == ext.Ballot.X {
		return nil, nil
	}
	n.faulty.Add(msg.Sender, n.now)
	n.logger.Warnw("consensus divergence", "slot", msg.SlotID, "peer", msg.Sender,
		"own", ext.Ballot.X, "peer_value", peer.Ballot.X)
	return nil, &ConsensusDivergence{
		SlotID:    msg.SlotID,
		Peer:      msg.Sender,
		Own:       ext.Ballot.X,
		PeerValue: peer.Ballot.X,
	}
}

// Propose sets the candidate value of this node for the slot.
func (n *Node) Propose(slotID SlotID, v Value) (*Message, error) {
	if v == nil {
		return nil, ErrNilValue
	}
	if _, ok := n.externalized[slotID]; ok {
		return nil, ErrSlotExternalized
	}
	slot := n.slot(slotID)
	out := slot.propose(v)
	n.finalize(slot)
	return n.stamp(out), nil
}

// Tick advances the timers of every pending slot and returns the
// statements to broadcast in slot order.
func (n *Node) Tick(now time.Time) []*Message {
	n.now = now
	n.purgeFaulty()

	ids := n.Pending()
	var msgs []*Message
	for _, id := range ids {
		slot := n.pending[id]
		slot.setSnapshot(n.id, n.quorum)
		out := slot.tick(now)
		n.finalize(slot)
		if out != nil {
			msgs = append(msgs, n.stamp(out))
		}
	}
	return msgs
}

// Pending returns the ids of the slots still running, in order.
func (n *Node) Pending() []SlotID {
	ids := make([]SlotID, 0, len(n.pending))
	for id := range n.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Phase returns the phase of the slot, finished slots report
// PhaseExternalize and unknown slots PhaseNominate.
func (n *Node) Phase(slotID SlotID) Phase {
	if _, ok := n.externalized[slotID]; ok {
		return PhaseExternalize
	}
	if slot, ok := n.pending[slotID]; ok {
		return slot.Phase()
	}
	return PhaseNominate
}

func (n *Node) Externalized(slotID SlotID) (*ExternalizeTopic, bool) {
	ext, ok := n.externalized[slotID]
	return ext, ok
}

func (n *Node) ExternalizedValue(slotID SlotID) (Value, bool) {
	ext, ok := n.externalized[slotID]
	if !ok {
		return nil, false
	}
	return ext.Ballot.X, true
}

// IsFaulty reports whether the peer is quarantined.
func (n *Node) IsFaulty(id NodeID) bool {
	v, ok := n.faulty.Get(id)
	if !ok {
		return false
	}
	if n.expired(v.(time.Time)) {
		n.faulty.Remove(id)
		return false
	}
	return true
}

func (n *Node) expired(flagged time.Time) bool {
	return n.now.Sub(flagged) >= n.config.QuarantineTTL
}

func (n *Node) purgeFaulty() {
	for _, k := range n.faulty.Keys() {
		if v, ok := n.faulty.Peek(k); ok && n.expired(v.(time.Time)) {
			n.faulty.Remove(k)
			n.logger.Infow("peer released from quarantine", "peer", k)
		}
	}
}

// Get the slot or create it with the current identity and quorum.
func (n *Node) slot(slotID SlotID) *Slot {
	slot, ok := n.pending[slotID]
	if !ok {
		slot = newSlot(slotID, n.id, n.quorum, n.config, n.now, n.logger)
		n.pending[slotID] = slot
		return slot
	}
	slot.setSnapshot(n.id, n.quorum)
	return slot
}

// Move the slot to the externalized records once it is done.
func (n *Node) finalize(slot *Slot) {
	ext := slot.result()
	if ext == nil {
		return
	}
	delete(n.pending, slot.id)
	n.externalized[slot.id] = ext
	n.logger.Infow("slot externalized", "slot", slot.id, "value", ext.Ballot.X,
		"lowest", ext.Ballot.N, "highest", ext.Highest)
	if n.onExternalize != nil {
		n.onExternalize(slot.id, ext)
	}
}

func (n *Node) externalizeMessage(slotID SlotID, ext *ExternalizeTopic) *Message {
	return &Message{
		Sender: n.id,
		SlotID: slotID,
		Quorum: n.quorum,
		Topic:  ext,
	}
}

// Assign the next send counter to an outbound message.
func (n *Node) stamp(msg *Message) *Message {
	if msg == nil {
		return nil
	}
	n.counter++
	msg.Counter = n.counter
	return msg
}
