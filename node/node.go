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

package node

import (
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ultiledger/go-fba/consensus"
	"github.com/ultiledger/go-fba/db"
	"github.com/ultiledger/go-fba/future"
	"github.com/ultiledger/go-fba/ledger"
	"github.com/ultiledger/go-fba/log"

	_ "github.com/ultiledger/go-fba/db/badger"
	_ "github.com/ultiledger/go-fba/db/boltdb"
	_ "github.com/ultiledger/go-fba/db/leveldb"
	_ "github.com/ultiledger/go-fba/db/memdb"
)

var (
	ErrNodeStopped = errors.New("node is stopped")
	ErrRateLimited = errors.New("sender exceeds the message rate limit")
)

// Transport broadcasts the statements of the node to its peers.
type Transport interface {
	Broadcast(msg *consensus.Message) error
}

// Node is the runtime of a consensus node, all the accesses to the
// consensus engine are serialized through the event loop.
type Node struct {
	config *Config

	database db.Database
	lm       *ledger.Manager
	engine   *consensus.Node

	transport Transport
	logger    *zap.SugaredLogger

	// per sender rate limiters
	limiters *lru.Cache

	// channel for stopping the event loop
	stopChan chan struct{}
	stopOnce sync.Once
	doneChan chan struct{}

	// futures for task with error responses
	msgFuture      chan *future.Message
	proposalFuture chan *future.Proposal
	extFuture      chan *future.Externalized
	phaseFuture    chan *future.Phase
}

// NewNode opens the database of the node, restores the externalized
// slots and creates the consensus engine.
func NewNode(conf *Config, codec ledger.ValueCodec, transport Transport) (*Node, error) {
	database, err := db.Open(conf.DBBackend, conf.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database failed: %v", err)
	}

	lm, err := ledger.NewManager(database, codec)
	if err != nil {
		database.Close()
		return nil, err
	}
	exts, err := lm.Load()
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("load externalized slots failed: %v", err)
	}

	engine, err := consensus.NewNode(conf.NodeID, conf.Quorum, exts, conf.consensusConfig())
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("create consensus node failed: %v", err)
	}

	limiters, err := lru.New(1024)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("create rate limiter cache failed: %v", err)
	}

	n := &Node{
		config:         conf,
		database:       database,
		lm:             lm,
		engine:         engine,
		transport:      transport,
		logger:         log.Named("node").With("node", conf.NodeID),
		limiters:       limiters,
		stopChan:       make(chan struct{}),
		doneChan:       make(chan struct{}),
		msgFuture:      make(chan *future.Message),
		proposalFuture: make(chan *future.Proposal),
		extFuture:      make(chan *future.Externalized),
		phaseFuture:    make(chan *future.Phase),
	}
	engine.OnExternalize(n.persist)

	n.logger.Infow("node created", "quorum", conf.Quorum, "restored", len(exts))
	return n, nil
}

// SetTransport replaces the transport before the node starts.
func (n *Node) SetTransport(transport Transport) {
	n.transport = transport
}

func (n *Node) ID() consensus.NodeID {
	return n.config.NodeID
}

// Start runs the event loop and blocks until the node is stopped.
func (n *Node) Start() {
	defer close(n.doneChan)
	defer func() {
		if err := n.database.Close(); err != nil {
			n.logger.Errorw("close database failed", "err", err)
		}
	}()
	n.eventLoop()
}

// Stop signals the event loop to quit.
func (n *Node) Stop() {
	n.stopOnce.Do(func() { close(n.stopChan) })
}

// Done is closed after the event loop quits.
func (n *Node) Done() <-chan struct{} {
	return n.doneChan
}

// Recv passes a message received from a peer to the consensus engine.
func (n *Node) Recv(msg *consensus.Message) error {
	if msg == nil {
		return consensus.ErrNilMessage
	}
	if !n.allow(msg.Sender) {
		return ErrRateLimited
	}
	mf := &future.Message{Msg: msg}
	mf.Init()
	select {
	case n.msgFuture <- mf:
	case <-n.stopChan:
		return ErrNodeStopped
	}
	return mf.Error()
}

// Propose the candidate value of this node for the slot.
func (n *Node) Propose(slotID consensus.SlotID, v consensus.Value) error {
	pf := &future.Proposal{SlotID: slotID, Value: v}
	pf.Init()
	select {
	case n.proposalFuture <- pf:
	case <-n.stopChan:
		return ErrNodeStopped
	}
	return pf.Error()
}

// Externalized returns the value the slot externalized.
func (n *Node) Externalized(slotID consensus.SlotID) (consensus.Value, bool, error) {
	ef := &future.Externalized{SlotID: slotID}
	ef.Init()
	select {
	case n.extFuture <- ef:
	case <-n.stopChan:
		return nil, false, ErrNodeStopped
	}
	if err := ef.Error(); err != nil {
		return nil, false, err
	}
	return ef.Value, ef.Ok, nil
}

// Phase returns the phase of the slot.
func (n *Node) Phase(slotID consensus.SlotID) (consensus.Phase, error) {
	pf := &future.Phase{SlotID: slotID}
	pf.Init()
	select {
	case n.phaseFuture <- pf:
	case <-n.stopChan:
		return 0, ErrNodeStopped
	}
	if err := pf.Error(); err != nil {
		return 0, err
	}
	return pf.Phase, nil
}

// Event loop for processing messages from peers and local queries.
func (n *Node) eventLoop() {
	ticker := time.NewTicker(n.config.TickInterval)
	defer ticker.Stop()

	n.broadcast(n.engine.Tick(time.Now())...)

	for {
		select {
		case mf := <-n.msgFuture:
			reply, err := n.engine.Handle(mf.Msg)
			if err != nil {
				n.logHandleError(mf.Msg, err)
			}
			if reply != nil {
				n.broadcast(reply)
			}
			mf.Respond(err)
		case pf := <-n.proposalFuture:
			msg, err := n.engine.Propose(pf.SlotID, pf.Value)
			if err != nil {
				n.logger.Warnw("propose value failed", "slot", pf.SlotID, "value", pf.Value, "err", err)
			}
			if msg != nil {
				n.broadcast(msg)
			}
			pf.Respond(err)
		case ef := <-n.extFuture:
			ef.Value, ef.Ok = n.engine.ExternalizedValue(ef.SlotID)
			ef.Respond(nil)
		case pf := <-n.phaseFuture:
			pf.Phase = n.engine.Phase(pf.SlotID)
			pf.Respond(nil)
		case now := <-ticker.C:
			n.broadcast(n.engine.Tick(now)...)
		case <-n.stopChan:
			n.logger.Info("shutdown event loop")
			return
		}
	}
}

func (n *Node) logHandleError(msg *consensus.Message, err error) {
	var div *consensus.ConsensusDivergence
	switch {
	case errors.As(err, &div):
		n.logger.Warnw("peer diverged", "peer", div.Peer, "slot", div.SlotID, "own", div.Own, "peer_value", div.PeerValue)
	case errors.Is(err, consensus.ErrQuarantined):
		n.logger.Debugw("drop message of quarantined peer", "peer", msg.Sender)
	default:
		n.logger.Debugw("handle message failed", "msg", msg, "err", err)
	}
}

func (n *Node) broadcast(msgs ...*consensus.Message) {
	if n.transport == nil {
		return
	}
	for _, msg := range msgs {
		if err := n.transport.Broadcast(msg); err != nil {
			n.logger.Warnw("broadcast message failed", "msg", msg, "err", err)
		}
	}
}

// persist the newly externalized slot, called from the event loop
func (n *Node) persist(slotID consensus.SlotID, ext *consensus.ExternalizeTopic) {
	if err := n.lm.Save(slotID, ext); err != nil {
		n.logger.Errorw("save externalized slot failed", "slot", slotID, "err", err)
	}
}

func (n *Node) allow(sender consensus.NodeID) bool {
	if n.config.RateLimit == rate.Inf {
		return true
	}
	var limiter *rate.Limiter
	if l, ok := n.limiters.Get(sender); ok {
		limiter = l.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(n.config.RateLimit, n.config.RateBurst)
		if ok, _ := n.limiters.ContainsOrAdd(sender, limiter); ok {
			if l, ok := n.limiters.Get(sender); ok {
				limiter = l.(*rate.Limiter)
			}
		}
	}
	return limiter.Allow()
}
