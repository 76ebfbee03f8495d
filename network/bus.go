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

// Package network provides an in-process message bus which stands in for
// the peer transport when several nodes run inside one process.
package network

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ultiledger/go-fba/consensus"
	"github.com/ultiledger/go-fba/crypto"
	"github.com/ultiledger/go-fba/log"
)

var (
	ErrBusClosed         = errors.New("bus is closed")
	ErrDuplicateEndpoint = errors.New("endpoint already registered")
	ErrUnknownEndpoint   = errors.New("endpoint not registered")
	ErrInvalidSignature  = errors.New("invalid message signature")
)

// Handler receives the messages delivered to an endpoint.
type Handler func(msg *consensus.Message) error

// signed message in flight
type envelope struct {
	msg       *consensus.Message
	signature string
}

// Bus delivers every broadcast message to all the registered
// endpoints except the sender. Each endpoint owns a keypair and
// receivers verify the signature of the sender before delivery.
type Bus struct {
	mu        sync.RWMutex
	endpoints map[consensus.NodeID]*Endpoint
	closed    bool

	logger *zap.SugaredLogger
	wg     sync.WaitGroup
}

func NewBus() *Bus {
	return &Bus{
		endpoints: make(map[consensus.NodeID]*Endpoint),
		logger:    log.Named("network"),
	}
}

// Register a new endpoint of the node, messages to the node are
// passed to the handler in a dedicated goroutine. The endpoint signs
// with the seed, an empty seed creates a random keypair.
func (b *Bus) Register(id consensus.NodeID, seed string, h Handler) (*Endpoint, error) {
	var publicKey string
	var err error
	if seed == "" {
		publicKey, seed, err = crypto.NodeKeypair()
	} else {
		publicKey, err = crypto.PublicKeyFromSeed(seed)
	}
	if err != nil {
		return nil, fmt.Errorf("create keypair of %s failed: %v", id, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	if _, ok := b.endpoints[id]; ok {
		return nil, ErrDuplicateEndpoint
	}
	ep := &Endpoint{
		id:        id,
		bus:       b,
		handler:   h,
		publicKey: publicKey,
		seed:      seed,
		notify:    make(chan struct{}, 1),
		stopChan:  make(chan struct{}),
	}
	b.endpoints[id] = ep

	b.wg.Add(1)
	go ep.pump()

	return ep, nil
}

// Unregister the endpoint, pending messages of the endpoint are dropped.
func (b *Bus) Unregister(id consensus.NodeID) error {
	b.mu.Lock()
	ep, ok := b.endpoints[id]
	delete(b.endpoints, id)
	b.mu.Unlock()
	if !ok {
		return ErrUnknownEndpoint
	}
	close(ep.stopChan)
	return nil
}

// Close the bus and wait for the delivering goroutines to quit.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for id, ep := range b.endpoints {
		close(ep.stopChan)
		delete(b.endpoints, id)
	}
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *Bus) broadcast(from *Endpoint, msg *consensus.Message) error {
	signature, err := crypto.Sign(from.seed, digest(msg))
	if err != nil {
		return fmt.Errorf("sign message failed: %v", err)
	}
	env := &envelope{msg: msg, signature: signature}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	if b.endpoints[from.id] != from {
		return ErrUnknownEndpoint
	}
	for id, ep := range b.endpoints {
		if id == from.id {
			continue
		}
		ep.enqueue(env)
	}
	return nil
}

func (b *Bus) verify(env *envelope) error {
	b.mu.RLock()
	ep, ok := b.endpoints[env.msg.Sender]
	b.mu.RUnlock()
	if !ok {
		return ErrUnknownEndpoint
	}
	if !crypto.Verify(ep.publicKey, env.signature, digest(env.msg)) {
		return ErrInvalidSignature
	}
	return nil
}

func digest(msg *consensus.Message) []byte {
	return []byte(msg.String() + msg.Quorum.Hash())
}

// Endpoint is the attachment point of a node to the bus.
type Endpoint struct {
	id        consensus.NodeID
	bus       *Bus
	handler   Handler
	publicKey string
	seed      string

	mu       sync.Mutex
	queue    []*envelope
	notify   chan struct{}
	stopChan chan struct{}
}

// ID returns the node ID of the endpoint.
func (ep *Endpoint) ID() consensus.NodeID {
	return ep.id
}

// PublicKey returns the encoded public key used to verify the
// messages sent from this endpoint.
func (ep *Endpoint) PublicKey() string {
	return ep.publicKey
}

// Broadcast the message to all the other endpoints, the sender of
// the message must be the owner of the endpoint.
func (ep *Endpoint) Broadcast(msg *consensus.Message) error {
	if err := msg.Valid(); err != nil {
		return err
	}
	if msg.Sender != ep.id {
		return fmt.Errorf("endpoint %s cannot send message of %s", ep.id, msg.Sender)
	}
	return ep.bus.broadcast(ep, msg)
}

// queue is unbounded so that a sender never blocks on a slow receiver
func (ep *Endpoint) enqueue(env *envelope) {
	ep.mu.Lock()
	ep.queue = append(ep.queue, env)
	ep.mu.Unlock()
	select {
	case ep.notify <- struct{}{}:
	default:
	}
}

func (ep *Endpoint) pump() {
	defer ep.bus.wg.Done()
	for {
		select {
		case <-ep.notify:
		case <-ep.stopChan:
			return
		}
		ep.mu.Lock()
		envs := ep.queue
		ep.queue = nil
		ep.mu.Unlock()

		for _, env := range envs {
			select {
			case <-ep.stopChan:
				return
			default:
			}
			if err := ep.bus.verify(env); err != nil {
				ep.bus.logger.Warnw("drop message", "to", ep.id, "msg", env.msg, "err", err)
				continue
			}
			if err := ep.handler(env.msg); err != nil {
				ep.bus.logger.Debugw("deliver message failed", "to", ep.id, "msg", env.msg, "err", err)
			}
		}
	}
}
