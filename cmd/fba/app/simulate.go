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

package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/ultiledger/go-fba/consensus"
	"github.com/ultiledger/go-fba/log"
	"github.com/ultiledger/go-fba/network"
	"github.com/ultiledger/go-fba/node"
)

// keys shared by all the nodes unless a node overrides them
var inheritedKeys = []string{
	"db_backend",
	"nomination_timeout",
	"ballot_timeout",
	"tick_interval",
	"quarantine_ttl",
	"rate_limit",
	"rate_burst",
	"log_level",
}

// topology of a simulated network
type topology struct {
	nodes []*node.Config
	// proposals of each node, the i-th proposal is for slot i+1
	proposals map[consensus.NodeID][]StringValue
	slots     int
	timeout   time.Duration
	logLevel  string
}

func loadTopology(v *viper.Viper) (*topology, error) {
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("log_level", "info")

	rawNodes, err := cast.ToSliceE(v.Get("nodes"))
	if err != nil || len(rawNodes) == 0 {
		return nil, errors.New("network has no nodes")
	}

	topo := &topology{
		proposals: make(map[consensus.NodeID][]StringValue),
		timeout:   v.GetDuration("timeout"),
		logLevel:  v.GetString("log_level"),
	}
	for _, rn := range rawNodes {
		nm, err := cast.ToStringMapE(rn)
		if err != nil {
			return nil, fmt.Errorf("node is not a map: %v", err)
		}

		nv := viper.New()
		for _, k := range inheritedKeys {
			if v.IsSet(k) {
				nv.Set(k, v.Get(k))
			}
		}
		for k, val := range nm {
			nv.Set(k, val)
		}
		conf, err := node.NewConfig(nv)
		if err != nil {
			return nil, fmt.Errorf("parse config of node %v failed: %v", nm["node_id"], err)
		}
		if _, ok := topo.proposals[conf.NodeID]; ok {
			return nil, fmt.Errorf("duplicate node %s", conf.NodeID)
		}

		var proposals []StringValue
		for _, p := range cast.ToStringSlice(nv.Get("proposals")) {
			proposals = append(proposals, StringValue(p))
		}
		topo.proposals[conf.NodeID] = proposals
		if len(proposals) > topo.slots {
			topo.slots = len(proposals)
		}
		topo.nodes = append(topo.nodes, conf)
	}
	if topo.slots == 0 {
		return nil, errors.New("network has no proposals")
	}
	return topo, nil
}

// simulation result, the externalized value of every node per slot
type result map[consensus.SlotID]map[consensus.NodeID]consensus.Value

// runSimulation runs all the nodes of the topology over an in-process
// bus until every node externalized every slot or the timeout expires.
func runSimulation(ctx context.Context, topo *topology) (result, error) {
	runID := uuid.New().String()
	logger := log.Named("simulate").With("run", runID)

	bus := network.NewBus()
	defer bus.Close()

	var nodes []*node.Node
	stopAll := func() {
		for _, n := range nodes {
			n.Stop()
		}
	}
	for _, conf := range topo.nodes {
		n, err := node.NewNode(conf, stringCodec{}, nil)
		if err != nil {
			stopAll()
			return nil, fmt.Errorf("create node %s failed: %v", conf.NodeID, err)
		}
		ep, err := bus.Register(conf.NodeID, conf.Seed, n.Recv)
		if err != nil {
			stopAll()
			return nil, fmt.Errorf("register node %s failed: %v", conf.NodeID, err)
		}
		n.SetTransport(ep)
		nodes = append(nodes, n)
	}

	ctx, cancel := context.WithTimeout(ctx, topo.timeout)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	for _, n := range nodes {
		n := n
		g.Go(func() error {
			n.Start()
			return nil
		})
	}
	logger.Infow("simulation started", "nodes", len(nodes), "slots", topo.slots)

	res := make(result)
	g.Go(func() error {
		defer stopAll()
		for _, n := range nodes {
			for i, p := range topo.proposals[n.ID()] {
				if err := n.Propose(consensus.SlotID(i+1), p); err != nil {
					return fmt.Errorf("node %s propose failed: %v", n.ID(), err)
				}
			}
		}

		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			done, err := collect(nodes, topo.slots, res)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return fmt.Errorf("simulation %s not finished: %v", runID, ctx.Err())
			}
		}
	})

	err := g.Wait()
	logger.Infow("simulation finished", "err", err)
	return res, err
}

// collect the externalized values, returns true when all the
// nodes decided all the slots
func collect(nodes []*node.Node, slots int, res result) (bool, error) {
	done := true
	for s := 1; s <= slots; s++ {
		slotID := consensus.SlotID(s)
		if res[slotID] == nil {
			res[slotID] = make(map[consensus.NodeID]consensus.Value)
		}
		for _, n := range nodes {
			if _, ok := res[slotID][n.ID()]; ok {
				continue
			}
			v, ok, err := n.Externalized(slotID)
			if err != nil {
				return false, err
			}
			if !ok {
				done = false
				continue
			}
			res[slotID][n.ID()] = v
		}
	}
	return done, nil
}

// print the decision of every slot, a slot decided differently
// by two nodes is reported as a divergence
func (r result) print() error {
	var slots []consensus.SlotID
	for slotID := range r {
		slots = append(slots, slotID)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })

	var diverged error
	for _, slotID := range slots {
		values := make(map[consensus.Value][]consensus.NodeID)
		for id, v := range r[slotID] {
			values[v] = append(values[v], id)
		}
		for v, ids := range values {
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			fmt.Printf("slot %d: %v externalized by %v\n", slotID, v, ids)
		}
		if len(values) > 1 {
			diverged = fmt.Errorf("slot %d diverged", slotID)
		}
	}
	return diverged
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate a network of nodes in process",
	Long: `Simulate runs every node of the network described in the config
file inside this process. Nodes exchange signed messages over an in-memory
bus and the externalized value of every slot is printed at the end.`,
	Run: func(cmd *cobra.Command, args []string) {
		v := viper.New()
		v.SetConfigFile(networkFile)
		if err := v.ReadInConfig(); err != nil {
			log.Fatal(err)
		}
		topo, err := loadTopology(v)
		if err != nil {
			log.Fatalf("load network topology failed: %v", err)
		}
		if err := log.SetLevel(topo.logLevel); err != nil {
			log.Fatal(err)
		}
		defer log.Sync()

		res, err := runSimulation(context.Background(), topo)
		if perr := res.print(); perr != nil {
			log.Fatal(perr)
		}
		if err != nil {
			log.Fatal(err)
		}
	},
}

var networkFile string

func init() {
	simulateCmd.Flags().StringVarP(&networkFile, "config", "c", "", "Network topology config file")
	simulateCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(simulateCmd)
}
