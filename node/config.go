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
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/ultiledger/go-fba/consensus"
	"github.com/ultiledger/go-fba/crypto"
)

type Config struct {
	// node ID of this node
	NodeID consensus.NodeID
	// seed for signing the messages of this node
	Seed string
	// database backend
	DBBackend string
	// database file path
	DBPath string
	// local quorum
	Quorum *consensus.Quorum
	// base duration of a nomination round
	NominationTimeout time.Duration
	// base duration of a ballot round
	BallotTimeout time.Duration
	// interval between two consensus ticks
	TickInterval time.Duration
	// how long a divergent peer stays quarantined
	QuarantineTTL time.Duration
	// sustained rate of inbound messages per sender
	RateLimit rate.Limit
	// burst of inbound messages per sender
	RateBurst int
	// log level of the node
	LogLevel string
}

func setDefaults(v *viper.Viper) {
	def := consensus.DefaultConfig()
	v.SetDefault("db_backend", "memdb")
	v.SetDefault("nomination_timeout", def.NominationTimeout)
	v.SetDefault("ballot_timeout", def.BallotTimeout)
	v.SetDefault("tick_interval", 100*time.Millisecond)
	v.SetDefault("quarantine_ttl", def.QuarantineTTL)
	v.SetDefault("rate_limit", 0)
	v.SetDefault("rate_burst", 64)
	v.SetDefault("log_level", "info")
}

func NewConfig(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	if v.GetString("node_id") == "" {
		return nil, errors.New("node ID is empty")
	}
	if seed := v.GetString("seed"); seed != "" && !crypto.IsValidKey(seed) {
		return nil, errors.New("node seed is invalid")
	}
	if v.GetString("db_backend") != "memdb" && v.GetString("db_path") == "" {
		return nil, errors.New("db path is empty")
	}
	if len(v.GetStringMap("quorum")) == 0 {
		return nil, errors.New("quorum is nil")
	}
	if v.GetDuration("tick_interval") <= 0 {
		return nil, errors.New("tick interval is not positive")
	}

	// construct quorum
	quorumMap := v.GetStringMap("quorum")
	quorum, err := ParseQuorum(quorumMap)
	if err != nil {
		return nil, fmt.Errorf("parse quorum failed: %v", err)
	}
	if err := quorum.Validate(); err != nil {
		return nil, fmt.Errorf("invalid quorum: %v", err)
	}

	limit := rate.Inf
	if r := v.GetFloat64("rate_limit"); r > 0 {
		limit = rate.Limit(r)
	}

	u := Config{
		NodeID:            consensus.NodeID(v.GetString("node_id")),
		Seed:              v.GetString("seed"),
		DBBackend:         v.GetString("db_backend"),
		DBPath:            v.GetString("db_path"),
		Quorum:            quorum,
		NominationTimeout: v.GetDuration("nomination_timeout"),
		BallotTimeout:     v.GetDuration("ballot_timeout"),
		TickInterval:      v.GetDuration("tick_interval"),
		QuarantineTTL:     v.GetDuration("quarantine_ttl"),
		RateLimit:         limit,
		RateBurst:         v.GetInt("rate_burst"),
		LogLevel:          v.GetString("log_level"),
	}

	return &u, nil
}

// consensus configuration derived from the node configuration
func (c *Config) consensusConfig() consensus.Config {
	cc := consensus.DefaultConfig()
	cc.NominationTimeout = c.NominationTimeout
	cc.BallotTimeout = c.BallotTimeout
	cc.QuarantineTTL = c.QuarantineTTL
	return cc
}

// ParseQuorum parses a quorum with integer threshold, validators
// and optional nested quorums from the decoded config map.
func ParseQuorum(q map[string]interface{}) (*consensus.Quorum, error) {
	threshold, ok := q["threshold"]
	if !ok {
		return nil, fmt.Errorf("quorum threshold is missing")
	}
	t, err := cast.ToIntE(threshold)
	if err != nil {
		return nil, fmt.Errorf("quorum threshold is not an integer: %v", err)
	}

	validators, ok := q["validators"]
	if !ok {
		return nil, fmt.Errorf("quorum validators are missing")
	}
	vs, err := cast.ToStringSliceE(validators)
	if err != nil {
		return nil, fmt.Errorf("quorum validators are not strings: %v", err)
	}

	var members []consensus.Member
	for _, v := range vs {
		members = append(members, consensus.NodeMember(consensus.NodeID(v)))
	}

	nestqs, ok := q["nest_quorums"]
	if ok {
		qs, err := cast.ToSliceE(nestqs)
		if err != nil {
			return nil, fmt.Errorf("nest quorums are not a list: %v", err)
		}
		for _, nq := range qs {
			nestq, err := cast.ToStringMapE(nq)
			if err != nil {
				return nil, fmt.Errorf("nest quorum is not a map: %v", err)
			}
			q, err := ParseQuorum(nestq)
			if err != nil {
				return nil, fmt.Errorf("parse nest quorum failed: %v", err)
			}
			members = append(members, consensus.QuorumMember(q))
		}
	}

	return consensus.NewQuorum(t, members...), nil
}
