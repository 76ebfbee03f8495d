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
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ultiledger/go-fba/consensus"
)

const testConfig = `
node_id: A
db_backend: memdb
tick_interval: 10ms
nomination_timeout: 200ms
rate_limit: 100
quorum:
  threshold: 2
  validators:
    - A
    - B
  nest_quorums:
    - threshold: 1
      validators:
        - C
        - D
`

func readConfig(t *testing.T, content string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	require.Nil(t, v.ReadConfig(bytes.NewBufferString(content)))
	return v
}

func TestNewConfig(t *testing.T) {
	conf, err := NewConfig(readConfig(t, testConfig))
	require.Nil(t, err)

	assert.Equal(t, consensus.NodeID("A"), conf.NodeID)
	assert.Equal(t, "memdb", conf.DBBackend)
	assert.Equal(t, 10*time.Millisecond, conf.TickInterval)
	assert.Equal(t, 200*time.Millisecond, conf.NominationTimeout)
	assert.Equal(t, consensus.DefaultConfig().BallotTimeout, conf.BallotTimeout)
	assert.Equal(t, rate.Limit(100), conf.RateLimit)
	assert.Equal(t, "info", conf.LogLevel)

	expected := consensus.NewQuorum(2,
		consensus.NodeMember("A"),
		consensus.NodeMember("B"),
		consensus.QuorumMember(consensus.FlatQuorum(1, "C", "D")))
	assert.Equal(t, expected.String(), conf.Quorum.String())

	cc := conf.consensusConfig()
	assert.Equal(t, 200*time.Millisecond, cc.NominationTimeout)
}

func TestNewConfigErrors(t *testing.T) {
	// missing node id
	_, err := NewConfig(readConfig(t, "quorum:\n  threshold: 1\n  validators: [A]\n"))
	assert.NotNil(t, err)

	// persistent backend without path
	_, err = NewConfig(readConfig(t, "node_id: A\ndb_backend: boltdb\nquorum:\n  threshold: 1\n  validators: [A]\n"))
	assert.NotNil(t, err)

	// threshold larger than the members
	_, err = NewConfig(readConfig(t, "node_id: A\nquorum:\n  threshold: 3\n  validators: [A, B]\n"))
	assert.NotNil(t, err)

	// missing validators
	_, err = NewConfig(readConfig(t, "node_id: A\nquorum:\n  threshold: 1\n"))
	assert.NotNil(t, err)

	// malformed seed
	_, err = NewConfig(readConfig(t, "node_id: A\nseed: abc\nquorum:\n  threshold: 1\n  validators: [A]\n"))
	assert.NotNil(t, err)

	// unlimited rate by default
	conf, err := NewConfig(readConfig(t, "node_id: A\nquorum:\n  threshold: 1\n  validators: [A]\n"))
	require.Nil(t, err)
	assert.Equal(t, rate.Inf, conf.RateLimit)
}
