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


package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSetLevel(t *testing.T) {
	defer config.Level.SetLevel(zap.InfoLevel)

	assert.Nil(t, SetLevel("debug"))
	assert.Equal(t, true, config.Level.Enabled(zap.DebugLevel))
	Named("test").Debugw("debug level opened")

	assert.Nil(t, SetLevel("error"))
	assert.Equal(t, false, config.Level.Enabled(zap.WarnLevel))

	assert.NotNil(t, SetLevel("verbose"))
}

func TestNamed(t *testing.T) {
	l := Named("consensus").With("node", "A")
	assert.NotNil(t, l)
	l.Infow("named logger", "slot", 1)
	l.Errorw("rejected message", "err", "quorum set invalid")
	assert.Nil(t, SetLevel("info"))
	assert.Nil(t, Named("bus").Desugar().Check(zap.DebugLevel, "hidden"))
}
