// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oatpp/oatpp-sub002/confengine"
)

func TestServeCmdIsRegisteredUnderRoot(t *testing.T) {
	found := false
	for _, c := range rootCmd.Commands() {
		if c.Name() == "serve" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSetupLoggerUnpacksOptionsFromConfig(t *testing.T) {
	conf, err := confengine.LoadContent([]byte(`
logger:
  stdout: true
  level: debug
`))
	require.NoError(t, err)

	assert.NoError(t, setupLogger(conf))
}

func TestDefaultRoutesRegistersHealthz(t *testing.T) {
	rt := defaultRoutes()
	handler, vars, ok := rt.Match("GET", "/healthz")
	require.True(t, ok)
	assert.Empty(t, vars)

	resp, err := handler(nil)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}
