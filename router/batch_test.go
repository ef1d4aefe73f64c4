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

package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAllRegistersEveryValidEntry(t *testing.T) {
	rt := New[int]()
	err := rt.RegisterAll([]Entry[int]{
		{Method: "GET", Pattern: "/a", Handler: 1},
		{Method: "GET", Pattern: "/b", Handler: 2},
	})
	require.NoError(t, err)

	h, _, ok := rt.Match("GET", "/a")
	require.True(t, ok)
	assert.Equal(t, 1, h)

	h, _, ok = rt.Match("GET", "/b")
	require.True(t, ok)
	assert.Equal(t, 2, h)
}

func TestRegisterAllAggregatesFailuresAndKeepsRegisteringRemaining(t *testing.T) {
	rt := New[int]()
	err := rt.RegisterAll([]Entry[int]{
		{Method: "GET", Pattern: "/ok", Handler: 1},
		{Method: "GET", Pattern: "/{*}", Handler: 2},
		{Method: "GET", Pattern: "/also-ok", Handler: 3},
	})
	require.Error(t, err)

	_, _, ok := rt.Match("GET", "/ok")
	assert.True(t, ok)

	_, _, ok = rt.Match("GET", "/also-ok")
	assert.True(t, ok)
}
