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

package dto

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeting struct {
	Name string `json:"name"`
}

func TestJSONWriteToEncodesValue(t *testing.T) {
	var buf bytes.Buffer
	n, err := NewJSON(greeting{Name: "oat"}).WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.JSONEq(t, `{"name":"oat"}`, buf.String())
}

func TestJSONKnownSizeIsAlwaysUnknown(t *testing.T) {
	size, known := NewJSON(greeting{}).KnownSize()
	assert.False(t, known)
	assert.Zero(t, size)
}

func TestJSONContentType(t *testing.T) {
	assert.Equal(t, "application/json; charset=utf-8", NewJSON(nil).ContentType())
}

func TestDecodeBodyParsesJSON(t *testing.T) {
	var g greeting
	err := DecodeBody(strings.NewReader(`{"name":"pp"}`), &g)
	require.NoError(t, err)
	assert.Equal(t, "pp", g.Name)
}

func TestDecodeBodyReturnsWrappedErrorOnMalformedJSON(t *testing.T) {
	var g greeting
	err := DecodeBody(strings.NewReader(`not json`), &g)
	assert.Error(t, err)
}
