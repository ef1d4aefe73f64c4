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

package hpack

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHuffmanRoundTrip(t *testing.T) {
	for _, s := range []string{"", "www.example.com", "no-cache", "custom-key", "custom-value"} {
		var buf bytes.Buffer
		huffmanEncode(&buf, s)
		decoded, err := huffmanDecode(buf.Bytes())
		require.NoError(t, err)
		assert.Equal(t, s, decoded)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	fields := []HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":scheme", Value: "https"},
		{Name: ":path", Value: "/users/42"},
		{Name: ":authority", Value: "example.com"},
		{Name: "custom-key", Value: "custom-value"},
	}

	enc := NewEncoder()
	block := enc.Encode(fields)

	dec := NewDecoder()
	got, err := dec.Decode(block)
	require.NoError(t, err)
	assert.Equal(t, fields, got)
}

func TestEncodeDecodeUsesDynamicTableOnRepeat(t *testing.T) {
	fields := []HeaderField{{Name: "custom-key", Value: "custom-value"}}

	enc := NewEncoder()
	first := enc.Encode(fields)
	second := enc.Encode(fields)
	// 第二次应该只需要一个索引字节 因为值已经进了动态表
	assert.Less(t, len(second), len(first))

	dec := NewDecoder()
	got1, err := dec.Decode(first)
	require.NoError(t, err)
	got2, err := dec.Decode(second)
	require.NoError(t, err)
	assert.Equal(t, fields, got1)
	assert.Equal(t, fields, got2)
}

func TestDynamicTableEvictsOldestUnderPressure(t *testing.T) {
	dt := newDynamicTable(64)
	dt.add(HeaderField{Name: "a", Value: "111111111111111111111111111111"}) // ~64 bytes
	dt.add(HeaderField{Name: "b", Value: "2"})

	_, ok := dt.findPair(HeaderField{Name: "a", Value: "111111111111111111111111111111"})
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = dt.findPair(HeaderField{Name: "b", Value: "2"})
	assert.True(t, ok)
}

func TestDecodeRejectsSizeUpdateAboveCap(t *testing.T) {
	dec := NewDecoder()
	dec.SetMaxTableSizeCap(100)

	var buf bytes.Buffer
	appendInt(&buf, 5, 0x20, 200)
	_, err := dec.Decode(buf.Bytes())
	assert.Error(t, err)
}

func TestStaticTableWellKnownIndexes(t *testing.T) {
	assert.Equal(t, HeaderField{":method", "GET"}, staticTable[1])
	assert.Equal(t, HeaderField{":path", "/"}, staticTable[3])
	assert.Equal(t, HeaderField{":status", "200"}, staticTable[7])
}
