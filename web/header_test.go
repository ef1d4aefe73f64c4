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

package web

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderLookupIsCaseInsensitive(t *testing.T) {
	h := NewHeader()
	h.Add("Content-Type", "text/plain")
	assert.Equal(t, "text/plain", h.Get("content-type"))
	assert.Equal(t, "text/plain", h.Get("CONTENT-TYPE"))
}

func TestHeaderPreservesInsertionOrderAcrossNames(t *testing.T) {
	h := NewHeader()
	h.Add("Set-Cookie", "a=1")
	h.Add("X-Trace", "1")
	h.Add("Set-Cookie", "b=2")

	var order []string
	h.Range(func(name, value string) {
		order = append(order, name+"="+value)
	})
	assert.Equal(t, []string{"set-cookie=a=1", "x-trace=1", "set-cookie=b=2"}, order)
	assert.Equal(t, []string{"a=1", "b=2"}, h.Values("set-cookie"))
}

func TestHeaderSetReplacesAllPriorValues(t *testing.T) {
	h := NewHeader()
	h.Add("X-A", "1")
	h.Add("X-A", "2")
	h.Set("X-A", "3")
	assert.Equal(t, []string{"3"}, h.Values("X-A"))
}

func TestHeaderDel(t *testing.T) {
	h := NewHeader()
	h.Add("X-A", "1")
	h.Add("X-B", "2")
	h.Del("X-A")
	assert.False(t, h.Has("x-a"))
	assert.True(t, h.Has("x-b"))
	assert.Equal(t, 1, h.Len())
}
