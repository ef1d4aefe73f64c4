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

package switcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oatpp/oatpp-sub002/stream"
)

func TestDetectPrefaceMatchesExactBytes(t *testing.T) {
	f := stream.NewFake([]byte(Preface + "extra-http2-frames"))
	b := stream.NewBuffered(f, 1<<16)

	matched, err := DetectPreface(b)
	require.NoError(t, err)
	assert.True(t, matched)

	// Peek 是非消费式的 提交之前剩余字节仍然完整可读
	b.CommitReadOffset(len(Preface))
	rest, status, err := b.Peek(len("extra-http2-frames"))
	require.NoError(t, err)
	assert.Equal(t, stream.StatusOK, status)
	assert.Equal(t, "extra-http2-frames", string(rest))
}

func TestDetectPrefaceRejectsHTTP1Request(t *testing.T) {
	f := stream.NewFake([]byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	b := stream.NewBuffered(f, 1<<16)

	matched, err := DetectPreface(b)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestDetectPrefaceHandlesShortConnections(t *testing.T) {
	f := stream.NewFake([]byte("hi"))
	b := stream.NewBuffered(f, 1<<16)

	matched, err := DetectPreface(b)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestDecodeSeedSettingsParsesBase64URLPayload(t *testing.T) {
	// SETTINGS_INITIAL_WINDOW_SIZE = 0x100000 编码为一个 6 字节 setting pair
	// 00 04 00 10 00 00 的 base64url（无填充）形式
	settings, ok, err := decodeSeedSettings("AAQAEAAA")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(0x100000), settings.InitialWindowSize)
}

func TestDecodeSeedSettingsEmptyHeaderIsNotAnError(t *testing.T) {
	_, ok, err := decodeSeedSettings("")
	require.NoError(t, err)
	assert.False(t, ok)
}
