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

package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oatpp/oatpp-sub002/stream"
)

func TestTCPProviderAcceptsConnections(t *testing.T) {
	provider, err := NewTCPProvider(TCPConfig{Address: "127.0.0.1:0"})
	require.NoError(t, err)
	defer provider.Close()

	go func() {
		conn, err := net.Dial("tcp", provider.Addr().String())
		require.NoError(t, err)
		defer conn.Close()
		_, _ = conn.Write([]byte("hello"))
	}()

	conn, err := provider.Get()
	require.NoError(t, err)
	defer conn.Close()

	buf := make([]byte, 5)
	n, status, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, stream.StatusOK, status)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestTCPProviderGetFailsAfterClose(t *testing.T) {
	provider, err := NewTCPProvider(TCPConfig{Address: "127.0.0.1:0"})
	require.NoError(t, err)

	require.NoError(t, provider.Close())
	_, err = provider.Get()
	assert.Error(t, err)
}

func TestTCPProviderMaxConnectionsLimitsConcurrentAccepts(t *testing.T) {
	provider, err := NewTCPProvider(TCPConfig{Address: "127.0.0.1:0", MaxConnections: 1})
	require.NoError(t, err)
	defer provider.Close()

	first, err := net.DialTimeout("tcp", provider.Addr().String(), time.Second)
	require.NoError(t, err)
	defer first.Close()

	second, err := net.DialTimeout("tcp", provider.Addr().String(), time.Second)
	require.NoError(t, err)
	defer second.Close()

	accepted, err := provider.Get()
	require.NoError(t, err)
	defer accepted.Close()

	done := make(chan struct{})
	go func() {
		_, _ = provider.Get()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second connection accepted before the first was released")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, accepted.Close())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second connection was never accepted after releasing the first")
	}
}

func TestTCPProviderTagsEachConnectionWithDistinctUUID(t *testing.T) {
	provider, err := NewTCPProvider(TCPConfig{Address: "127.0.0.1:0"})
	require.NoError(t, err)
	defer provider.Close()

	dial := func() {
		conn, err := net.DialTimeout("tcp", provider.Addr().String(), time.Second)
		require.NoError(t, err)
		defer conn.Close()
	}
	go dial()
	first, err := provider.Get()
	require.NoError(t, err)
	defer first.Close()

	go dial()
	second, err := provider.Get()
	require.NoError(t, err)
	defer second.Close()

	firstID := connID(first)
	secondID := connID(second)
	assert.NotEmpty(t, firstID)
	assert.NotEmpty(t, secondID)
	assert.NotEqual(t, firstID, secondID)
}

func TestLoopDispatchesEachConnectionToHandler(t *testing.T) {
	provider, err := NewTCPProvider(TCPConfig{Address: "127.0.0.1:0"})
	require.NoError(t, err)
	defer provider.Close()

	handled := make(chan struct{}, 1)
	go Loop(provider, ConnectionHandlerFunc(func(conn stream.ByteStream) {
		defer conn.Close()
		handled <- struct{}{}
	}))

	conn, err := net.DialTimeout("tcp", provider.Addr().String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was never invoked")
	}
}
