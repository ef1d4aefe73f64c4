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

package http1

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oatpp/oatpp-sub002/router"
	"github.com/oatpp/oatpp-sub002/stream"
	"github.com/oatpp/oatpp-sub002/web"
)

func newTestRouter(t *testing.T) *router.Router[web.Handler] {
	rt := router.New[web.Handler]()
	_, err := rt.Register("GET", "/hello/{name}", func(req *web.Request) (*web.Response, error) {
		return web.OK(web.NewBytesBody("text/plain", []byte("hi "+req.PathVar("name")))), nil
	})
	require.NoError(t, err)
	_, err = rt.Register("GET", "/boom", func(req *web.Request) (*web.Response, error) {
		return web.NewResponse(500, web.NewBytesBody("text/plain", []byte("boom"))), nil
	})
	require.NoError(t, err)
	return rt
}

func TestShouldCloseOnServerError(t *testing.T) {
	req := &web.Request{Header: web.NewHeader()}
	resp := web.NewResponse(500, nil)
	assert.True(t, shouldClose(req, resp))
}

// TestServeClosesConnectionAfterServerError 复现 spec §4.4 规则 (a)：一旦处理函数
// 返回 5xx 状态码 连接必须关闭 即便既没有设置 CloseConnection 也没有 Connection: close
func TestServeClosesConnectionAfterServerError(t *testing.T) {
	raw := "GET /boom HTTP/1.1\r\nHost: x\r\n\r\n" +
		"GET /hello/alice HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"
	fake := stream.NewFake([]byte(raw))

	Serve(fake, Config{ServerName: "test", Router: newTestRouter(t)})

	out := string(fake.Out)
	assert.Contains(t, out, "HTTP/1.1 500")
	assert.NotContains(t, out, "hi alice", "connection should have closed after the 500, leaving the pipelined request unanswered")
}

func TestServePipelinesKeepAliveRequests(t *testing.T) {
	raw := "GET /hello/alice HTTP/1.1\r\nHost: x\r\n\r\n" +
		"GET /hello/bob HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"
	fake := stream.NewFake([]byte(raw))

	Serve(fake, Config{ServerName: "test", Router: newTestRouter(t)})

	out := string(fake.Out)
	assert.Contains(t, out, "hi alice")
	assert.Contains(t, out, "hi bob")
}

func TestServeRendersNotFound(t *testing.T) {
	raw := "GET /missing HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n"
	fake := stream.NewFake([]byte(raw))

	Serve(fake, Config{ServerName: "test", Router: newTestRouter(t)})

	out := string(fake.Out)
	assert.Contains(t, out, "HTTP/1.1 404")
	assert.Contains(t, out, "code=404")
}

func TestServeClosesOnEmptyConnection(t *testing.T) {
	fake := stream.NewFake([]byte{})
	Serve(fake, Config{ServerName: "test", Router: newTestRouter(t)})
	assert.Empty(t, fake.Out)
}
