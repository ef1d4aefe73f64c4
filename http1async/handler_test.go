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

package http1async

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oatpp/oatpp-sub002/async"
	"github.com/oatpp/oatpp-sub002/router"
	"github.com/oatpp/oatpp-sub002/stream"
	"github.com/oatpp/oatpp-sub002/web"
)

// stagedFake 模拟一个非阻塞 socket：入站字节分批到达 尚未到达前 Read 返回 StatusWaitRead
type stagedFake struct {
	mut     sync.Mutex
	batches [][]byte
	out     []byte
	closed  bool
}

func (s *stagedFake) Read(p []byte) (int, stream.Status, error) {
	s.mut.Lock()
	defer s.mut.Unlock()
	if s.closed {
		return 0, stream.StatusClosed, nil
	}
	if len(s.batches) == 0 {
		return 0, stream.StatusWaitRead, nil
	}
	n := copy(p, s.batches[0])
	s.batches[0] = s.batches[0][n:]
	if len(s.batches[0]) == 0 {
		s.batches = s.batches[1:]
	}
	return n, stream.StatusOK, nil
}

func (s *stagedFake) Write(p []byte) (int, stream.Status, error) {
	s.mut.Lock()
	defer s.mut.Unlock()
	s.out = append(s.out, p...)
	return len(p), stream.StatusOK, nil
}

func (s *stagedFake) Mode() stream.Mode { return stream.ModeAsync }

func (s *stagedFake) Close() error {
	s.mut.Lock()
	defer s.mut.Unlock()
	s.closed = true
	return nil
}

func (s *stagedFake) push(p []byte) {
	s.mut.Lock()
	defer s.mut.Unlock()
	s.batches = append(s.batches, p)
}

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

func TestAsyncHandlerCompletesAcrossWaitRead(t *testing.T) {
	fake := &stagedFake{}
	p := async.NewProcessor(async.DefaultOptions())

	Schedule(p, fake, Config{ServerName: "test", Router: newTestRouter(t)})

	// 先只喂前 10 个字节 头部不完整 协程应该进入 waiting 队列而不是报错或挂起整个测试
	full := []byte("GET /hello/async HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")
	fake.push(full[:10])

	done := make(chan struct{})
	go func() {
		p.Run()
		close(done)
	}()

	// 模拟剩余字节稍后到达
	fake.push(full[10:])

	<-done
	assert.Contains(t, string(fake.out), "hi async")
	assert.Contains(t, string(fake.out), "HTTP/1.1 200")
}
