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

	"github.com/stretchr/testify/require"

	"github.com/oatpp/oatpp-sub002/confengine"
	"github.com/oatpp/oatpp-sub002/router"
	"github.com/oatpp/oatpp-sub002/web"
)

func TestNewServerBindsBusinessListenerWithAdminDisabled(t *testing.T) {
	conf, err := confengine.LoadContent([]byte(`
server:
  address: "127.0.0.1:0"
admin:
  enabled: false
`))
	require.NoError(t, err)

	rt := router.New[web.Handler]()
	_, err = rt.Register("GET", "/hello", func(req *web.Request) (*web.Response, error) {
		return web.OK(web.NewBytesBody("text/plain", []byte("hi"))), nil
	})
	require.NoError(t, err)

	svr, err := New(conf, rt)
	require.NoError(t, err)
	defer svr.Stop()

	require.NotEmpty(t, svr.Addr())

	go svr.Start()

	conn, err := net.DialTimeout("tcp", svr.Addr(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /hello HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	require.NoError(t, err)

	buf := make([]byte, 4096)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	require.Contains(t, string(buf[:n]), "200")
}
