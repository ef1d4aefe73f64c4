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

package http2

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oatpp/oatpp-sub002/errs"
	"github.com/oatpp/oatpp-sub002/http2/hpack"
	"github.com/oatpp/oatpp-sub002/router"
	"github.com/oatpp/oatpp-sub002/stream"
	"github.com/oatpp/oatpp-sub002/web"
)

func newTestRouter(t *testing.T) *router.Router[web.Handler] {
	t.Helper()
	rt := router.New[web.Handler]()
	_, err := rt.Register("GET", "/hello", func(req *web.Request) (*web.Response, error) {
		return web.OK(web.NewBytesBody("text/plain", []byte("hi"))), nil
	})
	require.NoError(t, err)
	return rt
}

// readFrames 把一段已经写出的字节解析为帧列表 仅用于测试断言
func readFrames(t *testing.T, data []byte) []Frame {
	t.Helper()
	var out []Frame
	for len(data) >= 9 {
		h, err := ReadFrameHeader(data)
		require.NoError(t, err)
		total := 9 + int(h.Length)
		require.LessOrEqual(t, total, len(data))
		out = append(out, Frame{FrameHeader: h, Payload: append([]byte(nil), data[9:total]...)})
		data = data[total:]
	}
	return out
}

func TestSessionRespondsToSimpleGetRequest(t *testing.T) {
	enc := hpack.NewEncoder()
	block := enc.Encode([]hpack.HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":path", Value: "/hello"},
		{Name: ":scheme", Value: "http"},
		{Name: ":authority", Value: "example.com"},
	})
	headersFrame := MarshalFrame(FrameHeader{Type: FrameHeaders, Flags: FlagEndHeaders | FlagEndStream, StreamID: 1}, block)

	fake := stream.NewFake(headersFrame)
	sess := NewSession(fake, Config{ServerName: "test", Router: newTestRouter(t)})

	done := make(chan struct{})
	go func() {
		sess.Serve()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate")
	}

	// 给响应 goroutine 一点时间把帧交给写循环
	deadline := time.Now().Add(2 * time.Second)
	for len(fake.Out) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	frames := readFrames(t, fake.Out)
	var headers, data *Frame
	for i := range frames {
		switch frames[i].Type {
		case FrameHeaders:
			if frames[i].StreamID == 1 {
				headers = &frames[i]
			}
		case FrameData:
			if frames[i].StreamID == 1 {
				data = &frames[i]
			}
		}
	}
	require.NotNil(t, headers, "expected a HEADERS frame for stream 1")

	dec := hpack.NewDecoder()
	fields, err := dec.Decode(headers.Payload)
	require.NoError(t, err)

	var status string
	for _, f := range fields {
		if f.Name == ":status" {
			status = f.Value
		}
	}
	assert.Equal(t, "200", status)

	require.NotNil(t, data, "expected a DATA frame for stream 1")
	assert.Equal(t, "hi", string(data.Payload))
}

func TestSessionAcceptsTrailersAfterData(t *testing.T) {
	enc := hpack.NewEncoder()
	headerBlock := enc.Encode([]hpack.HeaderField{
		{Name: ":method", Value: "POST"},
		{Name: ":path", Value: "/hello"},
		{Name: ":scheme", Value: "http"},
	})
	headersFrame := MarshalFrame(FrameHeader{Type: FrameHeaders, Flags: FlagEndHeaders, StreamID: 1}, headerBlock)
	dataFrame := MarshalFrame(FrameHeader{Type: FrameData, StreamID: 1}, []byte("body"))
	trailerBlock := enc.Encode([]hpack.HeaderField{{Name: "x-checksum", Value: "abc123"}})
	trailerFrame := MarshalFrame(FrameHeader{Type: FrameHeaders, Flags: FlagEndHeaders | FlagEndStream, StreamID: 1}, trailerBlock)

	var gotTrailer string
	rt := router.New[web.Handler]()
	_, err := rt.Register("POST", "/hello", func(req *web.Request) (*web.Response, error) {
		gotTrailer = req.Trailer.Get("x-checksum")
		return web.OK(web.NewBytesBody("text/plain", []byte("ok"))), nil
	})
	require.NoError(t, err)

	fake := stream.NewFake(append(append(headersFrame, dataFrame...), trailerFrame...))
	sess := NewSession(fake, Config{ServerName: "test", Router: rt})

	done := make(chan struct{})
	go func() {
		sess.Serve()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate")
	}

	assert.Equal(t, "abc123", gotTrailer)
}

func TestSessionRejectsPseudoHeaderInTrailers(t *testing.T) {
	enc := hpack.NewEncoder()
	headerBlock := enc.Encode([]hpack.HeaderField{
		{Name: ":method", Value: "POST"},
		{Name: ":path", Value: "/hello"},
		{Name: ":scheme", Value: "http"},
	})
	headersFrame := MarshalFrame(FrameHeader{Type: FrameHeaders, Flags: FlagEndHeaders, StreamID: 1}, headerBlock)
	trailerBlock := enc.Encode([]hpack.HeaderField{{Name: ":status", Value: "200"}})
	trailerFrame := MarshalFrame(FrameHeader{Type: FrameHeaders, Flags: FlagEndHeaders | FlagEndStream, StreamID: 1}, trailerBlock)

	rt := router.New[web.Handler]()
	_, err := rt.Register("POST", "/hello", func(req *web.Request) (*web.Response, error) {
		t.Fatal("handler must not run when trailers carry a pseudo-header")
		return nil, nil
	})
	require.NoError(t, err)

	fake := stream.NewFake(append(headersFrame, trailerFrame...))
	sess := NewSession(fake, Config{ServerName: "test", Router: rt})

	done := make(chan struct{})
	go func() {
		sess.Serve()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate")
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(fake.Out) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	frames := readFrames(t, fake.Out)
	var sawRST bool
	for _, f := range frames {
		if f.Type == FrameRSTStream && f.StreamID == 1 {
			sawRST = true
		}
	}
	assert.True(t, sawRST, "expected RST_STREAM after a trailer carrying a pseudo-header")
}

func TestBuildRequestPseudoHeaderValidation(t *testing.T) {
	base := []hpack.HeaderField{
		{Name: ":method", Value: "GET"},
		{Name: ":path", Value: "/x"},
		{Name: ":scheme", Value: "http"},
	}

	t.Run("missing scheme", func(t *testing.T) {
		fields := []hpack.HeaderField{
			{Name: ":method", Value: "GET"},
			{Name: ":path", Value: "/x"},
		}
		_, err := buildRequest(NewStream(1, 0, 0), fields)
		require.Error(t, err)
	})

	t.Run("unknown pseudo-header", func(t *testing.T) {
		fields := append(append([]hpack.HeaderField{}, base...), hpack.HeaderField{Name: ":bogus", Value: "x"})
		_, err := buildRequest(NewStream(1, 0, 0), fields)
		require.Error(t, err)
	})

	t.Run("pseudo-header after regular header", func(t *testing.T) {
		fields := []hpack.HeaderField{
			{Name: ":method", Value: "GET"},
			{Name: "x-a", Value: "1"},
			{Name: ":path", Value: "/x"},
			{Name: ":scheme", Value: "http"},
		}
		_, err := buildRequest(NewStream(1, 0, 0), fields)
		require.Error(t, err)
	})

	t.Run("uppercase header name", func(t *testing.T) {
		fields := append(append([]hpack.HeaderField{}, base...), hpack.HeaderField{Name: "X-Upper", Value: "1"})
		_, err := buildRequest(NewStream(1, 0, 0), fields)
		require.Error(t, err)
	})

	t.Run("valid request", func(t *testing.T) {
		req, err := buildRequest(NewStream(1, 0, 0), base)
		require.NoError(t, err)
		assert.Equal(t, "GET", req.Method)
		assert.Equal(t, "/x", req.Path)
	})
}

func TestHandleFrameErrorStreamErrorSendsRSTStreamAndKeepsConnectionAlive(t *testing.T) {
	sess := NewSession(stream.NewFake(nil), Config{ServerName: "test", Router: router.New[web.Handler]()})
	st := NewStream(7, DefaultInitialWindowSize, DefaultInitialWindowSize)
	sess.streams[7] = st

	closeConn := sess.handleFrameError(FrameHeader{Type: FramePriority, StreamID: 7},
		errs.NewH2StreamError(7, errs.H2FrameSizeError, "malformed PRIORITY payload", nil))
	assert.False(t, closeConn)
	assert.Equal(t, StreamError, st.Snapshot())
	assert.Nil(t, sess.getStream(7))

	payload, streamID, ok := sess.sched.Pop()
	require.True(t, ok)
	h, err := ReadFrameHeader(payload)
	require.NoError(t, err)
	assert.Equal(t, FrameRSTStream, h.Type)
	assert.EqualValues(t, 7, streamID)
}

func TestHandleFrameErrorConnErrorSendsGoAwayAndClosesConnection(t *testing.T) {
	sess := NewSession(stream.NewFake(nil), Config{ServerName: "test", Router: router.New[web.Handler]()})

	closeConn := sess.handleFrameError(FrameHeader{Type: FrameSettings}, newError("malformed SETTINGS payload"))
	assert.True(t, closeConn)

	payload, _, ok := sess.sched.Pop()
	require.True(t, ok)
	h, err := ReadFrameHeader(payload)
	require.NoError(t, err)
	assert.Equal(t, FrameGoAway, h.Type)
}

func TestSessionSendsSettingsOnStart(t *testing.T) {
	fake := stream.NewFake(nil)
	sess := NewSession(fake, Config{ServerName: "test", Router: router.New[web.Handler]()})

	done := make(chan struct{})
	go func() {
		sess.Serve()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate")
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(fake.Out) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	frames := readFrames(t, fake.Out)
	require.NotEmpty(t, frames)
	assert.Equal(t, FrameSettings, frames[0].Type)
}
