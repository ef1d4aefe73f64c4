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
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oatpp/oatpp-sub002/stream"
)

func TestReadRequestWithContentLength(t *testing.T) {
	raw := "POST /users HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Content-Length: 5\r\n" +
		"\r\n" +
		"hello"
	fake := stream.NewFake([]byte(raw))
	b := stream.NewBuffered(fake, 1<<16)

	req, err := ReadRequest(b, 4096)
	require.NoError(t, err)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/users", req.Path)
	assert.Equal(t, "example.com", req.Header.Get("Host"))

	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestReadRequestRejectsConflictingContentLength(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nContent-Length: 5\r\nContent-Length: 6\r\n\r\n"
	fake := stream.NewFake([]byte(raw))
	b := stream.NewBuffered(fake, 1<<16)

	_, err := ReadRequest(b, 4096)
	assert.Error(t, err)
}

func TestReadRequestRejectsTransferEncodingWithContentLength(t *testing.T) {
	raw := "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\nContent-Length: 5\r\n\r\n"
	fake := stream.NewFake([]byte(raw))
	b := stream.NewBuffered(fake, 1<<16)

	_, err := ReadRequest(b, 4096)
	assert.Error(t, err)
}

func TestReadRequestChunkedBody(t *testing.T) {
	raw := "POST /upload HTTP/1.1\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"\r\n" +
		"b\r\nhello world\r\n" +
		"0\r\n" +
		"X-Trailer: done\r\n" +
		"\r\n"
	fake := stream.NewFake([]byte(raw))
	b := stream.NewBuffered(fake, 1<<16)

	req, err := ReadRequest(b, 4096)
	require.NoError(t, err)

	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(body))

	cr, ok := req.Body.(*chunkedReader)
	require.True(t, ok)
	assert.Equal(t, "done", cr.Trailer.Get("X-Trailer"))
}

func TestReadHeaderSectionTooLarge(t *testing.T) {
	huge := bytes.Repeat([]byte("a"), 200)
	raw := "GET / HTTP/1.1\r\nX-Big: " + string(huge) + "\r\n\r\n"
	fake := stream.NewFake([]byte(raw))
	b := stream.NewBuffered(fake, 1<<16)

	_, err := ReadHeaderSection(b, 64)
	assert.Error(t, err)
}

func TestWriteResponseKnownSizeBody(t *testing.T) {
	resp := OK(NewBytesBody("text/plain", []byte("hi")))
	var buf bytes.Buffer
	_, err := WriteResponse(&buf, resp)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "HTTP/1.1 200 OK\r\n")
	assert.Contains(t, out, "Content-Length: 2\r\n")
	assert.Contains(t, out, "Content-Type: text/plain\r\n")
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("hi")))
}

func TestWriteResponseChunkedForUnknownSize(t *testing.T) {
	body := StreamBody{
		ContentTypeValue: "text/plain",
		Produce: func(w io.Writer) (int64, error) {
			n, err := w.Write([]byte("streamed"))
			return int64(n), err
		},
	}
	resp := OK(body)
	var buf bytes.Buffer
	_, err := WriteResponse(&buf, resp)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Transfer-Encoding: chunked\r\n")
	assert.Contains(t, out, "8\r\nstreamed\r\n")
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("0\r\n\r\n")))
}
