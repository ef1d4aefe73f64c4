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
	"strconv"
	"strings"

	"github.com/oatpp/oatpp-sub002/errs"
	"github.com/oatpp/oatpp-sub002/stream"
)

const maxChunkLineBytes = 4096

// readLine 从 b 中增量 Peek 直至找到一个 LF 返回去掉末尾 CRLF/LF 的行内容 并提交读游标
func readLine(b *stream.Buffered, maxLine int) ([]byte, error) {
	step := 128
	n := step
	for {
		if n > maxLine {
			n = maxLine
		}
		data, status, err := b.Peek(n)
		if err != nil {
			return nil, err
		}
		if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
			b.CommitReadOffset(idx + 1)
			return bytes.TrimRight(data[:idx+1], "\r\n"), nil
		}
		switch status {
		case stream.StatusOK:
			if n >= maxLine {
				return nil, errs.NewParseError("chunk line exceeds limit", nil)
			}
			n += step
		case stream.StatusClosed:
			return nil, io.ErrUnexpectedEOF
		case stream.StatusBrokenPipe:
			return nil, errs.ErrBrokenPipe
		default:
			return nil, errs.NewParseError("unexpected stream status while reading line", nil)
		}
	}
}

// chunkedReader 实现 RFC 7230 §4.1 描述的 chunked transfer-coding 解码
//
// 读到最后一个 0 长度分块后 会解析紧随其后的 trailer 头部并写入 Trailer 再返回 io.EOF
type chunkedReader struct {
	b         *stream.Buffered
	adapter   stream.ReaderAdapter
	remaining int
	done      bool
	Trailer   Header
}

func newChunkedReader(b *stream.Buffered) *chunkedReader {
	return &chunkedReader{b: b, adapter: stream.ReaderAdapter{S: b}, Trailer: NewHeader()}
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if c.done {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	if c.remaining == 0 {
		line, err := readLine(c.b, maxChunkLineBytes)
		if err != nil {
			return 0, err
		}
		sizeField := line
		if idx := bytes.IndexByte(line, ';'); idx >= 0 {
			sizeField = line[:idx]
		}
		size, err := strconv.ParseUint(strings.TrimSpace(string(sizeField)), 16, 32)
		if err != nil {
			return 0, errs.NewParseError("invalid chunk size", err)
		}

		if size == 0 {
			for {
				trailerLine, err := readLine(c.b, maxChunkLineBytes)
				if err != nil {
					return 0, err
				}
				if len(trailerLine) == 0 {
					break
				}
				name, value, ok := splitHeaderLine(trailerLine)
				if !ok {
					return 0, errs.NewParseError("malformed trailer header", nil)
				}
				c.Trailer.Add(name, value)
			}
			c.done = true
			return 0, io.EOF
		}
		c.remaining = int(size)
	}

	toRead := len(p)
	if toRead > c.remaining {
		toRead = c.remaining
	}
	n, err := c.adapter.Read(p[:toRead])
	c.remaining -= n
	if err != nil {
		return n, err
	}
	if c.remaining == 0 {
		if _, err := readLine(c.b, 2); err != nil {
			return n, err
		}
	}
	return n, nil
}
