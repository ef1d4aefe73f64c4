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
	"bytes"
	"strconv"
	"strings"

	"github.com/oatpp/oatpp-sub002/errs"
	"github.com/oatpp/oatpp-sub002/web"
)

// bodyAccumulator 把一个请求体（Content-Length 或 chunked）整体攒入内存
//
// 每一轮只对已经缓冲的字节做一次非阻塞尝试：数据不够就报告"还没完成"
// 而不是阻塞等待 —— 真正的等待由调用方通过 async.WaitRead 实现
type bodyAccumulator struct {
	chunked       bool
	contentLength int64 // chunked 为 false 时有效 -1 表示没有 Content-Length（空 body）
	window        int
	data          []byte
	trailer       web.Header
}

func newBodyAccumulator(contentLengthHeader string, chunked bool) *bodyAccumulator {
	acc := &bodyAccumulator{chunked: chunked, trailer: web.NewHeader()}
	if chunked {
		return acc
	}
	if contentLengthHeader == "" {
		acc.contentLength = 0
		return acc
	}
	n, err := strconv.ParseInt(contentLengthHeader, 10, 64)
	if err != nil || n < 0 {
		acc.contentLength = -1 // 交给 consume 报错
	} else {
		acc.contentLength = n
	}
	return acc
}

// tryDecodeChunked 尝试从 data 中解码尽可能多的 chunked body
//
// 返回已解码的 body、trailer、消费掉的字节数与是否已经完整 数据不足时
// complete=false 且 err=nil 调用方应该在拿到更多字节后重新调用
func tryDecodeChunked(data []byte) (body []byte, trailer web.Header, consumed int, complete bool, err error) {
	trailer = web.NewHeader()
	pos := 0
	for {
		nl := bytes.IndexByte(data[pos:], '\n')
		if nl < 0 {
			return nil, nil, 0, false, nil
		}
		sizeLine := data[pos : pos+nl]
		lineEnd := pos + nl + 1
		sizeLine = bytes.TrimRight(sizeLine, "\r\n")
		if idx := bytes.IndexByte(sizeLine, ';'); idx >= 0 {
			sizeLine = sizeLine[:idx]
		}
		size, perr := strconv.ParseUint(strings.TrimSpace(string(sizeLine)), 16, 32)
		if perr != nil {
			return nil, nil, 0, false, errs.NewParseError("invalid chunk size", perr)
		}

		if size == 0 {
			// 读取 trailer 直至空行
			cursor := lineEnd
			for {
				tnl := bytes.IndexByte(data[cursor:], '\n')
				if tnl < 0 {
					return nil, nil, 0, false, nil
				}
				line := bytes.TrimRight(data[cursor:cursor+tnl], "\r\n")
				cursor += tnl + 1
				if len(line) == 0 {
					return body, trailer, cursor, true, nil
				}
				idx := bytes.IndexByte(line, ':')
				if idx <= 0 {
					return nil, nil, 0, false, errs.NewParseError("malformed trailer header", nil)
				}
				trailer.Add(string(bytes.TrimSpace(line[:idx])), string(bytes.TrimSpace(line[idx+1:])))
			}
		}

		need := lineEnd + int(size) + 2 // chunk 数据 + 结尾 CRLF
		if len(data) < need {
			return nil, nil, 0, false, nil
		}
		body = append(body, data[lineEnd:lineEnd+int(size)]...)
		pos = need
	}
}
