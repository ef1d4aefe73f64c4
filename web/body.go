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
	"io"

	"github.com/oatpp/oatpp-sub002/stream"
)

// BodyProducer 是响应体的统一抽象 编解码层只依赖这一个接口
//
// 一个 BodyProducer 要么报告已知大小（用于写出 Content-Length）
// 要么报告未知大小（用于写出 Transfer-Encoding: chunked）
type BodyProducer interface {
	ContentType() string
	// KnownSize 返回字节数与是否已知 未知大小的 body 总是以 chunked 方式写出
	KnownSize() (int64, bool)
	WriteTo(w io.Writer) (int64, error)
}

// BytesBody 是已知大小的内存体 最常见的 DTO/字符串/静态文件场景
type BytesBody struct {
	ContentTypeValue string
	Data             []byte
}

func NewBytesBody(contentType string, data []byte) BytesBody {
	return BytesBody{ContentTypeValue: contentType, Data: data}
}

func (b BytesBody) ContentType() string { return b.ContentTypeValue }

func (b BytesBody) KnownSize() (int64, bool) { return int64(len(b.Data)), true }

func (b BytesBody) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.Data)
	return int64(n), err
}

// StreamBody 包装一个大小未知的惰性生产函数 例如转发上游响应或流式渲染
type StreamBody struct {
	ContentTypeValue string
	Produce          func(w io.Writer) (int64, error)
}

func (b StreamBody) ContentType() string { return b.ContentTypeValue }

func (b StreamBody) KnownSize() (int64, bool) { return 0, false }

func (b StreamBody) WriteTo(w io.Writer) (int64, error) {
	return b.Produce(w)
}

// ChunkedBody 包装一个已经写满的 stream.ChunkedBuffer
//
// 它的总大小在写出时其实已经确定 但协议层约定一旦选择了分块缓冲就总是
// 以 Transfer-Encoding: chunked 帧的形式送出 不回退为 Content-Length
type ChunkedBody struct {
	ContentTypeValue string
	Buffer           *stream.ChunkedBuffer
}

func NewChunkedBody(contentType string, buf *stream.ChunkedBuffer) ChunkedBody {
	return ChunkedBody{ContentTypeValue: contentType, Buffer: buf}
}

func (b ChunkedBody) ContentType() string { return b.ContentTypeValue }

func (b ChunkedBody) KnownSize() (int64, bool) { return 0, false }

func (b ChunkedBody) WriteTo(w io.Writer) (int64, error) {
	var total int64
	var writeErr error
	b.Buffer.Chunks(func(p []byte) {
		if writeErr != nil || len(p) == 0 {
			return
		}
		n, err := w.Write(p)
		total += int64(n)
		writeErr = err
	})
	return total, writeErr
}

// EmptyBody 是没有消息体的响应（204/304 或 HEAD）
type EmptyBody struct{}

func (EmptyBody) ContentType() string { return "" }

func (EmptyBody) KnownSize() (int64, bool) { return 0, true }

func (EmptyBody) WriteTo(io.Writer) (int64, error) { return 0, nil }
