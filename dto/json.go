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

// Package dto 提供把任意 Go 值编码为响应体的便捷适配器
package dto

import (
	"io"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/oatpp/oatpp-sub002/web"
)

func newError(format string, args ...any) error {
	return errors.Errorf("dto: "+format, args...)
}

// contentTypeJSON 是 JSON body 统一使用的 Content-Type
const contentTypeJSON = "application/json; charset=utf-8"

// JSON 把任意可序列化的值包装为 web.BodyProducer 编码在 WriteTo 时才发生
// 而不是构造时 这样一个路由处理函数可以直接 `return web.OK(dto.NewJSON(v)), nil`
// 而不必自己处理序列化错误
type JSON struct {
	Value any
}

// NewJSON 是 JSON{Value: v} 的便捷构造
func NewJSON(v any) JSON { return JSON{Value: v} }

func (j JSON) ContentType() string { return contentTypeJSON }

// KnownSize 对 JSON 总是报告未知大小 序列化结果的字节数只有写出时才知道
// 调用方会因此走 chunked 编码路径
func (j JSON) KnownSize() (int64, bool) { return 0, false }

func (j JSON) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	if err := json.NewEncoder(cw).Encode(j.Value); err != nil {
		return cw.n, newError("encoding value: %v", err)
	}
	return cw.n, nil
}

// countingWriter 让我们能在不缓冲整个编码结果的前提下报告写入字节数
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// DecodeBody 从请求体反序列化为 v 供处理函数解析 JSON 请求载荷使用
func DecodeBody(r io.Reader, v any) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return newError("decoding request body: %v", err)
	}
	return nil
}
