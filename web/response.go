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

import "net/http"

// Response 是一次出站 HTTP 响应的统一表示
type Response struct {
	StatusCode int
	Reason     string
	Header     Header
	Body       BodyProducer

	// CloseConnection 由处理函数或错误渲染器设置 要求 http1 在响应发送完毕后关闭连接
	CloseConnection bool
}

// NewResponse 创建一个带状态码与标准原因短语的响应
func NewResponse(statusCode int, body BodyProducer) *Response {
	return &Response{
		StatusCode: statusCode,
		Reason:     http.StatusText(statusCode),
		Header:     NewHeader(),
		Body:       body,
	}
}

// OK 是 200 响应的便捷构造函数
func OK(body BodyProducer) *Response {
	return NewResponse(http.StatusOK, body)
}

// WithHeader 链式设置一个响应头 返回自身便于连写
func (r *Response) WithHeader(name, value string) *Response {
	r.Header.Set(name, value)
	return r
}
