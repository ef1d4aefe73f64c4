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

// Package errs 定义连接处理核心统一的错误分类与默认错误响应渲染
package errs

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Kind 对应 spec 中的错误分类 每一种都映射到一个确定性的处理结果
type Kind int

const (
	KindParse Kind = iota
	KindRouteNotFound
	KindUnsupportedMedia
	KindPayloadTooLarge
	KindInternal
	KindIOBrokenPipe
)

// statusOf 给出每种 Kind 的默认 HTTP 状态码
var statusOf = map[Kind]int{
	KindParse:            400,
	KindRouteNotFound:    404,
	KindUnsupportedMedia: 415,
	KindPayloadTooLarge:  413,
	KindInternal:         500,
	KindIOBrokenPipe:     0, // 静默丢弃 不产生响应
}

// HTTPError 是携带状态码与原因短语的错误 是 errs 包对外的主要错误类型
type HTTPError struct {
	Kind    Kind
	Status  int
	Reason  string
	cause   error
	closeOn bool // 是否应该在响应后关闭连接
}

func (e *HTTPError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.cause)
	}
	return e.Reason
}

func (e *HTTPError) Unwrap() error { return e.cause }

// CloseConnection 标记该错误产生的响应后是否需要关闭连接
func (e *HTTPError) CloseConnection() bool { return e.closeOn }

func newHTTPError(kind Kind, reason string, closeOn bool, cause error) *HTTPError {
	return &HTTPError{
		Kind:    kind,
		Status:  statusOf[kind],
		Reason:  reason,
		cause:   cause,
		closeOn: closeOn,
	}
}

// NewParseError 对应请求行/头部/chunked body 解析失败 -> 400 后关闭连接
func NewParseError(reason string, cause error) *HTTPError {
	return newHTTPError(KindParse, reason, true, cause)
}

// NewHeaderTooLarge 头部小节超过配置上限 -> 431
func NewHeaderTooLarge() *HTTPError {
	e := newHTTPError(KindParse, "Request Header Fields Too Large", true, nil)
	e.Status = 431
	return e
}

// NewRouteNotFound 路由未命中 -> 404
func NewRouteNotFound(method, path string) *HTTPError {
	return newHTTPError(KindRouteNotFound, fmt.Sprintf("no route for %s %s", method, path), false, nil)
}

// NewUnsupportedMedia -> 415
func NewUnsupportedMedia(reason string) *HTTPError {
	return newHTTPError(KindUnsupportedMedia, reason, false, nil)
}

// NewPayloadTooLarge -> 413
func NewPayloadTooLarge(reason string) *HTTPError {
	return newHTTPError(KindPayloadTooLarge, reason, false, nil)
}

// NewInternalError 处理函数 panic/返回 nil -> 500 后关闭连接
func NewInternalError(cause error) *HTTPError {
	return newHTTPError(KindInternal, "Internal Server Error", true, cause)
}

// NewNotImplemented 501 对应非法的 Transfer-Encoding
func NewNotImplemented(reason string) *HTTPError {
	e := newHTTPError(KindInternal, reason, true, nil)
	e.Status = 501
	return e
}

// ErrBrokenPipe 对应 IOBrokenPipe -> 静默丢弃连接 不渲染响应
var ErrBrokenPipe = errors.New("errs: broken pipe")

// Chain 返回错误链上每一层的文案 最外层在前 用于默认渲染器的 stack 风格输出
func Chain(err error) []string {
	var msgs []string
	for err != nil {
		msgs = append(msgs, err.Error())
		err = errors.Unwrap(err)
	}
	return msgs
}

// RenderDefault 实现 spec §6 描述的默认错误处理器：
// 写入 server=, code=, description= 以及错误链的 stack 风格列表 状态码取自最外层 HTTPError 缺省为 500
func RenderDefault(w io.Writer, server string, err error) (status int, reasonPhrase string) {
	status = 500
	reasonPhrase = "Internal Server Error"

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.Status
		reasonPhrase = httpErr.Reason
	}

	var b strings.Builder
	fmt.Fprintf(&b, "server=%s\n", server)
	fmt.Fprintf(&b, "code=%d\n", status)
	fmt.Fprintf(&b, "description=%s\n", reasonPhrase)
	b.WriteString("stack:\n")
	for i, msg := range Chain(err) {
		fmt.Fprintf(&b, "  [%d] %s\n", i, msg)
	}

	_, _ = io.WriteString(w, b.String())
	return status, reasonPhrase
}
