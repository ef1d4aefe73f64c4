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

// Package http1 实现阻塞模式下的 HTTP/1.1 连接处理：一条连接占用一个操作系统线程
// 循环读取请求、分发、写回响应 直到决定关闭连接为止
package http1

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/oatpp/oatpp-sub002/errs"
	"github.com/oatpp/oatpp-sub002/internal/rescue"
	"github.com/oatpp/oatpp-sub002/logger"
	"github.com/oatpp/oatpp-sub002/router"
	"github.com/oatpp/oatpp-sub002/stream"
	"github.com/oatpp/oatpp-sub002/web"
)

func newError(format string, args ...any) error {
	return errors.Errorf("http1: "+format, args...)
}

// connState 是单次请求处理之后连接循环做出的决策
type connState int

const (
	// stateAlive 继续在同一条连接上读取下一条流水线请求
	stateAlive connState = iota
	// stateClosing 响应发送完毕后主动关闭连接
	stateClosing
	// stateDelegated 连接的所有权已转交给别处（例如 h2c 升级）不应再被这里关闭
	stateDelegated
)

// Config 描述一个 HTTP/1.1 阻塞处理器的运行参数
type Config struct {
	ServerName     string
	MaxHeaderBytes int
	MaxPeekBytes   int
	Router         *router.Router[web.Handler]

	// OnUpgrade 在识别到 h2c 升级请求时被调用 返回 true 表示已接管连接
	// http1 的连接循环会在其返回 true 后立即退出而不再写任何字节
	OnUpgrade func(conn stream.ByteStream, req *web.Request, buffered *stream.Buffered) bool

	Log logger.Logger // 连接级日志 零值时退回全局 logger
}

func (c Config) logger() logger.Logger {
	if c.Log != (logger.Logger{}) {
		return c.Log
	}
	return logger.With()
}

func (c Config) maxHeaderBytes() int {
	if c.MaxHeaderBytes > 0 {
		return c.MaxHeaderBytes
	}
	return 4096
}

func (c Config) maxPeekBytes() int {
	if c.MaxPeekBytes > 0 {
		return c.MaxPeekBytes
	}
	return 1 << 20
}

// Serve 驱动一条连接的完整生命周期 阻塞直至连接被关闭或委托给其它处理器
func Serve(conn stream.ByteStream, cfg Config) {
	defer func() {
		if r := recover(); r != nil {
			rescue.LogPanic(cfg.logger(), r)
			_ = conn.Close()
		}
	}()

	buffered := stream.NewBuffered(conn, cfg.maxPeekBytes())
	writer := stream.WriterAdapter{S: conn}

	for {
		state := serveOne(conn, buffered, writer, cfg)
		switch state {
		case stateAlive:
			continue
		case stateDelegated:
			return
		default:
			_ = conn.Close()
			return
		}
	}
}

func serveOne(conn stream.ByteStream, buffered *stream.Buffered, writer stream.WriterAdapter, cfg Config) connState {
	req, err := web.ReadRequest(buffered, cfg.maxHeaderBytes())
	if err != nil {
		if err == io.EOF {
			return stateClosing // 对端在请求边界上正常关闭 不是错误
		}
		writeError(writer, cfg.ServerName, err)
		return stateClosing
	}

	if cfg.OnUpgrade != nil && isH2CUpgrade(req.Header) {
		if cfg.OnUpgrade(conn, req, buffered) {
			return stateDelegated
		}
	}

	resp, handlerErr := dispatch(cfg.Router, req)
	if handlerErr != nil {
		// 未被处理函数消费的请求体必须先排空 否则错误响应之后的字节会污染下一条流水线请求
		if req.Body != nil {
			_ = web.DrainBody(req.Body)
		}
		closeAfter := writeError(writer, cfg.ServerName, handlerErr)
		if closeAfter {
			return stateClosing
		}
		return stateAlive
	}

	if req.Body != nil {
		if err := web.DrainBody(req.Body); err != nil {
			return stateClosing
		}
	}

	if _, err := web.WriteResponse(writer, resp); err != nil {
		return stateClosing
	}

	if shouldClose(req, resp) {
		return stateClosing
	}
	return stateAlive
}

func dispatch(rt *router.Router[web.Handler], req *web.Request) (resp *web.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = errs.NewInternalError(fmt.Errorf("panic: %v", r))
		}
	}()

	path := req.Path
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path = path[:idx]
	}
	decodedPath, unescapeErr := url.PathUnescape(path)
	if unescapeErr != nil {
		decodedPath = path
	}

	handler, vars, ok := rt.Match(req.Method, decodedPath)
	if !ok {
		return nil, errs.NewRouteNotFound(req.Method, decodedPath)
	}
	req.PathVars = vars

	resp, err = handler(req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errs.NewInternalError(newError("handler for %s %s returned a nil response", req.Method, decodedPath))
	}
	return resp, nil
}

// writeError 渲染并写出默认错误响应 返回值表示响应发送后连接是否应该关闭
func writeError(writer stream.WriterAdapter, serverName string, err error) bool {
	body := &strings.Builder{}
	status, reason := errs.RenderDefault(body, serverName, err)
	resp := web.NewResponse(status, web.NewBytesBody("text/plain; charset=utf-8", []byte(body.String())))
	resp.Reason = reason

	closeAfter := true
	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) {
		closeAfter = httpErr.CloseConnection()
	}
	resp.CloseConnection = closeAfter

	if _, werr := web.WriteResponse(writer, resp); werr != nil {
		return true
	}
	return closeAfter
}

// shouldClose 实现 spec §4.4 描述的连接存活判定规则
func shouldClose(req *web.Request, resp *web.Response) bool {
	if resp.CloseConnection {
		return true
	}
	if resp.StatusCode >= 500 {
		return true
	}
	if strings.EqualFold(req.Header.Get("Connection"), "close") {
		return true
	}
	if strings.EqualFold(resp.Header.Get("Connection"), "close") {
		return true
	}
	if req.Protocol == "HTTP/1.0" && !strings.EqualFold(req.Header.Get("Connection"), "keep-alive") {
		return true
	}
	return false
}

func isH2CUpgrade(header web.Header) bool {
	if !strings.EqualFold(header.Get("Upgrade"), "h2c") {
		return false
	}
	for _, v := range header.Values("Connection") {
		for _, token := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(token), "Upgrade") {
				return true
			}
		}
	}
	return false
}
