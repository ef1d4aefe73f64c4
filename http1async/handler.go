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

// Package http1async 是 http1 的非阻塞版本：同样的请求行/头部/响应规则
// 但建立在 async.Processor 之上 —— 在等待 I/O 就绪时让出协程而不是阻塞线程
//
// 消息体在分发给处理函数之前会被完整缓冲到内存 这是与 http1 阻塞版本的
// 唯一行为差异：阻塞版本可以把一个未知大小的 body 直接以 io.Reader 形式
// 交给处理函数边读边处理 而协作式协程每一步都必须能立刻返回 无法在
// 协程函数内部做阻塞式的 io.Reader.Read 调用 因此由调度器负责把 body
// 读满之后再构造一个内存 io.Reader 交给同一个 web.Handler
package http1async

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/oatpp/oatpp-sub002/async"
	"github.com/oatpp/oatpp-sub002/errs"
	"github.com/oatpp/oatpp-sub002/internal/splitio"
	"github.com/oatpp/oatpp-sub002/router"
	"github.com/oatpp/oatpp-sub002/stream"
	"github.com/oatpp/oatpp-sub002/web"
)

// Config 描述一个 HTTP/1.1 协程处理器的运行参数
type Config struct {
	ServerName     string
	MaxHeaderBytes int
	MaxPeekBytes   int
	MaxBodyBytes   int64 // 协程模式下请求体会被整体缓冲 超过该上限按 413 拒绝
	Router         *router.Router[web.Handler]
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

func (c Config) maxBodyBytes() int64 {
	if c.MaxBodyBytes > 0 {
		return c.MaxBodyBytes
	}
	return 10 << 20
}

// conn 持有一条连接在其生命周期内反复用到的状态 在各个协程步骤之间传递
type conn struct {
	raw      stream.ByteStream
	buffered *stream.Buffered
	writer   *asyncWriter
	cfg      Config

	headerSection []byte
	headerWindow  int
}

// Schedule 在 p 上登记一个驱动该连接完整生命周期的协程
func Schedule(p *async.Processor, rawConn stream.ByteStream, cfg Config) {
	c := &conn{
		raw:      rawConn,
		buffered: stream.NewBuffered(rawConn, cfg.maxPeekBytes()),
		writer:   &asyncWriter{s: rawConn},
		cfg:      cfg,
	}
	p.Schedule(async.NewRoutine("http1async.conn", c.readHeaders))
}

func (c *conn) readHeaders() async.Action {
	if c.headerWindow == 0 {
		c.headerWindow = 512
	}

	capped := c.headerWindow
	if capped > c.cfg.maxHeaderBytes() {
		capped = c.cfg.maxHeaderBytes()
	}

	data, status, err := c.buffered.Peek(capped)
	if err != nil && err != stream.ErrTruncated {
		return async.Error(err)
	}

	if idx := splitio.IndexCRLFCRLF(data); idx >= 0 {
		c.buffered.CommitReadOffset(idx + 4)
		c.headerSection = append([]byte(nil), data[:idx+4]...)
		return async.Repeat(c.dispatchRequest)
	}

	switch status {
	case stream.StatusOK:
		if capped >= c.cfg.maxHeaderBytes() {
			return async.Error(errs.NewHeaderTooLarge())
		}
		c.headerWindow += 512
		return async.Repeat(c.readHeaders)
	case stream.StatusWaitRead:
		return async.WaitRead(c.raw, c.readHeaders)
	case stream.StatusClosed:
		return async.Finish() // 对端在请求边界上正常关闭
	case stream.StatusBrokenPipe:
		return async.Finish()
	default:
		return async.Error(errs.NewParseError("unexpected stream status while reading headers", nil))
	}
}

func (c *conn) dispatchRequest() async.Action {
	method, path, protocol, header, err := web.ParseHeaderSection(c.headerSection)
	if err != nil {
		return async.Error(err)
	}

	req := &web.Request{Method: method, Path: path, Protocol: protocol, Header: header}

	te := header.Get("transfer-encoding")
	cl := header.Get("content-length")
	if te != "" && cl != "" {
		return async.Error(errs.NewParseError("Transfer-Encoding and Content-Length both present", nil))
	}
	if te != "" && !strings.EqualFold(strings.TrimSpace(te), "chunked") {
		return async.Error(errs.NewNotImplemented("unsupported Transfer-Encoding"))
	}

	acc := newBodyAccumulator(cl, te != "")
	if !acc.chunked && acc.contentLength < 0 {
		return async.Error(errs.NewParseError("invalid Content-Length", nil))
	}
	if !acc.chunked && acc.contentLength > c.cfg.maxBodyBytes() {
		return async.Error(errs.NewPayloadTooLarge("request body exceeds configured limit"))
	}

	return c.continueBody(req, acc)
}

// continueBody 对已缓冲的字节做一次非阻塞解码尝试 不够就让出协程等待更多数据
func (c *conn) continueBody(req *web.Request, acc *bodyAccumulator) async.Action {
	if acc.window == 0 {
		acc.window = 4096
	}

	if !acc.chunked {
		n := int(acc.contentLength)
		data, status, err := c.buffered.Peek(n)
		if err != nil && err != stream.ErrTruncated {
			return async.Error(err)
		}
		switch status {
		case stream.StatusOK:
			c.buffered.CommitReadOffset(n)
			req.Body = bytes.NewReader(data[:n])
			return async.Repeat(func() async.Action { return c.handle(req) })
		case stream.StatusWaitRead:
			return async.WaitRead(c.raw, func() async.Action { return c.continueBody(req, acc) })
		case stream.StatusClosed:
			return async.Error(errs.NewParseError("connection closed before full request body was received", nil))
		case stream.StatusBrokenPipe:
			return async.Finish()
		default:
			return async.Error(errs.NewInternalError(fmt.Errorf("unexpected read status %s", status)))
		}
	}

	capped := acc.window
	limit := int(c.cfg.maxBodyBytes())
	if capped > limit {
		capped = limit
	}
	data, status, err := c.buffered.Peek(capped)
	if err != nil && err != stream.ErrTruncated {
		return async.Error(err)
	}

	body, trailer, consumed, complete, derr := tryDecodeChunked(data)
	if derr != nil {
		return async.Error(derr)
	}
	if complete {
		c.buffered.CommitReadOffset(consumed)
		req.Body = bytes.NewReader(body)
		req.Trailer = trailer
		return async.Repeat(func() async.Action { return c.handle(req) })
	}

	switch status {
	case stream.StatusOK:
		if capped >= limit {
			return async.Error(errs.NewPayloadTooLarge("chunked request body exceeds configured limit"))
		}
		acc.window += 4096
		return async.Repeat(func() async.Action { return c.continueBody(req, acc) })
	case stream.StatusWaitRead:
		return async.WaitRead(c.raw, func() async.Action { return c.continueBody(req, acc) })
	case stream.StatusClosed:
		return async.Error(errs.NewParseError("connection closed mid chunked-body", nil))
	case stream.StatusBrokenPipe:
		return async.Finish()
	default:
		return async.Error(errs.NewInternalError(fmt.Errorf("unexpected read status %s", status)))
	}
}

func (c *conn) handle(req *web.Request) async.Action {
	resp, err := dispatch(c.cfg.Router, req)
	if err != nil {
		return c.writeErrorAndDecide(req, err)
	}
	return c.writeResponse(req, resp)
}

func (c *conn) writeErrorAndDecide(req *web.Request, err error) async.Action {
	body := &strings.Builder{}
	status, reason := errs.RenderDefault(body, c.cfg.ServerName, err)
	resp := web.NewResponse(status, web.NewBytesBody("text/plain; charset=utf-8", []byte(body.String())))
	resp.Reason = reason

	closeAfter := true
	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) {
		closeAfter = httpErr.CloseConnection()
	}
	resp.CloseConnection = closeAfter
	return c.writeResponse(req, resp)
}

func (c *conn) writeResponse(req *web.Request, resp *web.Response) async.Action {
	var buf bytes.Buffer
	if _, err := web.WriteResponse(&buf, resp); err != nil {
		return async.Error(err)
	}
	c.writer.stage(buf.Bytes())

	return c.flush(func() async.Action {
		if shouldClose(req, resp) {
			_ = c.raw.Close()
			return async.Finish()
		}
		c.headerWindow = 0
		return async.Repeat(c.readHeaders)
	})
}

func (c *conn) flush(onDone async.Func) async.Action {
	var step async.Func
	step = func() async.Action {
		status, err := c.writer.flushSome()
		if err != nil {
			return async.Error(err)
		}
		switch status {
		case stream.StatusOK:
			if c.writer.pending() == 0 {
				return async.Repeat(onDone)
			}
			return async.Repeat(step)
		case stream.StatusWaitWrite:
			return async.WaitWrite(c.raw, step)
		case stream.StatusBrokenPipe, stream.StatusClosed:
			return async.Finish()
		default:
			return async.Error(errs.NewInternalError(fmt.Errorf("unexpected write status %s", status)))
		}
	}
	return step()
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
		return nil, errs.NewInternalError(fmt.Errorf("handler for %s %s returned a nil response", req.Method, decodedPath))
	}
	return resp, nil
}

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

// asyncWriter 把一段已经完全序列化好的响应字节分批写给底层非阻塞流
type asyncWriter struct {
	s   stream.ByteStream
	buf []byte
	off int
}

func (w *asyncWriter) stage(p []byte) {
	w.buf = p
	w.off = 0
}

func (w *asyncWriter) pending() int { return len(w.buf) - w.off }

func (w *asyncWriter) flushSome() (stream.Status, error) {
	if w.pending() == 0 {
		return stream.StatusOK, nil
	}
	n, status, err := w.s.Write(w.buf[w.off:])
	w.off += n
	if status == stream.StatusRetry {
		return stream.StatusOK, nil
	}
	return status, err
}
