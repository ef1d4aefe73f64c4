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
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/oatpp/oatpp-sub002/errs"
	"github.com/oatpp/oatpp-sub002/http2/hpack"
	"github.com/oatpp/oatpp-sub002/internal/rescue"
	"github.com/oatpp/oatpp-sub002/logger"
	"github.com/oatpp/oatpp-sub002/router"
	"github.com/oatpp/oatpp-sub002/stream"
	"github.com/oatpp/oatpp-sub002/web"
)

// Config 配置一条 HTTP/2 连接的会话行为
type Config struct {
	ServerName      string
	Router          *router.Router[web.Handler]
	MaxFrameSize    uint32   // 本端愿意接收的最大帧大小 0 使用默认值
	InitialWindow   uint32   // 本端流级初始接收窗口 0 使用默认值
	MaxStreams      uint32   // 本端允许的最大并发流数量 0 表示不设上限
	Seed            Settings // 来自 h2c 升级请求头 HTTP2-Settings 的初始对端设置 可为零值
	HasSeedSettings bool
	Log             logger.Logger // 连接级日志 零值时退回全局 logger
}

func (c Config) maxFrameSize() uint32 {
	if c.MaxFrameSize == 0 {
		return MaxFrameSizeDefault
	}
	return c.MaxFrameSize
}

func (c Config) initialWindow() uint32 {
	if c.InitialWindow == 0 {
		return DefaultInitialWindowSize
	}
	return c.InitialWindow
}

func (c Config) logger() logger.Logger {
	if c.Log != (logger.Logger{}) {
		return c.Log
	}
	return logger.With()
}

// Session 是一条 HTTP/2 连接的完整会话状态机 持有全部活跃流、HPACK 编解码器
// 状态、流量控制窗口与输出调度器
//
// Session 自身不做字节级 I/O 的非阻塞处理：每条连接由 Serve 阻塞占用一个
// goroutine 读帧 另起一个 goroutine 专职把调度器产出的帧写回连接 —— 与
// http1 包的阻塞式单连接单 goroutine 模型保持同样的资源模型
type Session struct {
	conn   stream.ByteStream
	reader *stream.Buffered
	writer stream.WriterAdapter
	cfg    Config
	log    logger.Logger

	hdec   *hpack.Decoder
	encMut sync.Mutex // process() 为每个流各起一个 goroutine 并发调用 henc.Encode 须串行化
	henc   *hpack.Encoder

	local  Settings
	remote Settings

	mut              sync.Mutex
	streams          map[uint32]*Stream
	lastPeerStreamID uint32
	goAwaySent       bool

	connRecv *FlowWindow
	connSend *FlowWindow

	sched *Scheduler
	done  chan struct{}
}

// NewSession 创建一个还未开始交换 SETTINGS 的会话 调用方负责已经消费完
// 连接前导（无论来自明文 HTTP/2 前导还是 h2c 升级）
func NewSession(conn stream.ByteStream, cfg Config) *Session {
	local := DefaultSettings()
	local.MaxFrameSize = cfg.maxFrameSize()
	local.InitialWindowSize = cfg.initialWindow()
	local.MaxConcurrentStreams = cfg.MaxStreams

	remote := DefaultSettings()
	if cfg.HasSeedSettings {
		remote = cfg.Seed
	}

	return &Session{
		conn:     conn,
		reader:   stream.NewBuffered(conn, int(cfg.maxFrameSize())+9),
		writer:   stream.WriterAdapter{S: conn},
		cfg:      cfg,
		log:      cfg.logger(),
		hdec:     hpack.NewDecoder(),
		henc:     hpack.NewEncoder(),
		local:    local,
		remote:   remote,
		streams:  make(map[uint32]*Stream),
		connRecv: NewFlowWindow(local.InitialWindowSize),
		connSend: NewFlowWindow(remote.InitialWindowSize),
		sched:    NewScheduler(),
		done:     make(chan struct{}),
	}
}

// Serve 启动会话的读写循环 阻塞直到连接关闭或发生不可恢复的协议错误
func (s *Session) Serve() {
	defer func() { _ = s.conn.Close() }()
	defer rescue.HandleCrash(s.log)

	go s.writeLoop()

	s.sendSettings()

	for {
		h, payload, err := s.readFrame()
		if err != nil {
			if err != io.EOF {
				s.log.Debugf("http2 session: read error: %v", err)
			}
			break
		}
		if err := s.handleFrame(h, payload); err != nil {
			if s.handleFrameError(h, err) {
				break
			}
		}
	}

	close(s.done)
}

// handleFrameError 按 errs.H2Error 的 Stream 标志分流一个帧处理错误：流级
// 错误发送 RST_STREAM 并保留连接（返回 false） 连接级错误发送 GOAWAY 并
// 要求调用方结束读循环（返回 true）
func (s *Session) handleFrameError(h FrameHeader, err error) (closeConn bool) {
	var h2err *errs.H2Error
	if errors.As(err, &h2err) && h2err.Stream {
		s.log.Debugf("http2 session: stream %d error: %v", h2err.StreamID, err)
		s.sendRSTStream(h2err.StreamID, h2err.Code)
		if st := s.getStream(h2err.StreamID); st != nil {
			st.Fail()
		}
		s.mut.Lock()
		delete(s.streams, h2err.StreamID)
		s.mut.Unlock()
		return false
	}

	s.log.Debugf("http2 session: handling %v frame: %v", h.Type, err)
	code := errs.H2ProtocolError
	if errors.As(err, &h2err) {
		code = h2err.Code
	}
	s.sendGoAway(code)
	return true
}

// readFrame 从连接读取一个完整帧（头部 + payload）
func (s *Session) readFrame() (FrameHeader, []byte, error) {
	hdr, status, err := s.reader.Peek(9)
	if status != stream.StatusOK {
		if status == stream.StatusClosed || status == stream.StatusBrokenPipe {
			return FrameHeader{}, nil, io.EOF
		}
		return FrameHeader{}, nil, newError("reading frame header: status %v (%v)", status, err)
	}
	h, err := ReadFrameHeader(hdr)
	if err != nil {
		return FrameHeader{}, nil, err
	}
	if h.Length > s.local.MaxFrameSize {
		return FrameHeader{}, nil, newError("frame length %d exceeds local max %d", h.Length, s.local.MaxFrameSize)
	}
	if err := ValidateStreamID(h.Type, h.StreamID); err != nil {
		return FrameHeader{}, nil, err
	}

	total := 9 + int(h.Length)
	buf, status, err := s.reader.Peek(total)
	if status != stream.StatusOK {
		return FrameHeader{}, nil, newError("reading frame payload: status %v (%v)", status, err)
	}
	payload := append([]byte(nil), buf[9:total]...)
	s.reader.CommitReadOffset(total)
	return h, payload, nil
}

// handleFrame 按帧类型分发处理 对应会话级状态机的转移表
func (s *Session) handleFrame(h FrameHeader, payload []byte) error {
	switch h.Type {
	case FrameSettings:
		return s.handleSettings(h, payload)
	case FramePing:
		return s.handlePing(h, payload)
	case FrameWindowUpdate:
		return s.handleWindowUpdate(h, payload)
	case FrameGoAway:
		return s.handleGoAway(payload)
	case FrameHeaders:
		return s.handleHeaders(h, payload)
	case FrameContinuation:
		return s.handleContinuation(h, payload)
	case FrameData:
		return s.handleData(h, payload)
	case FramePriority:
		return s.handlePriority(h, payload)
	case FrameRSTStream:
		return s.handleRSTStream(h, payload)
	default:
		// 未知帧类型必须被忽略 (RFC 7540 §4.1)
		return nil
	}
}

func (s *Session) handleSettings(h FrameHeader, payload []byte) error {
	if h.Flags.Has(FlagAck) {
		if len(payload) != 0 {
			return errs.NewH2ConnError(errs.H2FrameSizeError, "SETTINGS ack must have empty payload", nil)
		}
		return nil
	}
	pairs, err := ParseSettingsPayload(payload)
	if err != nil {
		return errs.NewH2ConnError(errs.H2FrameSizeError, "malformed SETTINGS payload", err)
	}

	s.mut.Lock()
	oldInitial := s.remote.InitialWindowSize
	err = s.remote.Apply(pairs)
	if err == nil && s.remote.InitialWindowSize != oldInitial {
		for _, st := range s.streams {
			_ = st.SendWindow.ApplyInitialWindowSizeChange(oldInitial, s.remote.InitialWindowSize)
		}
	}
	s.mut.Unlock()
	if err != nil {
		return errs.NewH2ConnError(errs.H2ProtocolError, "invalid SETTINGS value", err)
	}

	s.encMut.Lock()
	s.henc.SetMaxDynamicTableSize(int(s.remote.HeaderTableSize))
	s.encMut.Unlock()

	s.sched.EnqueueControl(MarshalFrame(FrameHeader{Type: FrameSettings, Flags: FlagAck}, nil))
	return nil
}

func (s *Session) sendSettings() {
	pairs := []SettingPair{
		{ID: SettingMaxFrameSize, Value: s.local.MaxFrameSize},
		{ID: SettingInitialWindowSize, Value: s.local.InitialWindowSize},
		{ID: SettingHeaderTableSize, Value: s.local.HeaderTableSize},
	}
	if s.local.MaxConcurrentStreams > 0 {
		pairs = append(pairs, SettingPair{ID: SettingMaxConcurrentStreams, Value: s.local.MaxConcurrentStreams})
	}
	payload := MarshalSettingsPayload(pairs)
	s.sched.EnqueueControl(MarshalFrame(FrameHeader{Type: FrameSettings}, payload))
}

func (s *Session) handlePing(h FrameHeader, payload []byte) error {
	if len(payload) != 8 {
		return errs.NewH2ConnError(errs.H2FrameSizeError, fmt.Sprintf("PING payload must be 8 bytes, got %d", len(payload)), nil)
	}
	if h.Flags.Has(FlagAck) {
		return nil
	}
	s.sched.EnqueueControl(MarshalFrame(FrameHeader{Type: FramePing, Flags: FlagAck}, payload))
	return nil
}

func (s *Session) handleWindowUpdate(h FrameHeader, payload []byte) error {
	if len(payload) != 4 {
		if h.StreamID == 0 {
			return errs.NewH2ConnError(errs.H2FrameSizeError, "WINDOW_UPDATE payload must be 4 bytes", nil)
		}
		return errs.NewH2StreamError(h.StreamID, errs.H2FrameSizeError, "WINDOW_UPDATE payload must be 4 bytes", nil)
	}
	delta := binary.BigEndian.Uint32(payload) & 0x7fffffff

	if h.StreamID == 0 {
		if err := s.connSend.Increase(delta); err != nil {
			return errs.NewH2ConnError(errs.H2FlowControlError, "connection WINDOW_UPDATE overflow", err)
		}
		return nil
	}
	st := s.getStream(h.StreamID)
	if st == nil {
		return nil // 流可能已经结束 按 §6.9.1 忽略
	}
	if err := st.SendWindow.Increase(delta); err != nil {
		return errs.NewH2StreamError(h.StreamID, errs.H2FlowControlError, "stream WINDOW_UPDATE overflow", err)
	}
	return nil
}

func (s *Session) handleGoAway(payload []byte) error {
	if len(payload) < 8 {
		return errs.NewH2ConnError(errs.H2FrameSizeError, "GOAWAY payload too short", nil)
	}
	s.mut.Lock()
	s.goAwaySent = true
	s.mut.Unlock()
	return io.EOF
}

func (s *Session) handlePriority(h FrameHeader, payload []byte) error {
	if len(payload) != 5 {
		return errs.NewH2StreamError(h.StreamID, errs.H2FrameSizeError, "PRIORITY payload must be 5 bytes", nil)
	}
	st := s.getStream(h.StreamID)
	if st == nil {
		return nil
	}
	dep := binary.BigEndian.Uint32(payload[0:4])
	st.mut.Lock()
	st.Exclusive = dep&0x80000000 != 0
	st.DependsOn = dep & 0x7fffffff
	st.Weight = payload[4]
	st.mut.Unlock()
	return nil
}

func (s *Session) handleRSTStream(h FrameHeader, payload []byte) error {
	if len(payload) != 4 {
		return errs.NewH2StreamError(h.StreamID, errs.H2FrameSizeError, "RST_STREAM payload must be 4 bytes", nil)
	}
	st := s.getStream(h.StreamID)
	if st != nil {
		st.Reset()
	}
	return nil
}

// handleHeaders 处理一个 HEADERS 帧 已经追踪过的 stream id 被视为 trailers
// 否则必要时剥离 padding 与 priority 字段 开启一个新流
func (s *Session) handleHeaders(h FrameHeader, payload []byte) error {
	if st := s.getStream(h.StreamID); st != nil {
		return s.handleTrailerHeaders(st, h, payload)
	}

	if h.StreamID <= s.lastPeerStreamID {
		return newError("stream id %d is not greater than last seen %d", h.StreamID, s.lastPeerStreamID)
	}
	if h.StreamID%2 == 0 {
		return newError("client-initiated stream id %d must be odd", h.StreamID)
	}

	body, err := stripPadding(h.Flags, payload)
	if err != nil {
		return err
	}
	var weight uint8 = 15 // 编码值 15 代表默认权重 16
	if h.Flags.Has(FlagPriority) {
		if len(body) < 5 {
			return newError("HEADERS with PRIORITY flag too short")
		}
		weight = body[4]
		body = body[5:]
	}

	st := NewStream(h.StreamID, s.local.InitialWindowSize, s.remote.InitialWindowSize)
	st.Weight = weight
	s.mut.Lock()
	s.lastPeerStreamID = h.StreamID
	s.streams[h.StreamID] = st
	s.mut.Unlock()

	endHeaders := h.Flags.Has(FlagEndHeaders)
	endStream := h.Flags.Has(FlagEndStream)
	if err := st.OnHeaders(body, endHeaders, endStream); err != nil {
		return err
	}
	if endHeaders {
		return s.dispatchIfReady(st)
	}
	return nil
}

// handleTrailerHeaders 处理复用同一个已经打开的 stream id 的第二个 HEADERS
// 帧 只允许出现在 PAYLOAD 状态 且必须携带 END_STREAM (RFC 7540 §8.1)
func (s *Session) handleTrailerHeaders(st *Stream, h FrameHeader, payload []byte) error {
	if !h.Flags.Has(FlagEndStream) {
		return errs.NewH2StreamError(h.StreamID, errs.H2ProtocolError, "trailing HEADERS must set END_STREAM", nil)
	}

	body, err := stripPadding(h.Flags, payload)
	if err != nil {
		return errs.NewH2StreamError(h.StreamID, errs.H2ProtocolError, "invalid trailer HEADERS padding", err)
	}
	if h.Flags.Has(FlagPriority) {
		if len(body) < 5 {
			return errs.NewH2StreamError(h.StreamID, errs.H2FrameSizeError, "trailer HEADERS with PRIORITY flag too short", nil)
		}
		body = body[5:]
	}

	endHeaders := h.Flags.Has(FlagEndHeaders)
	if err := st.OnTrailer(body, endHeaders, true); err != nil {
		return errs.NewH2StreamError(h.StreamID, errs.H2ProtocolError, err.Error(), err)
	}
	if endHeaders {
		return s.dispatchIfReady(st)
	}
	return nil
}

func (s *Session) handleContinuation(h FrameHeader, payload []byte) error {
	st := s.getStream(h.StreamID)
	if st == nil {
		return newError("CONTINUATION for unknown stream %d", h.StreamID)
	}
	endHeaders := h.Flags.Has(FlagEndHeaders)

	if st.Snapshot() == StreamTrailer {
		if err := st.OnTrailerContinuation(payload, endHeaders); err != nil {
			return errs.NewH2StreamError(h.StreamID, errs.H2ProtocolError, err.Error(), err)
		}
	} else {
		if err := st.OnContinuation(payload, endHeaders); err != nil {
			return err
		}
	}
	if endHeaders {
		return s.dispatchIfReady(st)
	}
	return nil
}

func (s *Session) handleData(h FrameHeader, payload []byte) error {
	st := s.getStream(h.StreamID)
	if st == nil {
		return errs.NewH2StreamError(h.StreamID, errs.H2StreamClosed, fmt.Sprintf("DATA for unknown stream %d", h.StreamID), nil)
	}
	body, err := stripPadding(h.Flags, payload)
	if err != nil {
		return errs.NewH2StreamError(h.StreamID, errs.H2ProtocolError, "invalid DATA padding", err)
	}
	if err := s.connRecv.Consume(int64(len(payload))); err != nil {
		return errs.NewH2ConnError(errs.H2FlowControlError, "connection-level flow control violation", err)
	}
	endStream := h.Flags.Has(FlagEndStream)
	if err := st.OnData(len(body), endStream); err != nil {
		return errs.NewH2StreamError(h.StreamID, errs.H2ProtocolError, "rejected DATA frame", err)
	}
	st.body.append(body)
	if endStream {
		st.body.close()
		return s.dispatchIfReady(st)
	}
	return nil
}

// dispatchIfReady 在流进入 READY 状态（头部、可能的请求体与可能的 trailer
// 都已到齐）后解码头部块、组装 web.Request 并异步路由到处理器
func (s *Session) dispatchIfReady(st *Stream) error {
	if st.Snapshot() != StreamReady {
		return nil
	}

	fields, err := s.hdec.Decode(st.HeaderBlock())
	if err != nil {
		return errs.NewH2ConnError(errs.H2CompressionError, "HPACK decode failed", err)
	}
	req, err := buildRequest(st, fields)
	if err != nil {
		return err
	}

	if st.HasTrailer() {
		trailerFields, err := s.hdec.Decode(st.TrailerBlock())
		if err != nil {
			return errs.NewH2ConnError(errs.H2CompressionError, "HPACK trailer decode failed", err)
		}
		trailer := web.NewHeader()
		for _, f := range trailerFields {
			if strings.HasPrefix(f.Name, ":") {
				return errs.NewH2StreamError(st.ID, errs.H2ProtocolError, fmt.Sprintf("pseudo-header %q not allowed in trailers", f.Name), nil)
			}
			trailer.Add(f.Name, f.Value)
		}
		req.Trailer = trailer
	}

	st.Request = req

	if err := st.MarkPiped(); err != nil {
		return err
	}
	go s.process(st)
	return nil
}

// process 在独立 goroutine 中运行路由与处理器 完成后把响应交给调度器
func (s *Session) process(st *Stream) {
	streamLog := s.log.With("stream_id", st.ID)
	defer func() {
		if r := recover(); r != nil {
			rescue.LogPanic(streamLog, r)
			s.writeErrorResponse(st, errs.NewInternalError(fmt.Errorf("panic: %v", r)))
		}
	}()

	_ = st.MarkProcessing()

	handler, vars, ok := s.cfg.Router.Match(st.Request.Method, st.Request.Path)
	if !ok {
		s.writeErrorResponse(st, errs.NewRouteNotFound(st.Request.Method, st.Request.Path))
		return
	}
	st.Request.PathVars = vars

	resp, err := handler(st.Request)
	if err != nil {
		s.writeErrorResponse(st, err)
		return
	}
	if resp == nil {
		s.writeErrorResponse(st, errs.NewInternalError(newError("handler for %s %s returned a nil response", st.Request.Method, st.Request.Path)))
		return
	}
	s.writeStreamResponse(st, resp)
}

func (s *Session) writeErrorResponse(st *Stream, err error) {
	body := &strings.Builder{}
	status, reason := errs.RenderDefault(body, s.cfg.ServerName, err)
	resp := web.NewResponse(status, web.NewBytesBody("text/plain; charset=utf-8", []byte(body.String())))
	resp.Reason = reason
	s.writeStreamResponse(st, resp)
}

// writeStreamResponse 把一个 web.Response 编码为 HEADERS(+CONTINUATION) 和
// 受流量控制约束的 DATA 帧 按流的权重交给调度器
func (s *Session) writeStreamResponse(st *Stream, resp *web.Response) {
	_ = st.MarkResponding()

	fields := []hpack.HeaderField{{Name: ":status", Value: strconv.Itoa(resp.StatusCode)}}
	resp.Header.Range(func(name, value string) {
		if isConnectionSpecificHeader(name) {
			return
		}
		fields = append(fields, hpack.HeaderField{Name: strings.ToLower(name), Value: value})
	})
	s.encMut.Lock()
	block := s.henc.Encode(fields)
	s.encMut.Unlock()

	var body []byte
	if resp.Body != nil {
		var buf bytes.Buffer
		_, _ = resp.Body.WriteTo(&buf)
		body = buf.Bytes()
	}

	endStream := len(body) == 0
	frame := MarshalFrame(FrameHeader{Type: FrameHeaders, Flags: flagsFor(true, endStream), StreamID: st.ID}, block)
	s.sched.EnqueueStream(st.ID, st.Weight, frame)

	if !endStream {
		s.sendBody(st, body)
	}

	_ = st.MarkDone()
	s.mut.Lock()
	delete(s.streams, st.ID)
	s.mut.Unlock()
}

// sendBody 把 body 切成不超过 min(流窗口, 连接窗口, 对端 MAX_FRAME_SIZE) 的
// DATA 帧逐块发送 每发送一块就扣减对应的窗口额度 窗口耗尽时阻塞等待对端
// 的 WINDOW_UPDATE 唤醒 (RFC 7540 §6.9) 最后一块携带 END_STREAM
func (s *Session) sendBody(st *Stream, body []byte) {
	maxFrame := int64(s.peerMaxFrameSize())
	for {
		connCh := s.connSend.NotifyChan()
		streamCh := st.SendWindow.NotifyChan()

		n := s.reserveSendWindow(st, int64(len(body)), maxFrame)
		if n == 0 {
			select {
			case <-connCh:
			case <-streamCh:
			case <-s.done:
				return
			}
			continue
		}

		chunk := body[:n]
		body = body[n:]
		var flags Flags
		if len(body) == 0 {
			flags = FlagEndStream
		}
		s.sched.EnqueueStream(st.ID, st.Weight, MarshalFrame(FrameHeader{Type: FrameData, Flags: flags, StreamID: st.ID}, chunk))
		if len(body) == 0 {
			return
		}
	}
}

// reserveSendWindow 尝试为至多 want 字节（再截到 maxFrame）预留发送配额
// 先从连接级窗口预留 再用同样的量匹配流级窗口 若流级窗口更紧张 会把多
// 预留出来、但用不上的连接级配额还回去 返回值为 0 表示两个窗口至少有一个
// 已经耗尽 调用方应该等待任一窗口的 NotifyChan 后重试
func (s *Session) reserveSendWindow(st *Stream, want, maxFrame int64) int64 {
	if want > maxFrame {
		want = maxFrame
	}
	if want <= 0 {
		return 0
	}
	if st.SendWindow.Available() <= 0 {
		return 0
	}
	reserved := s.connSend.TryConsume(want)
	if reserved == 0 {
		return 0
	}
	got := st.SendWindow.TryConsume(reserved)
	if got < reserved {
		_ = s.connSend.Increase(uint32(reserved - got))
	}
	return got
}

func (s *Session) peerMaxFrameSize() uint32 {
	s.mut.Lock()
	defer s.mut.Unlock()
	if s.remote.MaxFrameSize == 0 {
		return MaxFrameSizeDefault
	}
	return s.remote.MaxFrameSize
}

// isConnectionSpecificHeader 按 RFC 7540 §8.1.2.2 剔除 HTTP/1.1 连接相关首部
func isConnectionSpecificHeader(name string) bool {
	switch strings.ToLower(name) {
	case "connection", "keep-alive", "proxy-connection", "transfer-encoding", "upgrade":
		return true
	default:
		return false
	}
}

func flagsFor(endHeaders, endStream bool) Flags {
	var f Flags
	if endHeaders {
		f |= FlagEndHeaders
	}
	if endStream {
		f |= FlagEndStream
	}
	return f
}

// writeLoop 是唯一向连接写入字节的 goroutine 从调度器取出已编码好的帧并发送
func (s *Session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.sched.Ready():
		}
		for {
			payload, _, ok := s.sched.Pop()
			if !ok {
				break
			}
			if _, err := s.writer.Write(payload); err != nil {
				return
			}
		}
	}
}

// sendGoAway 在遇到连接级协议错误时发送 GOAWAY 并携带最后处理的流 id
func (s *Session) sendGoAway(code errs.H2Code) {
	s.mut.Lock()
	if s.goAwaySent {
		s.mut.Unlock()
		return
	}
	s.goAwaySent = true
	lastID := s.lastPeerStreamID
	s.mut.Unlock()

	payload := make([]byte, 8)
	binary.BigEndian.PutUint32(payload[0:4], lastID)
	binary.BigEndian.PutUint32(payload[4:8], uint32(code))
	s.sched.EnqueueControl(MarshalFrame(FrameHeader{Type: FrameGoAway}, payload))
}

// sendRSTStream 在遇到一个只影响单个流的协议错误时发送 RST_STREAM 连接的
// 其它流不受影响
func (s *Session) sendRSTStream(streamID uint32, code errs.H2Code) {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(code))
	s.sched.enqueue(streamID, PriorityMax, MarshalFrame(FrameHeader{Type: FrameRSTStream, StreamID: streamID}, payload))
}

func (s *Session) getStream(id uint32) *Stream {
	s.mut.Lock()
	defer s.mut.Unlock()
	return s.streams[id]
}

// stripPadding 去掉 DATA/HEADERS 帧中可选的 padding 区域
func stripPadding(f Flags, payload []byte) ([]byte, error) {
	if !f.Has(FlagPadded) {
		return payload, nil
	}
	if len(payload) == 0 {
		return nil, newError("PADDED flag set but payload is empty")
	}
	padLen := int(payload[0])
	body := payload[1:]
	if padLen > len(body) {
		return nil, newError("pad length %d exceeds frame payload", padLen)
	}
	return body[:len(body)-padLen], nil
}

// pseudoHeaders 是 RFC 7540 §8.1.2.3 为请求定义的合法伪首部集合
var pseudoHeaders = map[string]bool{
	":method":    true,
	":path":      true,
	":scheme":    true,
	":authority": true,
}

// buildRequest 把解码出的伪首部与普通首部转换为 web.Request 校验 spec §4.9
// 描述的伪首部规则：必须存在 :method/:path/:scheme 未知的 :前缀名字是错误
// 伪首部必须出现在普通首部之前 首部名字必须是小写
func buildRequest(st *Stream, fields []hpack.HeaderField) (*web.Request, error) {
	req := &web.Request{Header: web.NewHeader(), StreamID: st.ID, Body: st.body}

	seenRegular := false
	for _, f := range fields {
		if f.Name != strings.ToLower(f.Name) {
			return nil, errs.NewH2StreamError(st.ID, errs.H2ProtocolError, fmt.Sprintf("header name %q must be lowercase", f.Name), nil)
		}

		if strings.HasPrefix(f.Name, ":") {
			if seenRegular {
				return nil, errs.NewH2StreamError(st.ID, errs.H2ProtocolError, "pseudo-headers must precede regular headers", nil)
			}
			if !pseudoHeaders[f.Name] {
				return nil, errs.NewH2StreamError(st.ID, errs.H2ProtocolError, fmt.Sprintf("unrecognized pseudo-header %q", f.Name), nil)
			}
			switch f.Name {
			case ":method":
				req.Method = f.Value
			case ":path":
				u, err := url.Parse(f.Value)
				if err != nil {
					return nil, errs.NewH2StreamError(st.ID, errs.H2ProtocolError, fmt.Sprintf("invalid :path pseudo-header: %v", err), nil)
				}
				req.Path = u.Path
				if req.Path == "" {
					req.Path = f.Value
				}
			case ":authority", ":scheme":
				req.Header.Add(f.Name, f.Value)
			}
			continue
		}

		seenRegular = true
		req.Header.Add(f.Name, f.Value)
	}

	req.Protocol = "HTTP/2.0"
	if req.Method == "" || req.Path == "" {
		return nil, errs.NewH2StreamError(st.ID, errs.H2ProtocolError, "missing required pseudo-headers :method/:path", nil)
	}
	if req.Header.Get(":scheme") == "" {
		return nil, errs.NewH2StreamError(st.ID, errs.H2ProtocolError, "missing required pseudo-header :scheme", nil)
	}
	return req, nil
}
