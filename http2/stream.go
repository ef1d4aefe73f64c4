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
	"sync"

	"github.com/oatpp/oatpp-sub002/web"
)

// StreamState 枚举单个 HTTP/2 流的生命周期
//
// IDLE -> HEADERS -> (CONTINUATION)* -> PAYLOAD -> (TRAILER)? -> READY -> PIPED ->
// PROCESSING -> RESPONDING -> DONE 任意阶段收到 RST_STREAM 转入 RESET
// 本端主动放弃（例如连接关闭）转入 ABORTED 本地产生的协议错误转入 ERROR
type StreamState int

const (
	StreamIdle StreamState = iota
	StreamHeaders
	StreamContinuation
	StreamPayload
	StreamTrailer // 收到过 trailing HEADERS 但还没等到它的 END_HEADERS
	StreamReady
	StreamPiped
	StreamProcessing
	StreamResponding
	StreamDone
	StreamReset
	StreamAborted
	StreamError
)

func (s StreamState) String() string {
	switch s {
	case StreamIdle:
		return "IDLE"
	case StreamHeaders:
		return "HEADERS"
	case StreamContinuation:
		return "CONTINUATION"
	case StreamPayload:
		return "PAYLOAD"
	case StreamTrailer:
		return "TRAILER"
	case StreamReady:
		return "READY"
	case StreamPiped:
		return "PIPED"
	case StreamProcessing:
		return "PROCESSING"
	case StreamResponding:
		return "RESPONDING"
	case StreamDone:
		return "DONE"
	case StreamReset:
		return "RESET"
	case StreamAborted:
		return "ABORTED"
	case StreamError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Stream 保存单个 HTTP/2 流的状态机与累积中的请求数据
type Stream struct {
	mut   sync.Mutex
	ID    uint32
	State StreamState

	// 优先级 (RFC 7540 §5.3)
	Weight       uint8 // 编码值 0-255 实际权重为该值 + 1
	DependsOn    uint32
	Exclusive    bool

	headerBlock  bytes.Buffer // 跨 CONTINUATION 帧累积的头部块
	trailerBlock bytes.Buffer // 跨 CONTINUATION 帧累积的 trailing 头部块
	endStream    bool         // 对端在 HEADERS/DATA 上已经设置过 END_STREAM

	Request *web.Request
	body    *streamBodyBuffer

	RecvWindow *FlowWindow // 本端视角：还能接收多少来自对端的 DATA
	SendWindow *FlowWindow // 本端视角：还能向对端发送多少 DATA
}

// NewStream 创建一个处于 IDLE 状态的流 窗口取对端/本端当前生效的初始值
func NewStream(id uint32, recvInitial, sendInitial uint32) *Stream {
	return &Stream{
		ID:         id,
		State:      StreamIdle,
		body:       newStreamBodyBuffer(),
		RecvWindow: NewFlowWindow(recvInitial),
		SendWindow: NewFlowWindow(sendInitial),
	}
}

// OnHeaders 处理收到的一个 HEADERS 帧（已剥离 padding）进入 HEADERS 状态
// 若帧携带 END_HEADERS 则立即前进到 PAYLOAD（或若同时 END_STREAM 则到 READY）
func (s *Stream) OnHeaders(block []byte, endHeaders, endStream bool) error {
	s.mut.Lock()
	defer s.mut.Unlock()

	if s.State != StreamIdle {
		return newError("stream %d: HEADERS received in state %s", s.ID, s.State)
	}
	s.State = StreamHeaders
	s.headerBlock.Write(block)
	s.endStream = s.endStream || endStream

	if endHeaders {
		return s.finishHeaderBlock()
	}
	s.State = StreamContinuation
	return nil
}

// OnContinuation 处理一个 CONTINUATION 帧 只有在 CONTINUATION 状态下才合法
func (s *Stream) OnContinuation(block []byte, endHeaders bool) error {
	s.mut.Lock()
	defer s.mut.Unlock()

	if s.State != StreamContinuation {
		return newError("stream %d: CONTINUATION received in state %s", s.ID, s.State)
	}
	s.headerBlock.Write(block)
	if endHeaders {
		return s.finishHeaderBlock()
	}
	return nil
}

// finishHeaderBlock 在收完全部头部字节后把流推进到 PAYLOAD 或直接 READY
//
// 调用方必须持有 s.mut
func (s *Stream) finishHeaderBlock() error {
	if s.endStream {
		s.State = StreamReady
		s.body.close()
		return nil
	}
	s.State = StreamPayload
	return nil
}

// HeaderBlock 返回迄今累积的完整头部块字节 供上层用 hpack.Decoder 解码
func (s *Stream) HeaderBlock() []byte {
	s.mut.Lock()
	defer s.mut.Unlock()
	return append([]byte(nil), s.headerBlock.Bytes()...)
}

// OnTrailer 处理复用同一 stream id 的第二个 HEADERS 帧（trailers）
// 只允许发生在 PAYLOAD（或已经在收 trailer 但还没 END_HEADERS）的状态
// 必须携带 END_STREAM —— trailers 之后不会再有 DATA
func (s *Stream) OnTrailer(block []byte, endHeaders, endStream bool) error {
	s.mut.Lock()
	defer s.mut.Unlock()

	if s.State != StreamPayload && s.State != StreamTrailer {
		return newError("stream %d: trailing HEADERS received in state %s", s.ID, s.State)
	}
	if !endStream {
		return newError("stream %d: trailing HEADERS must set END_STREAM", s.ID)
	}
	s.trailerBlock.Write(block)
	if endHeaders {
		s.State = StreamReady
		s.body.close()
		return nil
	}
	s.State = StreamTrailer
	return nil
}

// OnTrailerContinuation 处理 trailing 头部块的 CONTINUATION 延续帧
func (s *Stream) OnTrailerContinuation(block []byte, endHeaders bool) error {
	s.mut.Lock()
	defer s.mut.Unlock()

	if s.State != StreamTrailer {
		return newError("stream %d: CONTINUATION received in state %s", s.ID, s.State)
	}
	s.trailerBlock.Write(block)
	if endHeaders {
		s.State = StreamReady
		s.body.close()
	}
	return nil
}

// HasTrailer 表示这个流是否收到过 trailing HEADERS
func (s *Stream) HasTrailer() bool {
	s.mut.Lock()
	defer s.mut.Unlock()
	return s.trailerBlock.Len() > 0
}

// TrailerBlock 返回迄今累积的 trailer 头部块字节 供上层用 hpack.Decoder 解码
func (s *Stream) TrailerBlock() []byte {
	s.mut.Lock()
	defer s.mut.Unlock()
	return append([]byte(nil), s.trailerBlock.Bytes()...)
}

// OnData 处理收到的一段 DATA payload（已剥离 padding）
func (s *Stream) OnData(n int, endStream bool) error {
	s.mut.Lock()
	defer s.mut.Unlock()

	if s.State != StreamPayload {
		return newError("stream %d: DATA received in state %s", s.ID, s.State)
	}
	if err := s.RecvWindow.Consume(int64(n)); err != nil {
		return err
	}
	if endStream {
		s.State = StreamReady
	}
	return nil
}

// MarkPiped 流的请求已经被路由并交给处理器 对应 PIPED 阶段
func (s *Stream) MarkPiped() error { return s.transition(StreamReady, StreamPiped) }

// MarkProcessing 处理器正在执行业务逻辑
func (s *Stream) MarkProcessing() error { return s.transition(StreamPiped, StreamProcessing) }

// MarkResponding 已经开始向对端写出 HEADERS/DATA 响应
func (s *Stream) MarkResponding() error { return s.transition(StreamProcessing, StreamResponding) }

// MarkDone 响应已经完整发送 流进入终态
func (s *Stream) MarkDone() error { return s.transition(StreamResponding, StreamDone) }

// Reset 把流标记为被 RST_STREAM 中断 可以从任何非终态进入
func (s *Stream) Reset() {
	s.mut.Lock()
	defer s.mut.Unlock()
	if s.isTerminal() {
		return
	}
	s.State = StreamReset
}

// Abort 把流标记为本端主动放弃（例如连接关闭） 语义上与 Reset 类似但来源不同
func (s *Stream) Abort() {
	s.mut.Lock()
	defer s.mut.Unlock()
	if s.isTerminal() {
		return
	}
	s.State = StreamAborted
}

// Fail 把流标记为因协议错误而失败
func (s *Stream) Fail() {
	s.mut.Lock()
	defer s.mut.Unlock()
	if s.isTerminal() {
		return
	}
	s.State = StreamError
}

func (s *Stream) isTerminal() bool {
	switch s.State {
	case StreamDone, StreamReset, StreamAborted, StreamError:
		return true
	default:
		return false
	}
}

// transition 校验 from 与当前状态一致后将状态机推进到 to
func (s *Stream) transition(from, to StreamState) error {
	s.mut.Lock()
	defer s.mut.Unlock()
	if s.State != from {
		return newError("stream %d: invalid transition to %s from state %s (want %s)", s.ID, to, s.State, from)
	}
	s.State = to
	return nil
}

// Snapshot 返回当前状态 用于调度器/日志等只读观察场景
func (s *Stream) Snapshot() StreamState {
	s.mut.Lock()
	defer s.mut.Unlock()
	return s.State
}
