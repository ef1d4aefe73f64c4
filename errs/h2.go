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

package errs

import "fmt"

// H2Code 对应 RFC 7540 §7 定义的错误码 用在 RST_STREAM/GOAWAY 帧的 payload 里
type H2Code uint32

const (
	H2NoError            H2Code = 0x0
	H2ProtocolError      H2Code = 0x1
	H2InternalError      H2Code = 0x2
	H2FlowControlError   H2Code = 0x3
	H2SettingsTimeout    H2Code = 0x4
	H2StreamClosed       H2Code = 0x5
	H2FrameSizeError     H2Code = 0x6
	H2RefusedStream      H2Code = 0x7
	H2Cancel             H2Code = 0x8
	H2CompressionError   H2Code = 0x9
	H2ConnectError       H2Code = 0xa
	H2EnhanceYourCalm    H2Code = 0xb
	H2InadequateSecurity H2Code = 0xc
	H2HTTP11Required     H2Code = 0xd
)

// H2Error 携带一个 RFC 7540 错误码 Stream 为 true 时这是一个流级错误 —— 会话
// 应该只对 StreamID 发送 RST_STREAM 并保留连接 为 false 时这是一个连接级错误
// 应该发送 GOAWAY 并终止整条连接
type H2Error struct {
	Code     H2Code
	Stream   bool
	StreamID uint32
	Reason   string
	cause    error
}

func (e *H2Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.cause)
	}
	return e.Reason
}

func (e *H2Error) Unwrap() error { return e.cause }

// NewH2ConnError 构造一个连接级错误 处理方应该发送 GOAWAY 并关闭整条连接
func NewH2ConnError(code H2Code, reason string, cause error) *H2Error {
	return &H2Error{Code: code, Reason: reason, cause: cause}
}

// NewH2StreamError 构造一个只影响单个流的错误 处理方应该对 streamID 发送
// RST_STREAM 并继续处理连接上的其它流
func NewH2StreamError(streamID uint32, code H2Code, reason string, cause error) *H2Error {
	return &H2Error{Code: code, Stream: true, StreamID: streamID, Reason: reason, cause: cause}
}
