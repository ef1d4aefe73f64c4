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

// Package http2 实现 RFC 7540 描述的帧编解码、每流状态机、会话状态机、
// 流量控制与带优先级的输出调度
package http2

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

func newError(format string, args ...any) error {
	return errors.Errorf("http2: "+format, args...)
}

// FrameType 对应 RFC 7540 §6 定义的帧类型
type FrameType uint8

const (
	FrameData         FrameType = 0x0
	FrameHeaders      FrameType = 0x1
	FramePriority     FrameType = 0x2
	FrameRSTStream    FrameType = 0x3
	FrameSettings     FrameType = 0x4
	FramePushPromise  FrameType = 0x5
	FramePing         FrameType = 0x6
	FrameGoAway       FrameType = 0x7
	FrameWindowUpdate FrameType = 0x8
	FrameContinuation FrameType = 0x9
)

// Flags 是帧头中的标志位 不同帧类型复用同一字节 含义不同
type Flags uint8

const (
	FlagEndStream  Flags = 0x1
	FlagAck        Flags = 0x1 // SETTINGS/PING 复用同一比特位
	FlagEndHeaders Flags = 0x4
	FlagPadded     Flags = 0x8
	FlagPriority   Flags = 0x20
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// MaxFrameSizeDefault 是 RFC 7540 §6.5.2 规定的默认/最小允许的最大帧尺寸
const MaxFrameSizeDefault = 16384

// MaxFrameSizeUpperBound 是协议允许的最大帧尺寸上限 (2^24 - 1)
const MaxFrameSizeUpperBound = 1<<24 - 1

// FrameHeader 是每个帧固定的 9 字节前导
type FrameHeader struct {
	Length   uint32 // 24 位 不含头部本身的 9 字节
	Type     FrameType
	Flags    Flags
	StreamID uint32 // 31 位 最高位保留必须为 0
}

// Frame 是帧头加上已读入内存的原始 payload
type Frame struct {
	FrameHeader
	Payload []byte
}

// ReadFrameHeader 解析 9 字节的帧头
func ReadFrameHeader(b []byte) (FrameHeader, error) {
	if len(b) < 9 {
		return FrameHeader{}, newError("short frame header: %d bytes", len(b))
	}
	length := uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	typ := FrameType(b[3])
	flags := Flags(b[4])
	streamID := binary.BigEndian.Uint32(b[5:9]) & 0x7fffffff
	return FrameHeader{Length: length, Type: typ, Flags: flags, StreamID: streamID}, nil
}

// WriteFrameHeader 序列化一个 9 字节帧头到 dst（dst 必须至少有 9 字节容量）
func WriteFrameHeader(dst []byte, h FrameHeader) {
	dst[0] = byte(h.Length >> 16)
	dst[1] = byte(h.Length >> 8)
	dst[2] = byte(h.Length)
	dst[3] = byte(h.Type)
	dst[4] = byte(h.Flags)
	binary.BigEndian.PutUint32(dst[5:9], h.StreamID&0x7fffffff)
}

// MarshalFrame 把帧头与 payload 拼接为可以直接写到连接上的字节切片
func MarshalFrame(h FrameHeader, payload []byte) []byte {
	h.Length = uint32(len(payload))
	buf := make([]byte, 9+len(payload))
	WriteFrameHeader(buf, h)
	copy(buf[9:], payload)
	return buf
}

// ValidateStreamID 校验帧携带的 stream id 是否符合该帧类型的约束
//
// 连接级帧（SETTINGS/PING/GOAWAY）必须使用 stream id 0 流级帧必须使用非 0 id
func ValidateStreamID(t FrameType, streamID uint32) error {
	connectionLevel := t == FrameSettings || t == FramePing || t == FrameGoAway
	if connectionLevel && streamID != 0 {
		return newError("frame type %d must use stream id 0, got %d", t, streamID)
	}
	if !connectionLevel && streamID == 0 {
		if t == FrameWindowUpdate {
			return nil // WINDOW_UPDATE 既可以是连接级也可以是流级
		}
		return newError("frame type %d requires a non-zero stream id", t)
	}
	return nil
}
