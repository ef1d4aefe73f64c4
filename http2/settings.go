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

import "encoding/binary"

// SettingID 对应 RFC 7540 §6.5.2 定义的 SETTINGS 参数标识
type SettingID uint16

const (
	SettingHeaderTableSize      SettingID = 0x1
	SettingEnablePush           SettingID = 0x2
	SettingMaxConcurrentStreams SettingID = 0x3
	SettingInitialWindowSize    SettingID = 0x4
	SettingMaxFrameSize         SettingID = 0x5
	SettingMaxHeaderListSize    SettingID = 0x6
)

// DefaultInitialWindowSize 是 RFC 7540 §6.9.2 规定的初始流量控制窗口大小
const DefaultInitialWindowSize = 65535

// MaxWindowSize 是流量控制窗口允许的最大值 (2^31 - 1)
const MaxWindowSize = 1<<31 - 1

// Settings 记录一端当前生效的 SETTINGS 取值 未显式设置的字段使用协议默认值
type Settings struct {
	HeaderTableSize      uint32
	EnablePush           bool
	MaxConcurrentStreams uint32 // 0 表示未设置上限
	InitialWindowSize    uint32
	MaxFrameSize         uint32
	MaxHeaderListSize    uint32 // 0 表示未设置上限
}

// DefaultSettings 返回协议规定的默认取值集合
func DefaultSettings() Settings {
	return Settings{
		HeaderTableSize:   4096,
		EnablePush:        true,
		InitialWindowSize: DefaultInitialWindowSize,
		MaxFrameSize:      MaxFrameSizeDefault,
	}
}

// SettingPair 是 SETTINGS 帧 payload 中的一个 6 字节条目
type SettingPair struct {
	ID    SettingID
	Value uint32
}

// ParseSettingsPayload 把 SETTINGS 帧 payload 拆解为条目列表 长度必须是 6 的倍数
func ParseSettingsPayload(payload []byte) ([]SettingPair, error) {
	if len(payload)%6 != 0 {
		return nil, newError("SETTINGS payload length %d not a multiple of 6", len(payload))
	}
	out := make([]SettingPair, 0, len(payload)/6)
	for i := 0; i < len(payload); i += 6 {
		id := SettingID(binary.BigEndian.Uint16(payload[i : i+2]))
		val := binary.BigEndian.Uint32(payload[i+2 : i+6])
		out = append(out, SettingPair{ID: id, Value: val})
	}
	return out, nil
}

// MarshalSettingsPayload 把条目列表序列化为 SETTINGS 帧 payload
func MarshalSettingsPayload(pairs []SettingPair) []byte {
	out := make([]byte, len(pairs)*6)
	for i, p := range pairs {
		binary.BigEndian.PutUint16(out[i*6:i*6+2], uint16(p.ID))
		binary.BigEndian.PutUint32(out[i*6+2:i*6+6], p.Value)
	}
	return out
}

// Apply 把一个 SETTINGS 帧的条目应用到 s 上 对越界取值按 §6.5.2 拒绝
func (s *Settings) Apply(pairs []SettingPair) error {
	for _, p := range pairs {
		switch p.ID {
		case SettingHeaderTableSize:
			s.HeaderTableSize = p.Value
		case SettingEnablePush:
			if p.Value > 1 {
				return newError("SETTINGS_ENABLE_PUSH must be 0 or 1, got %d", p.Value)
			}
			s.EnablePush = p.Value == 1
		case SettingMaxConcurrentStreams:
			s.MaxConcurrentStreams = p.Value
		case SettingInitialWindowSize:
			if p.Value > MaxWindowSize {
				return newError("SETTINGS_INITIAL_WINDOW_SIZE %d exceeds maximum", p.Value)
			}
			s.InitialWindowSize = p.Value
		case SettingMaxFrameSize:
			if p.Value < MaxFrameSizeDefault || p.Value > MaxFrameSizeUpperBound {
				return newError("SETTINGS_MAX_FRAME_SIZE %d out of range", p.Value)
			}
			s.MaxFrameSize = p.Value
		case SettingMaxHeaderListSize:
			s.MaxHeaderListSize = p.Value
		default:
			// 未知的 setting 标识必须被忽略
		}
	}
	return nil
}
