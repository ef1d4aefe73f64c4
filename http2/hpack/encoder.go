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

package hpack

import "bytes"

const defaultDynamicTableSize = 4096

// Encoder 把 HeaderField 序列编码为 HPACK 头部块 每个 Encoder 绑定一条 HTTP/2
// 连接上单一方向（发送方）的动态表 —— 编码器与解码器各自独立维护状态
type Encoder struct {
	dyn                *dynamicTable
	pendingSizeUpdate  bool
	pendingMaxTableLen int
}

// NewEncoder 创建一个使用默认 4096 字节动态表的 Encoder
func NewEncoder() *Encoder {
	return &Encoder{dyn: newDynamicTable(defaultDynamicTableSize)}
}

// SetMaxDynamicTableSize 响应对端通告的 SETTINGS_HEADER_TABLE_SIZE
// 下一次 Encode 会在头部块最前面写入一条 Dynamic Table Size Update
func (e *Encoder) SetMaxDynamicTableSize(n int) {
	e.dyn.setMaxSize(n)
	e.pendingSizeUpdate = true
	e.pendingMaxTableLen = n
}

// Encode 把 fields 序列化为一个完整的头部块（不含 HTTP/2 帧头）
func (e *Encoder) Encode(fields []HeaderField) []byte {
	var buf bytes.Buffer

	if e.pendingSizeUpdate {
		appendInt(&buf, 5, 0x20, e.pendingMaxTableLen)
		e.pendingSizeUpdate = false
	}

	for _, f := range fields {
		e.encodeField(&buf, f)
	}
	return buf.Bytes()
}

func (e *Encoder) encodeField(buf *bytes.Buffer, f HeaderField) {
	if idx, ok := staticPairIndex[f]; ok {
		appendInt(buf, 7, 0x80, idx)
		return
	}
	if idx, ok := e.dyn.findPair(f); ok {
		appendInt(buf, 7, 0x80, idx)
		return
	}

	// 名字匹配但值不同：带索引名字的字面量 并增量索引进动态表
	if idx, ok := staticNameIndex[f.Name]; ok {
		appendInt(buf, 6, 0x40, idx)
		appendString(buf, f.Value)
		e.dyn.add(f)
		return
	}
	if idx, ok := e.dyn.findName(f.Name); ok {
		appendInt(buf, 6, 0x40, idx)
		appendString(buf, f.Value)
		e.dyn.add(f)
		return
	}

	// 全新字面量：名字与值都字面给出 并增量索引
	appendInt(buf, 6, 0x40, 0)
	appendString(buf, f.Name)
	appendString(buf, f.Value)
	e.dyn.add(f)
}
