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

// Decoder 把一个完整的 HPACK 头部块解码为 HeaderField 序列
//
// 头部块可能跨越多个 CONTINUATION 帧 调用方负责把它们拼接成一段连续字节
// 再整体交给 Decode —— HPACK 的状态（动态表）在多次 Decode 调用之间保留
type Decoder struct {
	dyn            *dynamicTable
	maxTableSizeCap int // 本端通过 SETTINGS 通告给对端的上限 size-update 不得超过它
}

// NewDecoder 创建一个使用默认 4096 字节动态表的 Decoder
func NewDecoder() *Decoder {
	return &Decoder{dyn: newDynamicTable(defaultDynamicTableSize), maxTableSizeCap: defaultDynamicTableSize}
}

// SetMaxTableSizeCap 设置本端允许对端动态表增长到的上限 对应本端 SETTINGS 中
// 的 SETTINGS_HEADER_TABLE_SIZE 取值
func (d *Decoder) SetMaxTableSizeCap(n int) {
	d.maxTableSizeCap = n
	if d.dyn.maxSize > n {
		d.dyn.setMaxSize(n)
	}
}

// Decode 解码一个完整头部块 data 必须是已经拼接好的全部字节
func (d *Decoder) Decode(data []byte) ([]HeaderField, error) {
	var out []HeaderField
	pos := 0

	for pos < len(data) {
		b := data[pos]
		switch {
		case b&0x80 != 0: // Indexed Header Field
			idx, n, err := readInt(7, b, data[pos+1:])
			if err != nil {
				return nil, err
			}
			pos += 1 + n
			f, err := d.lookup(idx)
			if err != nil {
				return nil, err
			}
			out = append(out, f)

		case b&0xc0 == 0x40: // Literal Header Field with Incremental Indexing
			f, consumed, err := d.readLiteral(data[pos:], 6)
			if err != nil {
				return nil, err
			}
			pos += consumed
			d.dyn.add(f)
			out = append(out, f)

		case b&0xe0 == 0x20: // Dynamic Table Size Update
			n, consumed, err := readInt(5, b, data[pos+1:])
			if err != nil {
				return nil, err
			}
			if n > d.maxTableSizeCap {
				return nil, newError("dynamic table size update exceeds advertised cap")
			}
			d.dyn.setMaxSize(n)
			pos += 1 + consumed

		case b&0xf0 == 0x10: // Literal Header Field Never Indexed
			f, consumed, err := d.readLiteral(data[pos:], 4)
			if err != nil {
				return nil, err
			}
			pos += consumed
			out = append(out, f)

		default: // b&0xf0 == 0x00, Literal Header Field without Indexing
			f, consumed, err := d.readLiteral(data[pos:], 4)
			if err != nil {
				return nil, err
			}
			pos += consumed
			out = append(out, f)
		}
	}
	return out, nil
}

// readLiteral 解码字面量表示的通用部分 prefixBits 取决于具体表示（4 或 6）
func (d *Decoder) readLiteral(data []byte, prefixBits uint8) (HeaderField, int, error) {
	if len(data) == 0 {
		return HeaderField{}, 0, newError("truncated literal header field")
	}
	nameIdx, n, err := readInt(prefixBits, data[0], data[1:])
	if err != nil {
		return HeaderField{}, 0, err
	}
	pos := 1 + n

	var name string
	if nameIdx == 0 {
		name, n, err = readString(data[pos:])
		if err != nil {
			return HeaderField{}, 0, err
		}
		pos += n
	} else {
		f, err := d.lookup(nameIdx)
		if err != nil {
			return HeaderField{}, 0, err
		}
		name = f.Name
	}

	value, n, err := readString(data[pos:])
	if err != nil {
		return HeaderField{}, 0, err
	}
	pos += n

	return HeaderField{Name: name, Value: value}, pos, nil
}

func (d *Decoder) lookup(index int) (HeaderField, error) {
	if index == 0 {
		return HeaderField{}, newError("zero index is not a valid indexed header field")
	}
	if index <= staticTableSize {
		return staticTable[index-1], nil
	}
	f, ok := d.dyn.get(index)
	if !ok {
		return HeaderField{}, newError("header index %d out of range", index)
	}
	return f, nil
}
