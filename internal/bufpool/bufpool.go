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

// Package bufpool 封装了 github.com/valyala/bytebufferpool 提供可复用的缓冲区
//
// 本模块内的 HTTP/1.1 与 HTTP/2 连接处理都不调用它：stream.Buffered 使用
// 普通的 []byte web 的响应编码使用 bytes.Buffer
package bufpool

import (
	"github.com/valyala/bytebufferpool"
)

var pool bytebufferpool.Pool

// Acquire 获取一个空的 *bytebufferpool.ByteBuffer 实例
func Acquire() *bytebufferpool.ByteBuffer {
	return pool.Get()
}

// Release 归还 *bytebufferpool.ByteBuffer 实例 调用后不应再持有引用
func Release(b *bytebufferpool.ByteBuffer) {
	if b == nil {
		return
	}
	b.Reset()
	pool.Put(b)
}
