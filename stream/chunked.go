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

package stream

// defaultChunkSize 是 ChunkedBuffer 内部单个 chunk 的容量
const defaultChunkSize = 4096

// ChunkedBuffer 是一个只追加的定长 chunk 序列 用于组装总长度未知的出站 body
//
// 相比 bytes.Buffer 的单块扩容策略 ChunkedBuffer 不需要在增长时整体拷贝
// 写入的数据分散在若干个固定大小的 chunk 中 适合边产出边通过 Transfer-Encoding: chunked 发送的场景
type ChunkedBuffer struct {
	chunkSize int
	chunks    [][]byte
	size      int
}

// NewChunkedBuffer 创建一个 *ChunkedBuffer 实例
func NewChunkedBuffer(chunkSize int) *ChunkedBuffer {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &ChunkedBuffer{chunkSize: chunkSize}
}

// Write 实现 io.Writer 永不返回错误
func (cb *ChunkedBuffer) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		if len(cb.chunks) == 0 || len(cb.chunks[len(cb.chunks)-1]) == cb.chunkSize {
			cb.chunks = append(cb.chunks, make([]byte, 0, cb.chunkSize))
		}
		last := cb.chunks[len(cb.chunks)-1]
		n := cb.chunkSize - len(last)
		if n > len(p) {
			n = len(p)
		}
		last = append(last, p[:n]...)
		cb.chunks[len(cb.chunks)-1] = last
		p = p[n:]
		cb.size += n
	}
	return total, nil
}

// GetKnownSize 返回当前已写入的总字节数
//
// 注意：对于“生产者仍在追加数据”的场景 此值只是截至目前的已知大小 并非最终大小
// HTTP/1.1 序列化层应以 Transfer-Encoding: chunked 发送 而不是把它当作 Content-Length
func (cb *ChunkedBuffer) GetKnownSize() int {
	return cb.size
}

// Chunks 依次调用 f 遍历所有底层 chunk 供序列化层逐块写出
func (cb *ChunkedBuffer) Chunks(f func(p []byte)) {
	for _, c := range cb.chunks {
		if len(c) == 0 {
			continue
		}
		f(c)
	}
}

// Reset 清空缓冲区以便复用
func (cb *ChunkedBuffer) Reset() {
	cb.chunks = cb.chunks[:0]
	cb.size = 0
}
