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

// Buffered 是一个带有内部缓冲区的 peek-then-consume 代理
//
// 版本切换 (switcher) 与 HTTP/1.1 头部读取都依赖 Peek: 先窥视若干字节决定如何处理
// 再选择消费多少（CommitReadOffset）剩余的留给下一次读取 不会丢失任何字节
type Buffered struct {
	src     ByteStream
	buf     []byte
	off     int // 已提交（逻辑已消费）的前缀长度
	maxPeek int
}

// NewBuffered 创建一个 *Buffered 代理
//
// maxPeek 限制了 Peek 允许请求的最大字节数 防止恶意/异常客户端造成无界内存增长
func NewBuffered(src ByteStream, maxPeek int) *Buffered {
	if maxPeek <= 0 {
		maxPeek = 1 << 20
	}
	return &Buffered{src: src, maxPeek: maxPeek}
}

func (b *Buffered) Mode() Mode { return b.src.Mode() }

func (b *Buffered) Close() error { return b.src.Close() }

// AvailableToRead 返回当前缓冲区中尚未提交的字节数
func (b *Buffered) AvailableToRead() int {
	return len(b.buf) - b.off
}

// compact 丢弃已提交的前缀 避免 buf 无限增长
func (b *Buffered) compact() {
	if b.off == 0 {
		return
	}
	if b.off == len(b.buf) {
		b.buf = b.buf[:0]
		b.off = 0
		return
	}
	n := copy(b.buf, b.buf[b.off:])
	b.buf = b.buf[:n]
	b.off = 0
}

// Peek 尝试填充缓冲区至 n 字节 返回一个不消费游标的视图
//
// 若底层流提前耗尽（EOF/Closed/BrokenPipe）Peek 会返回已经读到的全部字节
// 外加对应的 Status 调用方需要据此判断数据是否完整
func (b *Buffered) Peek(n int) ([]byte, Status, error) {
	if n > b.maxPeek {
		return nil, StatusOK, ErrTruncated
	}

	b.compact()
	for len(b.buf) < n {
		chunk := make([]byte, n-len(b.buf))
		rn, status, err := b.src.Read(chunk)
		if rn > 0 {
			b.buf = append(b.buf, chunk[:rn]...)
		}
		switch status {
		case StatusOK:
			if err != nil {
				return b.buf, StatusOK, err
			}
			if rn == 0 {
				// 上游语义为 EOF
				return b.buf, StatusClosed, nil
			}
		case StatusRetry:
			continue
		default:
			// WaitRead/WaitWrite/BrokenPipe/Closed 原样透传给调用方
			return b.buf, status, err
		}
	}
	return b.buf[:n], StatusOK, nil
}

// CommitReadOffset 推进逻辑读游标 k 必须 <= 当前 AvailableToRead()
func (b *Buffered) CommitReadOffset(k int) {
	b.off += k
	if b.off > len(b.buf) {
		b.off = len(b.buf)
	}
}

// Read 实现 ByteStream: 优先消费缓冲区中已经 Peek 但未 Commit 的数据
func (b *Buffered) Read(p []byte) (int, Status, error) {
	if b.off < len(b.buf) {
		n := copy(p, b.buf[b.off:])
		b.off += n
		return n, StatusOK, nil
	}
	return b.src.Read(p)
}

// Write 直接转发给底层流 缓冲区只服务读侧
func (b *Buffered) Write(p []byte) (int, Status, error) {
	return b.src.Write(p)
}
