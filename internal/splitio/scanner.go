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

// Package splitio 提供不拷贝底层字节的行扫描原语
//
// HTTP/1.1 的请求行与头部均以 CRLF 分隔 这里复用 packetd 的 splitio 思路：
// 直接在原始缓冲区上做切片扫描 避免 *bufio.Scanner 的内部拷贝开销
package splitio

import "bytes"

var (
	CharCRLF = []byte("\r\n")
	CharCR   = []byte("\r")
	CharLF   = []byte("\n")
)

// Scanner 按行扫描字节切片 保留换行符本身
type Scanner struct {
	l, r int
	buf  []byte
}

// NewScanner 创建并返回 *Scanner 实例
func NewScanner(b []byte) *Scanner {
	return &Scanner{buf: b}
}

// Scan 扫描下一个 LF 字符并标记索引 到达末尾返回 false
func (s *Scanner) Scan() bool {
	s.l = s.r
	if len(s.buf) == s.l {
		return false
	}

	idx := bytes.IndexByte(s.buf[s.l:], CharLF[0])
	if idx == -1 {
		s.r = len(s.buf)
	} else {
		s.r = s.l + idx + 1
	}
	return true
}

// Bytes 返回当前行 调用方如需持久保存应自行拷贝
func (s *Scanner) Bytes() []byte {
	return s.buf[s.l:s.r]
}

// IndexCRLFCRLF 在 buf 中查找 "\r\n\r\n" 返回其起始下标 找不到返回 -1
//
// HTTP/1.1 的头部小节读取循环依赖此函数判断头部是否读取完整
func IndexCRLFCRLF(buf []byte) int {
	return bytes.Index(buf, []byte("\r\n\r\n"))
}
