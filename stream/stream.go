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

// Package stream 定义了连接处理核心使用的字节流抽象
//
// ByteStream 是一条双向、有序的字节通道 既可以由阻塞 socket 实现
// 也可以由协作式调度器驱动的非阻塞 socket 实现 —— 二者共享同一套状态码
package stream

import (
	"io"

	"github.com/pkg/errors"
)

func newError(format string, args ...any) error {
	return errors.Errorf("stream: "+format, args...)
}

// Status 描述一次 Read/Write 调用的结果类别
type Status int

const (
	// StatusOK 本次调用正常完成 n 为实际读写字节数
	StatusOK Status = iota

	// StatusRetry 非致命错误 调用方应立即重试
	StatusRetry

	// StatusWaitRead 非阻塞模式下暂无可读数据 调用方应让出给调度器等待可读
	StatusWaitRead

	// StatusWaitWrite 非阻塞模式下写缓冲区已满 调用方应让出给调度器等待可写
	StatusWaitWrite

	// StatusBrokenPipe 对端已经重置/关闭连接
	StatusBrokenPipe

	// StatusClosed 连接已关闭：本端已经主动关闭 或读到了流末尾（对端关闭/EOF）
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusRetry:
		return "RETRY"
	case StatusWaitRead:
		return "WAIT_READ"
	case StatusWaitWrite:
		return "WAIT_WRITE"
	case StatusBrokenPipe:
		return "BROKEN_PIPE"
	case StatusClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Mode 标识一条 ByteStream 的 I/O 模式
type Mode int

const (
	// ModeBlocking 阻塞模式 每次 Read/Write 调用都会阻塞直到完成或出错
	ModeBlocking Mode = iota

	// ModeAsync 协作式非阻塞模式 Read/Write 在暂无进展时返回 Wait* 状态而不是阻塞
	ModeAsync
)

var (
	// ErrBrokenPipe 对应 StatusBrokenPipe
	ErrBrokenPipe = newError("broken pipe")

	// ErrClosed 对应 StatusClosed
	ErrClosed = newError("closed")

	// ErrTruncated peek 请求超过了 Buffered 允许的最大缓冲区
	ErrTruncated = newError("peek request exceeds max buffer size")
)

// ByteStream 是连接处理核心消费的最小字节流契约
type ByteStream interface {
	// Read 最多读取 len(p) 字节
	//
	// 非阻塞模式下返回 n=0, Status=StatusWaitRead 并不是错误 调用方需要重试或让出
	Read(p []byte) (n int, status Status, err error)

	// Write 最多写入 len(p) 字节 允许短写
	Write(p []byte) (n int, status Status, err error)

	// Mode 返回当前 I/O 模式
	Mode() Mode

	// Close 关闭底层连接 可重入
	Close() error
}

// Peeker 是支持非消费式预读的 ByteStream 的可选能力
type Peeker interface {
	// Peek 尝试填充内部缓冲区至 n 字节并返回一个不消费游标的视图
	//
	// 重复以相同 n 调用 Peek 会返回相同的字节 直到 CommitReadOffset 被调用
	Peek(n int) (p []byte, status Status, err error)

	// CommitReadOffset 将逻辑读游标向前推进 k 字节 k 必须 <= 上次 Peek 返回的长度
	CommitReadOffset(k int)

	// AvailableToRead 返回当前缓冲区中尚未提交的字节数
	AvailableToRead() int
}

// ReaderAdapter 将 ByteStream 适配为标准 io.Reader 仅用于阻塞模式下与标准库互操作
//
// 遇到 StatusRetry 会自旋重试 遇到 Wait* 状态视为编程错误 —— 调用方必须保证
// 阻塞流不会返回 Wait* 状态
type ReaderAdapter struct {
	S ByteStream
}

func (r ReaderAdapter) Read(p []byte) (int, error) {
	for {
		n, status, err := r.S.Read(p)
		switch status {
		case StatusOK:
			if n == 0 && err == nil {
				return 0, io.EOF
			}
			return n, err
		case StatusRetry:
			continue
		case StatusBrokenPipe:
			return n, ErrBrokenPipe
		case StatusClosed:
			return n, io.EOF
		default:
			return n, errors.Errorf("stream: unexpected status %s for blocking reader", status)
		}
	}
}

// WriterAdapter 将 ByteStream 适配为标准 io.Writer 语义同 ReaderAdapter
type WriterAdapter struct {
	S ByteStream
}

func (w WriterAdapter) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, status, err := w.S.Write(p[total:])
		total += n
		switch status {
		case StatusOK:
			if err != nil {
				return total, err
			}
		case StatusRetry:
			continue
		case StatusBrokenPipe:
			return total, ErrBrokenPipe
		case StatusClosed:
			return total, ErrClosed
		default:
			return total, errors.Errorf("stream: unexpected status %s for blocking writer", status)
		}
	}
	return total, nil
}
