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

// Package async 实现一个协作式任务调度器：协程以普通函数的形式推进自身状态
// 每一步返回一个 Action 告诉调度器接下来该做什么 —— 继续推进、
// 等待一条流可读/可写、等待某个条件成立、报错还是结束
//
// 调度器本身不创建操作系统线程 一个 Processor 可以在单个 goroutine 里
// 驱动成千上万条连接 这是 http1async 实现高并发的基础
package async

import (
	"github.com/oatpp/oatpp-sub002/stream"
)

// Func 是协程的一步推进逻辑 每次被调用都应该尽快返回 不能执行阻塞操作
type Func func() Action

// ErrorHandler 处理协程步骤产生的错误 可以选择吞掉错误并返回新的 Action 继续推进
// 也可以原样返回一个 Error 动作使其向外层传播
type ErrorHandler func(err error) Action

type kind int

const (
	kindRepeat kind = iota
	kindWaitRead
	kindWaitWrite
	kindWaitFor
	kindError
	kindFinish
)

// Action 是协程一步执行的结果 应当只通过下面的构造函数创建
type Action struct {
	kind    kind
	next    Func
	ioWait  stream.ByteStream
	cond    func() bool
	err     error
	onError ErrorHandler
}

// Repeat 表示协程已经取得进展 请求调度器在下一轮继续调用 next
func Repeat(next Func) Action {
	return Action{kind: kindRepeat, next: next}
}

// WaitRead 表示 s 上暂无数据可读（StatusWaitRead）协程让出 CPU 等待调度器重试
func WaitRead(s stream.ByteStream, next Func) Action {
	return Action{kind: kindWaitRead, ioWait: s, next: next}
}

// WaitWrite 表示 s 的写缓冲区已满（StatusWaitWrite）协程让出 CPU 等待调度器重试
func WaitWrite(s stream.ByteStream, next Func) Action {
	return Action{kind: kindWaitWrite, ioWait: s, next: next}
}

// WaitFor 表示协程在等待一个与 I/O 无关的条件（例如另一个协程发布的信号）
// Processor 不会求值 cond：next 与 WaitRead/WaitWrite 一样按 waiting/slow 队列的
// 规则被重试 由 next 自己检查条件是否成立
func WaitFor(cond func() bool, next Func) Action {
	return Action{kind: kindWaitFor, cond: cond, next: next}
}

// Error 表示协程当前步骤失败 调度器会交给最近注册的 ErrorHandler 处理
func Error(err error) Action {
	return Action{kind: kindError, err: err}
}

// Finish 表示协程已经完成全部工作 调度器会将其从队列中移除
func Finish() Action {
	return Action{kind: kindFinish}
}

// WithErrorHandler 为本次让出的后续步骤注册一个错误处理器 替换该协程此前注册的处理器
func (a Action) WithErrorHandler(h ErrorHandler) Action {
	a.onError = h
	return a
}
