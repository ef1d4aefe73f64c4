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

import "sync"

// FlowWindow 实现 RFC 7540 §6.9 描述的流量控制窗口 同一个类型既用于
// 连接级窗口也用于单个流的窗口
//
// available 允许在对端缩小 SETTINGS_INITIAL_WINDOW_SIZE 之后短暂变为负数
// notify 在每次 available 增大之后被关闭并替换为一个新的通道 —— 等待方在
// 尝试 TryConsume 之前先取走当前的 notify 失败后再 select 它 这样即使在
// "检查失败" 与 "开始等待" 之间发生了一次 Increase 也不会错过唤醒
type FlowWindow struct {
	mut       sync.Mutex
	available int64
	notify    chan struct{}
}

// NewFlowWindow 创建一个初始额度为 initial 的窗口
func NewFlowWindow(initial uint32) *FlowWindow {
	return &FlowWindow{available: int64(initial), notify: make(chan struct{})}
}

// Available 返回当前可发送/可接收的字节数 可能为负
func (w *FlowWindow) Available() int64 {
	w.mut.Lock()
	defer w.mut.Unlock()
	return w.available
}

// Consume 在发送 DATA 或接收 DATA 时扣减窗口额度
func (w *FlowWindow) Consume(n int64) error {
	w.mut.Lock()
	defer w.mut.Unlock()
	if n > w.available {
		return newError("flow control window exceeded: want %d have %d", n, w.available)
	}
	w.available -= n
	return nil
}

// TryConsume 尝试扣减至多 n 字节 实际扣减量取 min(n, available, 0 以上)
// 返回实际扣减的字节数 —— 可能是 0 这种情况下调用方应该等待 NotifyChan
func (w *FlowWindow) TryConsume(n int64) int64 {
	w.mut.Lock()
	defer w.mut.Unlock()
	if w.available <= 0 {
		return 0
	}
	got := n
	if got > w.available {
		got = w.available
	}
	w.available -= got
	return got
}

// NotifyChan 返回一个会在下一次窗口增大时被关闭的通道 调用方应该在
// TryConsume 返回 0 之后取一次这个通道再 select 它来等待唤醒 —— 必须先取
// 通道后重试 TryConsume 以避免错过窗口已经在两者之间增大的唤醒
func (w *FlowWindow) NotifyChan() <-chan struct{} {
	w.mut.Lock()
	defer w.mut.Unlock()
	return w.notify
}

// wake 必须在持有 w.mut 时调用 关闭当前 notify 通道并替换为一个新的
func (w *FlowWindow) wake() {
	close(w.notify)
	w.notify = make(chan struct{})
}

// Increase 处理一个 WINDOW_UPDATE 增量 增量必须是正数且不能令窗口溢出 2^31-1
func (w *FlowWindow) Increase(delta uint32) error {
	w.mut.Lock()
	defer w.mut.Unlock()
	if delta == 0 {
		return newError("window update increment must not be zero")
	}
	next := w.available + int64(delta)
	if next > MaxWindowSize {
		return newError("window update overflows flow control window")
	}
	w.available = next
	w.wake()
	return nil
}

// ApplyInitialWindowSizeChange 在对端修改 SETTINGS_INITIAL_WINDOW_SIZE 时
// 按差值整体平移窗口 (RFC 7540 §6.9.2)
func (w *FlowWindow) ApplyInitialWindowSizeChange(oldInitial, newInitial uint32) error {
	w.mut.Lock()
	defer w.mut.Unlock()
	delta := int64(newInitial) - int64(oldInitial)
	next := w.available + delta
	if next > MaxWindowSize {
		return newError("initial window size change overflows flow control window")
	}
	w.available = next
	if delta > 0 {
		w.wake()
	}
	return nil
}
