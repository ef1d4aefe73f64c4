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

import (
	"container/heap"
	"sync"
)

// PriorityMax 是控制帧（SETTINGS/PING/WINDOW_UPDATE/GOAWAY/RST_STREAM）使用的
// 调度优先级 数值越小越先被发送 控制帧永远排在任何流的 DATA/HEADERS 之前
const PriorityMax = -1

// outItem 是调度器里待发送的一帧
type outItem struct {
	streamID uint32
	priority int64 // 越小越先发 PriorityMax 恒为最小
	seq      uint64 // 同优先级下的到达顺序 保证 FIFO
	payload  []byte
	index    int
}

type outQueue []*outItem

func (q outQueue) Len() int { return len(q) }
func (q outQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	return q[i].seq < q[j].seq
}
func (q outQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index, q[j].index = i, j
}
func (q *outQueue) Push(x any) {
	it := x.(*outItem)
	it.index = len(*q)
	*q = append(*q, it)
}
func (q *outQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}

// Scheduler 是单条连接的输出帧调度器 它依据 RFC 7540 §5.3 的依赖权重把每个流
// 的权重折算为优先级数值 同时保证控制帧（priority == PriorityMax）总是优先送出
//
// 调度器本身不做真正的带权重树形调度（完整实现需要跟踪依赖树上的全部祖先份额）
// 而是采用一个被广泛使用的简化：把 weight 越大的流映射到越小的 priority 值
// 单个流内部的帧严格 FIFO 不同流之间按 priority 数值和到达顺序排序
type Scheduler struct {
	mut   sync.Mutex
	q     outQueue
	seq   uint64
	ready chan struct{}
}

// NewScheduler 创建一个空调度器
func NewScheduler() *Scheduler {
	return &Scheduler{ready: make(chan struct{}, 1)}
}

// weightPriority 把 HTTP/2 权重编码值（0-255，代表权重 1-256）折算成一个越大
// 权重越小的调度优先级数值
func weightPriority(weight uint8) int64 {
	return int64(256 - int(weight))
}

// EnqueueControl 提交一个控制帧 总是排在所有流帧之前
func (s *Scheduler) EnqueueControl(payload []byte) {
	s.enqueue(0, PriorityMax, payload)
}

// EnqueueStream 按流的权重提交一帧数据
func (s *Scheduler) EnqueueStream(streamID uint32, weight uint8, payload []byte) {
	s.enqueue(streamID, weightPriority(weight), payload)
}

func (s *Scheduler) enqueue(streamID uint32, priority int64, payload []byte) {
	s.mut.Lock()
	s.seq++
	heap.Push(&s.q, &outItem{streamID: streamID, priority: priority, seq: s.seq, payload: payload})
	s.mut.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Pop 取出下一个应当发送的帧 若队列为空返回 ok == false
func (s *Scheduler) Pop() (payload []byte, streamID uint32, ok bool) {
	s.mut.Lock()
	defer s.mut.Unlock()
	if s.q.Len() == 0 {
		return nil, 0, false
	}
	it := heap.Pop(&s.q).(*outItem)
	return it.payload, it.streamID, true
}

// Len 返回当前排队等待发送的帧数
func (s *Scheduler) Len() int {
	s.mut.Lock()
	defer s.mut.Unlock()
	return s.q.Len()
}

// Ready 返回一个在有新帧入队时可读的信号通道 供协程式写循环等待
func (s *Scheduler) Ready() <-chan struct{} { return s.ready }
