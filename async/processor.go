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

package async

import (
	"sync"
	"time"

	"github.com/oatpp/oatpp-sub002/logger"
)

// Processor 在一个 goroutine 内驱动一批协程 ready queue 保存可以立刻继续的协程
// waiting queue 保存正在等待 I/O/条件的协程 等待超过 SlowQueuePromotionTicks
// 轮仍未取得进展的协程会被移入 slow queue 改为低频退避轮询 避免空转消耗 CPU
type Processor struct {
	mut     sync.Mutex
	ready   []*Routine
	waiting []*Routine
	slow    []*Routine

	opts    Options
	ticks   int
	started bool
}

// NewProcessor 创建一个 Processor 实例
func NewProcessor(opts Options) *Processor {
	return &Processor{opts: opts.withDefaults()}
}

// Schedule 将一个新协程加入 ready queue 可以在 Run 执行期间并发调用
func (p *Processor) Schedule(r *Routine) {
	p.mut.Lock()
	p.ready = append(p.ready, r)
	p.mut.Unlock()
}

func (p *Processor) popReady() (*Routine, bool) {
	p.mut.Lock()
	defer p.mut.Unlock()
	if len(p.ready) == 0 {
		return nil, false
	}
	r := p.ready[0]
	p.ready = p.ready[1:]
	return r, true
}

func (p *Processor) pending() int {
	p.mut.Lock()
	defer p.mut.Unlock()
	return len(p.ready) + len(p.waiting) + len(p.slow)
}

// Run 持续驱动所有已登记的协程 直到 ready/waiting/slow 三个队列全部清空才返回
//
// 典型用法是每个调度线程维护一个 Processor 连接建立时 Schedule 一个新协程
// 随后由该线程独占调用 Run 阻塞直至所有相关连接都结束
func (p *Processor) Run() {
	p.started = true
	for p.pending() > 0 {
		p.drainReady()
		p.retryWaiting()
		p.retrySlow()
	}
}

func (p *Processor) drainReady() {
	for {
		r, ok := p.popReady()
		if !ok {
			return
		}
		p.step(r)

		p.ticks++
		if p.ticks%p.opts.AuditInterval == 0 {
			p.mut.Lock()
			logger.Debugf("async: audit ready=%d waiting=%d slow=%d", len(p.ready), len(p.waiting), len(p.slow))
			p.mut.Unlock()
		}
	}
}

func (p *Processor) retryWaiting() {
	p.mut.Lock()
	batch := p.waiting
	p.waiting = nil
	p.mut.Unlock()

	for _, r := range batch {
		r.waitTicks++
		if r.waitTicks >= p.opts.SlowQueuePromotionTicks {
			p.mut.Lock()
			p.slow = append(p.slow, r)
			p.mut.Unlock()
			continue
		}
		p.step(r)
	}
}

func (p *Processor) retrySlow() {
	p.mut.Lock()
	if len(p.slow) == 0 {
		p.mut.Unlock()
		return
	}
	batch := p.slow
	p.slow = nil
	p.mut.Unlock()

	time.Sleep(p.opts.SlowQueuePollInterval)
	for _, r := range batch {
		r.waitTicks = 0
		p.step(r)
	}
}

// step 执行协程的一步 并按返回的 Action 把它放回合适的队列
func (p *Processor) step(r *Routine) {
	action := r.next()
	p.dispatch(r, action)
}

func (p *Processor) dispatch(r *Routine, action Action) {
	switch action.kind {
	case kindRepeat:
		r.next = action.next
		r.waitTicks = 0
		if action.onError != nil {
			r.errorHandler = action.onError
		}
		p.mut.Lock()
		p.ready = append(p.ready, r)
		p.mut.Unlock()

	case kindWaitRead, kindWaitWrite, kindWaitFor:
		r.next = action.next
		if action.onError != nil {
			r.errorHandler = action.onError
		}
		p.mut.Lock()
		p.waiting = append(p.waiting, r)
		p.mut.Unlock()

	case kindError:
		handler := action.onError
		fromRoutine := false
		if handler == nil {
			handler = r.errorHandler
			fromRoutine = true
		}
		if handler != nil {
			next := handler(action.err)
			if fromRoutine && next.kind == kindError && next.onError == nil {
				logger.Errorf("async: routine %q finished with unhandled error: %v", r.name, next.err)
				return
			}
			p.dispatch(r, next)
			return
		}
		logger.Errorf("async: routine %q finished with unhandled error: %v", r.name, action.err)

	case kindFinish:
		// 协程正常结束 不再放回任何队列

	default:
		logger.Errorf("async: routine %q produced unknown action kind %d", r.name, action.kind)
	}
}
