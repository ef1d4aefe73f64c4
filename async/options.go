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

import "time"

// Options 暴露调度器的调优参数 默认值取自 spec 的建议值
type Options struct {
	// SlowQueuePromotionTicks 一个等待中的协程连续这么多轮都没有取得进展时
	// 会被移入 slow queue 并进入退避轮询 避免空转占满 CPU
	SlowQueuePromotionTicks int

	// SlowQueuePollInterval 是 slow queue 中协程两次重试之间的最小间隔
	SlowQueuePollInterval time.Duration

	// AuditInterval 每处理这么多个 ready 队列任务就做一次队列长度审计日志
	AuditInterval int
}

// DefaultOptions 返回 spec 建议的默认调优参数：100 轮提升阈值 1ms 退避轮询
func DefaultOptions() Options {
	return Options{
		SlowQueuePromotionTicks: 100,
		SlowQueuePollInterval:   time.Millisecond,
		AuditInterval:           1000,
	}
}

func (o Options) withDefaults() Options {
	if o.SlowQueuePromotionTicks <= 0 {
		o.SlowQueuePromotionTicks = 100
	}
	if o.SlowQueuePollInterval <= 0 {
		o.SlowQueuePollInterval = time.Millisecond
	}
	if o.AuditInterval <= 0 {
		o.AuditInterval = 1000
	}
	return o
}
