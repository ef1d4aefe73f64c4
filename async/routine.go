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

// Routine 是调度器管理的一个协作式任务实例 —— 通常对应一条正在处理中的连接
type Routine struct {
	name         string
	next         Func
	errorHandler ErrorHandler
	waitTicks    int // 在当前 Wait* 状态下已经空转的轮数 用于 slow queue 提升判断
}

// NewRoutine 创建一个新的协程 name 仅用于日志与诊断 entry 是第一步要执行的函数
func NewRoutine(name string, entry Func) *Routine {
	return &Routine{name: name, next: entry}
}

// Name 返回协程名称
func (r *Routine) Name() string { return r.name }
