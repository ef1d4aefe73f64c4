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

// Package rescue 提供统一的 panic 恢复与记录能力
//
// 连接处理是长生命周期的 goroutine 一次未恢复的 panic 会带崩整个进程
// 每个连接 goroutine 的入口都应该直接 defer rescue.HandleCrash(log)（不能
// 包在另一个闭包里 否则 recover 不生效） log 通常是已经附带了 conn-id /
// stream-id 上下文的 logger.Logger
package rescue

import (
	"runtime"

	"github.com/oatpp/oatpp-sub002/logger"
)

// HandleCrash 恢复当前 goroutine 的 panic 并记录 必须直接用 defer 注册：
//
//	defer rescue.HandleCrash(log)
func HandleCrash(log logger.Logger) {
	if r := recover(); r != nil {
		LogPanic(log, r)
	}
}

// LogPanic 记录一个已经被上层 recover 到的 panic 值与堆栈 供需要在恢复之后
// 做额外处理（例如写出一个错误响应）、因而不能直接 defer HandleCrash 的调用方
// 复用同样的日志格式
func LogPanic(log logger.Logger, r any) {
	if log == (logger.Logger{}) {
		log = logger.With()
	}
	const size = 64 << 10
	stacktrace := make([]byte, size)
	stacktrace = stacktrace[:runtime.Stack(stacktrace, false)]
	if _, ok := r.(string); ok {
		log.Errorf("observed a panic: %s\n%s", r, stacktrace)
	} else {
		log.Errorf("observed a panic: %#v (%v)\n%s", r, r, stacktrace)
	}
}
