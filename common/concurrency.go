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

package common

import (
	"runtime"
	"time"
)

var coreNums = runtime.GOMAXPROCS(0)

// Concurrency 返回默认的 worker 数量
//
// GOMAXPROCS 在进程启动时已经由 go.uber.org/automaxprocs 按容器可用配额校正过
// 所以这里直接读取即可 无需再次探测宿主机核数
func Concurrency() int {
	if coreNums < 1 {
		return 1
	}
	return coreNums
}

var started = time.Now()

// Started 返回进程启动时间
func Started() time.Time {
	return started
}
