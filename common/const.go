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

const (
	// App 应用程序名称
	App = "oatpp-sub002"

	// Version 应用程序版本
	Version = "v0.0.1"

	// ReadWriteBlockSize 默认的单次 socket 读写长度
	//
	// 连接缓冲区会以此为单位从底层 stream 中批量读取数据 再交由上层逐步消费
	ReadWriteBlockSize = 4096

	// DefaultMaxHeaderBytes 默认的 HTTP/1.1 请求头部最大字节数
	//
	// 超过该值返回 431 Request Header Fields Too Large
	DefaultMaxHeaderBytes = 4096

	// DefaultMaxPeekBytes BufferedProxy 允许 peek 的最大字节数
	//
	// 调用方 peek 超过此值会收到 truncation 错误 而不是无限增长内存
	DefaultMaxPeekBytes = 1 << 20
)
