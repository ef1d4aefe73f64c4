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

package web

import "io"

// Request 是一次入站 HTTP 请求的统一表示 HTTP/1.1 与 HTTP/2 在解帧之后都收敛到这个类型
type Request struct {
	Method   string
	Path     string // 未解码的原始路径 含 query string
	Protocol string // "HTTP/1.1" 或 "HTTP/2.0"
	Header   Header
	Body     io.Reader // 已经按 Content-Length/chunked 正确分帧 读到 EOF 即为 body 结束
	Trailer  Header    // 请求的尾部头 由 http1async 与 HTTP/2 会话在 body 收齐后填充；ReadRequest 不填充它

	// PathVars 由 router.Match 填充 值已做过百分号解码（tail 变量除外）
	PathVars map[string]string

	// StreamID 仅在 HTTP/2 请求上有意义 用于日志与诊断关联
	StreamID uint32
}

// PathVar 是 PathVars 的便捷访问器 不存在返回空字符串
func (r *Request) PathVar(name string) string {
	if r.PathVars == nil {
		return ""
	}
	return r.PathVars[name]
}
