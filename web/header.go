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

// Package web 承载 HTTP/1.1 的消息模型（Request/Response/Header）与编解码
package web

import "strings"

type kv struct {
	name  string // 已小写
	value string
}

// Header 是一个大小写不敏感、保留插入顺序的 multimap
//
// net/http.Header（map[string][]string）无法表达 "Set-Cookie: a" 与
// "X-Trace: 1" 交替到达时的相对顺序 这里改用顺序切片 + 索引
type Header struct {
	entries []kv
	index   map[string][]int
}

// NewHeader 创建一个空 Header
func NewHeader() Header {
	return Header{index: make(map[string][]int)}
}

func normalizeName(name string) string {
	return strings.ToLower(name)
}

// Add 追加一个键值对 不覆盖已存在的同名项
func (h *Header) Add(name, value string) {
	if h.index == nil {
		h.index = make(map[string][]int)
	}
	n := normalizeName(name)
	h.index[n] = append(h.index[n], len(h.entries))
	h.entries = append(h.entries, kv{name: n, value: value})
}

// Set 将 name 的全部取值替换为单个 value
func (h *Header) Set(name, value string) {
	h.Del(name)
	h.Add(name, value)
}

// Get 返回 name 的第一个取值 不存在返回空字符串
func (h Header) Get(name string) string {
	n := normalizeName(name)
	idxs, ok := h.index[n]
	if !ok || len(idxs) == 0 {
		return ""
	}
	return h.entries[idxs[0]].value
}

// Values 返回 name 的所有取值 按插入顺序
func (h Header) Values(name string) []string {
	n := normalizeName(name)
	idxs, ok := h.index[n]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, h.entries[i].value)
	}
	return out
}

// Has 返回该 header 是否存在
func (h Header) Has(name string) bool {
	idxs, ok := h.index[normalizeName(name)]
	return ok && len(idxs) > 0
}

// Del 移除 name 的所有取值
func (h *Header) Del(name string) {
	n := normalizeName(name)
	idxs, ok := h.index[n]
	if !ok {
		return
	}
	delete(h.index, n)

	dead := make(map[int]bool, len(idxs))
	for _, i := range idxs {
		dead[i] = true
	}
	kept := h.entries[:0]
	for i, e := range h.entries {
		if dead[i] {
			continue
		}
		kept = append(kept, e)
	}
	h.entries = kept
	h.reindex()
}

func (h *Header) reindex() {
	h.index = make(map[string][]int, len(h.entries))
	for i, e := range h.entries {
		h.index[e.name] = append(h.index[e.name], i)
	}
}

// Range 按插入顺序遍历所有键值对
func (h Header) Range(f func(name, value string)) {
	for _, e := range h.entries {
		f(e.name, e.value)
	}
}

// Len 返回键值对总数（同名多值每个都计入）
func (h Header) Len() int {
	return len(h.entries)
}

// isMultiValued 返回该 header 在语义上是否允许出现多次
//
// Set-Cookie 永远多值；Content-Length 不允许出现多个不一致的取值（由调用方在解析期校验）
func isMultiValued(name string) bool {
	return normalizeName(name) == "set-cookie"
}
