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

package router

import (
	"net/url"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Route 是一条已编译的 (method, pattern) -> handler 登记项
//
// H 是上层约定的端点处理器类型 router 本身不关心其语义 只负责匹配与分发
type Route[H any] struct {
	Method   string
	Pattern  string
	Handler  H
	segments []segment
	seq      int    // 注册顺序 用于同等 specificity 时的 tie-break
	hash     uint64 // 仅用于诊断端点展示 不参与匹配
}

// Hash 返回该路由 pattern 的稳定哈希 仅用于 /-/routes 诊断展示与缓存失效判断
func (r *Route[H]) Hash() uint64 { return r.hash }

// Router 按 method 维护有序的路由列表 并执行最具体优先的匹配
type Router[H any] struct {
	mut    sync.RWMutex
	routes map[string][]*Route[H]
	seq    int
}

// New 创建一个空 Router
func New[H any]() *Router[H] {
	return &Router[H]{routes: make(map[string][]*Route[H])}
}

// Register 编译并登记一条路由 同方法内按 specificity 排序 相同具体度保持注册顺序
func (rt *Router[H]) Register(method, pattern string, handler H) (*Route[H], error) {
	segments, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}

	rt.mut.Lock()
	defer rt.mut.Unlock()

	route := &Route[H]{
		Method:   method,
		Pattern:  pattern,
		Handler:  handler,
		segments: segments,
		seq:      rt.seq,
		hash:     xxhash.Sum64String(method + " " + pattern),
	}
	rt.seq++

	list := append(rt.routes[method], route)
	sort.SliceStable(list, func(i, j int) bool {
		if specificityLess(list[i].segments, list[j].segments) {
			return true
		}
		if specificityLess(list[j].segments, list[i].segments) {
			return false
		}
		return list[i].seq < list[j].seq
	})
	rt.routes[method] = list

	return route, nil
}

// Routes 返回所有已登记路由的只读快照 按 method 分组 用于诊断端点
func (rt *Router[H]) Routes() map[string][]*Route[H] {
	rt.mut.RLock()
	defer rt.mut.RUnlock()

	out := make(map[string][]*Route[H], len(rt.routes))
	for m, list := range rt.routes {
		cp := make([]*Route[H], len(list))
		copy(cp, list)
		out[m] = cp
	}
	return out
}

// Match 为 (method, path) 寻找最具体的匹配路由 返回捕获的路径变量
//
// 路径在匹配前按斜杠归一化：前后多余的 "/" 不影响匹配结果
// 字面量段与单段变量在比较/捕获前做百分号解码；尾部变量保持原始字节
// （其内容可能本身就携带需要原样转发的编码斜杠）
func (rt *Router[H]) Match(method, path string) (H, map[string]string, bool) {
	var zero H

	rt.mut.RLock()
	list := rt.routes[method]
	rt.mut.RUnlock()

	parts := splitPath(path)
	for _, route := range list {
		vars, ok := matchSegments(route.segments, parts)
		if ok {
			return route.Handler, vars, true
		}
	}
	return zero, nil, false
}

func matchSegments(segments []segment, parts []string) (map[string]string, bool) {
	var vars map[string]string

	for i, seg := range segments {
		switch seg.kind {
		case kindTail:
			rest := parts[min(i, len(parts)):]
			if vars == nil {
				vars = make(map[string]string)
			}
			vars[seg.name] = joinPath(rest)
			return vars, true

		default:
			if i >= len(parts) {
				return nil, false
			}
			decoded, err := url.PathUnescape(parts[i])
			if err != nil {
				decoded = parts[i]
			}

			switch seg.kind {
			case kindLiteral:
				if decoded != seg.literal {
					return nil, false
				}
			case kindVariable:
				if vars == nil {
					vars = make(map[string]string)
				}
				vars[seg.name] = decoded
			}
		}
	}

	// 非 tail 模式要求段数完全一致
	if len(segments) == 0 || segments[len(segments)-1].kind != kindTail {
		if len(parts) != len(segments) {
			return nil, false
		}
	}
	return vars, true
}

func joinPath(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "/"
		}
		out += p
	}
	return out
}
