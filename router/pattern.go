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

// Package router 实现了端点注册所使用的路径模式编译与匹配
package router

import (
	"strings"

	"github.com/pkg/errors"
)

func newError(format string, args ...any) error {
	return errors.Errorf("router: "+format, args...)
}

// segmentKind 的数值即为排序权重 数值越小越具体
type segmentKind int

const (
	kindLiteral segmentKind = iota
	kindVariable
	kindTail
)

type segment struct {
	kind    segmentKind
	literal string // kindLiteral 时有效
	name    string // kindVariable/kindTail 时有效
}

// compilePattern 将 URL 模式按 "/" 拆分并解析每个分段
//
// {name} 为单段变量 {name*} 必须是模式的最后一段 匹配剩余路径（包含斜杠）
func compilePattern(pattern string) ([]segment, error) {
	trimmed := strings.Trim(pattern, "/")
	if trimmed == "" {
		return nil, nil
	}

	parts := strings.Split(trimmed, "/")
	segments := make([]segment, 0, len(parts))
	for i, p := range parts {
		switch {
		case strings.HasPrefix(p, "{") && strings.HasSuffix(p, "*}"):
			if i != len(parts)-1 {
				return nil, newError("tail variable %q must be the last segment of pattern %q", p, pattern)
			}
			name := p[1 : len(p)-2]
			if name == "" {
				return nil, newError("empty tail variable name in pattern %q", pattern)
			}
			segments = append(segments, segment{kind: kindTail, name: name})

		case strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}"):
			name := p[1 : len(p)-1]
			if name == "" {
				return nil, newError("empty path variable name in pattern %q", pattern)
			}
			segments = append(segments, segment{kind: kindVariable, name: name})

		default:
			segments = append(segments, segment{kind: kindLiteral, literal: p})
		}
	}
	return segments, nil
}

// specificityLess 返回 a 是否比 b 更具体（应排在 b 之前）
//
// 排序规则：逐段比较 literal(0) > variable(1) > tail(2) 第一处不同即分出胜负
// 若所有公共前缀段都相同 则段数更多（约束更强）的一方更具体
func specificityLess(a, b []segment) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i].kind != b[i].kind {
			return a[i].kind < b[i].kind
		}
	}
	return len(a) > len(b)
}

// splitPath 将请求路径拆分为段 并按 spec 要求对前后斜杠做归一化
func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
