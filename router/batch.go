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
	"github.com/hashicorp/go-multierror"
)

// Entry 是 RegisterAll 的一条批量登记请求
type Entry[H any] struct {
	Method  string
	Pattern string
	Handler H
}

// RegisterAll 依次登记一组路由 单条登记失败不会中断后续登记
// 所有失败原因以 go-multierror 聚合返回 便于启动阶段一次性展示全部错误
// 而不是登记一条失败一条
func (rt *Router[H]) RegisterAll(entries []Entry[H]) error {
	var result *multierror.Error
	for _, e := range entries {
		if _, err := rt.Register(e.Method, e.Pattern, e.Handler); err != nil {
			result = multierror.Append(result, newError("registering %s %s: %v", e.Method, e.Pattern, err))
		}
	}
	return result.ErrorOrNil()
}
