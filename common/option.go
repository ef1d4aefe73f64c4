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
	"github.com/spf13/cast"
)

// Options 是一个轻量的动态配置容器
//
// 用于在不引入具体协议包之间循环依赖的前提下传递零散的可选参数
type Options map[string]any

func NewOptions() Options {
	return make(Options)
}

func (o Options) GetInt(k string, def int) int {
	v, err := cast.ToIntE(o[k])
	if err != nil {
		return def
	}
	return v
}

func (o Options) GetBool(k string, def bool) bool {
	v, err := cast.ToBoolE(o[k])
	if err != nil {
		return def
	}
	return v
}

func (o Options) GetDuration(k string, def int64) int64 {
	v, err := cast.ToInt64E(o[k])
	if err != nil {
		return def
	}
	return v
}

func (o Options) Merge(k string, v any) {
	o[k] = v
}
