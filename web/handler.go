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

// Handler 是端点处理函数的统一签名 router.Router[web.Handler] 以此类型登记端点
//
// 返回的 error 若为 *errs.HTTPError 会被对应渲染为其携带的状态码
// 其它 error 一律视为 KindInternal -> 500
type Handler func(req *Request) (*Response, error)

// RequestInterceptor 在路由分发之前对请求做预处理 可以短路返回一个响应
type RequestInterceptor func(req *Request) (*Response, error)

// ResponseInterceptor 在响应发出之前对其做最后加工（例如追加公共响应头）
type ResponseInterceptor func(req *Request, resp *Response)

// Chain 组合拦截器与端点处理函数为一个可调度的 Handler
type Chain struct {
	RequestInterceptors  []RequestInterceptor
	Endpoint             Handler
	ResponseInterceptors []ResponseInterceptor
}

// Handle 依次执行请求拦截器 -> 端点 -> 响应拦截器 任意请求拦截器短路即跳过端点
func (c Chain) Handle(req *Request) (*Response, error) {
	for _, it := range c.RequestInterceptors {
		resp, err := it(req)
		if err != nil {
			return nil, err
		}
		if resp != nil {
			return resp, nil
		}
	}

	resp, err := c.Endpoint(req)
	if err != nil {
		return nil, err
	}

	for _, it := range c.ResponseInterceptors {
		it(req, resp)
	}
	return resp, nil
}
