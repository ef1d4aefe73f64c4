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

package server

import (
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/oatpp/oatpp-sub002/confengine"
	"github.com/oatpp/oatpp-sub002/internal/pubsub"
	"github.com/oatpp/oatpp-sub002/internal/sigs"
	"github.com/oatpp/oatpp-sub002/logger"
	"github.com/oatpp/oatpp-sub002/router"
	"github.com/oatpp/oatpp-sub002/web"
)

// AdminConfig 是 admin 监听器的开关与选项 独立于业务连接监听器
type AdminConfig struct {
	Enabled bool          `config:"enabled"`
	Address string        `config:"address"`
	Pprof   bool          `config:"pprof"`
	Timeout time.Duration `config:"timeout"`
}

// AdminServer 承载诊断与控制端点 与业务连接处理完全分离 使用 gorilla/mux
type AdminServer struct {
	config AdminConfig
	router *mux.Router
	server *http.Server
}

// NewAdminServer 从配置构造 AdminServer 当 .Enabled 为 false 时返回空指针
// 调用方需先判断
func NewAdminServer(conf *confengine.Config) (*AdminServer, error) {
	var config AdminConfig
	if err := conf.UnpackChild("admin", &config); err != nil {
		return nil, err
	}
	if !config.Enabled {
		return nil, nil
	}

	mr := mux.NewRouter()
	s := &AdminServer{
		config: config,
		router: mr,
		server: &http.Server{
			Handler:      mr,
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout,
		},
	}
	if config.Pprof {
		s.registerPprofRoutes()
	}
	return s, nil
}

func (s *AdminServer) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	logger.Infof("admin server listening on %s", s.config.Address)
	return s.server.Serve(ln)
}

func (s *AdminServer) Close() error {
	return s.server.Close()
}

func (s *AdminServer) RegisterGetRoute(path string, f http.HandlerFunc) {
	s.router.Methods(http.MethodGet).Path(path).HandlerFunc(f)
}

func (s *AdminServer) RegisterPostRoute(path string, f http.HandlerFunc) {
	s.router.Methods(http.MethodPost).Path(path).HandlerFunc(f)
}

func (s *AdminServer) registerPprofRoutes() {
	s.RegisterGetRoute("/debug/pprof/cmdline", pprof.Cmdline)
	s.RegisterGetRoute("/debug/pprof/profile", pprof.Profile)
	s.RegisterGetRoute("/debug/pprof/symbol", pprof.Symbol)
	s.RegisterGetRoute("/debug/pprof/trace", pprof.Trace)
	s.RegisterGetRoute("/debug/pprof/{other}", pprof.Index)
}

// Admin 把请求路由、生命周期事件总线与 AdminServer 粘合起来 登记固定的一组
// 控制与诊断端点 与 Controller.setupServer 是同一种拼装方式
type Admin struct {
	svr    *AdminServer
	routes *router.Router[web.Handler]
	events *pubsub.PubSub
}

// NewAdmin 为给定的业务路由表与事件总线创建 Admin 绑定
//
// svr 为空时（即 admin 监听器被配置为禁用）返回的 Admin 仍然有效 只是
// 它的路由永远不会被外部访问到 —— 调用方无需额外判空
func NewAdmin(svr *AdminServer, routes *router.Router[web.Handler], events *pubsub.PubSub) *Admin {
	a := &Admin{svr: svr, routes: routes, events: events}
	if svr == nil {
		return a
	}

	svr.RegisterPostRoute("/-/logger", a.routeLogger)
	svr.RegisterPostRoute("/-/reload", a.routeReload)
	svr.RegisterGetRoute("/-/routes", a.routeRoutes)
	svr.RegisterGetRoute("/watch", a.routeWatch)
	return a
}

func (a *Admin) routeLogger(w http.ResponseWriter, r *http.Request) {
	level := r.FormValue("level")
	logger.SetLoggerLevel(level)
	_, _ = w.Write([]byte(`{"status": "success"}`))
}

func (a *Admin) routeReload(w http.ResponseWriter, r *http.Request) {
	if err := sigs.SelfReload(); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(err.Error()))
	}
}

type routeDump struct {
	Method  string `json:"method"`
	Pattern string `json:"pattern"`
	Hash    string `json:"hash"`
}

// routeRoutes 列出已登记路由 供运维排查哪些端点被实际注册
func (a *Admin) routeRoutes(w http.ResponseWriter, r *http.Request) {
	grouped := a.routes.Routes()
	var out []routeDump
	for method, list := range grouped {
		for _, rt := range list {
			out = append(out, routeDump{
				Method:  method,
				Pattern: rt.Pattern,
				Hash:    strconv.FormatUint(rt.Hash(), 16),
			})
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// routeWatch 是一个长轮询式的事件订阅端点 不断从事件总线弹出消息并刷新给客户端
// 直到达到 max_message 条或者连续 timeout 无新消息
func (a *Admin) routeWatch(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return
	}

	maxMessage, _ := strconv.Atoi(r.URL.Query().Get("max_message"))
	if maxMessage <= 0 {
		maxMessage = 100
	}

	timeout, _ := time.ParseDuration(r.URL.Query().Get("timeout"))
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	queue := a.events.Subscribe(10)
	defer a.events.Unsubscribe(queue)

	for i := 0; i < maxMessage; i++ {
		data, ok := queue.PopTimeout(timeout)
		if !ok {
			return
		}
		line, ok := data.([]byte)
		if !ok {
			continue
		}
		_, _ = w.Write(line)
		_, _ = w.Write([]byte{'\n'})
		flusher.Flush()
	}
}

// PublishEvent 把一条连接生命周期事件广播给所有 /watch 订阅者
func (a *Admin) PublishEvent(line []byte) {
	if a.events == nil {
		return
	}
	a.events.Publish(line)
}
