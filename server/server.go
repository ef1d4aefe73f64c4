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
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/oatpp/oatpp-sub002/confengine"
	"github.com/oatpp/oatpp-sub002/internal/pubsub"
	"github.com/oatpp/oatpp-sub002/logger"
	"github.com/oatpp/oatpp-sub002/router"
	"github.com/oatpp/oatpp-sub002/stream"
	"github.com/oatpp/oatpp-sub002/switcher"
	"github.com/oatpp/oatpp-sub002/web"
)

// Config 是整个连接处理服务的顶层配置 把业务监听器与 admin 监听器分开配置
type Config struct {
	ServerName     string        `config:"serverName"`
	Address        string        `config:"address"`
	MaxHeaderBytes int           `config:"maxHeaderBytes"`
	MaxPeekBytes   int           `config:"maxPeekBytes"`
	MaxFrameSize   uint32        `config:"maxFrameSize"`
	InitialWindow  uint32        `config:"initialWindow"`
	MaxStreams     uint32        `config:"maxStreams"`
	ReadTimeout    time.Duration `config:"readTimeout"`
	WriteTimeout   time.Duration `config:"writeTimeout"`
	MaxConnections int           `config:"maxConnections"`
}

// Server 把 TCP 连接的 accept 循环、版本切换与 admin 诊断端点粘合为一个整体
// 对照的是 controller.Controller：一个进程级别的启动/停止单元
type Server struct {
	cfg      Config
	provider *TCPProvider
	routes   *router.Router[web.Handler]
	events   *pubsub.PubSub
	admin    *Admin
	adminSvr *AdminServer
}

// New 从配置构建 Server 绑定其业务监听端口 但尚未开始 accept
//
// routes 是已经注册好全部端点的路由表 —— Server 自身不关心路由注册细节
func New(conf *confengine.Config, routes *router.Router[web.Handler]) (*Server, error) {
	var cfg Config
	if err := conf.UnpackChild("server", &cfg); err != nil {
		return nil, err
	}
	if cfg.Address == "" {
		cfg.Address = ":8080"
	}

	provider, err := NewTCPProvider(TCPConfig{
		Address:        cfg.Address,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		MaxConnections: cfg.MaxConnections,
	})
	if err != nil {
		return nil, err
	}

	adminSvr, err := NewAdminServer(conf)
	if err != nil {
		_ = provider.Close()
		return nil, err
	}

	events := pubsub.New()
	admin := NewAdmin(adminSvr, routes, events)

	return &Server{
		cfg:      cfg,
		provider: provider,
		routes:   routes,
		events:   events,
		admin:    admin,
		adminSvr: adminSvr,
	}, nil
}

// Addr 返回业务监听器的实际地址 在 cfg.Address 含随机端口时用于测试
func (s *Server) Addr() string { return s.provider.Addr().String() }

// connIdentifier 由 TCPProvider 产出的连接实现 暴露 accept 时生成的 uuid
type connIdentifier interface {
	ConnID() string
}

// connID 返回 conn 的 accept-time uuid 不支持该接口（例如测试用的 fake 流）
// 时返回空字符串
func connID(conn stream.ByteStream) string {
	if ci, ok := conn.(connIdentifier); ok {
		return ci.ConnID()
	}
	return ""
}

// Start 启动 admin 监听器（若启用）并阻塞着跑业务连接的 accept 循环
// 直到 provider 被 Close
//
// 每条被接受的连接都打上一个 uuid v4 标签 accept/close 各打一条日志 同一个
// 带标签的 logger.Logger 会一路带进 switcher/http1/http2 供 panic 恢复等
// 日志点附带 conn_id 上下文
func (s *Server) Start() error {
	if s.adminSvr != nil {
		go func() {
			if err := s.adminSvr.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("admin server stopped: %v", err)
			}
		}()
	}

	Loop(s.provider, ConnectionHandlerFunc(func(conn stream.ByteStream) {
		id := connID(conn)
		connLog := logger.With("conn_id", id)
		connLog.Infof("connection accepted")

		switcher.Serve(conn, switcher.Config{
			ServerName:     s.cfg.ServerName,
			Router:         s.routes,
			MaxHeaderBytes: s.cfg.MaxHeaderBytes,
			MaxPeekBytes:   s.cfg.MaxPeekBytes,
			MaxFrameSize:   s.cfg.MaxFrameSize,
			InitialWindow:  s.cfg.InitialWindow,
			MaxStreams:     s.cfg.MaxStreams,
			Log:            connLog,
		})

		connLog.Infof("connection closed")
		s.events.Publish([]byte(id + " connection closed"))
	}))
	return nil
}

// Stop 关闭业务监听器与 admin 监听器 不会打断已经在处理中的连接
func (s *Server) Stop() {
	_ = s.provider.Close()
	if s.adminSvr != nil {
		_ = s.adminSvr.Close()
	}
}
