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

// Package server 把已经建立的连接交给连接处理核心 —— 一个 ConnectionProvider
// 产出 stream.ByteStream 一个 ConnectionHandler 消费它们 二者之间用一个简单的
// accept 循环串联起来 这与协议细节（HTTP/1.1、h2c 切换）完全解耦
package server

import (
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/net/netutil"

	"github.com/oatpp/oatpp-sub002/logger"
	"github.com/oatpp/oatpp-sub002/stream"
)

func newError(format string, args ...any) error {
	return errors.Errorf("server: "+format, args...)
}

// ConnectionProvider 产出已经建立好的连接 供 ConnectionHandler 消费
type ConnectionProvider interface {
	// Get 阻塞直到有新连接可用 或者 provider 被关闭
	Get() (stream.ByteStream, error)
	Close() error
}

// ConnectionHandler 处理一条已经被接受的连接 实现必须自行负责关闭连接
type ConnectionHandler interface {
	HandleConnection(conn stream.ByteStream)
}

// ConnectionHandlerFunc 让一个普通函数满足 ConnectionHandler
type ConnectionHandlerFunc func(conn stream.ByteStream)

func (f ConnectionHandlerFunc) HandleConnection(conn stream.ByteStream) { f(conn) }

// netConnStream 把 net.Conn 适配为 stream.ByteStream 的阻塞实现
// 每次读写前按配置的超时刷新 deadline 防止慢速/挂死的对端占满 goroutine
type netConnStream struct {
	c            net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
	id           string
}

// ConnID 返回这条连接在 accept 时生成的 uuid v4 字符串 供日志与诊断关联
func (n netConnStream) ConnID() string { return n.id }

func (n netConnStream) Read(p []byte) (int, stream.Status, error) {
	if n.readTimeout > 0 {
		_ = n.c.SetReadDeadline(time.Now().Add(n.readTimeout))
	}
	nr, err := n.c.Read(p)
	if err == nil {
		return nr, stream.StatusOK, nil
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return nr, stream.StatusRetry, nil
	}
	return nr, stream.StatusClosed, nil
}

func (n netConnStream) Write(p []byte) (int, stream.Status, error) {
	if n.writeTimeout > 0 {
		_ = n.c.SetWriteDeadline(time.Now().Add(n.writeTimeout))
	}
	nw, err := n.c.Write(p)
	if err == nil {
		return nw, stream.StatusOK, nil
	}
	return nw, stream.StatusBrokenPipe, err
}

func (n netConnStream) Mode() stream.Mode { return stream.ModeBlocking }

func (n netConnStream) Close() error { return n.c.Close() }

// TCPConfig 配置一个基于标准库 net.Listener 的 ConnectionProvider
type TCPConfig struct {
	Address        string        `config:"address"`
	ReadTimeout    time.Duration `config:"readTimeout"`
	WriteTimeout   time.Duration `config:"writeTimeout"`
	MaxConnections int           `config:"maxConnections"`
}

// TCPProvider 是 ConnectionProvider 在明文 TCP 上的实现
type TCPProvider struct {
	cfg TCPConfig
	ln  net.Listener
}

// NewTCPProvider 绑定并监听 cfg.Address
// cfg.MaxConnections 大于零时 用 netutil.LimitListener 包一层 Accept 在达到
// 上限时会阻塞而不是无限制地为每条连接开 goroutine 直到耗尽文件描述符
func NewTCPProvider(cfg TCPConfig) (*TCPProvider, error) {
	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, newError("listening on %s: %v", cfg.Address, err)
	}
	if cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConnections)
	}
	return &TCPProvider{cfg: cfg, ln: ln}, nil
}

// Addr 返回实际监听地址 用于 cfg.Address 含有随机端口（":0"）的测试场景
func (p *TCPProvider) Addr() net.Addr { return p.ln.Addr() }

func (p *TCPProvider) Get() (stream.ByteStream, error) {
	conn, err := p.ln.Accept()
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return netConnStream{
		c:            conn,
		readTimeout:  p.cfg.ReadTimeout,
		writeTimeout: p.cfg.WriteTimeout,
		id:           uuid.NewString(),
	}, nil
}

func (p *TCPProvider) Close() error { return p.ln.Close() }

// Loop 是 accept 循环 为每条连接起一个 goroutine 调用 handler
// 阻塞直到 provider 被关闭（Get 返回错误）
func Loop(provider ConnectionProvider, handler ConnectionHandler) {
	for {
		conn, err := provider.Get()
		if err != nil {
			logger.Debugf("server: accept loop stopping: %v", err)
			return
		}
		go handler.HandleConnection(conn)
	}
}
