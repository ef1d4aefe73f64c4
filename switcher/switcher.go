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

// Package switcher 在一条刚建立的连接上决定使用 HTTP/1.1 还是 HTTP/2
//
// 两条路径都被支持：
//   - 明文 HTTP/2（h2c 的前导形式）：客户端直接发送固定的连接前导
//     "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n" —— 通过非消费式 Peek 识别 不会
//     误吞给 HTTP/1.1 解析器的字节
//   - h2c 升级：客户端先发一个正常的 HTTP/1.1 请求 带 Upgrade: h2c 和
//     HTTP2-Settings 首部 服务端以 101 Switching Protocols 应答后把连接
//     整个移交给 http2.Session
package switcher

import (
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"

	"github.com/oatpp/oatpp-sub002/http2"
	"github.com/oatpp/oatpp-sub002/http1"
	"github.com/oatpp/oatpp-sub002/logger"
	"github.com/oatpp/oatpp-sub002/router"
	"github.com/oatpp/oatpp-sub002/stream"
	"github.com/oatpp/oatpp-sub002/web"
)

func newError(format string, args ...any) error {
	return errors.Errorf("switcher: "+format, args...)
}

// Preface 是 RFC 7540 §3.5 规定的 HTTP/2 连接前导 长度固定 24 字节
const Preface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

// DetectPreface 非消费式地探测连接起始字节是否是 HTTP/2 前导
//
// 返回 matched == true 时调用方应该调用 b.CommitReadOffset(len(Preface))
// 再把连接交给 http2 matched == false 时这些字节原样留给 HTTP/1.1 解析器
func DetectPreface(b *stream.Buffered) (matched bool, err error) {
	peek, status, perr := b.Peek(len(Preface))
	switch status {
	case stream.StatusOK:
		return string(peek) == Preface, nil
	case stream.StatusClosed, stream.StatusBrokenPipe:
		// 连接数据不足 24 字节：不可能是 HTTP/2 前导 交给 HTTP/1.1 按空连接处理
		return false, nil
	default:
		return false, newError("peeking connection preface: status %v (%v)", status, perr)
	}
}

// Config 配置一条连接的版本切换行为
type Config struct {
	ServerName     string
	Router         *router.Router[web.Handler]
	MaxHeaderBytes int
	MaxPeekBytes   int
	MaxFrameSize   uint32
	InitialWindow  uint32
	MaxStreams     uint32
	Log            logger.Logger // 连接级日志 零值时退回全局 logger
}

func (c Config) logger() logger.Logger {
	if c.Log != (logger.Logger{}) {
		return c.Log
	}
	return logger.With()
}

// Serve 是连接处理的总入口：先做前导探测 匹配则直接跑 HTTP/2 会话
// 否则跑 HTTP/1.1 并为其装配 h2c 升级钩子
func Serve(conn stream.ByteStream, cfg Config) {
	buffered := stream.NewBuffered(conn, maxPeekBytes(cfg))

	isH2, err := DetectPreface(buffered)
	if err != nil {
		cfg.logger().Debugf("switcher: preface detection failed: %v", err)
		_ = conn.Close()
		return
	}
	if isH2 {
		buffered.CommitReadOffset(len(Preface))
		session := http2.NewSession(buffered, http2.Config{
			ServerName:    cfg.ServerName,
			Router:        cfg.Router,
			MaxFrameSize:  cfg.MaxFrameSize,
			InitialWindow: cfg.InitialWindow,
			MaxStreams:    cfg.MaxStreams,
			Log:           cfg.logger(),
		})
		session.Serve()
		return
	}

	http1.Serve(buffered, http1.Config{
		ServerName:     cfg.ServerName,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
		MaxPeekBytes:   cfg.MaxPeekBytes,
		Router:         cfg.Router,
		OnUpgrade:      upgradeHandler(cfg),
		Log:            cfg.logger(),
	})
}

// upgradeHandler 构造 http1.Config.OnUpgrade 钩子 实现 RFC 7540 §3.2 的
// h2c 升级握手：校验首部、解码种子 SETTINGS、写 101 响应 再移交给 http2.Session
func upgradeHandler(cfg Config) func(stream.ByteStream, *web.Request, *stream.Buffered) bool {
	return func(conn stream.ByteStream, req *web.Request, buffered *stream.Buffered) bool {
		seed, hasSeed, err := decodeSeedSettings(req.Header.Get("HTTP2-Settings"))
		if err != nil {
			cfg.logger().Debugf("switcher: invalid HTTP2-Settings header: %v", err)
			return false
		}

		writer := stream.WriterAdapter{S: conn}
		if _, err := writer.Write([]byte("HTTP/1.1 101 Switching Protocols\r\nConnection: Upgrade\r\nUpgrade: h2c\r\n\r\n")); err != nil {
			return false
		}

		session := http2.NewSession(buffered, http2.Config{
			ServerName:      cfg.ServerName,
			Router:          cfg.Router,
			MaxFrameSize:    cfg.MaxFrameSize,
			InitialWindow:   cfg.InitialWindow,
			MaxStreams:      cfg.MaxStreams,
			Seed:            seed,
			HasSeedSettings: hasSeed,
			Log:             cfg.logger(),
		})
		go session.Serve()
		return true
	}
}

// decodeSeedSettings 解码 h2c 升级请求里 base64url（无填充）编码的 HTTP2-Settings
func decodeSeedSettings(header string) (http2.Settings, bool, error) {
	if header == "" {
		return http2.Settings{}, false, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(header))
	if err != nil {
		return http2.Settings{}, false, newError("decoding HTTP2-Settings: %v", err)
	}
	pairs, err := http2.ParseSettingsPayload(raw)
	if err != nil {
		return http2.Settings{}, false, err
	}
	settings := http2.DefaultSettings()
	if err := settings.Apply(pairs); err != nil {
		return http2.Settings{}, false, err
	}
	return settings, true, nil
}

func maxPeekBytes(cfg Config) int {
	if cfg.MaxPeekBytes > 0 {
		return cfg.MaxPeekBytes
	}
	return 1 << 20
}
