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

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/oatpp/oatpp-sub002/confengine"
	"github.com/oatpp/oatpp-sub002/dto"
	"github.com/oatpp/oatpp-sub002/internal/sigs"
	"github.com/oatpp/oatpp-sub002/logger"
	"github.com/oatpp/oatpp-sub002/router"
	"github.com/oatpp/oatpp-sub002/server"
	"github.com/oatpp/oatpp-sub002/web"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run the connection-handling server",
	Example: "# oatpp-sub002 serve --config oatpp-sub002.yaml",
	Run: func(cmd *cobra.Command, args []string) {
		conf, err := confengine.LoadConfigPath(serveConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}

		if err := setupLogger(conf); err != nil {
			fmt.Fprintf(os.Stderr, "failed to setup logger: %v\n", err)
			os.Exit(1)
		}

		svr, err := server.New(conf, defaultRoutes())
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create server: %v\n", err)
			os.Exit(1)
		}

		go func() {
			if err := svr.Start(); err != nil {
				logger.Errorf("server stopped: %v", err)
			}
		}()
		logger.Infof("serving on %s", svr.Addr())

		var reloadTotal int
		for {
			select {
			case <-sigs.Terminate():
				svr.Stop()
				return

			case <-sigs.Reload():
				reloadTotal++

				conf, err := confengine.LoadConfigPath(serveConfigPath)
				if err != nil {
					fmt.Fprintf(os.Stderr, "failed to load config (count=%d): %v\n", reloadTotal, err)
					continue
				}

				start := time.Now()
				if err := setupLogger(conf); err != nil {
					logger.Errorf("failed to reload logger options: %v", err)
				}
				logger.Infof("reload (count=%d) took %s", reloadTotal, time.Since(start))
			}
		}
	},
}

func setupLogger(conf *confengine.Config) error {
	var opts logger.Options
	if err := conf.UnpackChild("logger", &opts); err != nil {
		return err
	}
	logger.SetOptions(opts)
	return nil
}

// defaultRoutes 注册一组开箱即用的端点 嵌入方通常会在自己的启动代码里换成
// 真正的业务路由表 —— 这里用 RegisterAll 是为了在路由数量增长后 一次性
// 报告所有登记失败的 pattern 而不是注册到一半就中断
func defaultRoutes() *router.Router[web.Handler] {
	rt := router.New[web.Handler]()
	err := rt.RegisterAll([]router.Entry[web.Handler]{
		{Method: "GET", Pattern: "/healthz", Handler: func(req *web.Request) (*web.Response, error) {
			return web.OK(dto.NewJSON(map[string]string{"status": "ok"})), nil
		}},
	})
	if err != nil {
		logger.Errorf("failed to register default routes: %v", err)
	}
	return rt
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "oatpp-sub002.yaml", "Configuration file path")
	rootCmd.AddCommand(serveCmd)
}
