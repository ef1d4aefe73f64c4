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

// Package cmd 组装命令行入口 供 main.go 直接调用 Execute
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oatpp/oatpp-sub002/common"
)

var rootCmd = &cobra.Command{
	Use:   common.App,
	Short: "oatpp-sub002 is an embeddable HTTP/1.1 and HTTP/2 connection-handling server",
}

// Execute 是 main.go 的唯一入口
func Execute() error {
	return rootCmd.Execute()
}
