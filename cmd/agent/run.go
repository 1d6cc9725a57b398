/*
 * @author: Sun977
 * @date: 2026.01.21
 * @description: Run 模式子命令，连接采集端运行
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"nodeagent/internal/app/agent"
	"nodeagent/internal/pkg/logger"
)

var (
	endpoint string
	agentID  string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "连接采集端运行 (默认模式)",
	Long: `连接采集端，推送遥测并执行下发的命令。

首次连接在配置的次数内重试，全部失败后切换为本地监控模式，不再尝试连接。
连接建立后如果断开，进程结束，由外部守护进程负责重启。
命令行参数优先级高于配置文件。

示例:
  nodeagent run --endpoint ws://10.0.0.1:8080/ws --agent-id server1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]interface{}{}
		if endpoint != "" {
			overrides["session.endpoint"] = endpoint
		}
		if agentID != "" {
			overrides["session.agent_id"] = agentID
		}

		cfg, path, err := loadConfig(overrides)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := agent.NewApp(ctx, cfg, path)
		if err != nil {
			return err
		}

		runErr := app.Run(ctx)

		// 给状态接口5秒钟的时间来完成现有请求
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.Stop(shutdownCtx); err != nil {
			logger.Errorf("Agent forced to shutdown: %v", err)
		}
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&endpoint, "endpoint", "", "采集端地址 (e.g. ws://127.0.0.1:8080/ws)")
	runCmd.Flags().StringVar(&agentID, "agent-id", "", "本机标识，auto 表示使用主机名")
}
