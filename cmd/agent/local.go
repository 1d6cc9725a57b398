/*
 * @author: Sun977
 * @date: 2026.01.21
 * @description: Local 模式子命令 (Standalone Mode)
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
	"nodeagent/internal/core/reporter"
	"nodeagent/internal/pkg/logger"
)

var (
	csvPath  string
	noClear  bool
	interval time.Duration
)

// localCmd represents the local command
var localCmd = &cobra.Command{
	Use:   "local",
	Short: "仅本地监控，不连接采集端",
	Long: `在不连接采集端的情况下按间隔采集并在终端展示主机与节点指标。
可以同时把节点指标追加写入CSV文件。

示例:
  nodeagent local
  nodeagent local --interval 10s --csv ./metrics.csv
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]interface{}{}
		if interval > 0 {
			overrides["monitor.interval"] = interval
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

		reporters := []reporter.Reporter{reporter.NewConsoleReporter(os.Stdout, cfg.Monitor.Interval, !noClear)}
		if csvPath != "" {
			csv, err := reporter.NewCsvReporter(csvPath)
			if err != nil {
				return err
			}
			defer csv.Close()
			reporters = append(reporters, csv)
		}

		runErr := app.RunLocal(ctx, reporters...)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.Stop(shutdownCtx); err != nil {
			logger.Errorf("Agent forced to shutdown: %v", err)
		}
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(localCmd)

	localCmd.Flags().StringVar(&csvPath, "csv", "", "节点指标CSV输出文件")
	localCmd.Flags().BoolVar(&noClear, "no-clear", false, "每次刷新不清屏")
	localCmd.Flags().DurationVar(&interval, "interval", 0, "采集间隔，覆盖配置文件")
}
