/*
 * @author: Sun977
 * @date: 2026.01.21
 * @description: Cobra Root Command 定义
 */

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nodeagent/internal/config"
	"nodeagent/internal/pkg/logger"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nodeagent",
	Short: "NodeAgent 节点主机监控与命令代理",
	Long: `NodeAgent 运行在节点主机上，定期采集主机与节点容器指标并推送到采集端，
同时接收采集端下发的节点管理命令并回报执行结果。
采集端不可达时自动切换为本地监控模式。

示例:
  1.连接采集端运行(默认)
	nodeagent run --endpoint ws://collector:8080/ws --agent-id server1
  2.仅本地监控
	nodeagent local --csv ./metrics.csv
  3.采集一次快照
	nodeagent snapshot
`,
	SilenceUsage: true,
}

func Execute() {
	// 全局 Panic Recovery
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n[FATAL] Agent crashed unexpectedly: %v\n", r)
			os.Exit(1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// 全局 Flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径 (默认: ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (debug, info, warn, error)")
}

// loadConfig 读取配置文件和环境变量，命令行参数覆盖两者，随后初始化日志
// overrides 的key为viper配置路径
func loadConfig(overrides map[string]interface{}) (*config.Config, string, error) {
	// .env 中的变量不覆盖进程环境
	if err := config.NewEnvLoader().Load(); err != nil {
		return nil, "", err
	}

	loader := config.NewConfigLoader(cfgFile, config.DefaultEnvPrefix)
	for key, value := range overrides {
		loader.Override(key, value)
	}
	if logLevel != "" {
		loader.Override("log.level", logLevel)
	}

	cfg, err := loader.LoadConfig()
	if err != nil {
		return nil, "", err
	}

	if _, err := logger.InitLogger(cfg.Log); err != nil {
		return nil, "", fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, loader.GetConfigPath(), nil
}
