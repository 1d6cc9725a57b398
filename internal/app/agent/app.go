/**
 * Agent应用程序核心逻辑
 * @author: sun977
 * @date: 2025.10.21
 * @description: Agent应用的核心逻辑，负责初始化各种组件和服务
 * @architecture: 先尝试建立采集端会话，首次连接失败时切换到本地模式，遥测只在本地输出
 */

package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"nodeagent/internal/app/agent/setup"
	"nodeagent/internal/config"
	"nodeagent/internal/core/reporter"
	"nodeagent/internal/handler/status"
	"nodeagent/internal/pkg/journal"
	"nodeagent/internal/pkg/logger"
	"nodeagent/internal/pkg/protocol"
	"nodeagent/internal/pkg/version"
	"nodeagent/internal/service/client"
	monitorService "nodeagent/internal/service/monitor"
)

// 运行模式
const (
	ModeRemote = "remote"
	ModeLocal  = "local"
)

// App Agent应用程序结构体
type App struct {
	config     *config.Config
	configPath string
	core       *setup.CoreModule
	client     *setup.ClientModule
	server     *setup.ServerModule
	watcher    *config.ConfigWatcher
	startedAt  time.Time
	mode       atomic.Value

	// fallback 首次连接失败后本地模式使用的报告器
	fallback reporter.Reporter
}

// AppOption 应用可选项
type AppOption func(*App)

// WithFallbackReporter 替换本地模式的报告器，默认清屏输出到标准输出
func WithFallbackReporter(r reporter.Reporter) AppOption {
	return func(a *App) { a.fallback = r }
}

// NewApp 创建新的Agent应用程序实例
// 配置须已通过校验，日志须已初始化
func NewApp(ctx context.Context, cfg *config.Config, configPath string, opts ...AppOption) (*App, error) {
	core, err := setup.SetupCore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	clientModule, err := setup.SetupClient(cfg, core)
	if err != nil {
		core.Close(ctx)
		return nil, fmt.Errorf("init session: %w", err)
	}

	a := newApp(cfg, configPath, core, clientModule, opts...)
	a.server = setup.SetupServer(cfg, a)
	return a, nil
}

func newApp(cfg *config.Config, configPath string, core *setup.CoreModule, clientModule *setup.ClientModule, opts ...AppOption) *App {
	a := &App{
		config:     cfg,
		configPath: configPath,
		core:       core,
		client:     clientModule,
		startedAt:  time.Now(),
	}
	a.mode.Store(ModeRemote)
	for _, opt := range opts {
		opt(a)
	}
	if a.fallback == nil {
		a.fallback = reporter.NewConsoleReporter(os.Stdout, cfg.Monitor.Interval, true)
	}
	return a
}

// Run 运行采集端会话，首次连接失败时进入本地模式直到ctx结束
// 会话建立后断开不会重连，Run 随之返回
func (a *App) Run(ctx context.Context) error {
	a.startServer()
	a.startWatcher()

	logger.LogSystemEvent("App", "Start", fmt.Sprintf("NodeAgent %s starting, agent id %s", version.Version, a.core.AgentID), logger.InfoLevel, map[string]interface{}{
		"endpoint": a.config.Session.Endpoint,
	})

	err := a.client.Session.Run(ctx)
	if errors.Is(err, client.ErrConnectFailed) {
		logger.LogSystemEvent("App", "Fallback", "collector unreachable, switching to local monitoring: "+err.Error(), logger.WarnLevel, nil)
		return a.runLocal(ctx, a.fallback)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// RunLocal 不连接采集端，直接以本地模式运行
func (a *App) RunLocal(ctx context.Context, reporters ...reporter.Reporter) error {
	a.startServer()
	a.startWatcher()
	return a.runLocal(ctx, reporters...)
}

func (a *App) runLocal(ctx context.Context, reporters ...reporter.Reporter) error {
	a.mode.Store(ModeLocal)
	out := reporter.NewMultiReporter(reporters...)

	logger.LogSystemEvent("App", "LocalMode", "local monitoring started", logger.InfoLevel, map[string]interface{}{
		"interval": a.config.Monitor.Interval.String(),
	})
	return a.core.Publisher.Run(ctx, reporterSink(out))
}

// reporterSink 本地模式的快照出口
func reporterSink(r reporter.Reporter) monitorService.Sink {
	return monitorService.SinkFunc(func(ctx context.Context, snap protocol.TelemetrySnapshot) bool {
		if err := r.Report(ctx, snap); err != nil {
			logger.LogSystemEvent("App", "LocalReport", err.Error(), logger.WarnLevel, nil)
			return false
		}
		return true
	})
}

// Snapshot 采集一次快照
func (a *App) Snapshot(ctx context.Context) protocol.TelemetrySnapshot {
	return a.core.Publisher.Collect(ctx)
}

func (a *App) startServer() {
	if a.server == nil {
		return
	}
	go func() {
		if err := a.server.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.LogSystemEvent("App", "StatusServer", "status server stopped: "+err.Error(), logger.ErrorLevel, nil)
		}
	}()
	logger.Infof("status API listening on %s", a.server.HTTPServer.Addr)
}

// startWatcher 配置文件变化时只更新日志配置
func (a *App) startWatcher() {
	if a.configPath == "" || a.watcher != nil {
		return
	}
	w, err := config.NewConfigWatcher(a.configPath, a.config)
	if err != nil {
		logger.Debugf("config watcher disabled: %v", err)
		return
	}
	w.AddCallback(func(_, newCfg *config.Config) error {
		if logger.LoggerInstance == nil || newCfg.Log == nil {
			return nil
		}
		return logger.LoggerInstance.UpdateConfig(newCfg.Log)
	})
	if err := w.Start(); err != nil {
		logger.Debugf("config watcher disabled: %v", err)
		return
	}
	a.watcher = w
}

// Stop 停止状态接口并释放资源
// 正在执行的命令不会被中断
func (a *App) Stop(ctx context.Context) error {
	if n := a.core.Machine.InFlight(); n > 0 {
		logger.LogSystemEvent("App", "Stop", fmt.Sprintf("%d commands still running", n), logger.WarnLevel, nil)
	}
	if a.watcher != nil {
		a.watcher.Stop()
	}

	var err error
	if a.server != nil {
		if serr := a.server.HTTPServer.Shutdown(ctx); serr != nil {
			err = fmt.Errorf("failed to stop status server: %w", serr)
		}
	}
	a.core.Close(ctx)
	logger.Info("NodeAgent stopped")
	return err
}

// Status 实现 status.Provider
func (a *App) Status() status.AgentStatus {
	return status.AgentStatus{
		AgentID:      a.core.AgentID,
		Mode:         a.mode.Load().(string),
		SessionState: a.client.Session.State().String(),
		InFlight:     a.core.Machine.InFlight(),
		StartedAt:    a.startedAt.Unix(),
		Version:      version.Version,
	}
}

// LatestSnapshot 实现 status.Provider
func (a *App) LatestSnapshot() (protocol.TelemetrySnapshot, bool) {
	return a.core.Publisher.Latest()
}

// RecentCommands 实现 status.Provider
func (a *App) RecentCommands(ctx context.Context, limit int) ([]journal.Entry, error) {
	return a.core.Machine.Journal().Recent(ctx, limit)
}
