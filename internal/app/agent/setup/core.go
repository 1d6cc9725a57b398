package setup

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"nodeagent/internal/config"
	"nodeagent/internal/executor/system"
	"nodeagent/internal/pkg/journal"
	"nodeagent/internal/pkg/logger"
	"nodeagent/internal/pkg/metrics"
	"nodeagent/internal/pkg/monitor"
	"nodeagent/internal/pkg/version"
	monitorService "nodeagent/internal/service/monitor"
	"nodeagent/internal/service/task"
)

// AutoAgentID 配置为该值时使用主机名作为标识
const AutoAgentID = "auto"

// ResolveAgentID 解析本机标识，主机名不可用时生成随机标识
func ResolveAgentID(configured string) string {
	id := strings.TrimSpace(configured)
	if id != "" && !strings.EqualFold(id, AutoAgentID) {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	id = uuid.NewString()
	logger.LogSystemEvent("Setup", "AgentID", "hostname unavailable, generated agent id "+id, logger.WarnLevel, nil)
	return id
}

// SetupCore 初始化采集与命令执行模块
// 失败时已创建的资源会被释放
func SetupCore(ctx context.Context, cfg *config.Config) (_ *CoreModule, err error) {
	m := &CoreModule{AgentID: ResolveAgentID(cfg.Session.AgentID)}
	defer func() {
		if err != nil {
			m.Close(context.Background())
		}
	}()

	// 1. 指标
	if m.Metrics, err = metrics.NewMetrics(ctx, cfg.Metrics, version.Version); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	// 2. 采集器与发布器
	if m.Collector, err = monitor.NewCollector(cfg.Monitor); err != nil {
		return nil, fmt.Errorf("init collector: %w", err)
	}
	m.Publisher = monitorService.NewPublisher(m.Collector, m.AgentID, cfg.Monitor.Interval,
		monitorService.WithCollectTimeout(cfg.Monitor.CollectTimeout),
		monitorService.WithPublisherMetrics(m.Metrics))

	// 3. 执行器与白名单
	if m.AllowList, err = system.NewAllowList(cfg.Executor.CustomCommands, cfg.Executor.AllowlistFile); err != nil {
		return nil, fmt.Errorf("load custom command allow-list: %w", err)
	}
	m.Executor = system.NewSystemExecutor(cfg.Executor, m.AllowList, system.ExecRunner{})

	// 4. 命令日志
	if m.Journal, err = journal.New(cfg.Journal); err != nil {
		return nil, fmt.Errorf("init command journal: %w", err)
	}

	// 5. 命令状态机
	m.Machine = task.NewMachine(m.Executor, m.Journal, m.AllowList,
		task.WithTimeout(cfg.Executor.Timeout),
		task.WithMetrics(m.Metrics))

	logger.LogSystemEvent("Setup", "Core", "core module ready", logger.InfoLevel, map[string]interface{}{
		"agent_id":        m.AgentID,
		"custom_commands": m.AllowList.Names(),
		"journal":         journalBackend(cfg.Journal),
	})
	return m, nil
}

func journalBackend(cfg *config.JournalConfig) string {
	if cfg == nil || cfg.Backend == "" {
		return "memory"
	}
	return cfg.Backend
}

// Close 释放采集器、命令日志与指标导出
func (m *CoreModule) Close(ctx context.Context) {
	if m.Collector != nil {
		m.Collector.Close()
	}
	if m.Journal != nil {
		if err := m.Journal.Close(); err != nil {
			logger.Debugf("close journal: %v", err)
		}
	}
	if err := m.Metrics.Shutdown(ctx); err != nil {
		logger.Debugf("shutdown metrics: %v", err)
	}
}
