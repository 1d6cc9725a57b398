package setup

import (
	"net/http"

	"nodeagent/internal/app/agent/router"
	"nodeagent/internal/executor/system"
	"nodeagent/internal/pkg/journal"
	"nodeagent/internal/pkg/metrics"
	"nodeagent/internal/pkg/monitor"
	"nodeagent/internal/service/client"
	monitorService "nodeagent/internal/service/monitor"
	"nodeagent/internal/service/task"
)

// CoreModule 采集与命令执行模块
type CoreModule struct {
	AgentID   string
	Metrics   *metrics.Metrics
	Collector *monitor.Collector
	Publisher *monitorService.Publisher
	AllowList *system.AllowList
	Executor  *system.SystemExecutor
	Journal   journal.Journal
	Machine   *task.Machine
}

// ClientModule 采集端会话模块
type ClientModule struct {
	Session *client.Session
}

// ServerModule 本地状态接口模块
type ServerModule struct {
	Router     *router.Router
	HTTPServer *http.Server
}
