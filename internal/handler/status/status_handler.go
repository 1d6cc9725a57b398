/**
 * Agent状态处理器
 * @author: sun977
 * @date: 2026.02.19
 * @description: 本地只读状态接口，查看会话状态、最近一次遥测快照和命令日志
 */
package status

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"nodeagent/internal/pkg/journal"
	"nodeagent/internal/pkg/logger"
	"nodeagent/internal/pkg/protocol"
)

const (
	defaultCommandLimit = 50
	maxCommandLimit     = 500
)

// AgentStatus Agent运行状态
type AgentStatus struct {
	AgentID      string `json:"agent_id"`
	Mode         string `json:"mode"`          // remote / local
	SessionState string `json:"session_state"` // Idle / Connecting / Connected / Closed / Failed
	InFlight     int64  `json:"in_flight"`     // 正在执行的命令数
	StartedAt    int64  `json:"started_at"`
	Version      string `json:"version"`
}

// Provider 状态数据来源
type Provider interface {
	Status() AgentStatus
	LatestSnapshot() (protocol.TelemetrySnapshot, bool)
	RecentCommands(ctx context.Context, limit int) ([]journal.Entry, error)
}

// StatusHandler 状态处理器接口
type StatusHandler interface {
	GetStatus(c *gin.Context)   // 运行状态
	GetSnapshot(c *gin.Context) // 最近一次遥测快照
	GetCommands(c *gin.Context) // 最近的命令日志
}

// statusHandler 状态处理器实现
type statusHandler struct {
	provider Provider
}

// NewStatusHandler 创建状态处理器
func NewStatusHandler(provider Provider) StatusHandler {
	return &statusHandler{provider: provider}
}

// GetStatus 获取Agent运行状态
// @Router /api/v1/status [get]
func (h *statusHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"timestamp": time.Now().Unix(),
		"data":      h.provider.Status(),
	})
}

// GetSnapshot 获取最近一次遥测快照，尚未采集时返回404
// @Router /api/v1/snapshot [get]
func (h *statusHandler) GetSnapshot(c *gin.Context) {
	snapshot, ok := h.provider.LatestSnapshot()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": "no telemetry collected yet",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"timestamp": time.Now().Unix(),
		"data":      snapshot,
	})
}

// GetCommands 获取最近的命令日志，新的在前
// @Param limit query int false "返回条数" default(50)
// @Router /api/v1/commands [get]
func (h *statusHandler) GetCommands(c *gin.Context) {
	limit := defaultCommandLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"status":  "error",
				"message": "limit must be a positive integer",
			})
			return
		}
		limit = n
	}
	if limit > maxCommandLimit {
		limit = maxCommandLimit
	}

	entries, err := h.provider.RecentCommands(c.Request.Context(), limit)
	if err != nil {
		logger.LogSystemEvent("StatusHandler", "RecentCommands", err.Error(), logger.ErrorLevel, nil)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "command journal unavailable",
		})
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"timestamp": time.Now().Unix(),
		"data": gin.H{
			"total":    len(entries),
			"commands": entries,
		},
	})
}
