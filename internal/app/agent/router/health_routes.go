/**
 * 路由:健康检查路由
 * @author: sun977
 * @date: 2025.10.21
 * @description: Agent端健康检查路由，包含健康检查、存活检查等不需要认证的路由
 */
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nodeagent/internal/pkg/logger"
	"nodeagent/internal/pkg/version"
)

// registerHealthRoutes 注册健康检查路由
func (r *Router) registerHealthRoutes() {
	r.engine.GET("/health", r.handleHealth)
	r.engine.GET("/ping", r.handlePing)
	r.engine.GET("/version", r.handleVersion)
}

// handleHealth 健康检查处理器
func (r *Router) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": logger.NowFormatted(),
		"service":   "nodeAgent",
		"version":   version.Version,
	})
}

// handlePing Ping处理器
func (r *Router) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "pong",
		"timestamp": logger.NowFormatted(),
	})
}

// handleVersion 版本与协议信息处理器
func (r *Router) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":   "nodeAgent",
		"data":      version.Get(),
		"timestamp": logger.NowFormatted(),
	})
}
