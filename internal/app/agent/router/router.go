/**
 * Agent端路由注册
 * @author: sun977
 * @date: 2025.10.21
 * @description: 本地状态接口路由，统一管理中间件与处理器
 */
package router

import (
	"github.com/gin-gonic/gin"

	"nodeagent/internal/app/agent/middleware"
	"nodeagent/internal/handler/status"
)

// RouterConfig 路由配置
type RouterConfig struct {
	// gin运行模式 debug/release/test
	Mode string

	// API版本
	APIVersion string

	// 路由前缀
	Prefix string

	// 日志中间件配置
	Logging *middleware.LoggingConfig
}

// Router Agent路由器
type Router struct {
	engine *gin.Engine
	config *RouterConfig

	loggingMiddleware *middleware.LoggingMiddleware
	statusHandler     status.StatusHandler
}

// NewRouter 创建新的路由器
func NewRouter(config *RouterConfig, provider status.Provider) *Router {
	if config == nil {
		config = &RouterConfig{}
	}
	if config.APIVersion == "" {
		config.APIVersion = "v1"
	}
	if config.Prefix == "" {
		config.Prefix = "/api"
	}

	// 设置Gin模式
	switch config.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(config.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:            gin.New(),
		config:            config,
		loggingMiddleware: middleware.NewLoggingMiddleware(config.Logging),
		statusHandler:     status.NewStatusHandler(provider),
	}
	r.registerRoutes()
	return r
}

// registerRoutes 注册路由
func (r *Router) registerRoutes() {
	r.engine.Use(gin.Recovery())
	r.engine.Use(r.loggingMiddleware.Handler())

	r.registerHealthRoutes()

	apiGroup := r.engine.Group(r.config.Prefix + "/" + r.config.APIVersion)
	r.registerStatusRoutes(apiGroup)
}

// GetEngine 获取Gin引擎
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
