/**
 * 日志中间件
 * @author: sun977
 * @date: 2025.10.21
 * @description: 本地状态接口的访问日志，为每个请求分配请求ID并记录慢请求
 */
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"nodeagent/internal/pkg/logger"
)

// RequestIDHeader 请求ID头
const RequestIDHeader = "X-Request-ID"

// LoggingConfig 日志配置
type LoggingConfig struct {
	// 跳过日志的路径
	SkipPaths []string

	// 慢请求阈值，0表示不检查
	SlowRequestThreshold time.Duration
}

// LoggingMiddleware 日志中间件
type LoggingMiddleware struct {
	config *LoggingConfig
	skip   map[string]struct{}
}

// NewLoggingMiddleware 创建日志中间件
func NewLoggingMiddleware(config *LoggingConfig) *LoggingMiddleware {
	if config == nil {
		config = &LoggingConfig{
			SkipPaths:            []string{"/health", "/ping"},
			SlowRequestThreshold: 2 * time.Second,
		}
	}

	skip := make(map[string]struct{}, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = struct{}{}
	}
	return &LoggingMiddleware{config: config, skip: skip}
}

// Handler 日志处理器
func (m *LoggingMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		// 沿用调用方的请求ID
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		if _, ok := m.skip[c.Request.URL.Path]; ok {
			return
		}
		logger.LogAccessRequest(c, startTime, requestID)

		if m.config.SlowRequestThreshold > 0 {
			if d := time.Since(startTime); d > m.config.SlowRequestThreshold {
				logger.WithField("request_id", requestID).Warnf("slow request %s %s took %s", c.Request.Method, c.Request.URL.Path, d)
			}
		}
	}
}
