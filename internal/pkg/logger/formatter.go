// 结构化日志辅助函数
package logger

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// FormatTimestamp 格式化时间戳为统一的毫秒精度格式
// 返回格式："2006-01-02 15:04:05.000"
func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05.000")
}

// NowFormatted 返回当前时间的格式化字符串
func NowFormatted() string {
	return FormatTimestamp(time.Now())
}

// LogType 日志类型枚举
type LogType string

const (
	// AccessLog 访问日志 - 本地状态接口的HTTP请求
	AccessLog LogType = "access"
	// SystemLog 系统日志 - 会话、采集等组件状态
	SystemLog LogType = "system"
	// CommandLog 命令日志 - 采集端下发命令的生命周期
	CommandLog LogType = "command"
)

// LogLevel 日志级别类型，封装logrus.Level避免业务层直接依赖logrus
type LogLevel int

const (
	// DebugLevel 调试级别
	DebugLevel LogLevel = iota
	// InfoLevel 信息级别
	InfoLevel
	// WarnLevel 警告级别
	WarnLevel
	// ErrorLevel 错误级别
	ErrorLevel
)

// toLogrusLevel 将封装的LogLevel转换为logrus.Level
func toLogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case DebugLevel:
		return logrus.DebugLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// LogSystemEvent 记录系统事件日志
// 用于记录会话连接、断开、模式切换、采集异常等系统级事件
func LogSystemEvent(component, event, message string, level LogLevel, extraFields map[string]interface{}) {
	fields := logrus.Fields{
		"type":      SystemLog,
		"component": component,
		"event":     event,
	}
	for k, v := range extraFields {
		fields[k] = v
	}

	current().WithFields(fields).Log(toLogrusLevel(level), fmt.Sprintf("%s: %s", component, message))
}

// LogCommandEvent 记录命令生命周期日志
// 执行失败只是命令级别的结果，使用warn而不是error
func LogCommandEvent(commandID, kind, status, message string, extraFields map[string]interface{}) {
	fields := logrus.Fields{
		"type":       CommandLog,
		"command_id": commandID,
		"kind":       kind,
		"status":     status,
	}
	for k, v := range extraFields {
		fields[k] = v
	}

	entry := current().WithFields(fields)
	if status == "Failed" {
		entry.Warn(message)
		return
	}
	entry.Info(message)
}

// LogAccessRequest 记录HTTP访问日志
func LogAccessRequest(c *gin.Context, startTime time.Time, requestID string) {
	current().WithFields(logrus.Fields{
		"type":          AccessLog,
		"method":        c.Request.Method,
		"path":          c.Request.URL.Path,
		"query":         c.Request.URL.RawQuery,
		"status_code":   c.Writer.Status(),
		"response_time": time.Since(startTime).Milliseconds(),
		"client_ip":     c.ClientIP(),
		"user_agent":    c.Request.UserAgent(),
		"request_id":    requestID,
		"response_size": c.Writer.Size(),
	}).Info("HTTP request processed")
}
