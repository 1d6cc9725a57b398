// 日志管理器
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"nodeagent/internal/config"
)

// LoggerManager 日志管理器
type LoggerManager struct {
	mu     sync.Mutex
	logger *logrus.Logger
	config *config.LogConfig
	closer io.Closer
}

// LoggerInstance 全局日志实例
var LoggerInstance *LoggerManager

// InitLogger 初始化日志管理器并设置为全局实例
func InitLogger(cfg *config.LogConfig) (*LoggerManager, error) {
	lm, err := NewLoggerManager(cfg)
	if err != nil {
		return nil, err
	}
	LoggerInstance = lm
	return lm, nil
}

// NewLoggerManager 根据配置创建logrus实例，不修改全局实例
func NewLoggerManager(cfg *config.LogConfig) (*LoggerManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("log config cannot be nil")
	}

	logger := logrus.New()

	// 解析失败时使用info级别
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
		logger.Warnf("Invalid log level '%s', using 'info' as default", cfg.Level)
	}
	logger.SetLevel(level)

	if err := setLogFormatter(logger, cfg); err != nil {
		return nil, fmt.Errorf("failed to set log formatter: %w", err)
	}

	closer, err := setLogOutput(logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set log output: %w", err)
	}

	logger.SetReportCaller(cfg.Caller)

	return &LoggerManager{
		logger: logger,
		config: cfg,
		closer: closer,
	}, nil
}

// setLogFormatter 设置日志格式化器
func setLogFormatter(logger *logrus.Logger, cfg *config.LogConfig) error {
	// 精确到毫秒，不显示时区
	timestampFormat := "2006-01-02 15:04:05.000"

	switch strings.ToLower(cfg.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
				logrus.FieldKeyFunc:  "function",
				logrus.FieldKeyFile:  "file",
			},
		})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: timestampFormat,
			FullTimestamp:   true,
		})
	default:
		return fmt.Errorf("unsupported log format: %s", cfg.Format)
	}
	return nil
}

// setLogOutput 设置日志输出目标，文件输出时返回需要关闭的lumberjack实例
func setLogOutput(logger *logrus.Logger, cfg *config.LogConfig) (io.Closer, error) {
	switch strings.ToLower(cfg.Output) {
	case "stdout", "":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	case "file":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("file path is required when output is file")
		}

		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,    // MB
			MaxBackups: cfg.MaxBackups, // 保留的备份文件数
			MaxAge:     cfg.MaxAge,     // 保留天数
			Compress:   cfg.Compress,   // 是否压缩
		}

		// debug级别同时输出到控制台
		if strings.EqualFold(cfg.Level, "debug") {
			logger.SetOutput(io.MultiWriter(os.Stdout, rotator))
		} else {
			logger.SetOutput(rotator)
		}
		return rotator, nil
	default:
		return nil, fmt.Errorf("unsupported log output: %s", cfg.Output)
	}
	return nil, nil
}

// GetLogger 获取logrus实例
func (lm *LoggerManager) GetLogger() *logrus.Logger {
	return lm.logger
}

// GetConfig 获取日志配置
func (lm *LoggerManager) GetConfig() *config.LogConfig {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.config
}

// UpdateConfig 运行时更新日志配置，由配置监听器触发
func (lm *LoggerManager) UpdateConfig(newCfg *config.LogConfig) error {
	if newCfg == nil {
		return fmt.Errorf("new config cannot be nil")
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	if newCfg.Level != lm.config.Level {
		level, err := logrus.ParseLevel(newCfg.Level)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		lm.logger.SetLevel(level)
		lm.logger.Infof("Log level updated from %s to %s", lm.config.Level, newCfg.Level)
	}

	if newCfg.Format != lm.config.Format {
		if err := setLogFormatter(lm.logger, newCfg); err != nil {
			return fmt.Errorf("failed to update log formatter: %w", err)
		}
		lm.logger.Infof("Log format updated from %s to %s", lm.config.Format, newCfg.Format)
	}

	if newCfg.Output != lm.config.Output || newCfg.FilePath != lm.config.FilePath {
		closer, err := setLogOutput(lm.logger, newCfg)
		if err != nil {
			return fmt.Errorf("failed to update log output: %w", err)
		}
		if lm.closer != nil {
			lm.closer.Close()
		}
		lm.closer = closer
		lm.logger.Infof("Log output updated from %s to %s", lm.config.Output, newCfg.Output)
	}

	if newCfg.Caller != lm.config.Caller {
		lm.logger.SetReportCaller(newCfg.Caller)
	}

	lm.config = newCfg
	return nil
}

// Close 关闭文件输出
func (lm *LoggerManager) Close() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lm.closer == nil {
		return nil
	}
	err := lm.closer.Close()
	lm.closer = nil
	return err
}

// 便捷方法：通过全局实例记录日志，未初始化时回落到logrus标准实例

func current() *logrus.Logger {
	if LoggerInstance != nil {
		return LoggerInstance.logger
	}
	return logrus.StandardLogger()
}

// Debug 记录调试日志
func Debug(args ...interface{}) { current().Debug(args...) }

// Debugf 记录格式化调试日志
func Debugf(format string, args ...interface{}) { current().Debugf(format, args...) }

// Info 记录信息日志
func Info(args ...interface{}) { current().Info(args...) }

// Infof 记录格式化信息日志
func Infof(format string, args ...interface{}) { current().Infof(format, args...) }

// Warn 记录警告日志
func Warn(args ...interface{}) { current().Warn(args...) }

// Warnf 记录格式化警告日志
func Warnf(format string, args ...interface{}) { current().Warnf(format, args...) }

// Error 记录错误日志
func Error(args ...interface{}) { current().Error(args...) }

// Errorf 记录格式化错误日志
func Errorf(format string, args ...interface{}) { current().Errorf(format, args...) }

// Fatalf 记录格式化致命错误日志并退出程序
func Fatalf(format string, args ...interface{}) { current().Fatalf(format, args...) }

// WithField 添加单个字段
func WithField(key string, value interface{}) *logrus.Entry {
	return current().WithField(key, value)
}

// WithFields 添加多个字段
func WithFields(fields logrus.Fields) *logrus.Entry {
	return current().WithFields(fields)
}
