package client

import (
	"context"
	"time"

	"nodeagent/internal/config"
)

// Transport 一条已建立的双工文本帧连接
// 会话保证只有一个读者和一个写者，Close 可与读写并发调用
type Transport interface {
	ReadFrame() ([]byte, error)
	WriteFrame(frame []byte) error
	Ping() error
	Close() error
}

// Dialer 建立连接
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// DialFunc 函数适配为 Dialer
type DialFunc func(ctx context.Context) (Transport, error)

// Dial 调用函数本身
func (f DialFunc) Dial(ctx context.Context) (Transport, error) {
	return f(ctx)
}

// Config 会话配置，创建会话后只读
type Config struct {
	ConnectAttempts    int           // 首次连接最大尝试次数
	RetryInterval      time.Duration // 尝试间隔
	PingInterval       time.Duration // 保活ping间隔，0表示关闭
	TelemetryQueueSize int           // 遥测队列容量
	ResponseQueueSize  int           // 响应队列容量
}

// ConfigFromSession 由进程配置生成会话配置
func ConfigFromSession(cfg *config.SessionConfig) Config {
	return Config{
		ConnectAttempts:    cfg.ConnectAttempts,
		RetryInterval:      cfg.ReconnectInterval,
		PingInterval:       cfg.PingInterval,
		TelemetryQueueSize: cfg.TelemetryQueueSize,
		ResponseQueueSize:  cfg.ResponseQueueSize,
	}
}

func (c Config) withDefaults() Config {
	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = 1
	}
	if c.TelemetryQueueSize <= 0 {
		c.TelemetryQueueSize = 1
	}
	if c.ResponseQueueSize <= 0 {
		c.ResponseQueueSize = 1
	}
	return c
}
