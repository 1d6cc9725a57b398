/**
 * Agent端配置管理
 * @author: sun977
 * @date: 2025.10.21
 * @description: Agent端配置结构定义、默认值与校验，配置在进程启动时加载一次，会话期间只读
 */
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config Agent配置
type Config struct {
	// 应用配置
	App *AppConfig `yaml:"app" mapstructure:"app"`

	// 日志配置
	Log *LogConfig `yaml:"log" mapstructure:"log"`

	// 采集端会话配置
	Session *SessionConfig `yaml:"session" mapstructure:"session"`

	// 监控采集配置
	Monitor *MonitorConfig `yaml:"monitor" mapstructure:"monitor"`

	// 执行器配置
	Executor *ExecutorConfig `yaml:"executor" mapstructure:"executor"`

	// 命令日志配置
	Journal *JournalConfig `yaml:"journal" mapstructure:"journal"`

	// 本地状态接口配置
	Server *ServerConfig `yaml:"server" mapstructure:"server"`

	// 指标导出配置
	Metrics *MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`               // 应用名称
	Environment string `yaml:"environment" mapstructure:"environment"` // 运行环境
	Debug       bool   `yaml:"debug" mapstructure:"debug"`             // 调试模式
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`             // 日志级别 (debug/info/warn/error)
	Format     string `yaml:"format" mapstructure:"format"`           // 日志格式 (json/text)
	Output     string `yaml:"output" mapstructure:"output"`           // 日志输出 (stdout/stderr/file)
	FilePath   string `yaml:"file_path" mapstructure:"file_path"`     // 日志文件路径
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`       // 最大文件大小（MB）
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"` // 最大备份数
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`         // 最大保留天数
	Compress   bool   `yaml:"compress" mapstructure:"compress"`       // 是否压缩
	Caller     bool   `yaml:"caller" mapstructure:"caller"`           // 是否显示调用者信息
}

// SessionConfig 采集端会话配置
type SessionConfig struct {
	Endpoint           string        `yaml:"endpoint" mapstructure:"endpoint"`                       // 采集端地址 ws:// 或 wss://
	AgentID            string        `yaml:"agent_id" mapstructure:"agent_id"`                       // 本机标识，对应报文中的 server_id
	ConnectTimeout     time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`         // 单次握手超时
	ConnectAttempts    int           `yaml:"connect_attempts" mapstructure:"connect_attempts"`       // 首次连接最大尝试次数
	ReconnectInterval  time.Duration `yaml:"reconnect_interval" mapstructure:"reconnect_interval"`   // 首次连接重试间隔
	PingInterval       time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`             // 保活ping间隔，0表示关闭
	PongTimeout        time.Duration `yaml:"pong_timeout" mapstructure:"pong_timeout"`               // 等待pong的超时
	WriteTimeout       time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`             // 单帧写超时
	TelemetryQueueSize int           `yaml:"telemetry_queue_size" mapstructure:"telemetry_queue_size"` // 遥测发送队列容量
	ResponseQueueSize  int           `yaml:"response_queue_size" mapstructure:"response_queue_size"`   // 命令响应发送队列容量
	SkipTLSVerify      bool          `yaml:"skip_tls_verify" mapstructure:"skip_tls_verify"`         // 跳过TLS证书校验
	Proxy              string        `yaml:"proxy" mapstructure:"proxy"`                             // socks5代理地址，可选
}

// MonitorConfig 监控采集配置
type MonitorConfig struct {
	Interval       time.Duration `yaml:"interval" mapstructure:"interval"`               // 遥测上报间隔
	UnitFilter     []string      `yaml:"unit_filter" mapstructure:"unit_filter"`         // 被管理容器名过滤，空表示全部
	DockerHost     string        `yaml:"docker_host" mapstructure:"docker_host"`         // Docker Engine API地址 unix:// 或 tcp://
	DiskPath       string        `yaml:"disk_path" mapstructure:"disk_path"`             // 磁盘统计挂载点
	CollectTimeout time.Duration `yaml:"collect_timeout" mapstructure:"collect_timeout"` // 单次采集超时
}

// ExecutorConfig 执行器配置
type ExecutorConfig struct {
	ContainerCLI     string              `yaml:"container_cli" mapstructure:"container_cli"`           // 容器命令行工具
	Shell            string              `yaml:"shell" mapstructure:"shell"`                           // 执行脚本使用的shell
	WorkDir          string              `yaml:"work_dir" mapstructure:"work_dir"`                     // 脚本工作目录
	StartAllScript   string              `yaml:"start_all_script" mapstructure:"start_all_script"`     // 启动全部节点脚本
	StopAllScript    string              `yaml:"stop_all_script" mapstructure:"stop_all_script"`       // 停止全部节点脚本
	RestartAllScript string              `yaml:"restart_all_script" mapstructure:"restart_all_script"` // 重启全部节点脚本
	PayoutScript     string              `yaml:"payout_script" mapstructure:"payout_script"`           // 单节点payout脚本，节点名追加在末尾
	PayoutAllScript  string              `yaml:"payout_all_script" mapstructure:"payout_all_script"`   // 全部节点payout脚本
	RebootCommand    []string            `yaml:"reboot_command" mapstructure:"reboot_command"`         // 主机重启命令
	Timeout          time.Duration       `yaml:"timeout" mapstructure:"timeout"`                       // 单条命令执行时限，0表示不限制
	CustomCommands   map[string][]string `yaml:"custom_commands" mapstructure:"custom_commands"`       // 自定义命令白名单 name -> argv
	AllowlistFile    string              `yaml:"allowlist_file" mapstructure:"allowlist_file"`         // 额外的白名单文件
}

// JournalConfig 命令日志配置
type JournalConfig struct {
	Backend  string       `yaml:"backend" mapstructure:"backend"`   // memory / redis
	Capacity int          `yaml:"capacity" mapstructure:"capacity"` // 内存模式保留的条目数
	Redis    *RedisConfig `yaml:"redis" mapstructure:"redis"`       // redis连接配置
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr      string        `yaml:"addr" mapstructure:"addr"`             // 地址 host:port
	Password  string        `yaml:"password" mapstructure:"password"`     // 密码
	DB        int           `yaml:"db" mapstructure:"db"`                 // 库编号
	KeyPrefix string        `yaml:"key_prefix" mapstructure:"key_prefix"` // key前缀
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`               // 条目过期时间
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`       // 操作超时
}

// ServerConfig 本地状态接口配置
type ServerConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`             // 是否启用
	Host         string        `yaml:"host" mapstructure:"host"`                   // 监听地址
	Port         int           `yaml:"port" mapstructure:"port"`                   // 监听端口
	Mode         string        `yaml:"mode" mapstructure:"mode"`                   // gin运行模式 (debug/release/test)
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`   // 读取超时时间
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"` // 写入超时时间
}

// MetricsConfig 指标导出配置
type MetricsConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`   // 是否启用
	Exporter string        `yaml:"exporter" mapstructure:"exporter"` // none / stdout / otlp-http / otlp-grpc
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint"` // OTLP地址
	Insecure bool          `yaml:"insecure" mapstructure:"insecure"` // OTLP不使用TLS
	Interval time.Duration `yaml:"interval" mapstructure:"interval"` // 导出间隔
}

// ConfigurationError 启动配置不可用
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// Validate 校验配置，返回第一个发现的问题
func (c *Config) Validate() error {
	if c.Session == nil || c.Monitor == nil || c.Executor == nil || c.Log == nil {
		return &ConfigurationError{Field: "config", Reason: "missing required section"}
	}

	u, err := url.Parse(c.Session.Endpoint)
	if err != nil {
		return &ConfigurationError{Field: "session.endpoint", Reason: err.Error()}
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return &ConfigurationError{Field: "session.endpoint", Reason: fmt.Sprintf("unsupported scheme %q, want ws or wss", u.Scheme)}
	}
	if u.Host == "" {
		return &ConfigurationError{Field: "session.endpoint", Reason: "host is empty"}
	}
	if strings.TrimSpace(c.Session.AgentID) == "" {
		return &ConfigurationError{Field: "session.agent_id", Reason: "must not be empty"}
	}
	if c.Session.ConnectAttempts <= 0 {
		return &ConfigurationError{Field: "session.connect_attempts", Reason: "must be positive"}
	}
	if c.Session.TelemetryQueueSize <= 0 || c.Session.ResponseQueueSize <= 0 {
		return &ConfigurationError{Field: "session.queue_size", Reason: "must be positive"}
	}
	if c.Session.Proxy != "" {
		p, err := url.Parse(c.Session.Proxy)
		if err != nil || p.Scheme != "socks5" {
			return &ConfigurationError{Field: "session.proxy", Reason: "only socks5:// proxies are supported"}
		}
	}
	if c.Monitor.Interval <= 0 {
		return &ConfigurationError{Field: "monitor.interval", Reason: "must be positive"}
	}
	if c.Executor.Timeout < 0 {
		return &ConfigurationError{Field: "executor.timeout", Reason: "must not be negative"}
	}
	for name, argv := range c.Executor.CustomCommands {
		if len(argv) == 0 {
			return &ConfigurationError{Field: "executor.custom_commands." + name, Reason: "empty argv"}
		}
	}
	if c.Journal != nil && c.Journal.Backend == "redis" && (c.Journal.Redis == nil || c.Journal.Redis.Addr == "") {
		return &ConfigurationError{Field: "journal.redis.addr", Reason: "required for redis backend"}
	}
	if c.Server != nil && c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return &ConfigurationError{Field: "server.port", Reason: fmt.Sprintf("invalid port %d", c.Server.Port)}
	}
	switch c.metricsExporter() {
	case "none", "stdout", "otlp-http", "otlp-grpc":
	default:
		return &ConfigurationError{Field: "metrics.exporter", Reason: fmt.Sprintf("unknown exporter %q", c.Metrics.Exporter)}
	}
	return nil
}

func (c *Config) metricsExporter() string {
	if c.Metrics == nil || c.Metrics.Exporter == "" {
		return "none"
	}
	return c.Metrics.Exporter
}
