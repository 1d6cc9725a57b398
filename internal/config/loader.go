package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultEnvPrefix 环境变量前缀
const DefaultEnvPrefix = "NODEAGENT"

// ConfigLoader 配置加载器
type ConfigLoader struct {
	configPath string
	envPrefix  string
	viper      *viper.Viper
	overrides  map[string]interface{}
}

// NewConfigLoader 创建配置加载器
// configPath 可以是目录，也可以是具体的yaml文件
func NewConfigLoader(configPath, envPrefix string) *ConfigLoader {
	if envPrefix == "" {
		envPrefix = DefaultEnvPrefix
	}

	return &ConfigLoader{
		configPath: configPath,
		envPrefix:  envPrefix,
		viper:      viper.New(),
	}
}

// Override 命令行参数覆盖，优先级高于环境变量和配置文件
func (cl *ConfigLoader) Override(key string, value interface{}) {
	if cl.overrides == nil {
		cl.overrides = make(map[string]interface{})
	}
	cl.overrides[key] = value
}

// LoadConfig 加载配置
func (cl *ConfigLoader) LoadConfig() (*Config, error) {
	// 设置配置文件类型
	cl.viper.SetConfigType("yaml")

	// 设置环境变量前缀
	cl.viper.SetEnvPrefix(cl.envPrefix)
	cl.viper.AutomaticEnv()
	cl.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值
	cl.setDefaults()

	// 绑定环境变量
	cl.bindEnvVars()

	// 加载配置文件
	if err := cl.loadConfigFile(); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	for key, value := range cl.overrides {
		cl.viper.Set(key, value)
	}

	// 解析配置
	var config Config
	if err := cl.viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 验证配置
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// loadConfigFile 加载配置文件
// 未显式指定文件时，找不到配置文件不算错误，只使用默认值和环境变量
func (cl *ConfigLoader) loadConfigFile() error {
	if cl.configPath == "" {
		// 尝试从环境变量获取配置文件路径
		if envPath := os.Getenv(cl.envPrefix + "_CONFIG_PATH"); envPath != "" {
			cl.configPath = envPath
		}
	}

	ext := strings.ToLower(filepath.Ext(cl.configPath))
	if ext == ".yaml" || ext == ".yml" {
		cl.viper.SetConfigFile(cl.configPath)
		return cl.viper.ReadInConfig()
	}

	// 设置配置文件搜索路径
	if cl.configPath != "" {
		cl.viper.AddConfigPath(cl.configPath)
	}
	cl.viper.AddConfigPath("./configs")
	cl.viper.AddConfigPath(".")

	// 尝试加载环境特定的配置文件
	cl.viper.SetConfigName(fmt.Sprintf("config.%s", cl.getEnvironment()))
	err := cl.viper.ReadInConfig()
	if err == nil {
		return nil
	}

	// 如果环境特定配置文件不存在，尝试加载默认配置文件
	cl.viper.SetConfigName("config")
	err = cl.viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}

// getEnvironment 获取运行环境
func (cl *ConfigLoader) getEnvironment() string {
	env := os.Getenv(cl.envPrefix + "_ENV")
	if env == "" {
		env = os.Getenv("GO_ENV")
	}
	if env == "" {
		env = "production"
	}
	return env
}

// bindEnvVars 绑定环境变量
// 除前缀变量外，兼容旧版监控程序使用的 WS_SERVER_URL/SERVER_ID/NODE_NAMES/MONITOR_INTERVAL/CREDITCOIN_DIR
func (cl *ConfigLoader) bindEnvVars() {
	p := cl.envPrefix
	cl.viper.BindEnv("session.endpoint", p+"_SESSION_ENDPOINT", "WS_SERVER_URL")
	cl.viper.BindEnv("session.agent_id", p+"_SESSION_AGENT_ID", "SERVER_ID")
	cl.viper.BindEnv("monitor.unit_filter", p+"_MONITOR_UNIT_FILTER", "NODE_NAMES")
	cl.viper.BindEnv("executor.work_dir", p+"_EXECUTOR_WORK_DIR", "CREDITCOIN_DIR")
	cl.viper.BindEnv("monitor.docker_host", p+"_MONITOR_DOCKER_HOST", "DOCKER_HOST")

	// 日志配置
	cl.viper.BindEnv("log.level", p+"_LOG_LEVEL")
	cl.viper.BindEnv("log.file_path", p+"_LOG_FILE_PATH")

	// 旧版 MONITOR_INTERVAL 是秒数
	if v := os.Getenv(p + "_MONITOR_INTERVAL"); v != "" {
		cl.viper.Set("monitor.interval", parseSecondsOrDuration(v))
	} else if v := os.Getenv("MONITOR_INTERVAL"); v != "" {
		cl.viper.Set("monitor.interval", parseSecondsOrDuration(v))
	}
}

// parseSecondsOrDuration 纯数字按秒处理，其余交给viper按duration解析
func parseSecondsOrDuration(v string) interface{} {
	if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return time.Duration(n) * time.Second
	}
	return v
}

// setDefaults 设置默认值
func (cl *ConfigLoader) setDefaults() {
	for key, value := range defaultValues() {
		cl.viper.SetDefault(key, value)
	}
}

// defaultValues 默认配置表
func defaultValues() map[string]interface{} {
	return map[string]interface{}{
		// App默认值
		"app.name":        "NodeAgent",
		"app.environment": "production",
		"app.debug":       false,

		// 日志默认值
		"log.level":       "info",
		"log.format":      "text",
		"log.output":      "stdout",
		"log.file_path":   "./logs/agent.log",
		"log.max_size":    100,
		"log.max_backups": 3,
		"log.max_age":     28,
		"log.compress":    true,
		"log.caller":      false,

		// 会话默认值
		"session.endpoint":             "ws://localhost:8080/ws",
		"session.agent_id":             "server1",
		"session.connect_timeout":      "10s",
		"session.connect_attempts":     3,
		"session.reconnect_interval":   "5s",
		"session.ping_interval":        "30s",
		"session.pong_timeout":         "10s",
		"session.write_timeout":        "10s",
		"session.telemetry_queue_size": 32,
		"session.response_queue_size":  32,
		"session.skip_tls_verify":      false,
		"session.proxy":                "",

		// 监控默认值
		"monitor.interval":        "5s",
		"monitor.unit_filter":     []string{"node", "3node"},
		"monitor.docker_host":     "unix:///var/run/docker.sock",
		"monitor.disk_path":       "/",
		"monitor.collect_timeout": "4s",

		// 执行器默认值
		"executor.container_cli":      "docker",
		"executor.shell":              "bash",
		"executor.start_all_script":   "source ~/.zshrc || source ~/.bash_profile; startAll",
		"executor.stop_all_script":    "source ~/.zshrc || source ~/.bash_profile; stopAll",
		"executor.restart_all_script": "source ~/.zshrc || source ~/.bash_profile; restartAll",
		"executor.payout_script":      "source ~/.zshrc || source ~/.bash_profile; payout",
		"executor.payout_all_script":  "source ~/.zshrc || source ~/.bash_profile; payoutAll",
		"executor.reboot_command":     []string{"sudo", "shutdown", "-r", "now"},
		"executor.timeout":            "0s",

		// 命令日志默认值
		"journal.backend":          "memory",
		"journal.capacity":         1024,
		"journal.redis.addr":       "",
		"journal.redis.db":         0,
		"journal.redis.key_prefix": "nodeagent:commands",
		"journal.redis.ttl":        "24h",
		"journal.redis.timeout":    "3s",

		// 本地状态接口默认值
		"server.enabled":       false,
		"server.host":          "127.0.0.1",
		"server.port":          9180,
		"server.mode":          "release",
		"server.read_timeout":  "10s",
		"server.write_timeout": "10s",

		// 指标默认值
		"metrics.enabled":  false,
		"metrics.exporter": "none",
		"metrics.interval": "30s",
	}
}

// GetConfigPath 获取实际使用的配置文件路径
func (cl *ConfigLoader) GetConfigPath() string {
	return cl.viper.ConfigFileUsed()
}

// LoadConfig 使用默认前缀加载配置（便捷函数）
func LoadConfig(configPath string) (*Config, error) {
	return NewConfigLoader(configPath, DefaultEnvPrefix).LoadConfig()
}
