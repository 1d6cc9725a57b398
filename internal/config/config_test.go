package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testConfigContent = `
app:
  name: "nodeAgent"
  environment: "test"
  debug: true

log:
  level: "debug"
  format: "json"
  output: "stdout"

session:
  endpoint: "wss://collector.example.com/ws"
  agent_id: "host-a"
  connect_attempts: 5
  reconnect_interval: 2s
  telemetry_queue_size: 8
  response_queue_size: 16

monitor:
  interval: 15s
  unit_filter: ["3node"]

executor:
  timeout: 30s
  custom_commands:
    disk_report: ["df", "-h"]
`

// TestConfigLoader 测试从文件加载配置
func TestConfigLoader(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "config.yaml")
	if err := os.WriteFile(configFile, []byte(testConfigContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	loader := NewConfigLoader(configFile, "NODEAGENT")
	cfg, err := loader.LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.App.Name != "nodeAgent" {
		t.Errorf("Expected app name 'nodeAgent', got '%s'", cfg.App.Name)
	}
	if cfg.Session.Endpoint != "wss://collector.example.com/ws" {
		t.Errorf("Unexpected endpoint: %s", cfg.Session.Endpoint)
	}
	if cfg.Session.AgentID != "host-a" {
		t.Errorf("Expected agent id 'host-a', got '%s'", cfg.Session.AgentID)
	}
	if cfg.Session.ConnectAttempts != 5 {
		t.Errorf("Expected 5 connect attempts, got %d", cfg.Session.ConnectAttempts)
	}
	if cfg.Session.ReconnectInterval != 2*time.Second {
		t.Errorf("Expected reconnect interval 2s, got %v", cfg.Session.ReconnectInterval)
	}
	if cfg.Session.TelemetryQueueSize != 8 || cfg.Session.ResponseQueueSize != 16 {
		t.Errorf("Unexpected queue sizes: %d/%d", cfg.Session.TelemetryQueueSize, cfg.Session.ResponseQueueSize)
	}
	if cfg.Monitor.Interval != 15*time.Second {
		t.Errorf("Expected interval 15s, got %v", cfg.Monitor.Interval)
	}
	if len(cfg.Monitor.UnitFilter) != 1 || cfg.Monitor.UnitFilter[0] != "3node" {
		t.Errorf("Unexpected unit filter: %v", cfg.Monitor.UnitFilter)
	}
	if cfg.Executor.Timeout != 30*time.Second {
		t.Errorf("Expected executor timeout 30s, got %v", cfg.Executor.Timeout)
	}
	if argv := cfg.Executor.CustomCommands["disk_report"]; len(argv) != 2 || argv[0] != "df" {
		t.Errorf("Unexpected custom command argv: %v", argv)
	}
	// 文件中未出现的字段使用默认值
	if cfg.Executor.ContainerCLI != "docker" {
		t.Errorf("Expected default container cli 'docker', got '%s'", cfg.Executor.ContainerCLI)
	}
	if loader.GetConfigPath() != configFile {
		t.Errorf("Expected config path %s, got %s", configFile, loader.GetConfigPath())
	}
}

// TestConfigLoader_Defaults 没有配置文件时只使用默认值
func TestConfigLoader_Defaults(t *testing.T) {
	cfg, err := NewConfigLoader(t.TempDir(), "NODEAGENT_TEST").LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}

	if cfg.Session.Endpoint != "ws://localhost:8080/ws" {
		t.Errorf("Unexpected default endpoint: %s", cfg.Session.Endpoint)
	}
	if cfg.Session.AgentID != "server1" {
		t.Errorf("Unexpected default agent id: %s", cfg.Session.AgentID)
	}
	if cfg.Monitor.Interval != 5*time.Second {
		t.Errorf("Unexpected default interval: %v", cfg.Monitor.Interval)
	}
	if len(cfg.Monitor.UnitFilter) != 2 {
		t.Errorf("Unexpected default unit filter: %v", cfg.Monitor.UnitFilter)
	}
	if cfg.Session.TelemetryQueueSize != 32 || cfg.Session.ResponseQueueSize != 32 {
		t.Errorf("Unexpected default queue sizes: %d/%d", cfg.Session.TelemetryQueueSize, cfg.Session.ResponseQueueSize)
	}
	if cfg.Executor.Timeout != 0 {
		t.Errorf("Executor timeout should be disabled by default, got %v", cfg.Executor.Timeout)
	}
	if len(cfg.Executor.CustomCommands) != 0 {
		t.Errorf("Custom allow-list should be empty by default, got %v", cfg.Executor.CustomCommands)
	}
	if cfg.Journal.Backend != "memory" {
		t.Errorf("Unexpected default journal backend: %s", cfg.Journal.Backend)
	}
}

// TestConfigLoader_LegacyEnv 兼容旧版环境变量
func TestConfigLoader_LegacyEnv(t *testing.T) {
	t.Setenv("WS_SERVER_URL", "ws://10.0.0.5:9000/ws")
	t.Setenv("SERVER_ID", "server42")
	t.Setenv("NODE_NAMES", "alpha,beta")
	t.Setenv("MONITOR_INTERVAL", "10")

	cfg, err := NewConfigLoader(t.TempDir(), "NODEAGENT_TEST").LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Session.Endpoint != "ws://10.0.0.5:9000/ws" {
		t.Errorf("Unexpected endpoint: %s", cfg.Session.Endpoint)
	}
	if cfg.Session.AgentID != "server42" {
		t.Errorf("Unexpected agent id: %s", cfg.Session.AgentID)
	}
	if len(cfg.Monitor.UnitFilter) != 2 || cfg.Monitor.UnitFilter[0] != "alpha" || cfg.Monitor.UnitFilter[1] != "beta" {
		t.Errorf("Unexpected unit filter: %v", cfg.Monitor.UnitFilter)
	}
	if cfg.Monitor.Interval != 10*time.Second {
		t.Errorf("Expected 10s interval, got %v", cfg.Monitor.Interval)
	}
}

// TestConfigLoader_PrefixedEnvWins 前缀变量优先于旧版变量
func TestConfigLoader_PrefixedEnvWins(t *testing.T) {
	t.Setenv("NODEAGENT_TEST_SESSION_AGENT_ID", "prefixed")
	t.Setenv("SERVER_ID", "legacy")

	cfg, err := NewConfigLoader(t.TempDir(), "NODEAGENT_TEST").LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Session.AgentID != "prefixed" {
		t.Errorf("Expected prefixed agent id, got %s", cfg.Session.AgentID)
	}
}

// TestConfigValidate 校验规则
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"http scheme", func(c *Config) { c.Session.Endpoint = "http://localhost/ws" }, "session.endpoint"},
		{"no host", func(c *Config) { c.Session.Endpoint = "ws:///ws" }, "session.endpoint"},
		{"empty agent id", func(c *Config) { c.Session.AgentID = "  " }, "session.agent_id"},
		{"zero attempts", func(c *Config) { c.Session.ConnectAttempts = 0 }, "session.connect_attempts"},
		{"zero queue", func(c *Config) { c.Session.ResponseQueueSize = 0 }, "session.queue_size"},
		{"http proxy", func(c *Config) { c.Session.Proxy = "http://proxy:3128" }, "session.proxy"},
		{"zero interval", func(c *Config) { c.Monitor.Interval = 0 }, "monitor.interval"},
		{"negative timeout", func(c *Config) { c.Executor.Timeout = -time.Second }, "executor.timeout"},
		{"empty custom argv", func(c *Config) { c.Executor.CustomCommands = map[string][]string{"x": nil} }, "executor.custom_commands.x"},
		{"redis without addr", func(c *Config) { c.Journal.Backend = "redis" }, "journal.redis.addr"},
		{"unknown exporter", func(c *Config) { c.Metrics.Exporter = "prometheus" }, "metrics.exporter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Expected ConfigurationError, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, cfgErr.Field)
			}
		})
	}

	if err := validConfig().Validate(); err != nil {
		t.Errorf("Valid config rejected: %v", err)
	}
}

// TestEnvLoader .env文件注入进程环境，已存在的变量不被覆盖
func TestEnvLoader(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	content := "NODEAGENT_ENVLOADER_A=from-file\nNODEAGENT_ENVLOADER_B=from-file\n"
	if err := os.WriteFile(envFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NODEAGENT_ENVLOADER_B", "from-process")
	t.Cleanup(func() { os.Unsetenv("NODEAGENT_ENVLOADER_A") })

	loader := NewEnvLoader(envFile, filepath.Join(t.TempDir(), "missing.env"))
	if err := loader.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !loader.Loaded() {
		t.Error("Loader should report loaded")
	}
	if got := os.Getenv("NODEAGENT_ENVLOADER_A"); got != "from-file" {
		t.Errorf("Expected from-file, got %q", got)
	}
	if got := os.Getenv("NODEAGENT_ENVLOADER_B"); got != "from-process" {
		t.Errorf("Process env should win, got %q", got)
	}
}

// TestConfigWatcher 修改文件后回调收到新配置
func TestConfigWatcher(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte("log:\n  level: info\n"), 0644); err != nil {
		t.Fatal(err)
	}

	current, err := NewConfigLoader(configFile, "").LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	w, err := NewConfigWatcher(configFile, current)
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer w.Stop()

	changed := make(chan string, 1)
	w.AddCallback(func(oldConfig, newConfig *Config) error {
		select {
		case changed <- newConfig.Log.Level:
		default:
		}
		return nil
	})
	if err := w.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}

	if err := os.WriteFile(configFile, []byte("log:\n  level: debug\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case level := <-changed:
		if level != "debug" {
			t.Errorf("Expected level debug, got %s", level)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for config reload")
	}

	if w.GetConfig().Log.Level != "debug" {
		t.Errorf("Watcher should hold new config")
	}
}

func validConfig() *Config {
	return &Config{
		Log: &LogConfig{Level: "info", Format: "text", Output: "stdout"},
		Session: &SessionConfig{
			Endpoint:           "ws://localhost:8080/ws",
			AgentID:            "server1",
			ConnectAttempts:    3,
			TelemetryQueueSize: 32,
			ResponseQueueSize:  32,
		},
		Monitor:  &MonitorConfig{Interval: 5 * time.Second},
		Executor: &ExecutorConfig{},
		Journal:  &JournalConfig{Backend: "memory"},
		Metrics:  &MetricsConfig{Exporter: "none"},
	}
}
