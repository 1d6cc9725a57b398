package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher 配置文件监听器
//
// 使用 fsnotify 监听配置文件所在目录，文件变化后重新加载并通过回调通知。
// 会话配置在进程生命周期内不可变，回调方只应该应用允许热更新的部分（日志级别等）。
type ConfigWatcher struct {
	configFile  string
	envPrefix   string
	config      *Config
	watcher     *fsnotify.Watcher
	callbacks   []ConfigChangeCallback
	onError     func(error)
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	reloadDelay time.Duration
	timer       *time.Timer
}

// ConfigChangeCallback 配置变更回调函数
type ConfigChangeCallback func(oldConfig, newConfig *Config) error

// NewConfigWatcher 创建配置监听器
func NewConfigWatcher(configFile string, current *Config) (*ConfigWatcher, error) {
	if configFile == "" {
		return nil, fmt.Errorf("config file path is empty")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &ConfigWatcher{
		configFile: configFile,
		envPrefix:  DefaultEnvPrefix,
		config:     current,
		watcher:    watcher,
		onError: func(err error) {
			fmt.Fprintf(os.Stderr, "config watcher: %v\n", err)
		},
		ctx:         ctx,
		cancel:      cancel,
		reloadDelay: 500 * time.Millisecond, // 防抖延迟
	}, nil
}

// SetErrorHandler 设置错误处理函数
func (cw *ConfigWatcher) SetErrorHandler(fn func(error)) {
	if fn != nil {
		cw.onError = fn
	}
}

// Start 启动配置监听
// 监听目录而不是文件本身，编辑器的"写临时文件再rename"也能被捕获
func (cw *ConfigWatcher) Start() error {
	if err := cw.watcher.Add(filepath.Dir(cw.configFile)); err != nil {
		return fmt.Errorf("failed to watch config file %s: %w", cw.configFile, err)
	}

	go cw.watchLoop()
	return nil
}

// Stop 停止配置监听
func (cw *ConfigWatcher) Stop() error {
	cw.cancel()
	return cw.watcher.Close()
}

// GetConfig 获取当前配置
func (cw *ConfigWatcher) GetConfig() *Config {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	return cw.config
}

// AddCallback 添加配置变更回调
func (cw *ConfigWatcher) AddCallback(callback ConfigChangeCallback) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

// watchLoop 监听循环
func (cw *ConfigWatcher) watchLoop() {
	for {
		select {
		case <-cw.ctx.Done():
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			cw.handleFileEvent(event)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.onError(err)
		}
	}
}

// handleFileEvent 处理文件事件
func (cw *ConfigWatcher) handleFileEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(cw.configFile) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	// 防抖处理，连续写入只触发一次重载
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.timer = time.AfterFunc(cw.reloadDelay, func() {
		if err := cw.reloadConfig(); err != nil {
			cw.onError(err)
		}
	})
}

// reloadConfig 重新加载配置
func (cw *ConfigWatcher) reloadConfig() error {
	newConfig, err := NewConfigLoader(cw.configFile, cw.envPrefix).LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}

	cw.mu.RLock()
	oldConfig := cw.config
	callbacks := append([]ConfigChangeCallback(nil), cw.callbacks...)
	cw.mu.RUnlock()

	for _, callback := range callbacks {
		if err := callback(oldConfig, newConfig); err != nil {
			return fmt.Errorf("config change callback failed: %w", err)
		}
	}

	cw.mu.Lock()
	cw.config = newConfig
	cw.mu.Unlock()
	return nil
}
