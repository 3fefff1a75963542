package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// ConfigWatcher 配置监听器
// 配置文件变更后重新解析,并依次调用已注册的回调
type ConfigWatcher struct {
	config    *Config
	viper     *viper.Viper
	logger    logrus.FieldLogger
	callbacks []func(*Config)
	mu        sync.RWMutex
	stopped   bool
	stopMu    sync.RWMutex
}

// NewConfigWatcher 创建配置监听器
func NewConfigWatcher(cfg *Config, configPath string, logger logrus.FieldLogger) *ConfigWatcher {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &ConfigWatcher{
		config: cfg,
		viper:  v,
		logger: logger,
	}
}

// OnConfigChange 注册配置变更回调
func (w *ConfigWatcher) OnConfigChange(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start 启动配置监听
func (w *ConfigWatcher) Start() error {
	if err := w.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	w.viper.WatchConfig()
	w.viper.OnConfigChange(func(e fsnotify.Event) {
		w.stopMu.RLock()
		stopped := w.stopped
		w.stopMu.RUnlock()
		if stopped {
			return
		}

		w.reload(e.Name)
	})

	return nil
}

// reload 重新解析配置并通知回调
func (w *ConfigWatcher) reload(source string) {
	var newCfg Config
	if err := w.viper.Unmarshal(&newCfg); err != nil {
		w.logger.WithError(err).WithField("file", source).Warn("failed to unmarshal changed config")
		return
	}

	w.mu.Lock()
	w.config = &newCfg
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	// 回调在锁外执行，避免死锁
	for _, callback := range callbacks {
		callback(&newCfg)
	}
	w.logger.WithField("file", source).Info("config reloaded")
}

// Stop 停止配置监听
func (w *ConfigWatcher) Stop() {
	w.stopMu.Lock()
	defer w.stopMu.Unlock()
	w.stopped = true
}

// GetConfig 获取当前配置
func (w *ConfigWatcher) GetConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// ApplyLogLevel 返回一个回调, 在配置变更时更新日志级别
func ApplyLogLevel(logger *logrus.Logger) func(*Config) {
	return func(cfg *Config) {
		level, err := logrus.ParseLevel(cfg.Log.Level)
		if err != nil {
			return
		}
		logger.SetLevel(level)
	}
}
