// Package logging wraps log/slog with per-module loggers handed out by a
// process-wide manager.
package logging

import (
	"errors"
	"fmt"
	"sync"
)

var (
	defaultManager *Manager
	once           sync.Once
	managerLock    sync.RWMutex
)

// Manager owns the root logger and the module loggers derived from it.
type Manager struct {
	mu      sync.RWMutex
	root    *Logger
	loggers map[string]*Logger
	config  *Config
}

// NewManager 创建新的日志管理器
func NewManager(config *Config) (*Manager, error) {
	if config == nil {
		config = DefaultConfig()
	}

	root, err := NewLogger(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create default logger: %w", err)
	}

	return &Manager{
		root:    root,
		loggers: map[string]*Logger{"default": root},
		config:  config,
	}, nil
}

// GetManager 获取全局日志管理器实例，首次调用时使用默认配置创建
func GetManager() *Manager {
	once.Do(func() {
		m, _ := NewManager(DefaultConfig())
		managerLock.Lock()
		if defaultManager == nil {
			defaultManager = m
		}
		managerLock.Unlock()
	})
	managerLock.RLock()
	defer managerLock.RUnlock()
	return defaultManager
}

// Init 替换全局日志管理器。之前获取的日志器仍写入旧的输出
func Init(config *Config) error {
	m, err := NewManager(config)
	if err != nil {
		return err
	}
	once.Do(func() {})

	managerLock.Lock()
	old := defaultManager
	defaultManager = m
	managerLock.Unlock()

	if old != nil {
		return old.Close()
	}
	return nil
}

// GetLogger 获取指定模块的日志器，记录带有 module=name 字段
func (m *Manager) GetLogger(name string) *Logger {
	m.mu.RLock()
	logger, exists := m.loggers[name]
	m.mu.RUnlock()
	if exists {
		return logger
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if logger, exists := m.loggers[name]; exists {
		return logger
	}

	logger = m.root.With("module", name)
	m.loggers[name] = logger
	return logger
}

// UpdateConfig 更新所有日志器的级别。输出和格式的变更需要 Init
func (m *Manager) UpdateConfig(config *Config) error {
	if config == nil {
		return errors.New("config cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = config
	m.root.UpdateLevel(config.Level)
	m.root.Info("Logger configuration updated", "level", config.Level)
	return nil
}

// GetLoggerNames 获取所有日志器名称
func (m *Manager) GetLoggerNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.loggers))
	for name := range m.loggers {
		names = append(names, name)
	}
	return names
}

// Close 关闭日志管理器
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.root.close()
}

// 便捷函数：使用默认日志管理器获取日志器
func GetLogger(name string) *Logger {
	return GetManager().GetLogger(name)
}

// 便捷函数：获取默认日志器
func Default() *Logger {
	return GetLogger("default")
}

// 便捷函数：使用全局默认日志器记录各级别日志
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}
