// Package config provides YAML-based configuration management with hot reload.
// It handles axis kinematics, listener settings and the optional serial,
// Modbus and monitor endpoints of the virtual motor controller.
package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"virtualmotor/internal/logging"
	"virtualmotor/internal/motion"
	"virtualmotor/pkg/types"
)

type ConfigManager struct {
	config       types.SystemConfig
	configPath   string
	configLock   sync.RWMutex
	watchers     []func(types.SystemConfig)
	watchersLock sync.RWMutex
	lastModified time.Time
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	watching     bool
	pollInterval time.Duration
	logger       *logging.Logger
}

func NewConfigManager(configPath string) *ConfigManager {
	return &ConfigManager{
		configPath:   configPath,
		watchers:     make([]func(types.SystemConfig), 0),
		pollInterval: time.Second,
		logger:       logging.GetLogger("config_manager"),
	}
}

func (cm *ConfigManager) LoadConfig(path string) error {
	cm.configLock.Lock()
	defer cm.configLock.Unlock()

	if path != "" {
		cm.configPath = path
	}

	info, err := os.Stat(cm.configPath)
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config types.SystemConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	cm.config = config
	cm.lastModified = info.ModTime()

	cm.logger.Info("Configuration loaded", "config_path", cm.configPath, "axes", len(config.Axes))
	return nil
}

func (cm *ConfigManager) Reload() error {
	return cm.LoadConfig("")
}

func (cm *ConfigManager) GetConfig() types.SystemConfig {
	cm.configLock.RLock()
	defer cm.configLock.RUnlock()
	return cm.config
}

// SetConfig validates config, writes it to the config file and notifies watchers.
func (cm *ConfigManager) SetConfig(config types.SystemConfig) error {
	cm.configLock.Lock()
	err := cm.setConfigLocked(config)
	cm.configLock.Unlock()
	if err != nil {
		return err
	}

	cm.notifyWatchers()
	cm.logger.Info("Configuration updated and saved", "config_path", cm.configPath)
	return nil
}

func (cm *ConfigManager) setConfigLocked(config types.SystemConfig) error {
	if err := validateConfig(&config); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(cm.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	cm.config = config
	if info, err := os.Stat(cm.configPath); err == nil {
		cm.lastModified = info.ModTime()
	}
	return nil
}

// WatchChanges registers a callback run after every reload or SetConfig.
func (cm *ConfigManager) WatchChanges(callback func(types.SystemConfig)) {
	cm.watchersLock.Lock()
	defer cm.watchersLock.Unlock()
	cm.watchers = append(cm.watchers, callback)
}

func (cm *ConfigManager) StartWatching(ctx context.Context) error {
	if cm.watching {
		return fmt.Errorf("config watcher is already running")
	}

	cm.ctx, cm.cancel = context.WithCancel(ctx)
	cm.watching = true

	cm.wg.Add(1)
	go cm.watchFile()

	cm.logger.Info("Started watching config file", "config_path", cm.configPath)
	return nil
}

func (cm *ConfigManager) StopWatching() error {
	if !cm.watching {
		return fmt.Errorf("config watcher is not running")
	}

	cm.cancel()
	cm.wg.Wait()
	cm.watching = false

	cm.logger.Info("Stopped watching config file")
	return nil
}

func (cm *ConfigManager) watchFile() {
	defer cm.wg.Done()

	ticker := time.NewTicker(cm.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cm.ctx.Done():
			return
		case <-ticker.C:
			cm.checkFileChanges()
		}
	}
}

func (cm *ConfigManager) checkFileChanges() {
	info, err := os.Stat(cm.configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			cm.logger.Error("Error checking config file", "error", err)
		}
		return
	}

	cm.configLock.RLock()
	changed := info.ModTime().After(cm.lastModified)
	cm.configLock.RUnlock()
	if !changed {
		return
	}

	cm.logger.Info("Config file modified, reloading...")
	if err := cm.Reload(); err != nil {
		cm.logger.Error("Failed to reload config", "error", err)
		// don't retry the same broken file every tick
		cm.configLock.Lock()
		cm.lastModified = info.ModTime()
		cm.configLock.Unlock()
		return
	}
	cm.notifyWatchers()
}

func (cm *ConfigManager) notifyWatchers() {
	cm.watchersLock.RLock()
	watchers := make([]func(types.SystemConfig), len(cm.watchers))
	copy(watchers, cm.watchers)
	cm.watchersLock.RUnlock()

	config := cm.GetConfig()
	for _, watcher := range watchers {
		go watcher(config)
	}
}

func validateConfig(config *types.SystemConfig) error {
	if config.Logging.Level == "" {
		config.Logging = *logging.DefaultConfig()
	}

	if config.IPC.Type == "" {
		config.IPC.Type = "tcp"
	}
	if config.IPC.Address == "" {
		config.IPC.Address = "127.0.0.1"
	}
	if config.IPC.Port <= 0 {
		config.IPC.Port = 18080
	}
	if config.IPC.Timeout <= 0 {
		config.IPC.Timeout = 5 * time.Second
	}
	if config.IPC.BufferSize <= 0 {
		config.IPC.BufferSize = 1024
	}

	if config.Serial.BaudRate <= 0 {
		config.Serial.BaudRate = 9600
	}
	if config.Serial.DataBits <= 0 {
		config.Serial.DataBits = 8
	}
	if config.Serial.StopBits <= 0 {
		config.Serial.StopBits = 1
	}
	if config.Serial.Parity == "" {
		config.Serial.Parity = "N"
	}
	if config.Serial.Enabled && config.Serial.PortName == "" {
		return fmt.Errorf("serial port enabled without a port name")
	}

	if config.Modbus.Type == "" {
		config.Modbus.Type = "tcp"
	}
	if config.Modbus.SlaveID == 0 {
		config.Modbus.SlaveID = 1
	}
	if config.Modbus.Timeout <= 0 {
		config.Modbus.Timeout = time.Second
	}
	if config.Modbus.Enabled && config.Modbus.Address == "" {
		return fmt.Errorf("modbus mirror enabled without an address")
	}

	if config.Monitor.Address == "" {
		config.Monitor.Address = "127.0.0.1:18081"
	}
	if config.Monitor.Interval <= 0 {
		config.Monitor.Interval = 200 * time.Millisecond
	}

	if len(config.Axes) == 0 {
		return fmt.Errorf("at least one axis must be configured")
	}

	for i := range config.Axes {
		axis := &config.Axes[i]
		if axis.Name == "" {
			axis.Name = fmt.Sprintf("axis-%d", i+1)
		}
		if axis.Deceleration == 0 {
			axis.Deceleration = axis.Acceleration
		}
		if axis.Units == "" {
			axis.Units = "counts"
		}
		if axis.Resolution == 0 {
			axis.Resolution = 1.0
		}
		if err := axis.Parameters.Validate(); err != nil {
			return fmt.Errorf("axis %d (%s): %w", i+1, axis.Name, err)
		}
		if axis.LowLimit > axis.HighLimit {
			return fmt.Errorf("axis %d (%s) must have low limit <= high limit", i+1, axis.Name)
		}
	}

	return nil
}

// GetAxisConfig returns the configuration of axis index, counted from 1.
func (cm *ConfigManager) GetAxisConfig(index int) (types.AxisConfig, error) {
	cm.configLock.RLock()
	defer cm.configLock.RUnlock()

	if index < 1 || index > len(cm.config.Axes) {
		return types.AxisConfig{}, fmt.Errorf("axis %d not found in configuration", index)
	}
	return cm.config.Axes[index-1], nil
}

func (cm *ConfigManager) UpdateAxisConfig(index int, config types.AxisConfig) error {
	cm.configLock.Lock()
	if index < 1 || index > len(cm.config.Axes) {
		cm.configLock.Unlock()
		return fmt.Errorf("axis %d not found in configuration", index)
	}

	updated := cm.config
	updated.Axes = append([]types.AxisConfig(nil), cm.config.Axes...)
	updated.Axes[index-1] = config
	err := cm.setConfigLocked(updated)
	cm.configLock.Unlock()
	if err != nil {
		return err
	}

	cm.notifyWatchers()
	return nil
}

// DefaultConfig is a three-axis controller with the classic virtual motor
// kinematics on every axis.
func DefaultConfig() types.SystemConfig {
	params := motion.DefaultParameters()
	return types.SystemConfig{
		Logging: *logging.DefaultConfig(),
		Axes: []types.AxisConfig{
			{Name: "axis-1", Parameters: params},
			{Name: "axis-2", Parameters: params},
			{Name: "axis-3", Parameters: params},
		},
		IPC: types.IPCConfig{
			Type:       "tcp",
			Address:    "127.0.0.1",
			Port:       18080,
			Timeout:    5 * time.Second,
			BufferSize: 1024,
		},
		Serial: types.SerialConfig{
			PortName: "/dev/ttyUSB0",
			BaudRate: 9600,
			DataBits: 8,
			StopBits: 1,
			Parity:   "N",
		},
		Modbus: types.ModbusConfig{
			Type:           "tcp",
			Address:        "127.0.0.1:502",
			SlaveID:        1,
			Timeout:        time.Second,
			StatusRegister: 100,
		},
		Monitor: types.MonitorConfig{
			Enabled:  true,
			Address:  "127.0.0.1:18081",
			Interval: 200 * time.Millisecond,
		},
	}
}

func (cm *ConfigManager) CreateDefaultConfig() error {
	return cm.SetConfig(DefaultConfig())
}

func (cm *ConfigManager) GetConfigPath() string {
	cm.configLock.RLock()
	defer cm.configLock.RUnlock()
	return cm.configPath
}

func (cm *ConfigManager) ExportConfig(path string) error {
	cm.configLock.RLock()
	defer cm.configLock.RUnlock()

	data, err := yaml.Marshal(cm.config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}

	cm.logger.Info("Configuration exported", "path", path)
	return nil
}
