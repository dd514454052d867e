package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config controls where and how log records are written.
type Config struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Format     string `yaml:"format"`      // json, text
	Output     string `yaml:"output"`      // stdout, stderr, file, discard
	OutputPath string `yaml:"output_path"` // used when output is file
	AddSource  bool   `yaml:"add_source"`
	TimeFormat string `yaml:"time_format"`
}

// Logger is a structured logger bound to one module.
type Logger struct {
	*slog.Logger
	config *Config
	level  *slog.LevelVar
	file   *os.File
}

// NewLogger 创建新的日志器实例
func NewLogger(config *Config) (*Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	level := new(slog.LevelVar)
	level.Set(parseLevel(config.Level))

	writer, file, err := openOutput(config)
	if err != nil {
		return nil, err
	}

	return &Logger{
		Logger: slog.New(createHandler(config, writer, level)),
		config: config,
		level:  level,
		file:   file,
	}, nil
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "text",
		Output:     "stdout",
		AddSource:  false,
		TimeFormat: time.RFC3339,
	}
}

// parseLevel 解析日志级别
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openOutput 打开日志输出目标
func openOutput(config *Config) (io.Writer, *os.File, error) {
	switch strings.ToLower(config.Output) {
	case "stderr":
		return os.Stderr, nil, nil
	case "discard":
		return io.Discard, nil, nil
	case "file":
		if config.OutputPath == "" {
			config.OutputPath = "logs/virtualmotor.log"
		}
		if err := os.MkdirAll(filepath.Dir(config.OutputPath), 0755); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(config.OutputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, err
		}
		return f, f, nil
	default:
		return os.Stdout, nil, nil
	}
}

// createHandler 创建日志处理器
func createHandler(config *Config, writer io.Writer, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: config.AddSource,
	}
	if config.TimeFormat != "" && config.TimeFormat != time.RFC3339 {
		layout := config.TimeFormat
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(layout))
			}
			return a
		}
	}

	if strings.ToLower(config.Format) == "json" {
		return slog.NewJSONHandler(writer, opts)
	}
	return slog.NewTextHandler(writer, opts)
}

// With 返回带有额外字段的日志器
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
		config: l.config,
		level:  l.level,
	}
}

// WithGroup 返回带有分组的日志器
func (l *Logger) WithGroup(name string) *Logger {
	return &Logger{
		Logger: l.Logger.WithGroup(name),
		config: l.config,
		level:  l.level,
	}
}

// UpdateLevel 动态更新日志级别，派生的日志器同样生效
func (l *Logger) UpdateLevel(level string) {
	l.config.Level = level
	l.level.Set(parseLevel(level))
}

// GetConfig 获取当前配置
func (l *Logger) GetConfig() *Config {
	return l.config
}

// close 关闭日志文件
func (l *Logger) close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
