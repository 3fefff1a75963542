package api

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mautops/docflow-gin/internal/config"
	"github.com/sirupsen/logrus"
)

const (
	serviceName     = "docflow-gin"
	timestampFormat = "2006-01-02T15:04:05.000Z07:00"
	defaultLogFile  = "logs/docflow-gin.log"
)

// NewLogger 创建默认 JSON 日志记录器, 配置加载前或测试中使用
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(newFormatter("json"))
	logger.SetLevel(logrus.InfoLevel)
	logger.SetOutput(os.Stdout)
	return logger
}

// newFormatter 生产环境使用 JSON, 开发环境使用带完整时间戳的文本
func newFormatter(format string) logrus.Formatter {
	if format == "json" {
		return &logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "time",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "msg",
			},
		}
	}
	return &logrus.TextFormatter{
		TimestampFormat: timestampFormat,
		FullTimestamp:   true,
	}
}

// NewLoggerFromConfig 根据配置创建日志记录器
func NewLoggerFromConfig(cfg *config.LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(newFormatter(cfg.Format))

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	out, err := openLogOutput(cfg)
	if err != nil {
		return nil, err
	}
	logger.SetOutput(out)

	logger.AddHook(&defaultFieldsHook{
		fields: logrus.Fields{"service": serviceName},
	})
	return logger, nil
}

// openLogOutput 按 output 配置组合输出目标: stdout, file, both
func openLogOutput(cfg *config.LogConfig) (io.Writer, error) {
	var writers []io.Writer
	switch cfg.Output {
	case "", "stdout":
		writers = append(writers, os.Stdout)
	case "file", "both":
		if cfg.Output == "both" {
			writers = append(writers, os.Stdout)
		}
		path := cfg.File
		if path == "" {
			path = defaultLogFile
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, file)
	default:
		return nil, fmt.Errorf("unknown log output %q", cfg.Output)
	}
	return io.MultiWriter(writers...), nil
}

// defaultFieldsHook 为每条日志附加服务名, 便于日志聚合
type defaultFieldsHook struct {
	fields logrus.Fields
}

func (h *defaultFieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *defaultFieldsHook) Fire(entry *logrus.Entry) error {
	for k, v := range h.fields {
		entry.Data[k] = v
	}
	return nil
}
