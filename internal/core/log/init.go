package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config 日志配置
type Config struct {
	Level  string `koanf:"level" yaml:"level"`   // debug / info / warn / error
	Format string `koanf:"format" yaml:"format"` // text / json
	Output string `koanf:"output" yaml:"output"` // stderr / stdout / file / discard
	File   string `koanf:"file" yaml:"file"`
}

// Init 按配置创建 logrus 实例并设置为默认 Logger
//
// 返回的 io.Closer 在输出为文件时负责关闭文件，其余情况为空操作。
func Init(cfg Config) (io.Closer, error) {
	l := logrus.New()

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339, FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.Format)
	}

	var closer io.Closer = nopCloser{}
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		l.SetOutput(os.Stderr)
	case "stdout":
		l.SetOutput(os.Stdout)
	case "discard":
		l.SetOutput(io.Discard)
	case "file":
		if cfg.File == "" {
			return nil, fmt.Errorf("log output is file but no file path configured")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.SetOutput(f)
		closer = f
	default:
		return nil, fmt.Errorf("unsupported log output %q", cfg.Output)
	}

	SetDefault(NewLogrusLogger(l))
	return closer, nil
}

// ParseLevel 解析日志级别，空字符串为 info
func ParseLevel(level string) (logrus.Level, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return logrus.InfoLevel, nil
	case "debug":
		return logrus.DebugLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("unsupported log level %q", level)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
