package client

import (
	"time"

	"proxylink/internal/client/transport"
	"proxylink/internal/pipeline"
)

// Config 会话配置
//
// 须在 Connect 之前设置，连接进行中修改不保证生效。
type Config struct {
	// 空闲超时，0 表示关闭该方向的检测
	ReadIdle  time.Duration
	WriteIdle time.Duration
	AllIdle   time.Duration

	AutoReconnect bool
	MaxAttempts   int
	RetryDelay    time.Duration

	Protocol      string // 传输协议，空为 tcp
	WebSocketPath string

	WriteQueueSize int
	SendRateLimit  int // 字节/秒，0 不限速
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	idle := pipeline.DefaultIdleConfig()
	return Config{
		ReadIdle:       idle.ReadTimeout,
		WriteIdle:      idle.WriteTimeout,
		AllIdle:        idle.AllTimeout,
		AutoReconnect:  true,
		MaxAttempts:    5,
		RetryDelay:     2000 * time.Millisecond,
		Protocol:       transport.DefaultProtocol,
		WriteQueueSize: pipeline.DefaultWriteQueueSize,
	}
}

func (c Config) idle() pipeline.IdleConfig {
	return pipeline.IdleConfig{
		ReadTimeout:  c.ReadIdle,
		WriteTimeout: c.WriteIdle,
		AllTimeout:   c.AllIdle,
	}
}

func (c Config) channelOptions() pipeline.ChannelOptions {
	return pipeline.ChannelOptions{
		WriteQueueSize: c.WriteQueueSize,
		SendRateLimit:  c.SendRateLimit,
	}
}
