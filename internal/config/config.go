// Package config 客户端配置：默认值、YAML 文件与环境变量分层加载
package config

import (
	"time"

	corelog "proxylink/internal/core/log"
)

// Config 配置根
type Config struct {
	Mode      string          `koanf:"mode" yaml:"mode"` // worker / service
	Server    ServerConfig    `koanf:"server" yaml:"server"`
	Transport TransportConfig `koanf:"transport" yaml:"transport"`
	Idle      IdleConfig      `koanf:"idle" yaml:"idle"`
	Reconnect ReconnectConfig `koanf:"reconnect" yaml:"reconnect"`
	Channel   ChannelConfig   `koanf:"channel" yaml:"channel"`
	Proxy     ProxyConfig     `koanf:"proxy" yaml:"proxy"`
	Codec     CodecConfig     `koanf:"codec" yaml:"codec"`
	NetCheck  NetCheckConfig  `koanf:"netcheck" yaml:"netcheck"`
	Log       corelog.Config  `koanf:"log" yaml:"log"`
	Metrics   MetricsConfig   `koanf:"metrics" yaml:"metrics"`
}

// ServerConfig 服务端地址
type ServerConfig struct {
	Host string `koanf:"host" yaml:"host"`
	Port int    `koanf:"port" yaml:"port"`
}

// TransportConfig 传输协议
type TransportConfig struct {
	Protocol string `koanf:"protocol" yaml:"protocol"` // tcp / websocket / quic / kcp
	Path     string `koanf:"path" yaml:"path,omitempty"`
}

// IdleConfig 空闲检测，0 关闭对应方向
type IdleConfig struct {
	Read  time.Duration `koanf:"read" yaml:"read"`
	Write time.Duration `koanf:"write" yaml:"write"`
	All   time.Duration `koanf:"all" yaml:"all"`
}

// ReconnectConfig 固定间隔有限次重连
type ReconnectConfig struct {
	Enabled     bool          `koanf:"enabled" yaml:"enabled"`
	MaxAttempts int           `koanf:"max_attempts" yaml:"max_attempts"`
	Delay       time.Duration `koanf:"delay" yaml:"delay"`
}

// ChannelConfig 通道写队列与限速
type ChannelConfig struct {
	WriteQueueSize int    `koanf:"write_queue_size" yaml:"write_queue_size"`
	SendRateLimit  int    `koanf:"send_rate_limit" yaml:"send_rate_limit"`
	Heartbeat      string `koanf:"heartbeat" yaml:"heartbeat,omitempty"`
}

// ProxyConfig 经代理连接目标
type ProxyConfig struct {
	Type             string        `koanf:"type" yaml:"type"` // none / socks5
	Target           string        `koanf:"target" yaml:"target,omitempty"`
	Username         string        `koanf:"username" yaml:"username,omitempty"`
	Password         string        `koanf:"password" yaml:"password,omitempty"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout" yaml:"handshake_timeout"`
}

// CodecConfig 入站解码
type CodecConfig struct {
	Type           string   `koanf:"type" yaml:"type"` // delimiter / raw
	Delimiters     []string `koanf:"delimiters" yaml:"delimiters"`
	MaxFrameLength int      `koanf:"max_frame_length" yaml:"max_frame_length"`
	StripDelimiter bool     `koanf:"strip_delimiter" yaml:"strip_delimiter"`
	FailFast       bool     `koanf:"fail_fast" yaml:"fail_fast"`
}

// NetCheckConfig 网络可用性检查
type NetCheckConfig struct {
	Mode         string        `koanf:"mode" yaml:"mode"` // interfaces / probe / always
	ProbeAddress string        `koanf:"probe_address" yaml:"probe_address,omitempty"`
	ProbeTimeout time.Duration `koanf:"probe_timeout" yaml:"probe_timeout"`
}

// MetricsConfig 指标端点
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Listen  string `koanf:"listen" yaml:"listen"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"mode": "worker",
		"server": map[string]interface{}{
			"host": "127.0.0.1",
			"port": 1080,
		},
		"transport": map[string]interface{}{
			"protocol": "tcp",
			"path":     "",
		},
		"idle": map[string]interface{}{
			"read":  "20s",
			"write": "20s",
			"all":   "0s",
		},
		"reconnect": map[string]interface{}{
			"enabled":      true,
			"max_attempts": 5,
			"delay":        "2s",
		},
		"channel": map[string]interface{}{
			"write_queue_size": 256,
			"send_rate_limit":  0,
			"heartbeat":        "",
		},
		"proxy": map[string]interface{}{
			"type":              "none",
			"handshake_timeout": "10s",
		},
		"codec": map[string]interface{}{
			"type":             "delimiter",
			"delimiters":       []interface{}{"\n"},
			"max_frame_length": 8192,
			"strip_delimiter":  true,
			"fail_fast":        true,
		},
		"netcheck": map[string]interface{}{
			"mode":          "interfaces",
			"probe_address": "",
			"probe_timeout": "1500ms",
		},
		"log": map[string]interface{}{
			"level":  "info",
			"format": "text",
			"output": "stderr",
		},
		"metrics": map[string]interface{}{
			"enabled": false,
			"listen":  "127.0.0.1:9469",
		},
	}
}
