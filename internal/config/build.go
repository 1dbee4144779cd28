package config

import (
	"net"
	"strconv"
	"strings"

	"proxylink/internal/client"
	"proxylink/internal/codec"
	corelog "proxylink/internal/core/log"
	"proxylink/internal/netcheck"
	"proxylink/internal/pipeline"
	"proxylink/internal/proxy/socks5"
)

// 启动模式
const (
	ModeWorker  = "worker"
	ModeService = "service"
)

// 代理类型
const (
	ProxyNone   = "none"
	ProxySOCKS5 = "socks5"
)

// 解码器类型
const (
	CodecDelimiter = "delimiter"
	CodecRaw       = "raw"
)

// 网络检查方式
const (
	NetCheckInterfaces = "interfaces"
	NetCheckProbe      = "probe"
	NetCheckAlways     = "always"
)

// ServerAddress host:port
func (c *Config) ServerAddress() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// SessionConfig 转换为会话配置
func (c *Config) SessionConfig() client.Config {
	sc := client.DefaultConfig()
	sc.ReadIdle = c.Idle.Read
	sc.WriteIdle = c.Idle.Write
	sc.AllIdle = c.Idle.All
	sc.AutoReconnect = c.Reconnect.Enabled
	sc.MaxAttempts = c.Reconnect.MaxAttempts
	sc.RetryDelay = c.Reconnect.Delay
	if c.Transport.Protocol != "" {
		sc.Protocol = strings.ToLower(c.Transport.Protocol)
	}
	sc.WebSocketPath = c.Transport.Path
	if c.Channel.WriteQueueSize > 0 {
		sc.WriteQueueSize = c.Channel.WriteQueueSize
	}
	sc.SendRateLimit = c.Channel.SendRateLimit
	return sc
}

// Factory 按配置构造每次连接使用的解码器与适配器
//
// 解码器参数在此处校验一次，之后每次连接都能成功创建。
func (c *Config) Factory() (pipeline.Factory, error) {
	newDecoder, err := c.decoderFunc()
	if err != nil {
		return nil, err
	}

	server := c.ServerAddress()
	var heartbeat []byte
	if c.Channel.Heartbeat != "" {
		heartbeat = []byte(c.Channel.Heartbeat)
	}

	var newAdapter func() pipeline.Adapter
	switch strings.ToLower(c.Proxy.Type) {
	case ProxySOCKS5:
		pc := socks5.Config{
			Target:           c.Proxy.Target,
			Username:         c.Proxy.Username,
			Password:         c.Proxy.Password,
			HandshakeTimeout: c.Proxy.HandshakeTimeout,
		}
		newAdapter = func() pipeline.Adapter {
			a := socks5.NewAdapter(server, pc)
			a.Heartbeat = heartbeat
			return a
		}
	default:
		newAdapter = func() pipeline.Adapter { return pipeline.NewDirectAdapter(server, heartbeat) }
	}

	return pipeline.FactoryFuncs{Decoder: newDecoder, Adapter: newAdapter}, nil
}

func (c *Config) decoderFunc() (func() pipeline.Decoder, error) {
	if strings.EqualFold(c.Codec.Type, CodecRaw) {
		return func() pipeline.Decoder { return codec.RawDecoder{} }, nil
	}

	delims := make([][]byte, 0, len(c.Codec.Delimiters))
	for _, d := range c.Codec.Delimiters {
		delims = append(delims, []byte(d))
	}
	max, strip, failFast := c.Codec.MaxFrameLength, c.Codec.StripDelimiter, c.Codec.FailFast
	if _, err := codec.NewDelimiterDecoder(max, strip, failFast, delims...); err != nil {
		return nil, err
	}
	return func() pipeline.Decoder {
		return newDelimiterDecoder(max, strip, failFast, delims)
	}, nil
}

// newDelimiterDecoder 创建失败时返回无类型 nil，由会话按配置错误处理
func newDelimiterDecoder(max int, strip, failFast bool, delims [][]byte) pipeline.Decoder {
	d, err := codec.NewDelimiterDecoder(max, strip, failFast, delims...)
	if err != nil {
		corelog.Errorf("Config: create delimiter decoder: %v", err)
		return nil
	}
	return d
}

// NetworkChecker 按配置构造网络检查器
func (c *Config) NetworkChecker() netcheck.Checker {
	switch strings.ToLower(c.NetCheck.Mode) {
	case NetCheckAlways:
		return netcheck.NewStatic(true)
	case NetCheckProbe:
		return &netcheck.Probe{Address: c.NetCheck.ProbeAddress, Timeout: c.NetCheck.ProbeTimeout}
	default:
		return netcheck.NewInterfaces()
	}
}
