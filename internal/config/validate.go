package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"proxylink/internal/client/transport"
	coreerrors "proxylink/internal/core/errors"
	corelog "proxylink/internal/core/log"
)

// ValidationError 单条校验错误
type ValidationError struct {
	Field   string // 字段路径，如 reconnect.max_attempts
	Value   string // 当前值，密码会被遮蔽
	Message string
	Hint    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult 校验结果
type ValidationResult struct {
	Errors []ValidationError
}

// IsValid 是否无错误
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) Error() string {
	if r.IsValid() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for i, err := range r.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Field))
		if err.Value != "" {
			sb.WriteString(fmt.Sprintf("     current value: %s\n", err.Value))
		}
		sb.WriteString(fmt.Sprintf("     error: %s\n", err.Message))
		if err.Hint != "" {
			sb.WriteString(fmt.Sprintf("     hint: %s\n", err.Hint))
		}
	}
	return sb.String()
}

// AddError 追加一条错误
func (r *ValidationResult) AddError(field, value, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Value: value, Message: message, Hint: hint})
}

// Has 是否存在指定字段的错误
func (r *ValidationResult) Has(field string) bool {
	for _, e := range r.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}

type rule func(cfg *Config, r *ValidationResult)

var rules = []rule{
	validateMode,
	validateServer,
	validateTransport,
	validateTimers,
	validateChannel,
	validateProxy,
	validateCodec,
	validateNetCheck,
	validateLog,
	validateMetrics,
}

// Check 执行全部校验规则
func (c *Config) Check() *ValidationResult {
	r := &ValidationResult{}
	for _, fn := range rules {
		fn(c, r)
	}
	return r
}

// Validate 校验配置，失败时返回 CONFIG_ERROR，原因是 *ValidationResult
func (c *Config) Validate() error {
	if r := c.Check(); !r.IsValid() {
		return coreerrors.Wrap(r, coreerrors.CodeConfigError, "invalid configuration")
	}
	return nil
}

func validateMode(c *Config, r *ValidationResult) {
	switch c.Mode {
	case ModeWorker, ModeService:
	default:
		r.AddError("mode", c.Mode, "unknown start mode", "use worker or service")
	}
}

func validateServer(c *Config, r *ValidationResult) {
	if strings.TrimSpace(c.Server.Host) == "" {
		r.AddError("server.host", "", "host is required", "")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		r.AddError("server.port", fmt.Sprint(c.Server.Port), "port out of range", "use 1-65535")
	}
}

func validateTransport(c *Config, r *ValidationResult) {
	p := strings.ToLower(c.Transport.Protocol)
	if p == "" {
		return
	}
	if _, ok := transport.GetProtocol(p); !ok {
		r.AddError("transport.protocol", c.Transport.Protocol, "unknown transport",
			"one of "+strings.Join(transport.Protocols(), ", "))
	}
	if c.Transport.Path != "" && p != "websocket" {
		r.AddError("transport.path", c.Transport.Path, "path only applies to websocket", "")
	}
}

func validateTimers(c *Config, r *ValidationResult) {
	for field, d := range map[string]time.Duration{
		"idle.read":  c.Idle.Read,
		"idle.write": c.Idle.Write,
		"idle.all":   c.Idle.All,
	} {
		if d < 0 {
			r.AddError(field, d.String(), "must not be negative", "0 disables the check")
		}
	}
	if c.Reconnect.MaxAttempts < 0 {
		r.AddError("reconnect.max_attempts", fmt.Sprint(c.Reconnect.MaxAttempts), "must not be negative", "")
	}
	if c.Reconnect.Delay < 0 {
		r.AddError("reconnect.delay", c.Reconnect.Delay.String(), "must not be negative", "")
	}
}

func validateChannel(c *Config, r *ValidationResult) {
	if c.Channel.WriteQueueSize < 0 {
		r.AddError("channel.write_queue_size", fmt.Sprint(c.Channel.WriteQueueSize), "must not be negative", "0 uses the default")
	}
	if c.Channel.SendRateLimit < 0 {
		r.AddError("channel.send_rate_limit", fmt.Sprint(c.Channel.SendRateLimit), "must not be negative", "0 disables rate limiting")
	}
}

func validateProxy(c *Config, r *ValidationResult) {
	switch strings.ToLower(c.Proxy.Type) {
	case "", ProxyNone:
	case ProxySOCKS5:
		if c.Proxy.Target == "" {
			r.AddError("proxy.target", "", "target is required for socks5", "host:port reached through the proxy")
		} else if _, _, err := net.SplitHostPort(c.Proxy.Target); err != nil {
			r.AddError("proxy.target", c.Proxy.Target, "invalid target address", "host:port")
		}
		if c.Proxy.Password != "" && c.Proxy.Username == "" {
			r.AddError("proxy.username", "", "password set without username", "")
		}
		if c.Proxy.HandshakeTimeout < 0 {
			r.AddError("proxy.handshake_timeout", c.Proxy.HandshakeTimeout.String(), "must not be negative", "")
		}
	default:
		r.AddError("proxy.type", c.Proxy.Type, "unknown proxy type", "use none or socks5")
	}
}

func validateCodec(c *Config, r *ValidationResult) {
	switch strings.ToLower(c.Codec.Type) {
	case CodecRaw:
	case "", CodecDelimiter:
		if c.Codec.MaxFrameLength <= 0 {
			r.AddError("codec.max_frame_length", fmt.Sprint(c.Codec.MaxFrameLength), "must be positive", "")
		}
		if len(c.Codec.Delimiters) == 0 {
			r.AddError("codec.delimiters", "", "at least one delimiter is required", `e.g. ["\n"]`)
		}
		for _, d := range c.Codec.Delimiters {
			if d == "" {
				r.AddError("codec.delimiters", "", "empty delimiter", "")
				break
			}
		}
	default:
		r.AddError("codec.type", c.Codec.Type, "unknown codec", "use delimiter or raw")
	}
}

func validateNetCheck(c *Config, r *ValidationResult) {
	switch strings.ToLower(c.NetCheck.Mode) {
	case "", NetCheckInterfaces, NetCheckAlways:
	case NetCheckProbe:
		if c.NetCheck.ProbeAddress == "" {
			r.AddError("netcheck.probe_address", "", "probe address is required", "host:port dialed to test the network")
		}
	default:
		r.AddError("netcheck.mode", c.NetCheck.Mode, "unknown network check", "use interfaces, probe or always")
	}
}

func validateLog(c *Config, r *ValidationResult) {
	if _, err := corelog.ParseLevel(c.Log.Level); err != nil {
		r.AddError("log.level", c.Log.Level, err.Error(), "debug, info, warn or error")
	}
	if strings.EqualFold(c.Log.Output, "file") && c.Log.File == "" {
		r.AddError("log.file", "", "file output needs a path", "")
	}
}

func validateMetrics(c *Config, r *ValidationResult) {
	if !c.Metrics.Enabled {
		return
	}
	if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
		r.AddError("metrics.listen", c.Metrics.Listen, "invalid listen address", "host:port")
	}
}
