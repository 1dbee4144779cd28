// Package pipeline 连接管线：解码器 -> 空闲检测 -> 协议适配器
//
// 会话为每次连接尝试通过 Factory 创建一组解码器与适配器，并由 Serve 驱动到通道关闭。
package pipeline

import (
	"context"
	"fmt"
)

// StateCode 推送给调用方的状态码
type StateCode int

const (
	StateConnecting StateCode = iota + 1
	StateConnectRelease
	StateProxyConnected
	StateTargetConnected
	StateConnectFailed
	StateProxyAuthError
)

func (c StateCode) String() string {
	switch c {
	case StateConnecting:
		return "CONNECTING"
	case StateConnectRelease:
		return "CONNECT_RELEASE"
	case StateProxyConnected:
		return "PROXY_CONNECTED"
	case StateTargetConnected:
		return "TARGET_CONNECTED"
	case StateConnectFailed:
		return "CONNECT_FAILED"
	case StateProxyAuthError:
		return "PROXY_AUTH_ERROR"
	default:
		return fmt.Sprintf("StateCode(%d)", int(c))
	}
}

// ProxyHandle 适配器所代理链路的描述
type ProxyHandle struct {
	Kind   string // socks5 / direct
	Server string // 会话连接的地址
	Target string // 经代理到达的目标，direct 为空
	User   string
}

func (h *ProxyHandle) String() string {
	if h == nil {
		return "<none>"
	}
	if h.Target == "" {
		return fmt.Sprintf("%s://%s", h.Kind, h.Server)
	}
	return fmt.Sprintf("%s://%s -> %s", h.Kind, h.Server, h.Target)
}

// ChannelListener 调用方注册的状态回调，由会话的执行器投递
type ChannelListener interface {
	OnChannelStateChange(proxy *ProxyHandle, connectedToProxy, connectedToTarget bool, code StateCode)
}

// ChannelListenerFunc 函数形式的 ChannelListener
type ChannelListenerFunc func(proxy *ProxyHandle, connectedToProxy, connectedToTarget bool, code StateCode)

// OnChannelStateChange 实现 ChannelListener
func (f ChannelListenerFunc) OnChannelStateChange(proxy *ProxyHandle, connectedToProxy, connectedToTarget bool, code StateCode) {
	f(proxy, connectedToProxy, connectedToTarget, code)
}

// MessageListener 可选：接收解码后的应用消息
type MessageListener interface {
	OnChannelMessage(proxy *ProxyHandle, msg []byte)
}

// SessionNotifier 适配器向会话报告的终态
type SessionNotifier interface {
	NotifyConnectSuccess(ch *Channel)
	NotifyProxyAuthError()
}

// ProxyStateNotifier 代理握手阶段切换通知，通常由解码器实现
type ProxyStateNotifier interface {
	NotifyProxyStateChange(inProxy bool)
}

// Decoder 字节流解码器
//
// Decode 不得持有 data，返回的每个帧归调用方所有。
type Decoder interface {
	Decode(data []byte) ([][]byte, error)
}

// Handler 管线事件处理
type Handler interface {
	OnActive(ctx context.Context, ch *Channel) error
	OnMessage(ctx context.Context, ch *Channel, msg []byte) error
	OnIdle(ctx context.Context, ch *Channel, evt IdleEvent) error
	OnInactive(ch *Channel, cause error)
}

// Adapter 协议适配器
type Adapter interface {
	Handler
	SetSessionNotifier(n SessionNotifier)
	SetProxyStateNotifier(n ProxyStateNotifier)
	SetChannelListener(l ChannelListener)
	Proxy() *ProxyHandle
}

// Factory 每次连接尝试创建一组新的解码器与适配器
type Factory interface {
	NewDecoder() Decoder
	NewAdapter() Adapter
}

// FactoryFuncs 函数形式的 Factory
type FactoryFuncs struct {
	Decoder func() Decoder
	Adapter func() Adapter
}

// NewDecoder 实现 Factory
func (f FactoryFuncs) NewDecoder() Decoder {
	if f.Decoder == nil {
		return nil
	}
	return f.Decoder()
}

// NewAdapter 实现 Factory
func (f FactoryFuncs) NewAdapter() Adapter {
	if f.Adapter == nil {
		return nil
	}
	return f.Adapter()
}
