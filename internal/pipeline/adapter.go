package pipeline

import (
	"context"
	"sync"

	coreerrors "proxylink/internal/core/errors"
	corelog "proxylink/internal/core/log"
)

// BaseAdapter 适配器公共部分：会话回调、解码器切换、调用方监听器与默认事件处理
//
// 具体适配器嵌入 BaseAdapter 并实现 OnActive。
type BaseAdapter struct {
	mu         sync.RWMutex
	session    SessionNotifier
	proxyState ProxyStateNotifier
	listener   ChannelListener
	handle     *ProxyHandle

	// Heartbeat 写空闲时发送的数据，为空则不发送
	Heartbeat []byte
	Log       corelog.Logger
}

// SetSessionNotifier 实现 Adapter
func (b *BaseAdapter) SetSessionNotifier(n SessionNotifier) {
	b.mu.Lock()
	b.session = n
	b.mu.Unlock()
}

// SetProxyStateNotifier 实现 Adapter
func (b *BaseAdapter) SetProxyStateNotifier(n ProxyStateNotifier) {
	b.mu.Lock()
	b.proxyState = n
	b.mu.Unlock()
}

// SetChannelListener 实现 Adapter
func (b *BaseAdapter) SetChannelListener(l ChannelListener) {
	b.mu.Lock()
	b.listener = l
	b.mu.Unlock()
}

// SetProxy 设置链路描述
func (b *BaseAdapter) SetProxy(h *ProxyHandle) {
	b.mu.Lock()
	b.handle = h
	b.mu.Unlock()
}

// Proxy 实现 Adapter
func (b *BaseAdapter) Proxy() *ProxyHandle {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.handle
}

func (b *BaseAdapter) logger() corelog.Logger {
	return corelog.OrDefault(b.Log)
}

// ReportConnectSuccess 向会话报告连接成功
func (b *BaseAdapter) ReportConnectSuccess(ch *Channel) {
	b.mu.RLock()
	n := b.session
	b.mu.RUnlock()
	if n != nil {
		n.NotifyConnectSuccess(ch)
	}
}

// ReportProxyAuthError 向会话报告代理认证失败
func (b *BaseAdapter) ReportProxyAuthError() {
	b.mu.RLock()
	n := b.session
	b.mu.RUnlock()
	if n != nil {
		n.NotifyProxyAuthError()
	}
}

// SwitchProxyState 通知解码器进入或退出代理握手阶段
func (b *BaseAdapter) SwitchProxyState(inProxy bool) {
	b.mu.RLock()
	n := b.proxyState
	b.mu.RUnlock()
	if n != nil {
		n.NotifyProxyStateChange(inProxy)
	}
}

// EmitState 把链路状态转发给调用方监听器
func (b *BaseAdapter) EmitState(connectedToProxy, connectedToTarget bool, code StateCode) {
	b.mu.RLock()
	l, h := b.listener, b.handle
	b.mu.RUnlock()
	if l != nil {
		l.OnChannelStateChange(h, connectedToProxy, connectedToTarget, code)
	}
}

// Forward 把应用消息转发给实现了 MessageListener 的监听器
func (b *BaseAdapter) Forward(msg []byte) {
	b.mu.RLock()
	l, h := b.listener, b.handle
	b.mu.RUnlock()
	if ml, ok := l.(MessageListener); ok {
		ml.OnChannelMessage(h, msg)
	}
}

// OnMessage 默认转发给监听器
func (b *BaseAdapter) OnMessage(ctx context.Context, ch *Channel, msg []byte) error {
	b.Forward(msg)
	return nil
}

// OnIdle 默认处理：读空闲视为连接失效并关闭通道，写空闲发送心跳
func (b *BaseAdapter) OnIdle(ctx context.Context, ch *Channel, evt IdleEvent) error {
	switch evt.State {
	case ReaderIdle:
		b.logger().Warnf("Adapter: %s on %s, closing channel", evt.State, ch.RemoteAddr())
		ch.CloseWithError(coreerrors.Newf(coreerrors.CodeTimeout, "no data read for %s", evt.State))
	case WriterIdle:
		if len(b.Heartbeat) > 0 {
			ch.WriteAndFlush(b.Heartbeat, nil)
		}
	}
	return nil
}

// OnInactive 默认仅记录日志
func (b *BaseAdapter) OnInactive(ch *Channel, cause error) {
	if cause != nil {
		b.logger().Debugf("Adapter: channel %s inactive: %v", ch.ID(), cause)
	}
}

// DirectAdapter 无握手的直连适配器，通道激活即视为连上目标
type DirectAdapter struct {
	BaseAdapter
}

// NewDirectAdapter 创建直连适配器
func NewDirectAdapter(server string, heartbeat []byte) *DirectAdapter {
	a := &DirectAdapter{}
	a.Heartbeat = heartbeat
	a.SetProxy(&ProxyHandle{Kind: "direct", Server: server})
	return a
}

// OnActive 实现 Handler
func (a *DirectAdapter) OnActive(ctx context.Context, ch *Channel) error {
	a.ReportConnectSuccess(ch)
	a.EmitState(false, true, StateTargetConnected)
	return nil
}
