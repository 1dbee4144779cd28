// Package client 持久连接会话：连接编排、固定间隔有限次重连、空闲检测与状态通知
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"proxylink/internal/client/notify"
	"proxylink/internal/core/dispose"
	coreerrors "proxylink/internal/core/errors"
	corelog "proxylink/internal/core/log"
	"proxylink/internal/core/metrics"
	"proxylink/internal/host"
	"proxylink/internal/netcheck"
	"proxylink/internal/pipeline"
)

// HostContext 调用方上下文：网络可用性、宿主绑定器与回调执行面
//
// Network 为 nil 时视为网络不可用；Executor 为 nil 时使用会话默认执行器。
type HostContext struct {
	Network  netcheck.Checker
	Binder   host.Binder
	Executor notify.Executor
}

// Session 管理一条持久连接
//
// 同一时刻至多一个连接尝试。Session 创建一次后可反复 Connect、CloseConnect、
// 通过 ResetClientListener 就地更换调用方引用。
type Session struct {
	*dispose.ManagerBase

	id        string
	log       corelog.Logger
	connector Connector
	dispatch  *notify.Dispatcher
	defExec   notify.Executor
	ownedExec *notify.SerialExecutor

	mu       sync.Mutex
	cfg      Config
	env      *HostContext
	factory  pipeline.Factory
	state    State
	channel  *pipeline.Channel // 仅 CONNECTED 时非空
	pending  *pipeline.Channel // 当前尝试中已建立、尚未确认成功的通道
	adapter  pipeline.Adapter
	loop     *dispose.ManagerBase
	inFlight bool
	host     string
	port     int
	mode     startMode
	stopAuto bool
	attempt  int
	retry    *time.Timer
	retrySeq uint64
}

// Option 会话选项
type Option func(*Session)

// WithConfig 设置会话配置
func WithConfig(cfg Config) Option {
	return func(s *Session) { s.cfg = cfg }
}

// WithConnector 替换连接器
func WithConnector(c Connector) Option {
	return func(s *Session) { s.connector = c }
}

// WithLogger 设置日志
func WithLogger(l corelog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithExecutor 设置默认回调执行面
func WithExecutor(e notify.Executor) Option {
	return func(s *Session) { s.defExec = e }
}

// NewSession 创建会话
func NewSession(ctx context.Context, env *HostContext, factory pipeline.Factory, listener pipeline.ChannelListener, opts ...Option) *Session {
	s := &Session{
		ManagerBase: dispose.NewManager("Session", ctx),
		id:          uuid.NewString(),
		cfg:         DefaultConfig(),
		env:         env,
		factory:     factory,
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = corelog.Default()
	}
	s.log = s.log.WithField("session", s.id[:8])
	if s.connector == nil {
		s.connector = NewTransportConnector(s.cfg.Protocol, s.cfg.WebSocketPath)
	}
	if s.defExec == nil {
		s.ownedExec = notify.NewSerialExecutor(s.Ctx())
		s.defExec = s.ownedExec
	}
	s.dispatch = notify.NewDispatcher(s.executorFor(env), listener)

	s.AddCleanHandler(func() error {
		s.mu.Lock()
		s.cancelRetryLocked()
		res := s.detachLocked()
		if hm, ok := s.mode.(*hostedMode); ok {
			res.unbind = hm.reset()
			res.binder = s.binderLocked()
		}
		s.mu.Unlock()
		s.teardown(res)
		if s.ownedExec != nil {
			s.ownedExec.Close()
		}
		return nil
	})
	_ = metrics.SetLinkState(stateNames, StateIdle.String())
	return s
}

func (s *Session) executorFor(env *HostContext) notify.Executor {
	if env != nil && env.Executor != nil {
		return env.Executor
	}
	return s.defExec
}

// ID 会话标识
func (s *Session) ID() string {
	return s.id
}

// SetIdleTimeouts 设置读、写、读写空闲超时，0 关闭对应检测
func (s *Session) SetIdleTimeouts(read, write, all time.Duration) {
	s.mu.Lock()
	s.cfg.ReadIdle, s.cfg.WriteIdle, s.cfg.AllIdle = read, write, all
	s.mu.Unlock()
}

// SetAutoReconnect 设置自动重连开关、最大次数与固定间隔
func (s *Session) SetAutoReconnect(enabled bool, maxAttempts int, delay time.Duration) {
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	s.mu.Lock()
	s.cfg.AutoReconnect, s.cfg.MaxAttempts, s.cfg.RetryDelay = enabled, maxAttempts, delay
	s.mu.Unlock()
}

// Config 当前配置
func (s *Session) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// State 当前状态
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ReconnectAttempt 当前重连计数
func (s *Session) ReconnectAttempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt
}

// Channel 已连接时返回通道
func (s *Session) Channel() *pipeline.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// Status 会话快照
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{
		ID:               s.id,
		State:            s.state.String(),
		Mode:             "none",
		Host:             s.host,
		Port:             s.port,
		ReconnectAttempt: s.attempt,
	}
	if s.mode != nil {
		st.Mode = s.mode.name()
	}
	ch, adapter := s.channel, s.adapter
	s.mu.Unlock()

	if ch != nil {
		st.Connected = ch.IsOpen() && ch.IsActive()
		st.BytesRead, st.BytesWritten = ch.Stats()
	}
	if adapter != nil {
		st.Proxy = adapter.Proxy().String()
	}
	return st
}

// CheckConnectState 通道存在且处于打开、活跃状态，tag 仅用于日志
func (s *Session) CheckConnectState(tag string) bool {
	s.mu.Lock()
	ch := s.channel
	s.mu.Unlock()
	ok := ch != nil && ch.IsOpen() && ch.IsActive()
	s.log.Debugf("Session: check connect state [%s]: %v", tag, ok)
	return ok
}

// SendData 把数据放入写队列
//
// 不阻塞：无可用通道或写队列已满时返回 false；返回 true 只表示已入队，写出结果记录在日志中。
func (s *Session) SendData(data []byte) bool {
	s.mu.Lock()
	ch := s.channel
	s.mu.Unlock()
	if ch == nil || !ch.IsOpen() || !ch.IsActive() {
		return false
	}
	n := len(data)
	full := false
	ok := ch.WriteAndFlush(data, func(err error) {
		switch {
		case err == nil:
			s.log.Debugf("Session: sent %d bytes", n)
			_ = metrics.AddBytesSent(n)
		case coreerrors.IsCode(err, coreerrors.CodeQueueFull):
			// 入队失败时同步回调
			full = true
		default:
			s.log.Warnf("Session: send of %d bytes failed: %v", n, err)
			_ = metrics.RecordSendFailure("write_error")
		}
	})
	switch {
	case ok:
	case full:
		s.log.Warnf("Session: write queue full, %d bytes dropped", n)
		_ = metrics.RecordSendFailure("queue_full")
	default:
		_ = metrics.RecordSendFailure("closed")
	}
	return ok
}

// ResetClientListener 就地替换调用方上下文、管线工厂与监听器，不影响进行中的连接
func (s *Session) ResetClientListener(env *HostContext, factory pipeline.Factory, listener pipeline.ChannelListener) {
	s.mu.Lock()
	s.env = env
	s.factory = factory
	adapter := s.adapter
	s.mu.Unlock()
	s.dispatch.Reset(s.executorFor(env), listener)
	if adapter != nil {
		adapter.SetChannelListener(s.dispatch)
	}
}

// RemoveClientListener 解除调用方引用，之后不再有通知送达调用方
//
// 调用方上下文一并清除，网络视为不可用，因此也不会再自动重连。
func (s *Session) RemoveClientListener() {
	s.mu.Lock()
	s.env = nil
	adapter := s.adapter
	s.mu.Unlock()
	s.dispatch.SetListener(nil)
	if adapter != nil {
		adapter.SetChannelListener(nil)
	}
}

// Stop 释放会话，之后的 Connect 均被忽略
func (s *Session) Stop() {
	s.CloseConnect()
	s.Close()
}

func (s *Session) networkUp() bool {
	s.mu.Lock()
	env := s.env
	s.mu.Unlock()
	if env == nil {
		return false
	}
	return netcheck.Available(env.Network)
}

func (s *Session) binderLocked() host.Binder {
	if s.env == nil {
		return nil
	}
	return s.env.Binder
}

func (s *Session) setStateLocked(st State) {
	s.state = st
	_ = metrics.SetLinkState(stateNames, st.String())
}

func (s *Session) emit(proxy *pipeline.ProxyHandle, toProxy, toTarget bool, code pipeline.StateCode) {
	s.dispatch.OnChannelStateChange(proxy, toProxy, toTarget, code)
}

func (s *Session) String() string {
	return fmt.Sprintf("Session(%s)", s.id[:8])
}
