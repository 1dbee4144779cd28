package client

import (
	"context"
	"net"
	"strconv"
	"time"

	"proxylink/internal/core/dispose"
	coreerrors "proxylink/internal/core/errors"
	"proxylink/internal/core/metrics"
	"proxylink/internal/pipeline"
)

// Connect 连接 host:port 并阻塞到连接结束
//
// 必须在独立协程中调用。网络不可用时直接返回；已有连接尝试在进行时忽略本次调用。
// 显式连接会取消已调度的重连。
// 无论成败，结束时发出 CONNECT_RELEASE 并执行一次重连决策。
func (s *Session) Connect(hostname string, port int) {
	s.connect(hostname, port, 0)
}

// connect retry 非 0 时表示由该序号的重连发起，序号过期说明期间已被取消
func (s *Session) connect(hostname string, port int, retry uint64) {
	if !s.networkUp() {
		s.log.Warnf("Session: network unavailable, connect to %s:%d skipped", hostname, port)
		return
	}
	if s.IsClosed() {
		s.log.Warnf("Session: stopped, connect to %s:%d ignored", hostname, port)
		return
	}

	s.mu.Lock()
	if retry != 0 && retry != s.retrySeq {
		s.mu.Unlock()
		s.log.Infof("Session: reconnect to %s:%d cancelled before start", hostname, port)
		return
	}
	if s.inFlight {
		s.mu.Unlock()
		s.log.Warnf("Session: connect to %s:%d ignored, an attempt is in flight", hostname, port)
		return
	}
	if retry == 0 {
		s.cancelRetryLocked()
	}
	s.inFlight = true
	s.host, s.port = hostname, port
	s.setStateLocked(StateConnecting)
	if s.loop == nil {
		s.loop = dispose.NewManager("session-loop", s.Ctx())
	}
	loopCtx := s.loop.Ctx()
	cfg := s.cfg
	factory := s.factory
	s.mu.Unlock()

	s.emit(nil, false, false, pipeline.StateConnecting)

	var proxy *pipeline.ProxyHandle
	defer func() {
		s.finishAttempt(proxy)
	}()
	proxy = s.runAttempt(loopCtx, hostname, port, cfg, factory)
}

func (s *Session) runAttempt(ctx context.Context, hostname string, port int, cfg Config, factory pipeline.Factory) *pipeline.ProxyHandle {
	address := net.JoinHostPort(hostname, strconv.Itoa(port))
	start := time.Now()
	conn, err := s.connector.Dial(ctx, hostname, port)
	if err != nil {
		s.log.Warnf("Session: connect to %s failed: %v", address, err)
		return nil
	}
	s.log.Infof("Session: tcp connected to %s in %s", address, time.Since(start).Round(time.Millisecond))

	opts := cfg.channelOptions()
	opts.Logger = s.log
	ch := pipeline.NewChannel(conn, opts)

	var (
		dec     pipeline.Decoder
		adapter pipeline.Adapter
	)
	if factory != nil {
		dec = factory.NewDecoder()
		adapter = factory.NewAdapter()
	}
	if dec == nil || adapter == nil {
		err := coreerrors.Newf(coreerrors.CodeConfigError, "pipeline factory must supply decoder and adapter (decoder=%v adapter=%v)", dec != nil, adapter != nil)
		s.log.Errorf("Session: %v", err)
		ch.CloseWithError(err)
		return nil
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		s.log.Infof("Session: attempt to %s cancelled before pipeline start", address)
		ch.Close()
		return adapter.Proxy()
	}
	s.pending = ch
	s.adapter = adapter
	s.mu.Unlock()

	adapter.SetSessionNotifier(s)
	if psn, ok := dec.(pipeline.ProxyStateNotifier); ok {
		adapter.SetProxyStateNotifier(psn)
	}
	if s.dispatch.HasListener() {
		adapter.SetChannelListener(s.dispatch)
	}

	cause := pipeline.Serve(ctx, ch, dec, cfg.idle(), adapter)
	read, written := ch.Stats()
	if cause != nil {
		s.log.Infof("Session: channel to %s closed: %v (read=%d written=%d)", address, cause, read, written)
	} else {
		s.log.Infof("Session: channel to %s closed (read=%d written=%d)", address, read, written)
	}
	return adapter.Proxy()
}

// NotifyConnectSuccess 实现 pipeline.SessionNotifier，适配器确认链路可用
func (s *Session) NotifyConnectSuccess(ch *pipeline.Channel) {
	s.mu.Lock()
	if s.state != StateConnecting || ch == nil || s.pending != ch {
		s.mu.Unlock()
		s.log.Warnf("Session: stale connect success ignored")
		return
	}
	s.channel = ch
	s.attempt = 0
	s.setStateLocked(StateConnected)
	s.mu.Unlock()
	s.log.Infof("Session: connected (%s)", ch.RemoteAddr())
}

// NotifyProxyAuthError 实现 pipeline.SessionNotifier，代理拒绝认证
//
// 清零重连计数并抑制本轮重连，错误经状态通知告知调用方。
func (s *Session) NotifyProxyAuthError() {
	s.mu.Lock()
	s.attempt = 0
	s.stopAuto = true
	adapter := s.adapter
	s.mu.Unlock()

	var proxy *pipeline.ProxyHandle
	if adapter != nil {
		proxy = adapter.Proxy()
	}
	s.log.Errorf("Session: proxy authentication failed on %s, auto reconnect suppressed", proxy)
	_ = metrics.RecordProxyAuthError()
	s.emit(proxy, false, false, pipeline.StateProxyAuthError)
}
