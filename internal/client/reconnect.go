package client

import (
	"time"

	"proxylink/internal/core/dispose"
	"proxylink/internal/core/metrics"
	"proxylink/internal/host"
	"proxylink/internal/pipeline"
)

type decision int

const (
	decisionSuppressed decision = iota // 单次抑制，标志已消费
	decisionStopped                    // 未启用自动重连或网络不可用
	decisionExhausted                  // 重连次数用尽
	decisionScheduled
)

func (d decision) String() string {
	switch d {
	case decisionSuppressed:
		return "suppressed"
	case decisionStopped:
		return "stopped"
	case decisionExhausted:
		return "exhausted"
	default:
		return "scheduled"
	}
}

// resources 从会话上摘下、待释放的资源
type resources struct {
	loop    *dispose.ManagerBase
	channel *pipeline.Channel
	adapter pipeline.Adapter
	service host.Service
	unbind  host.Connection
	binder  host.Binder
}

func (s *Session) detachLocked() resources {
	res := resources{loop: s.loop, channel: s.pending, adapter: s.adapter}
	if hm, ok := s.mode.(*hostedMode); ok {
		res.service = hm.service()
	}
	s.loop = nil
	s.pending = nil
	s.channel = nil
	s.adapter = nil
	return res
}

func (s *Session) teardown(res resources) {
	if res.adapter != nil {
		res.adapter.SetSessionNotifier(nil)
		res.adapter.SetProxyStateNotifier(nil)
	}
	if res.channel != nil {
		res.channel.Close()
	}
	if res.loop != nil {
		res.loop.Close()
	}
	if res.service != nil {
		res.service.RemoveActionListener()
	}
	if res.unbind != nil && res.binder != nil {
		res.binder.Unbind(res.unbind)
	}
}

// finishAttempt 连接结束后的收尾：发出 CONNECT_RELEASE 并执行一次重连决策
func (s *Session) finishAttempt(proxy *pipeline.ProxyHandle) {
	s.mu.Lock()
	s.channel = nil
	s.pending = nil
	s.setStateLocked(StateClosing)
	s.mu.Unlock()

	s.emit(proxy, false, false, pipeline.StateConnectRelease)

	netUp := s.networkUp()

	s.mu.Lock()
	d := s.decideLocked(netUp)
	res := s.detachLocked()
	s.setStateLocked(StateClosed)
	s.inFlight = false
	attempt := s.attempt
	s.mu.Unlock()

	s.teardown(res)

	switch d {
	case decisionScheduled:
		s.log.Infof("Session: reconnect %d scheduled", attempt+1)
		_ = metrics.RecordReconnectScheduled()
	case decisionExhausted:
		s.log.Warnf("Session: reconnect attempts exhausted, waiting for explicit connect")
		_ = metrics.RecordReconnectExhausted()
	default:
		s.log.Infof("Session: no reconnect (%s)", d)
	}
}

// decideLocked 重连决策，调用方持有 s.mu
func (s *Session) decideLocked(netUp bool) decision {
	if s.stopAuto {
		s.stopAuto = false
		return decisionSuppressed
	}
	if !s.cfg.AutoReconnect || !netUp || s.IsClosed() {
		return decisionStopped
	}
	if s.attempt >= s.cfg.MaxAttempts {
		s.attempt = 0
		return decisionExhausted
	}
	s.scheduleLocked()
	return decisionScheduled
}

// cancelRetryLocked 作废已调度的重连，过期序号的定时器与连接尝试都会被忽略
func (s *Session) cancelRetryLocked() {
	s.retrySeq++
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
}

func (s *Session) scheduleLocked() {
	s.retrySeq++
	seq := s.retrySeq
	if s.retry != nil {
		s.retry.Stop()
	}
	s.retry = time.AfterFunc(s.cfg.RetryDelay, func() { s.fireRetry(seq) })
}

// fireRetry 延迟到期：重新检查抑制标志后按记录的启动方式重连
func (s *Session) fireRetry(seq uint64) {
	s.mu.Lock()
	if seq != s.retrySeq {
		s.mu.Unlock()
		return
	}
	s.retry = nil
	if s.stopAuto {
		s.stopAuto = false
		s.attempt = 0
		s.mu.Unlock()
		s.log.Infof("Session: scheduled reconnect cancelled")
		return
	}
	if s.IsClosed() {
		s.mu.Unlock()
		return
	}
	s.attempt++
	mode, hostname, port, attempt := s.mode, s.host, s.port, s.attempt
	s.mu.Unlock()

	s.log.Infof("Session: reconnecting to %s:%d (attempt %d)", hostname, port, attempt)
	if mode == nil {
		s.log.Warnf("Session: no start mode recorded, reconnect skipped")
		return
	}
	if err := s.launch(mode, hostname, port, seq); err != nil {
		s.log.Errorf("Session: reconnect launch failed: %v", err)
	}
}

// CloseConnect 主动断开
//
// 清零重连计数，取消已调度的重连，抑制紧随其后的一次重连决策，并立即释放通道与事件循环资源。
// 没有进行中的连接尝试时，抑制标志当场消费，不会影响之后显式发起的连接。
func (s *Session) CloseConnect() {
	s.mu.Lock()
	s.attempt = 0
	s.cancelRetryLocked()
	if s.inFlight {
		s.stopAuto = true
		s.setStateLocked(StateClosing)
	} else {
		s.stopAuto = false
		if s.state != StateIdle {
			s.setStateLocked(StateClosed)
		}
	}
	if hm, ok := s.mode.(*hostedMode); ok {
		hm.dropPending()
	}
	res := s.detachLocked()
	s.mu.Unlock()

	s.log.Infof("Session: close requested")
	s.teardown(res)
	if res.service != nil {
		res.service.StopForeground()
	}
}

// ReConnectServer 未连接时按记录的启动方式重新连接 host:port
//
// closeAutoReconnect 为 true 时，本次连接结束后的那一轮自动重连被抑制。
func (s *Session) ReConnectServer(hostname string, port int, closeAutoReconnect bool) {
	if s.CheckConnectState("reconnect") {
		s.log.Debugf("Session: already connected, reconnect ignored")
		return
	}
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		s.log.Infof("Session: attempt in flight, reconnect ignored")
		return
	}
	s.cancelRetryLocked()
	s.stopAuto = closeAutoReconnect
	s.host, s.port = hostname, port
	mode := s.mode
	s.mu.Unlock()

	if mode == nil {
		s.log.Warnf("Session: no start mode recorded, call StartWithWorker or StartWithService first")
		return
	}
	if err := s.launch(mode, hostname, port, 0); err != nil {
		s.log.Errorf("Session: reconnect to %s:%d failed to launch: %v", hostname, port, err)
	}
}
