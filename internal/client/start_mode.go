package client

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	coreerrors "proxylink/internal/core/errors"
	"proxylink/internal/core/safe"
	"proxylink/internal/host"
)

// startMode 启动方式，首次启动时确定，之后的重连沿用
type startMode interface {
	name() string
}

// workerMode 在独立协程中运行 Connect
type workerMode struct{}

func (workerMode) name() string { return "worker" }

type bindPhase int

const (
	phaseUnbound bindPhase = iota
	phaseAwaitingBind
	phaseBound
)

// hostedMode 在宿主服务的上下文中运行 Connect
//
// 绑定确认前的连接请求只保留最后一次的 host/port，确认到达时执行且仅执行一次。
type hostedMode struct {
	s *Session

	mu          sync.Mutex
	phase       bindPhase
	svc         host.Service
	pendingHost string
	pendingPort int
	hasPending  bool
}

func (h *hostedMode) name() string { return "service" }

func (h *hostedMode) start(binder host.Binder, hostname string, port int) error {
	h.mu.Lock()
	switch h.phase {
	case phaseBound:
		svc := h.svc
		h.mu.Unlock()
		h.run(svc, hostname, port)
		return nil
	case phaseAwaitingBind:
		h.pendingHost, h.pendingPort, h.hasPending = hostname, port, true
		h.mu.Unlock()
		h.s.log.Debugf("Session: bind pending, connect to %s:%d queued", hostname, port)
		return nil
	}
	if binder == nil {
		h.mu.Unlock()
		return coreerrors.New(coreerrors.CodeConfigError, "hosted start mode requires a binder")
	}
	h.phase = phaseAwaitingBind
	h.pendingHost, h.pendingPort, h.hasPending = hostname, port, true
	h.mu.Unlock()

	if err := binder.Bind(h.s.Ctx(), h); err != nil {
		h.mu.Lock()
		h.phase = phaseUnbound
		h.hasPending = false
		h.mu.Unlock()
		return coreerrors.Wrap(err, coreerrors.CodeServiceClosed, "bind host service")
	}
	return nil
}

// OnServiceConnected 实现 host.Connection
func (h *hostedMode) OnServiceConnected(svc host.Service) {
	h.mu.Lock()
	if h.phase != phaseAwaitingBind {
		h.mu.Unlock()
		h.s.log.Debugf("Session: unexpected bind confirmation ignored")
		return
	}
	h.phase = phaseBound
	h.svc = svc
	hostname, port, ok := h.pendingHost, h.pendingPort, h.hasPending
	h.hasPending = false
	h.mu.Unlock()

	h.s.log.Infof("Session: host service bound")
	if ok {
		h.run(svc, hostname, port)
	}
}

// OnServiceDisconnected 实现 host.Connection
func (h *hostedMode) OnServiceDisconnected() {
	h.mu.Lock()
	h.phase = phaseUnbound
	h.svc = nil
	h.mu.Unlock()
	h.s.log.Warnf("Session: host service disconnected")
}

func (h *hostedMode) run(svc host.Service, hostname string, port int) {
	svc.SetActionListener(h.s)
	svc.StartForeground(fmt.Sprintf("proxylink session %s -> %s", h.s.id[:8], net.JoinHostPort(hostname, strconv.Itoa(port))))
	svc.Connect(hostname, port)
}

func (h *hostedMode) service() host.Service {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.svc
}

func (h *hostedMode) dropPending() {
	h.mu.Lock()
	h.hasPending = false
	h.mu.Unlock()
}

// reset 回到未绑定状态，返回需要解绑的连接
func (h *hostedMode) reset() host.Connection {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.phase == phaseUnbound {
		return nil
	}
	h.phase = phaseUnbound
	h.svc = nil
	h.hasPending = false
	return h
}

// StartWithWorker 以独立协程方式启动，首次调用确定启动方式
func (s *Session) StartWithWorker(hostname string, port int) error {
	return s.start(workerMode{}, hostname, port)
}

// StartWithService 以宿主服务方式启动，首次调用确定启动方式
//
// 绑定确认前的调用只缓存 host/port，确认后在服务上下文中连接。
func (s *Session) StartWithService(hostname string, port int) error {
	return s.start(&hostedMode{s: s}, hostname, port)
}

func (s *Session) start(m startMode, hostname string, port int) error {
	if hostname == "" || port <= 0 || port > 65535 {
		return coreerrors.Newf(coreerrors.CodeInvalidParam, "invalid endpoint %q:%d", hostname, port)
	}
	s.mu.Lock()
	fresh := false
	if s.mode == nil {
		s.mode = m
		fresh = true
	} else if s.mode.name() != m.name() {
		recorded := s.mode.name()
		s.mu.Unlock()
		return coreerrors.Wrapf(coreerrors.ErrModeMismatch, coreerrors.CodeModeMismatch, "session started in %s mode, %s requested", recorded, m.name())
	}
	mode := s.mode
	s.host, s.port = hostname, port
	s.cancelRetryLocked()
	s.mu.Unlock()

	if err := s.launch(mode, hostname, port, 0); err != nil {
		if fresh {
			s.mu.Lock()
			if s.mode == mode {
				s.mode = nil
			}
			s.mu.Unlock()
		}
		return err
	}
	return nil
}

// launch 按启动方式发起一次连接，启动与重连共用
func (s *Session) launch(mode startMode, hostname string, port int, retry uint64) error {
	switch m := mode.(type) {
	case workerMode:
		safe.Go("session-worker", func() { s.connect(hostname, port, retry) })
		return nil
	case *hostedMode:
		s.mu.Lock()
		binder := s.binderLocked()
		s.mu.Unlock()
		return m.start(binder, hostname, port)
	default:
		return coreerrors.Newf(coreerrors.CodeInternal, "unknown start mode %T", mode)
	}
}

// ActionConnect 实现 host.ClientAction，在服务上下文中阻塞连接
func (s *Session) ActionConnect(hostname string, port int) {
	s.Connect(hostname, port)
}

// ActionCheckConnect 实现 host.ClientAction
func (s *Session) ActionCheckConnect(tag string) bool {
	return s.CheckConnectState(tag)
}

var (
	_ host.ClientAction = (*Session)(nil)
	_ host.Connection   = (*hostedMode)(nil)
)
