package client

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxylink/internal/client/notify"
	"proxylink/internal/codec"
	coreerrors "proxylink/internal/core/errors"
	corelog "proxylink/internal/core/log"
	"proxylink/internal/host"
	"proxylink/internal/netcheck"
	"proxylink/internal/pipeline"
)

const (
	testHost = "10.0.0.1"
	testPort = 1080
)

type codeRecorder struct {
	mu    sync.Mutex
	codes []pipeline.StateCode
}

func (r *codeRecorder) OnChannelStateChange(_ *pipeline.ProxyHandle, _, _ bool, code pipeline.StateCode) {
	r.mu.Lock()
	r.codes = append(r.codes, code)
	r.mu.Unlock()
}

func (r *codeRecorder) all() []pipeline.StateCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pipeline.StateCode(nil), r.codes...)
}

func (r *codeRecorder) count(code pipeline.StateCode) int {
	n := 0
	for _, c := range r.all() {
		if c == code {
			n++
		}
	}
	return n
}

type peer struct {
	conn   net.Conn
	mu     sync.Mutex
	data   []byte
	closed chan struct{}
}

func (p *peer) received() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.data)
}

// harness 记录拨号并为成功的拨号提供 net.Pipe 对端
type harness struct {
	t        *testing.T
	network  *netcheck.Static
	listener *codeRecorder
	dial     func(ctx context.Context, n int) (net.Conn, error)

	mu      sync.Mutex
	hosts   []string
	dialAt  []time.Time
	peers   []*peer
	dialCnt atomic.Int32
}

func newHarness(t *testing.T, dial func(h *harness, ctx context.Context, n int) (net.Conn, error)) *harness {
	h := &harness{t: t, network: netcheck.NewStatic(true), listener: &codeRecorder{}}
	h.dial = func(ctx context.Context, n int) (net.Conn, error) { return dial(h, ctx, n) }
	return h
}

func (h *harness) connector() Connector {
	return ConnectorFunc(func(ctx context.Context, hostname string, port int) (net.Conn, error) {
		n := int(h.dialCnt.Add(1))
		h.mu.Lock()
		h.hosts = append(h.hosts, hostname)
		h.dialAt = append(h.dialAt, time.Now())
		h.mu.Unlock()
		return h.dial(ctx, n)
	})
}

func (h *harness) dials() int {
	return int(h.dialCnt.Load())
}

func (h *harness) peer(i int) *peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.peers[i]
}

func (h *harness) dialTime(i int) time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dialAt[i]
}

// pipe 返回客户端一端，另一端持续读取
func (h *harness) pipe() net.Conn {
	client, server := net.Pipe()
	p := &peer{conn: server, closed: make(chan struct{})}
	h.mu.Lock()
	h.peers = append(h.peers, p)
	h.mu.Unlock()
	h.t.Cleanup(func() { server.Close() })
	go func() {
		defer close(p.closed)
		buf := make([]byte, 1024)
		for {
			n, err := server.Read(buf)
			if n > 0 {
				p.mu.Lock()
				p.data = append(p.data, buf[:n]...)
				p.mu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()
	return client
}

func alwaysPipe(h *harness, _ context.Context, _ int) (net.Conn, error) {
	return h.pipe(), nil
}

func alwaysFail(_ *harness, _ context.Context, _ int) (net.Conn, error) {
	return nil, coreerrors.New(coreerrors.CodeNetworkError, "connection refused")
}

func directFactory() pipeline.Factory {
	return pipeline.FactoryFuncs{
		Decoder: func() pipeline.Decoder { return codec.RawDecoder{} },
		Adapter: func() pipeline.Adapter { return pipeline.NewDirectAdapter("test", nil) },
	}
}

func (h *harness) session(delay time.Duration, opts ...Option) *Session {
	cfg := DefaultConfig()
	cfg.RetryDelay = delay
	base := []Option{
		WithConfig(cfg),
		WithConnector(h.connector()),
		WithExecutor(notify.Inline),
		WithLogger(corelog.NewNopLogger()),
	}
	s := NewSession(context.Background(), &HostContext{Network: h.network}, directFactory(), h.listener, append(base, opts...)...)
	h.t.Cleanup(s.Stop)
	return s
}

func waitState(t *testing.T, s *Session, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == want }, 3*time.Second, 2*time.Millisecond, "state never became %s (now %s)", want, s.State())
}

func TestSession_ConnectAndSend(t *testing.T) {
	h := newHarness(t, alwaysPipe)
	s := h.session(20 * time.Millisecond)

	assert.Equal(t, StateIdle, s.State())
	require.NoError(t, s.StartWithWorker(testHost, testPort))
	waitState(t, s, StateConnected)

	assert.NotNil(t, s.Channel())
	assert.True(t, s.CheckConnectState("test"))
	assert.True(t, s.SendData([]byte("hello")))
	require.Eventually(t, func() bool { return h.peer(0).received() == "hello" }, time.Second, 2*time.Millisecond)

	st := s.Status()
	assert.Equal(t, "CONNECTED", st.State)
	assert.Equal(t, "worker", st.Mode)
	assert.True(t, st.Connected)
	assert.Equal(t, testHost, st.Host)
	assert.Equal(t, testPort, st.Port)
	assert.Contains(t, st.Proxy, "direct")

	want := []pipeline.StateCode{pipeline.StateConnecting, pipeline.StateTargetConnected}
	require.Eventually(t, func() bool { return len(h.listener.all()) == len(want) }, time.Second, time.Millisecond)
	assert.Equal(t, want, h.listener.all())
}

func TestSession_SendDataWithoutChannel(t *testing.T) {
	h := newHarness(t, alwaysPipe)
	s := h.session(20 * time.Millisecond)

	assert.False(t, s.SendData([]byte("x")))
	assert.Equal(t, StateIdle, s.State())
	assert.Nil(t, s.Channel())
	assert.False(t, s.CheckConnectState("idle"))
	assert.Empty(t, h.listener.all())
	assert.Equal(t, 0, h.dials())
}

func TestSession_SendDataFullQueueReturnsFalse(t *testing.T) {
	h := newHarness(t, func(h *harness, _ context.Context, _ int) (net.Conn, error) {
		// 对端从不读取
		client, server := net.Pipe()
		h.t.Cleanup(func() { server.Close() })
		return client, nil
	})
	cfg := DefaultConfig()
	cfg.RetryDelay = time.Second
	cfg.WriteQueueSize = 1
	s := h.session(cfg.RetryDelay, WithConfig(cfg))

	require.NoError(t, s.StartWithWorker(testHost, testPort))
	waitState(t, s, StateConnected)

	results := make(chan []bool, 1)
	go func() {
		var out []bool
		for i := 0; i < 5; i++ {
			out = append(out, s.SendData([]byte("stalled")))
		}
		results <- out
	}()

	select {
	case out := <-results:
		assert.True(t, out[0])
		assert.Contains(t, out, false)
	case <-time.After(time.Second):
		t.Fatal("SendData blocked on a stalled peer")
	}
	assert.Equal(t, StateConnected, s.State())
}

func TestSession_NetworkDownIsNoop(t *testing.T) {
	h := newHarness(t, alwaysPipe)
	h.network.Set(false)
	s := h.session(20 * time.Millisecond)

	s.Connect(testHost, testPort)
	assert.Equal(t, 0, h.dials())
	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, h.listener.all())
}

func TestSession_NilNetworkCheckerIsDown(t *testing.T) {
	h := newHarness(t, alwaysPipe)
	s := NewSession(context.Background(), &HostContext{}, directFactory(), h.listener,
		WithConnector(h.connector()), WithExecutor(notify.Inline), WithLogger(corelog.NewNopLogger()))
	defer s.Stop()

	s.Connect(testHost, testPort)
	assert.Equal(t, 0, h.dials())
}

func TestSession_RetryBudgetExhausted(t *testing.T) {
	h := newHarness(t, alwaysFail)
	s := h.session(20 * time.Millisecond)
	s.SetAutoReconnect(true, 5, 20*time.Millisecond)

	require.NoError(t, s.StartWithWorker(testHost, testPort))

	// 首次连接加 5 次重连
	require.Eventually(t, func() bool { return h.dials() == 6 && s.State() == StateClosed }, 3*time.Second, 2*time.Millisecond)
	assert.Equal(t, 0, s.ReconnectAttempt())

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 6, h.dials())
	assert.Equal(t, 0, s.ReconnectAttempt())
	assert.Equal(t, 6, h.listener.count(pipeline.StateConnecting))
	assert.Equal(t, 6, h.listener.count(pipeline.StateConnectRelease))
}

func TestSession_AttemptNeverExceedsMax(t *testing.T) {
	h := newHarness(t, alwaysFail)
	s := h.session(5 * time.Millisecond)
	s.SetAutoReconnect(true, 3, 5*time.Millisecond)

	var maxSeen atomic.Int32
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if a := int32(s.ReconnectAttempt()); a > maxSeen.Load() {
				maxSeen.Store(a)
			}
		}
	}()

	require.NoError(t, s.StartWithWorker(testHost, testPort))
	require.Eventually(t, func() bool { return h.dials() == 4 && s.State() == StateClosed }, 3*time.Second, time.Millisecond)
	close(stop)
	<-done
	assert.LessOrEqual(t, maxSeen.Load(), int32(3))
}

func TestSession_PeerCloseSchedulesOneRetry(t *testing.T) {
	delay := 100 * time.Millisecond
	h := newHarness(t, func(h *harness, ctx context.Context, n int) (net.Conn, error) {
		if n == 1 {
			return h.pipe(), nil
		}
		<-ctx.Done()
		return nil, ctx.Err()
	})
	s := h.session(delay)

	require.NoError(t, s.StartWithWorker(testHost, testPort))
	waitState(t, s, StateConnected)

	closedAt := time.Now()
	h.peer(0).conn.Close()

	require.Eventually(t, func() bool { return h.dials() == 2 }, 2*time.Second, 2*time.Millisecond)
	assert.GreaterOrEqual(t, h.dialTime(1).Sub(closedAt), delay-10*time.Millisecond)
	assert.Equal(t, 1, s.ReconnectAttempt())
	assert.Equal(t, StateConnecting, s.State())

	time.Sleep(2 * delay)
	assert.Equal(t, 2, h.dials())

	s.CloseConnect()
	assert.Equal(t, 0, s.ReconnectAttempt())
	waitState(t, s, StateClosed)
	time.Sleep(3 * delay)
	assert.Equal(t, 2, h.dials())
}

func TestSession_CloseCancelsScheduledRetry(t *testing.T) {
	delay := 300 * time.Millisecond
	h := newHarness(t, alwaysFail)
	s := h.session(delay)

	require.NoError(t, s.StartWithWorker(testHost, testPort))
	require.Eventually(t, func() bool { return h.dials() == 1 && s.State() == StateClosed }, time.Second, time.Millisecond)

	s.CloseConnect()
	assert.Equal(t, 0, s.ReconnectAttempt())

	time.Sleep(delay + 200*time.Millisecond)
	assert.Equal(t, 1, h.dials())
	assert.Equal(t, StateClosed, s.State())
}

func TestSession_ExplicitConnectCancelsScheduledRetry(t *testing.T) {
	delay := 300 * time.Millisecond
	h := newHarness(t, alwaysPipe)
	s := h.session(delay)

	require.NoError(t, s.StartWithWorker(testHost, testPort))
	waitState(t, s, StateConnected)

	h.peer(0).conn.Close()
	waitState(t, s, StateClosed)
	assert.Equal(t, 1, h.dials())

	go s.Connect(testHost, testPort)
	waitState(t, s, StateConnected)
	assert.Equal(t, 2, h.dials())
	assert.Equal(t, 0, s.ReconnectAttempt())

	time.Sleep(2 * delay)
	assert.Equal(t, StateConnected, s.State())
	assert.Equal(t, 0, s.ReconnectAttempt())
	assert.Equal(t, 2, h.dials())
}

func TestSession_StartCancelsScheduledRetry(t *testing.T) {
	delay := 300 * time.Millisecond
	h := newHarness(t, func(h *harness, ctx context.Context, n int) (net.Conn, error) {
		if n == 1 {
			return nil, coreerrors.New(coreerrors.CodeNetworkError, "connection refused")
		}
		return h.pipe(), nil
	})
	s := h.session(delay)

	require.NoError(t, s.StartWithWorker(testHost, testPort))
	require.Eventually(t, func() bool { return h.dials() == 1 && s.State() == StateClosed }, time.Second, time.Millisecond)

	require.NoError(t, s.StartWithWorker(testHost, testPort))
	waitState(t, s, StateConnected)

	time.Sleep(2 * delay)
	assert.Equal(t, 0, s.ReconnectAttempt())
	assert.Equal(t, 2, h.dials())
}

func TestSession_CloseWhileConnectedSuppressesOneCycle(t *testing.T) {
	delay := 30 * time.Millisecond
	h := newHarness(t, alwaysPipe)
	s := h.session(delay)

	require.NoError(t, s.StartWithWorker(testHost, testPort))
	waitState(t, s, StateConnected)

	s.CloseConnect()
	assert.Nil(t, s.Channel())
	waitState(t, s, StateClosed)
	<-h.peer(0).closed

	time.Sleep(5 * delay)
	assert.Equal(t, 1, h.dials())
	assert.False(t, s.SendData([]byte("late")))

	// 显式重连后恢复正常的自动重连
	s.ReConnectServer(testHost, testPort, false)
	waitState(t, s, StateConnected)
	assert.Equal(t, 2, h.dials())

	h.peer(1).conn.Close()
	require.Eventually(t, func() bool { return h.dials() == 3 && s.State() == StateConnected }, 2*time.Second, 2*time.Millisecond)
	assert.Equal(t, 0, s.ReconnectAttempt())
}

func TestSession_ReConnectServerCloseAutoReconnect(t *testing.T) {
	delay := 30 * time.Millisecond
	h := newHarness(t, alwaysPipe)
	s := h.session(delay)

	require.NoError(t, s.StartWithWorker(testHost, testPort))
	waitState(t, s, StateConnected)

	// 已连接时忽略
	s.ReConnectServer("other", 1, true)
	time.Sleep(2 * delay)
	assert.Equal(t, 1, h.dials())

	s.CloseConnect()
	waitState(t, s, StateClosed)

	s.ReConnectServer("other", 2, true)
	waitState(t, s, StateConnected)
	h.peer(1).conn.Close()
	waitState(t, s, StateClosed)

	time.Sleep(5 * delay)
	assert.Equal(t, 2, h.dials())
	h.mu.Lock()
	assert.Equal(t, []string{testHost, "other"}, h.hosts)
	h.mu.Unlock()
}

type authFailAdapter struct {
	pipeline.BaseAdapter
}

func (a *authFailAdapter) OnActive(ctx context.Context, ch *pipeline.Channel) error {
	a.ReportProxyAuthError()
	return coreerrors.ErrProxyAuthFailed
}

func TestSession_ProxyAuthErrorSuppressesOneCycle(t *testing.T) {
	delay := 30 * time.Millisecond
	h := newHarness(t, alwaysPipe)
	var created atomic.Int32
	factory := pipeline.FactoryFuncs{
		Decoder: func() pipeline.Decoder { return codec.RawDecoder{} },
		Adapter: func() pipeline.Adapter {
			if created.Add(1) == 1 {
				a := &authFailAdapter{}
				a.SetProxy(&pipeline.ProxyHandle{Kind: "socks5", Server: "test"})
				return a
			}
			return pipeline.NewDirectAdapter("test", nil)
		},
	}
	s := h.session(delay)
	s.ResetClientListener(&HostContext{Network: h.network}, factory, h.listener)

	require.NoError(t, s.StartWithWorker(testHost, testPort))
	require.Eventually(t, func() bool { return h.listener.count(pipeline.StateConnectRelease) == 1 }, time.Second, time.Millisecond)
	waitState(t, s, StateClosed)

	time.Sleep(5 * delay)
	assert.Equal(t, 1, h.dials())
	assert.Equal(t, 0, s.ReconnectAttempt())
	assert.Equal(t, 1, h.listener.count(pipeline.StateProxyAuthError))

	s.ReConnectServer(testHost, testPort, false)
	waitState(t, s, StateConnected)

	h.peer(1).conn.Close()
	require.Eventually(t, func() bool { return h.dials() == 3 && s.State() == StateConnected }, 2*time.Second, 2*time.Millisecond)
}

func TestSession_MissingAdapterCountsTowardRetries(t *testing.T) {
	h := newHarness(t, alwaysPipe)
	factory := pipeline.FactoryFuncs{
		Decoder: func() pipeline.Decoder { return codec.RawDecoder{} },
	}
	s := h.session(10 * time.Millisecond)
	s.ResetClientListener(&HostContext{Network: h.network}, factory, h.listener)
	s.SetAutoReconnect(true, 1, 10*time.Millisecond)

	require.NoError(t, s.StartWithWorker(testHost, testPort))
	require.Eventually(t, func() bool { return h.dials() == 2 && s.State() == StateClosed }, 2*time.Second, time.Millisecond)
	<-h.peer(0).closed
	<-h.peer(1).closed

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, h.dials())
	assert.Nil(t, s.Channel())
}

func TestSession_AutoReconnectDisabled(t *testing.T) {
	h := newHarness(t, alwaysFail)
	s := h.session(10 * time.Millisecond)
	s.SetAutoReconnect(false, 5, 10*time.Millisecond)

	require.NoError(t, s.StartWithWorker(testHost, testPort))
	require.Eventually(t, func() bool { return h.dials() == 1 && s.State() == StateClosed }, time.Second, time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, h.dials())
}

func TestSession_NetworkDownStopsRetries(t *testing.T) {
	h := newHarness(t, func(h *harness, _ context.Context, _ int) (net.Conn, error) {
		h.network.Set(false)
		return nil, errors.New("unreachable")
	})
	s := h.session(10 * time.Millisecond)

	require.NoError(t, s.StartWithWorker(testHost, testPort))
	require.Eventually(t, func() bool { return h.dials() == 1 && s.State() == StateClosed }, time.Second, time.Millisecond)
	h.network.Set(true)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, h.dials())
}

func TestSession_StartModeFixedOnFirstStart(t *testing.T) {
	h := newHarness(t, alwaysPipe)
	h.network.Set(false)
	s := h.session(10 * time.Millisecond)

	// 缺少绑定器，启动失败且不固定启动方式
	err := s.StartWithService(testHost, testPort)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeConfigError))

	require.NoError(t, s.StartWithWorker(testHost, testPort))
	err = s.StartWithService(testHost, testPort)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeModeMismatch))
	assert.ErrorIs(t, err, coreerrors.ErrModeMismatch)
	assert.Equal(t, "worker", s.Status().Mode)

	assert.True(t, coreerrors.IsCode(s.StartWithWorker("", 1), coreerrors.CodeInvalidParam))
	assert.True(t, coreerrors.IsCode(s.StartWithWorker(testHost, 70000), coreerrors.CodeInvalidParam))
}

func TestSession_ReConnectServerWithoutMode(t *testing.T) {
	h := newHarness(t, alwaysPipe)
	s := h.session(10 * time.Millisecond)

	s.ReConnectServer(testHost, testPort, false)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, h.dials())
	assert.Equal(t, StateIdle, s.State())
}

func TestSession_HostedServiceDefersUntilBind(t *testing.T) {
	h := newHarness(t, alwaysPipe)
	ctx := context.Background()
	svc := host.NewLocalService(ctx, io.Discard)
	defer svc.Close()
	binder := host.NewLocalBinder(ctx, svc, 50*time.Millisecond)

	s := h.session(20 * time.Millisecond)
	s.ResetClientListener(&HostContext{Network: h.network, Binder: binder}, directFactory(), h.listener)

	require.NoError(t, s.StartWithService("first.example", 1))
	require.NoError(t, s.StartWithService("second.example", 2))
	assert.Equal(t, 0, h.dials())

	waitState(t, s, StateConnected)
	assert.Equal(t, 1, h.dials())
	h.mu.Lock()
	assert.Equal(t, []string{"second.example"}, h.hosts)
	h.mu.Unlock()

	fg, status := svc.Foreground()
	assert.True(t, fg)
	assert.Contains(t, status, "second.example:2")
	assert.True(t, svc.CheckConnect("svc"))
	assert.Equal(t, "service", s.Status().Mode)

	assert.True(t, coreerrors.IsCode(s.StartWithWorker(testHost, testPort), coreerrors.CodeModeMismatch))

	// 重连沿用服务方式
	h.peer(0).conn.Close()
	require.Eventually(t, func() bool { return h.dials() == 2 && s.State() == StateConnected }, 2*time.Second, 2*time.Millisecond)

	s.CloseConnect()
	waitState(t, s, StateClosed)
	fg, _ = svc.Foreground()
	assert.False(t, fg)
	assert.False(t, svc.CheckConnect("svc"))
}

func TestSession_CloseDropsPendingBind(t *testing.T) {
	h := newHarness(t, alwaysPipe)
	ctx := context.Background()
	svc := host.NewLocalService(ctx, io.Discard)
	defer svc.Close()
	binder := host.NewLocalBinder(ctx, svc, 80*time.Millisecond)

	s := h.session(20 * time.Millisecond)
	s.ResetClientListener(&HostContext{Network: h.network, Binder: binder}, directFactory(), h.listener)

	require.NoError(t, s.StartWithService(testHost, testPort))
	s.CloseConnect()

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, h.dials())
	fg, _ := svc.Foreground()
	assert.False(t, fg)
}

func TestSession_RemoveClientListener(t *testing.T) {
	h := newHarness(t, alwaysPipe)
	s := h.session(10 * time.Millisecond)

	require.NoError(t, s.StartWithWorker(testHost, testPort))
	waitState(t, s, StateConnected)
	before := len(h.listener.all())

	s.RemoveClientListener()
	h.peer(0).conn.Close()
	waitState(t, s, StateClosed)

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, h.listener.all(), before)
	// 调用方上下文已解除，不再自动重连
	assert.Equal(t, 1, h.dials())
}

func TestSession_ResetClientListenerSwapsListener(t *testing.T) {
	h := newHarness(t, alwaysPipe)
	s := h.session(10 * time.Millisecond)
	s.SetAutoReconnect(false, 0, 0)

	require.NoError(t, s.StartWithWorker(testHost, testPort))
	waitState(t, s, StateConnected)

	next := &codeRecorder{}
	s.ResetClientListener(&HostContext{Network: h.network}, directFactory(), next)
	h.peer(0).conn.Close()
	waitState(t, s, StateClosed)

	require.Eventually(t, func() bool { return next.count(pipeline.StateConnectRelease) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, h.listener.count(pipeline.StateConnectRelease))
}

func TestSession_DefaultExecutorPreservesOrder(t *testing.T) {
	h := newHarness(t, alwaysPipe)
	cfg := DefaultConfig()
	cfg.AutoReconnect = false
	s := NewSession(context.Background(), &HostContext{Network: h.network}, directFactory(), h.listener,
		WithConfig(cfg), WithConnector(h.connector()), WithLogger(corelog.NewNopLogger()))
	defer s.Stop()

	require.NoError(t, s.StartWithWorker(testHost, testPort))
	waitState(t, s, StateConnected)
	h.peer(0).conn.Close()
	waitState(t, s, StateClosed)

	want := []pipeline.StateCode{pipeline.StateConnecting, pipeline.StateTargetConnected, pipeline.StateConnectRelease}
	require.Eventually(t, func() bool { return len(h.listener.all()) == len(want) }, time.Second, time.Millisecond)
	assert.Equal(t, want, h.listener.all())
}

func TestSession_ChannelIffConnected(t *testing.T) {
	h := newHarness(t, alwaysPipe)
	s := h.session(5 * time.Millisecond)

	var violations atomic.Int32
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			s.mu.Lock()
			if (s.state == StateConnected) != (s.channel != nil) {
				violations.Add(1)
			}
			s.mu.Unlock()
		}
	}()

	require.NoError(t, s.StartWithWorker(testHost, testPort))
	for i := 0; i < 5; i++ {
		waitState(t, s, StateConnected)
		if i%2 == 0 {
			s.CloseConnect()
			waitState(t, s, StateClosed)
			s.ReConnectServer(testHost, testPort, false)
		} else {
			d := h.dials()
			h.peer(i).conn.Close()
			require.Eventually(t, func() bool { return h.dials() == d+1 }, 2*time.Second, time.Millisecond)
		}
	}
	waitState(t, s, StateConnected)
	close(stop)
	<-done
	assert.Zero(t, violations.Load())
}

func TestSession_StopIgnoresConnect(t *testing.T) {
	h := newHarness(t, alwaysPipe)
	s := h.session(10 * time.Millisecond)

	require.NoError(t, s.StartWithWorker(testHost, testPort))
	waitState(t, s, StateConnected)
	s.Stop()
	<-h.peer(0).closed

	s.Connect(testHost, testPort)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, h.dials())
	assert.True(t, s.IsClosed())
}
