package socks5

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "proxylink/internal/core/errors"
	"proxylink/internal/pipeline"
)

type fakeServer struct {
	user, pass string
	replyCode  byte

	mu       sync.Mutex
	target   string
	methods  []byte
	gotUser  string
	finished chan struct{}
}

func newFakeServer(user, pass string) *fakeServer {
	return &fakeServer{user: user, pass: pass, finished: make(chan struct{})}
}

func (s *fakeServer) serve(conn net.Conn) {
	defer close(s.finished)
	hdr := make([]byte, 2)
	if _, err := io.ReadFull(conn, hdr); err != nil {
		return
	}
	methods := make([]byte, hdr[1])
	if _, err := io.ReadFull(conn, methods); err != nil {
		return
	}
	s.mu.Lock()
	s.methods = methods
	s.mu.Unlock()

	if s.user == "" {
		conn.Write([]byte{Version, MethodNoAuth})
	} else {
		supported := false
		for _, m := range methods {
			if m == MethodUserPass {
				supported = true
			}
		}
		if !supported {
			conn.Write([]byte{Version, MethodNoAcceptable})
			return
		}
		conn.Write([]byte{Version, MethodUserPass})

		b := make([]byte, 2)
		if _, err := io.ReadFull(conn, b); err != nil {
			return
		}
		user := make([]byte, b[1])
		io.ReadFull(conn, user)
		io.ReadFull(conn, b[:1])
		pass := make([]byte, b[0])
		io.ReadFull(conn, pass)
		s.mu.Lock()
		s.gotUser = string(user)
		s.mu.Unlock()
		if string(user) != s.user || string(pass) != s.pass {
			conn.Write([]byte{AuthVersion, 0x01})
			return
		}
		conn.Write([]byte{AuthVersion, StatusSuccess})
	}

	req := make([]byte, 4)
	if _, err := io.ReadFull(conn, req); err != nil {
		return
	}
	var host string
	switch req[3] {
	case 0x01:
		ip := make([]byte, 4)
		io.ReadFull(conn, ip)
		host = net.IP(ip).String()
	case 0x03:
		l := make([]byte, 1)
		io.ReadFull(conn, l)
		name := make([]byte, l[0])
		io.ReadFull(conn, name)
		host = string(name)
	case 0x04:
		ip := make([]byte, 16)
		io.ReadFull(conn, ip)
		host = net.IP(ip).String()
	}
	port := make([]byte, 2)
	io.ReadFull(conn, port)
	s.mu.Lock()
	s.target = net.JoinHostPort(host, strconv.Itoa(int(binary.BigEndian.Uint16(port))))
	s.mu.Unlock()

	conn.Write([]byte{Version, s.replyCode, 0x00, 0x01, 127, 0, 0, 1, 0x1f, 0x90})
}

type recordingNotifier struct {
	mu        sync.Mutex
	success   int
	authError int
}

func (n *recordingNotifier) NotifyConnectSuccess(ch *pipeline.Channel) {
	n.mu.Lock()
	n.success++
	n.mu.Unlock()
}

func (n *recordingNotifier) NotifyProxyAuthError() {
	n.mu.Lock()
	n.authError++
	n.mu.Unlock()
}

type stateRecord struct {
	proxy, target bool
	code          pipeline.StateCode
}

type recordingListener struct {
	mu     sync.Mutex
	states []stateRecord
}

func (l *recordingListener) OnChannelStateChange(h *pipeline.ProxyHandle, p, t bool, code pipeline.StateCode) {
	l.mu.Lock()
	l.states = append(l.states, stateRecord{p, t, code})
	l.mu.Unlock()
}

type proxyFlag struct {
	mu      sync.Mutex
	history []bool
}

func (f *proxyFlag) NotifyProxyStateChange(in bool) {
	f.mu.Lock()
	f.history = append(f.history, in)
	f.mu.Unlock()
}

func setup(t *testing.T, srv *fakeServer, cfg Config) (*Adapter, *pipeline.Channel, *recordingNotifier, *recordingListener, *proxyFlag) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	go srv.serve(server)

	ch := pipeline.NewChannel(client, pipeline.ChannelOptions{})
	a := NewAdapter("proxy.local:1080", cfg)
	n := &recordingNotifier{}
	l := &recordingListener{}
	f := &proxyFlag{}
	a.SetSessionNotifier(n)
	a.SetChannelListener(l)
	a.SetProxyStateNotifier(f)
	return a, ch, n, l, f
}

func TestAdapter_NoAuthSuccess(t *testing.T) {
	srv := newFakeServer("", "")
	a, ch, n, l, f := setup(t, srv, Config{Target: "example.com:443", HandshakeTimeout: 2 * time.Second})

	require.NoError(t, a.OnActive(context.Background(), ch))

	srv.mu.Lock()
	assert.Equal(t, "example.com:443", srv.target)
	assert.Equal(t, []byte{MethodNoAuth}, srv.methods)
	srv.mu.Unlock()

	assert.Equal(t, 1, n.success)
	assert.Equal(t, 0, n.authError)
	assert.Equal(t, []stateRecord{
		{true, false, pipeline.StateProxyConnected},
		{true, true, pipeline.StateTargetConnected},
	}, l.states)
	assert.Equal(t, []bool{true, false}, f.history)

	h := a.Proxy()
	require.NotNil(t, h)
	assert.Equal(t, "socks5", h.Kind)
	assert.Equal(t, "example.com:443", h.Target)
}

func TestAdapter_UserPassSuccess(t *testing.T) {
	srv := newFakeServer("alice", "secret")
	a, ch, n, _, _ := setup(t, srv, Config{Target: "10.0.0.5:22", Username: "alice", Password: "secret"})

	require.NoError(t, a.OnActive(context.Background(), ch))

	srv.mu.Lock()
	assert.Equal(t, "alice", srv.gotUser)
	assert.Equal(t, "10.0.0.5:22", srv.target)
	srv.mu.Unlock()
	assert.Equal(t, 1, n.success)
}

func TestAdapter_AuthRejected(t *testing.T) {
	srv := newFakeServer("alice", "secret")
	a, ch, n, l, _ := setup(t, srv, Config{Target: "example.com:80", Username: "alice", Password: "wrong"})

	err := a.OnActive(context.Background(), ch)
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeProxyAuthFailed))
	assert.Equal(t, 1, n.authError)
	assert.Equal(t, 0, n.success)
	assert.Empty(t, l.states)
}

func TestAdapter_NoAcceptableMethod(t *testing.T) {
	srv := newFakeServer("alice", "secret")
	a, ch, n, _, _ := setup(t, srv, Config{Target: "example.com:80"})

	err := a.OnActive(context.Background(), ch)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeProxyAuthFailed))
	assert.Equal(t, 1, n.authError)
}

func TestAdapter_ConnectRefused(t *testing.T) {
	srv := newFakeServer("", "")
	srv.replyCode = 0x05
	a, ch, n, l, _ := setup(t, srv, Config{Target: "example.com:80"})

	err := a.OnActive(context.Background(), ch)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeHandshakeFailed))
	assert.Equal(t, 0, n.success)
	assert.Equal(t, 0, n.authError)
	assert.Equal(t, []stateRecord{{false, false, pipeline.StateConnectFailed}}, l.states)
}

func TestAdapter_HandshakeTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	go io.Copy(io.Discard, server)

	ch := pipeline.NewChannel(client, pipeline.ChannelOptions{})
	a := NewAdapter("proxy.local:1080", Config{Target: "example.com:80", HandshakeTimeout: 50 * time.Millisecond})

	start := time.Now()
	err := a.OnActive(context.Background(), ch)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeHandshakeFailed))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAdapter_EmptyTarget(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ch := pipeline.NewChannel(client, pipeline.ChannelOptions{})
	a := NewAdapter("proxy.local:1080", Config{})
	err := a.OnActive(context.Background(), ch)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeConfigError))
}

var _ pipeline.Adapter = (*Adapter)(nil)
