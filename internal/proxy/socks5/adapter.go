// Package socks5 经 SOCKS5 代理连接目标的管线适配器
package socks5

import (
	"context"
	"net"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	coreerrors "proxylink/internal/core/errors"
	corelog "proxylink/internal/core/log"
	"proxylink/internal/pipeline"
)

// 协议常量
const (
	Version            = 0x05
	CmdConnect         = 0x01
	AuthVersion        = 0x01
	MethodNoAuth       = 0x00
	MethodUserPass     = 0x02
	MethodNoAcceptable = 0xff
	StatusSuccess      = 0x00
)

// DefaultHandshakeTimeout 默认握手超时
const DefaultHandshakeTimeout = 10 * time.Second

// Config 代理参数
type Config struct {
	Target           string // 目标地址 host:port
	Username         string
	Password         string
	HandshakeTimeout time.Duration
}

// Adapter 在通道激活时完成 SOCKS5 握手，之后转发应用消息
type Adapter struct {
	pipeline.BaseAdapter
	cfg Config
}

// NewAdapter 创建 SOCKS5 适配器，server 为会话连接的代理地址
func NewAdapter(server string, cfg Config) *Adapter {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	a := &Adapter{cfg: cfg}
	a.SetProxy(&pipeline.ProxyHandle{
		Kind:   "socks5",
		Server: server,
		Target: cfg.Target,
		User:   cfg.Username,
	})
	return a
}

// forwardDialer 把已建立的通道连接交给 socks 拨号器
type forwardDialer struct {
	conn net.Conn
}

func (f forwardDialer) Dial(network, address string) (net.Conn, error) {
	return f.conn, nil
}

func (f forwardDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f.conn, nil
}

// OnActive 实现 pipeline.Handler
func (a *Adapter) OnActive(ctx context.Context, ch *pipeline.Channel) error {
	log := corelog.OrDefault(a.Log)
	if a.cfg.Target == "" {
		a.EmitState(false, false, pipeline.StateConnectFailed)
		return coreerrors.New(coreerrors.CodeConfigError, "socks5 target is empty")
	}

	a.SwitchProxyState(true)

	var auth *proxy.Auth
	if a.cfg.Username != "" {
		auth = &proxy.Auth{User: a.cfg.Username, Password: a.cfg.Password}
	}
	d, err := proxy.SOCKS5("tcp", ch.RemoteAddr().String(), auth, forwardDialer{conn: ch.Conn()})
	if err != nil {
		a.EmitState(false, false, pipeline.StateConnectFailed)
		return coreerrors.Wrap(err, coreerrors.CodeConfigError, "build socks5 dialer")
	}

	hctx, cancel := context.WithTimeout(ctx, a.cfg.HandshakeTimeout)
	defer cancel()
	if _, err := d.(proxy.ContextDialer).DialContext(hctx, "tcp", a.cfg.Target); err != nil {
		if isAuthFailure(err) {
			log.Warnf("SOCKS5: authentication rejected by %s for user %q", ch.RemoteAddr(), a.cfg.Username)
			a.ReportProxyAuthError()
			return coreerrors.Wrap(err, coreerrors.CodeProxyAuthFailed, "socks5 authentication failed")
		}
		log.Warnf("SOCKS5: handshake with %s failed: %v", ch.RemoteAddr(), err)
		a.EmitState(false, false, pipeline.StateConnectFailed)
		return coreerrors.Wrap(err, coreerrors.CodeHandshakeFailed, "socks5 handshake failed")
	}

	a.SwitchProxyState(false)
	log.Infof("SOCKS5: connected to %s via %s", a.cfg.Target, ch.RemoteAddr())
	a.EmitState(true, false, pipeline.StateProxyConnected)
	a.EmitState(true, true, pipeline.StateTargetConnected)
	a.ReportConnectSuccess(ch)
	return nil
}

func isAuthFailure(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "username/password authentication failed") ||
		strings.Contains(msg, "no acceptable authentication methods")
}
