//go:build !no_websocket

package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	coreerrors "proxylink/internal/core/errors"
	corelog "proxylink/internal/core/log"
)

// DefaultWebSocketPath 未指定路径时使用的 WebSocket 路径
const DefaultWebSocketPath = "/proxylink"

const webSocketBufferSize = 32 * 1024

func init() {
	RegisterProtocol("websocket", 20, DialWebSocket)
}

// webSocketConn 把 WebSocket 二进制消息流包装成 net.Conn
type webSocketConn struct {
	ws *websocket.Conn

	readMu sync.Mutex
	reader io.Reader

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *webSocketConn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	for {
		if c.reader == nil {
			msgType, r, err := c.ws.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			if msgType != websocket.BinaryMessage {
				continue
			}
			c.reader = r
		}
		n, err := c.reader.Read(p)
		if err == io.EOF {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *webSocketConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *webSocketConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *webSocketConn) LocalAddr() net.Addr  { return c.ws.LocalAddr() }
func (c *webSocketConn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

func (c *webSocketConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

func (c *webSocketConn) SetReadDeadline(t time.Time) error  { return c.ws.SetReadDeadline(t) }
func (c *webSocketConn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }

// NormalizeWebSocketURL 规范化地址：
// http(s) 转为 ws(s)，无协议时补 ws://，无路径时补 DefaultWebSocketPath
func NormalizeWebSocketURL(address string) (string, error) {
	if !strings.Contains(address, "://") {
		address = "ws://" + address
	}
	u, err := url.Parse(address)
	if err != nil {
		return "", coreerrors.Wrap(err, coreerrors.CodeInvalidParam, "invalid websocket address")
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "http":
		u.Scheme = "ws"
	case "wss", "https":
		u.Scheme = "wss"
	default:
		return "", coreerrors.Newf(coreerrors.CodeInvalidParam, "unsupported websocket scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", coreerrors.Newf(coreerrors.CodeInvalidParam, "websocket address %q has no host", address)
	}
	if u.Path == "" {
		u.Path = DefaultWebSocketPath
	}
	return u.String(), nil
}

// DialWebSocket 建立 WebSocket 连接
func DialWebSocket(ctx context.Context, address string) (net.Conn, error) {
	wsURL, err := NormalizeWebSocketURL(address)
	if err != nil {
		return nil, err
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: ConnectTimeout,
		ReadBufferSize:   webSocketBufferSize,
		WriteBufferSize:  webSocketBufferSize,
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return DialTCP(ctx, addr)
		},
	}
	ws, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake with %s: status %d: %w", wsURL, resp.StatusCode, err)
		}
		return nil, err
	}
	corelog.Debugf("Transport: websocket connected to %s", wsURL)
	return &webSocketConn{ws: ws}, nil
}
