package transport

import (
	"context"
	"net"
	"time"

	corelog "proxylink/internal/core/log"
)

// KeepAlivePeriod TCP keep-alive 探测周期
const KeepAlivePeriod = 30 * time.Second

func init() {
	RegisterProtocol("tcp", 10, DialTCP)
}

// socketOptions 可设置 TCP 选项的连接
type socketOptions interface {
	SetKeepAlive(keepalive bool) error
	SetKeepAlivePeriod(d time.Duration) error
	SetNoDelay(noDelay bool) error
}

// ApplySocketOptions 设置固定的套接字选项：no-delay、keep-alive
//
// 不支持这些选项的连接（如 quic、kcp 的包装）直接跳过。
func ApplySocketOptions(conn net.Conn) {
	opts, ok := conn.(socketOptions)
	if !ok {
		return
	}
	if err := opts.SetNoDelay(true); err != nil {
		corelog.Debugf("Transport: SetNoDelay failed: %v", err)
	}
	if err := opts.SetKeepAlive(true); err != nil {
		corelog.Debugf("Transport: SetKeepAlive failed: %v", err)
	}
	if err := opts.SetKeepAlivePeriod(KeepAlivePeriod); err != nil {
		corelog.Debugf("Transport: SetKeepAlivePeriod failed: %v", err)
	}
}

// DialTCP 建立 TCP 连接
func DialTCP(ctx context.Context, address string) (net.Conn, error) {
	dialer := &net.Dialer{
		Timeout:   ConnectTimeout,
		KeepAlive: KeepAlivePeriod,
	}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	ApplySocketOptions(conn)
	return conn, nil
}
