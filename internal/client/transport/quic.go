//go:build !no_quic

package transport

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	corelog "proxylink/internal/core/log"
)

// QUICNextProto QUIC ALPN 标识
const QUICNextProto = "proxylink-quic"

func init() {
	RegisterProtocol("quic", 30, DialQUIC)
}

// quicStreamConn 单条 QUIC 流包装成 net.Conn
type quicStreamConn struct {
	*quic.Stream
	conn      *quic.Conn
	closeOnce sync.Once
}

func (c *quicStreamConn) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *quicStreamConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *quicStreamConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.Stream.Close()
		err = c.conn.CloseWithError(0, "closed")
	})
	return err
}

// DialQUIC 建立 QUIC 连接并打开一条双向流
func DialQUIC(ctx context.Context, address string) (net.Conn, error) {
	tlsConf := &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{QUICNextProto},
	}
	quicConf := &quic.Config{
		HandshakeIdleTimeout: ConnectTimeout,
		MaxIdleTimeout:       30 * time.Second,
		KeepAlivePeriod:      10 * time.Second,
	}

	conn, err := quic.DialAddr(ctx, address, tlsConf, quicConf)
	if err != nil {
		return nil, err
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "open stream failed")
		return nil, err
	}
	corelog.Debugf("Transport: quic stream opened to %s", address)
	return &quicStreamConn{Stream: stream, conn: conn}, nil
}
