package client

import (
	"context"
	"net"
	"strconv"
	"time"

	"proxylink/internal/client/transport"
	"proxylink/internal/core/metrics"
)

// Connector 建立到服务端的字节流连接
type Connector interface {
	Dial(ctx context.Context, host string, port int) (net.Conn, error)
}

// ConnectorFunc 函数形式的 Connector
type ConnectorFunc func(ctx context.Context, host string, port int) (net.Conn, error)

// Dial 实现 Connector
func (f ConnectorFunc) Dial(ctx context.Context, host string, port int) (net.Conn, error) {
	return f(ctx, host, port)
}

// TransportConnector 经传输注册表拨号
//
// tcp 固定启用 NoDelay、KeepAlive，所有协议的建连超时均为 transport.ConnectTimeout。
type TransportConnector struct {
	Protocol      string
	WebSocketPath string
}

// NewTransportConnector 创建默认连接器
func NewTransportConnector(protocol, wsPath string) *TransportConnector {
	return &TransportConnector{Protocol: protocol, WebSocketPath: wsPath}
}

// Dial 实现 Connector
func (c *TransportConnector) Dial(ctx context.Context, host string, port int) (net.Conn, error) {
	protocol := c.Protocol
	if protocol == "" {
		protocol = transport.DefaultProtocol
	}
	address := net.JoinHostPort(host, strconv.Itoa(port))
	if protocol == "websocket" && c.WebSocketPath != "" {
		address = "ws://" + address + c.WebSocketPath
	}

	start := time.Now()
	conn, err := transport.Dial(ctx, protocol, address)
	if err != nil {
		_ = metrics.RecordConnectAttempt(protocol, "fail")
		return nil, err
	}
	_ = metrics.RecordConnectAttempt(protocol, "ok")
	_ = metrics.RecordConnectDuration(protocol, time.Since(start).Seconds())
	return conn, nil
}
