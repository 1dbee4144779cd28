// Package transport 传输层协议注册表
//
// tcp 始终编译；websocket、quic、kcp 可分别用 -tags no_websocket / no_quic / no_kcp 排除。
// 所有协议共用固定的建连超时。
package transport

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	coreerrors "proxylink/internal/core/errors"
)

// ConnectTimeout 固定建连超时
const ConnectTimeout = 5000 * time.Millisecond

// DefaultProtocol 默认传输协议
const DefaultProtocol = "tcp"

// Dialer 协议拨号函数
type Dialer func(ctx context.Context, address string) (net.Conn, error)

// ProtocolInfo 协议信息
type ProtocolInfo struct {
	Name     string
	Priority int // 数字越小优先级越高
	Dialer   Dialer
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*ProtocolInfo)
)

// RegisterProtocol 注册协议，同名覆盖
func RegisterProtocol(name string, priority int, dialer Dialer) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = &ProtocolInfo{Name: name, Priority: priority, Dialer: dialer}
}

// GetProtocol 获取协议信息
func GetProtocol(name string) (*ProtocolInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := registry[name]
	return info, ok
}

// Protocols 已注册协议名，按优先级排序
func Protocols() []string {
	registryMu.RLock()
	infos := make([]*ProtocolInfo, 0, len(registry))
	for _, info := range registry {
		infos = append(infos, info)
	}
	registryMu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Priority == infos[j].Priority {
			return infos[i].Name < infos[j].Name
		}
		return infos[i].Priority < infos[j].Priority
	})
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names
}

// Dial 使用指定协议建立连接，超过 ConnectTimeout 视为失败
func Dial(ctx context.Context, protocol, address string) (net.Conn, error) {
	if protocol == "" {
		protocol = DefaultProtocol
	}
	info, ok := GetProtocol(protocol)
	if !ok {
		return nil, coreerrors.Newf(coreerrors.CodeUnknownTransport, "protocol %q is not available (not compiled in)", protocol)
	}

	dialCtx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	conn, err := info.Dialer(dialCtx, address)
	if err != nil {
		if dialCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, coreerrors.Wrapf(err, coreerrors.CodeTimeout, "%s connect to %s timed out", protocol, address)
		}
		return nil, coreerrors.Wrapf(err, coreerrors.CodeNetworkError, "%s connect to %s failed", protocol, address)
	}
	return conn, nil
}
