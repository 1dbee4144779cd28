// Package netcheck 网络可用性检查
package netcheck

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	corelog "proxylink/internal/core/log"
)

// Checker 网络可用性检查接口
type Checker interface {
	// Available 当前是否存在可用网络，须快速返回
	Available() bool
}

// Func 函数形式的 Checker
type Func func() bool

// Available 实现 Checker
func (f Func) Available() bool {
	return f()
}

// Static 可手动切换的检查器，常用于测试与嵌入方自行探测的场景
type Static struct {
	up atomic.Bool
}

// NewStatic 创建初始状态为 up 的检查器
func NewStatic(up bool) *Static {
	s := &Static{}
	s.up.Store(up)
	return s
}

// Set 设置网络状态
func (s *Static) Set(up bool) {
	s.up.Store(up)
}

// Available 实现 Checker
func (s *Static) Available() bool {
	return s.up.Load()
}

// Interfaces 存在已启用、非回环且配置了地址的网卡即认为网络可用
type Interfaces struct {
	list func() ([]net.Interface, error)
}

// NewInterfaces 创建网卡检查器
func NewInterfaces() *Interfaces {
	return &Interfaces{list: net.Interfaces}
}

// Available 实现 Checker
func (c *Interfaces) Available() bool {
	ifaces, err := c.list()
	if err != nil {
		corelog.Debugf("NetCheck: list interfaces: %v", err)
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if len(addrs) > 0 {
			return true
		}
	}
	return false
}

// DefaultProbeTimeout 默认探测超时
const DefaultProbeTimeout = 1500 * time.Millisecond

// Probe 以一次 TCP 拨号探测网络
type Probe struct {
	Address string
	Timeout time.Duration
}

// Available 实现 Checker
func (p *Probe) Available() bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		corelog.Debugf("NetCheck: probe %s failed: %v", p.Address, err)
		return false
	}
	_ = conn.Close()
	return true
}

// Any 任一子检查器可用即可用，无子检查器时不可用
type Any []Checker

// Available 实现 Checker
func (a Any) Available() bool {
	for _, c := range a {
		if c != nil && c.Available() {
			return true
		}
	}
	return false
}

// Available 对可能为 nil 的检查器求值，nil 视为网络不可用
func Available(c Checker) bool {
	if c == nil {
		return false
	}
	return c.Available()
}
