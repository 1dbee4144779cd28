package notify

import (
	"sync"

	corelog "proxylink/internal/core/log"
	"proxylink/internal/pipeline"
)

// Dispatcher 把监听器回调投递到执行器上
//
// 更换或移除监听器后，已排队但尚未执行的旧回调被丢弃。
type Dispatcher struct {
	mu       sync.RWMutex
	exec     Executor
	listener pipeline.ChannelListener
	gen      uint64
}

// NewDispatcher 创建分发器，exec 为 nil 时直接执行
func NewDispatcher(exec Executor, listener pipeline.ChannelListener) *Dispatcher {
	if exec == nil {
		exec = Inline
	}
	return &Dispatcher{exec: exec, listener: listener}
}

// Reset 同时替换执行器与监听器
func (d *Dispatcher) Reset(exec Executor, listener pipeline.ChannelListener) {
	d.mu.Lock()
	if exec != nil {
		d.exec = exec
	}
	d.listener = listener
	d.gen++
	d.mu.Unlock()
}

// SetListener 替换监听器，nil 表示移除
func (d *Dispatcher) SetListener(listener pipeline.ChannelListener) {
	d.mu.Lock()
	d.listener = listener
	d.gen++
	d.mu.Unlock()
}

// HasListener 是否注册了监听器
func (d *Dispatcher) HasListener() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.listener != nil
}

func (d *Dispatcher) snapshot() (Executor, pipeline.ChannelListener, uint64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.exec, d.listener, d.gen
}

func (d *Dispatcher) current(gen uint64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.gen == gen
}

// OnChannelStateChange 实现 pipeline.ChannelListener
func (d *Dispatcher) OnChannelStateChange(proxy *pipeline.ProxyHandle, connectedToProxy, connectedToTarget bool, code pipeline.StateCode) {
	exec, l, gen := d.snapshot()
	if l == nil {
		corelog.Debugf("Notify: %s dropped, no listener", code)
		return
	}
	exec.Execute(func() {
		if !d.current(gen) {
			return
		}
		l.OnChannelStateChange(proxy, connectedToProxy, connectedToTarget, code)
	})
}

// OnChannelMessage 实现 pipeline.MessageListener
func (d *Dispatcher) OnChannelMessage(proxy *pipeline.ProxyHandle, msg []byte) {
	exec, l, gen := d.snapshot()
	ml, ok := l.(pipeline.MessageListener)
	if !ok {
		return
	}
	exec.Execute(func() {
		if !d.current(gen) {
			return
		}
		ml.OnChannelMessage(proxy, msg)
	})
}

// LogListener 仅记录日志的监听器
type LogListener struct {
	Log corelog.Logger
}

// OnChannelStateChange 实现 pipeline.ChannelListener
func (l LogListener) OnChannelStateChange(proxy *pipeline.ProxyHandle, connectedToProxy, connectedToTarget bool, code pipeline.StateCode) {
	corelog.OrDefault(l.Log).Infof("Client: [NOTIFY] %s proxy=%v target=%v link=%s", code, connectedToProxy, connectedToTarget, proxy)
}

// OnChannelMessage 实现 pipeline.MessageListener
func (l LogListener) OnChannelMessage(proxy *pipeline.ProxyHandle, msg []byte) {
	corelog.OrDefault(l.Log).Infof("Client: [NOTIFY] message from %s: %q", proxy, msg)
}
