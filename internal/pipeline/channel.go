package pipeline

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	coreerrors "proxylink/internal/core/errors"
	corelog "proxylink/internal/core/log"
)

// DefaultWriteQueueSize 默认写队列长度
const DefaultWriteQueueSize = 256

// ChannelOptions 通道参数
type ChannelOptions struct {
	WriteQueueSize int // <=0 使用 DefaultWriteQueueSize
	SendRateLimit  int // 发送限速（字节/秒），0 不限速
	Logger         corelog.Logger
}

type writeRequest struct {
	data []byte
	done func(error)
}

// Channel 已建立的双向字节流连接
//
// 写入经队列由单个写协程顺序刷出；读取与写协程由 Serve 驱动。
type Channel struct {
	id      string
	raw     net.Conn
	conn    *trackedConn
	log     corelog.Logger
	limiter *rate.Limiter

	queue  chan writeRequest
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closed    chan struct{}
	mu        sync.Mutex
	closeErr  error

	active       atomic.Bool
	lastRead     atomic.Int64
	lastWrite    atomic.Int64
	bytesWritten atomic.Int64
	bytesRead    atomic.Int64
}

// NewChannel 包装连接
func NewChannel(conn net.Conn, opts ChannelOptions) *Channel {
	size := opts.WriteQueueSize
	if size <= 0 {
		size = DefaultWriteQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		id:     uuid.NewString(),
		raw:    conn,
		queue:  make(chan writeRequest, size),
		ctx:    ctx,
		cancel: cancel,
		closed: make(chan struct{}),
	}
	c.log = corelog.OrDefault(opts.Logger).WithField("channel", c.id[:8])
	c.conn = &trackedConn{Conn: conn, ch: c}
	if opts.SendRateLimit > 0 {
		burst := opts.SendRateLimit
		if burst < 4096 {
			burst = 4096
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.SendRateLimit), burst)
	}
	now := time.Now().UnixNano()
	c.lastRead.Store(now)
	c.lastWrite.Store(now)
	return c
}

// ID 通道标识
func (c *Channel) ID() string {
	return c.id
}

// Conn 返回记录读写活动的底层连接，供握手等同步读写使用
func (c *Channel) Conn() net.Conn {
	return c.conn
}

// RemoteAddr 对端地址
func (c *Channel) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

// LocalAddr 本端地址
func (c *Channel) LocalAddr() net.Addr {
	return c.raw.LocalAddr()
}

// Context 通道关闭时取消
func (c *Channel) Context() context.Context {
	return c.ctx
}

// Done 通道关闭后可读
func (c *Channel) Done() <-chan struct{} {
	return c.closed
}

// IsOpen 通道未关闭
func (c *Channel) IsOpen() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

// IsActive 通道已由管线驱动且未关闭
func (c *Channel) IsActive() bool {
	return c.active.Load() && c.IsOpen()
}

// Err 关闭原因，本地正常关闭为 nil
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

// Stats 已读写字节数
func (c *Channel) Stats() (read, written int64) {
	return c.bytesRead.Load(), c.bytesWritten.Load()
}

// WriteAndFlush 把 data 的副本放入写队列
//
// 不阻塞：返回 true 仅表示写请求已入队，写出结果通过 done 异步报告（可为 nil）。
// 通道已关闭时返回 false；队列已满时返回 false 并同步以 ErrQueueFull 调用 done。
func (c *Channel) WriteAndFlush(data []byte, done func(error)) bool {
	if !c.IsOpen() {
		return false
	}
	req := writeRequest{data: append([]byte(nil), data...), done: done}
	select {
	case <-c.closed:
		return false
	case c.queue <- req:
	default:
		if done != nil {
			done(coreerrors.ErrQueueFull)
		}
		return false
	}
	if !c.IsOpen() {
		c.drain()
	}
	return true
}

// Close 关闭通道
func (c *Channel) Close() error {
	c.CloseWithError(nil)
	return nil
}

// CloseWithError 以指定原因关闭通道，只有第一次调用生效
func (c *Channel) CloseWithError(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeErr = cause
		c.mu.Unlock()

		c.active.Store(false)
		close(c.closed)
		c.cancel()
		if err := c.raw.Close(); err != nil {
			c.log.Debugf("Channel: close conn: %v", err)
		}
		c.drain()
		if cause != nil {
			c.log.Debugf("Channel: closed: %v", cause)
		} else {
			c.log.Debugf("Channel: closed")
		}
	})
}

func (c *Channel) drain() {
	for {
		select {
		case req := <-c.queue:
			if req.done != nil {
				req.done(coreerrors.ErrChannelClosed)
			}
		default:
			return
		}
	}
}

// writeLoop 顺序刷出写队列，写失败时关闭通道
func (c *Channel) writeLoop() error {
	for {
		select {
		case <-c.closed:
			c.drain()
			return nil
		case req := <-c.queue:
			err := c.write(req.data)
			if req.done != nil {
				req.done(err)
			}
			if err != nil {
				c.CloseWithError(coreerrors.Wrap(err, coreerrors.CodeNetworkError, "write failed"))
				return nil
			}
		}
	}
}

func (c *Channel) write(data []byte) error {
	for len(data) > 0 {
		chunk := data
		if c.limiter != nil {
			if len(chunk) > c.limiter.Burst() {
				chunk = chunk[:c.limiter.Burst()]
			}
			if err := c.limiter.WaitN(c.ctx, len(chunk)); err != nil {
				return coreerrors.Wrap(err, coreerrors.CodeChannelClosed, "rate limiter wait")
			}
		}
		n, err := c.conn.Write(chunk)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// trackedConn 记录最近一次读写时间，供空闲检测使用
type trackedConn struct {
	net.Conn
	ch *Channel
}

func (t *trackedConn) Read(p []byte) (int, error) {
	n, err := t.Conn.Read(p)
	if n > 0 {
		t.ch.lastRead.Store(time.Now().UnixNano())
		t.ch.bytesRead.Add(int64(n))
	}
	return n, err
}

func (t *trackedConn) Write(p []byte) (int, error) {
	n, err := t.Conn.Write(p)
	if n > 0 {
		t.ch.lastWrite.Store(time.Now().UnixNano())
		t.ch.bytesWritten.Add(int64(n))
	}
	return n, err
}
