package host

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"proxylink/internal/core/dispose"
	coreerrors "proxylink/internal/core/errors"
	corelog "proxylink/internal/core/log"
	"proxylink/internal/core/safe"
)

var (
	colorForeground = color.New(color.FgGreen, color.Bold).SprintFunc()
	colorBackground = color.New(color.Faint).SprintFunc()
)

// LocalService 进程内宿主服务
//
// 前台状态以一行彩色文本输出，连接请求在服务自己的协程中执行。
type LocalService struct {
	*dispose.ServiceBase

	mu         sync.Mutex
	action     ClientAction
	foreground bool
	status     string
	out        io.Writer
	wg         sync.WaitGroup
}

// NewLocalService 创建进程内服务，out 为 nil 时输出到 stderr
func NewLocalService(parent context.Context, out io.Writer) *LocalService {
	if out == nil {
		out = os.Stderr
		if !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			out = io.Discard
		}
	}
	s := &LocalService{
		ServiceBase: dispose.NewService("LocalService", parent),
		out:         out,
	}
	s.AddCleanHandler(func() error {
		s.StopForeground()
		s.RemoveActionListener()
		return nil
	})
	return s
}

// StartForeground 实现 Service
func (s *LocalService) StartForeground(status string) {
	s.mu.Lock()
	s.foreground = true
	s.status = status
	out := s.out
	s.mu.Unlock()
	fmt.Fprintf(out, "%s %s\n", colorForeground("[proxylink]"), status)
}

// StopForeground 实现 Service
func (s *LocalService) StopForeground() {
	s.mu.Lock()
	was := s.foreground
	s.foreground = false
	out := s.out
	s.mu.Unlock()
	if was {
		fmt.Fprintf(out, "%s %s\n", colorBackground("[proxylink]"), "service left foreground")
	}
}

// Foreground 当前前台状态与状态文本
func (s *LocalService) Foreground() (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.foreground, s.status
}

// SetActionListener 实现 Service
func (s *LocalService) SetActionListener(a ClientAction) {
	s.mu.Lock()
	s.action = a
	s.mu.Unlock()
}

// RemoveActionListener 实现 Service
func (s *LocalService) RemoveActionListener() {
	s.mu.Lock()
	s.action = nil
	s.mu.Unlock()
}

// Connect 实现 Service
func (s *LocalService) Connect(host string, port int) {
	s.mu.Lock()
	a := s.action
	s.mu.Unlock()
	if a == nil {
		corelog.Warnf("LocalService: connect %s:%d ignored, no action listener", host, port)
		return
	}
	if s.IsClosed() {
		corelog.Warnf("LocalService: connect %s:%d ignored, service closed", host, port)
		return
	}
	s.wg.Add(1)
	safe.Go("local-service-connect", func() {
		defer s.wg.Done()
		a.ActionConnect(host, port)
	})
}

// CheckConnect 通过动作接口查询连接状态
func (s *LocalService) CheckConnect(tag string) bool {
	s.mu.Lock()
	a := s.action
	s.mu.Unlock()
	return a != nil && a.ActionCheckConnect(tag)
}

// Wait 等待服务发起的连接全部返回
func (s *LocalService) Wait() {
	s.wg.Wait()
}

// LocalBinder 把 LocalService 异步绑定给调用方
type LocalBinder struct {
	ctx   context.Context
	svc   *LocalService
	delay time.Duration

	mu    sync.Mutex
	bound map[Connection]struct{}
}

// NewLocalBinder 创建绑定器，delay 为绑定确认前的延迟
func NewLocalBinder(ctx context.Context, svc *LocalService, delay time.Duration) *LocalBinder {
	if ctx == nil {
		ctx = context.Background()
	}
	return &LocalBinder{
		ctx:   ctx,
		svc:   svc,
		delay: delay,
		bound: make(map[Connection]struct{}),
	}
}

// Bind 实现 Binder
func (b *LocalBinder) Bind(ctx context.Context, conn Connection) error {
	if conn == nil {
		return coreerrors.New(coreerrors.CodeInvalidParam, "nil connection")
	}
	if b.svc == nil || b.svc.IsClosed() {
		return coreerrors.New(coreerrors.CodeServiceClosed, "local service closed")
	}
	b.mu.Lock()
	b.bound[conn] = struct{}{}
	b.mu.Unlock()

	safe.GoWithContext(b.ctx, "local-binder", func(bctx context.Context) {
		if b.delay > 0 {
			t := time.NewTimer(b.delay)
			defer t.Stop()
			select {
			case <-t.C:
			case <-bctx.Done():
				return
			case <-ctx.Done():
				return
			}
		}
		if !b.isBound(conn) {
			return
		}
		conn.OnServiceConnected(b.svc)
	})
	return nil
}

// Unbind 实现 Binder
func (b *LocalBinder) Unbind(conn Connection) {
	b.mu.Lock()
	delete(b.bound, conn)
	b.mu.Unlock()
}

func (b *LocalBinder) isBound(conn Connection) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.bound[conn]
	return ok
}
