// Package safe 提供带 panic 恢复的 Goroutine 启动与工作池
package safe

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	coreerrors "proxylink/internal/core/errors"
	corelog "proxylink/internal/core/log"
)

var (
	activeCount atomic.Int64
	totalCount  atomic.Int64
	panicCount  atomic.Int64
)

// Stats Goroutine 统计信息
type Stats struct {
	Active     int64
	Total      int64
	PanicCount int64
}

// GetStats 获取统计信息
func GetStats() Stats {
	return Stats{
		Active:     activeCount.Load(),
		Total:      totalCount.Load(),
		PanicCount: panicCount.Load(),
	}
}

func recoverPanic(name string) {
	if r := recover(); r != nil {
		panicCount.Add(1)
		corelog.Errorf("SafeGo[%s]: panic recovered: %v\n%s", name, r, debug.Stack())
	}
}

// Go 安全启动 Goroutine，name 用于日志标识
func Go(name string, fn func()) {
	totalCount.Add(1)
	activeCount.Add(1)
	go func() {
		defer activeCount.Add(-1)
		defer recoverPanic(name)
		fn()
	}()
}

// GoWithContext 带 context 的安全 Goroutine，fn 需自行响应 ctx.Done()
func GoWithContext(ctx context.Context, name string, fn func(ctx context.Context)) {
	Go(name, func() { fn(ctx) })
}

// Pool 固定数量 worker 的任务池
//
// 单 worker 的池按提交顺序串行执行任务。
type Pool struct {
	name   string
	active atomic.Int32
	queue  chan func()
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPool 创建任务池
func NewPool(ctx context.Context, name string, maxWorkers int, queueSize int) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	poolCtx, cancel := context.WithCancel(ctx)
	p := &Pool{
		name:   name,
		queue:  make(chan func(), queueSize),
		ctx:    poolCtx,
		cancel: cancel,
	}
	for i := 0; i < maxWorkers; i++ {
		workerName := fmt.Sprintf("%s-worker-%d", name, i)
		GoWithContext(poolCtx, workerName, func(ctx context.Context) {
			for {
				select {
				case <-ctx.Done():
					return
				case fn := <-p.queue:
					p.run(workerName, fn)
				}
			}
		})
	}
	return p
}

func (p *Pool) run(workerName string, fn func()) {
	p.active.Add(1)
	defer p.active.Add(-1)
	defer recoverPanic(workerName)
	fn()
}

// Submit 非阻塞提交，队列已满或池已关闭返回 false
func (p *Pool) Submit(fn func()) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case p.queue <- fn:
		return true
	default:
		return false
	}
}

// SubmitWait 提交任务并等待队列空位
func (p *Pool) SubmitWait(ctx context.Context, fn func()) error {
	if p.ctx.Err() != nil {
		return coreerrors.Wrapf(p.ctx.Err(), coreerrors.CodeServiceClosed, "pool %s closed", p.name)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return coreerrors.Wrapf(p.ctx.Err(), coreerrors.CodeServiceClosed, "pool %s closed", p.name)
	case p.queue <- fn:
		return nil
	}
}

// ActiveCount 正在执行的任务数
func (p *Pool) ActiveCount() int32 {
	return p.active.Load()
}

// Close 停止 worker，未执行的任务被丢弃
func (p *Pool) Close() {
	p.cancel()
}
