package pipeline

import (
	"fmt"
	"time"
)

// IdleConfig 空闲检测阈值，0 表示关闭该维度
type IdleConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	AllTimeout   time.Duration
}

// DefaultIdleConfig 默认读写各 20 秒，读写合并维度关闭
func DefaultIdleConfig() IdleConfig {
	return IdleConfig{
		ReadTimeout:  20000 * time.Millisecond,
		WriteTimeout: 20000 * time.Millisecond,
	}
}

// Enabled 是否至少有一个维度开启
func (c IdleConfig) Enabled() bool {
	return c.ReadTimeout > 0 || c.WriteTimeout > 0 || c.AllTimeout > 0
}

// IdleState 空闲维度
type IdleState int

const (
	ReaderIdle IdleState = iota
	WriterIdle
	AllIdle
)

func (s IdleState) String() string {
	switch s {
	case ReaderIdle:
		return "READER_IDLE"
	case WriterIdle:
		return "WRITER_IDLE"
	case AllIdle:
		return "ALL_IDLE"
	default:
		return fmt.Sprintf("IdleState(%d)", int(s))
	}
}

// IdleEvent 空闲事件；First 标记一段连续空闲中的第一次
type IdleEvent struct {
	State IdleState
	First bool
}

type idleAxis struct {
	state   IdleState
	timeout time.Duration
	last    func() int64
	timer   *time.Timer
	first   bool
	firedAt int64
}

// fire 计时器到期：空闲满阈值则返回事件并按整阈值重排，否则按剩余时间重排
func (a *idleAxis) fire(now time.Time) (IdleEvent, bool) {
	last := a.last()
	if last > a.firedAt {
		a.first = true
	}
	next := a.timeout - now.Sub(time.Unix(0, last))
	if next > 0 {
		a.timer.Reset(next)
		return IdleEvent{}, false
	}
	a.timer.Reset(a.timeout)
	evt := IdleEvent{State: a.state, First: a.first}
	a.first = false
	a.firedAt = now.UnixNano()
	return evt, true
}

// runIdle 在通道关闭前按配置投递空闲事件
func runIdle(ch *Channel, cfg IdleConfig, emit func(IdleEvent)) {
	var axes [3]*idleAxis
	add := func(i int, state IdleState, timeout time.Duration, last func() int64) {
		if timeout <= 0 {
			return
		}
		axes[i] = &idleAxis{state: state, timeout: timeout, last: last, timer: time.NewTimer(timeout), first: true}
	}
	add(0, ReaderIdle, cfg.ReadTimeout, ch.lastRead.Load)
	add(1, WriterIdle, cfg.WriteTimeout, ch.lastWrite.Load)
	add(2, AllIdle, cfg.AllTimeout, func() int64 {
		r, w := ch.lastRead.Load(), ch.lastWrite.Load()
		if r > w {
			return r
		}
		return w
	})

	var timers [3]<-chan time.Time
	for i, a := range axes {
		if a != nil {
			timers[i] = a.timer.C
			defer a.timer.Stop()
		}
	}

	for {
		var (
			axis *idleAxis
			now  time.Time
		)
		select {
		case <-ch.Done():
			return
		case now = <-timers[0]:
			axis = axes[0]
		case now = <-timers[1]:
			axis = axes[1]
		case now = <-timers[2]:
			axis = axes[2]
		}
		if evt, ok := axis.fire(now); ok {
			emit(evt)
		}
	}
}
