package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	coreerrors "proxylink/internal/core/errors"
)

const readBufferSize = 32 * 1024

// Serve 在通道上按 解码器 -> 空闲检测 -> 适配器 的顺序运行管线，直到通道关闭
//
// 适配器回调串行执行；OnActive 返回前不读取数据，握手可直接使用 ch.Conn()。
// OnInactive 在所有协程退出后恰好调用一次。返回值为通道关闭原因，本地正常关闭为 nil。
func Serve(ctx context.Context, ch *Channel, dec Decoder, idle IdleConfig, h Handler) error {
	if dec == nil || h == nil {
		err := coreerrors.New(coreerrors.CodeConfigError, "pipeline requires both decoder and adapter")
		ch.CloseWithError(err)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	var hmu sync.Mutex
	call := func(fn func() error) error {
		hmu.Lock()
		defer hmu.Unlock()
		if !ch.IsOpen() {
			return nil
		}
		return fn()
	}

	ch.active.Store(true)

	g.Go(func() error {
		select {
		case <-gctx.Done():
			ch.CloseWithError(gctx.Err())
		case <-ch.Done():
		}
		return nil
	})

	g.Go(ch.writeLoop)

	if idle.Enabled() {
		g.Go(func() error {
			runIdle(ch, idle, func(evt IdleEvent) {
				if err := call(func() error { return h.OnIdle(gctx, ch, evt) }); err != nil {
					ch.CloseWithError(err)
				}
			})
			return nil
		})
	}

	if err := call(func() error { return h.OnActive(gctx, ch) }); err != nil {
		ch.CloseWithError(err)
	} else {
		g.Go(func() error {
			readLoop(gctx, ch, dec, h, call)
			return nil
		})
	}

	_ = g.Wait()
	cause := ch.Err()
	h.OnInactive(ch, cause)
	return cause
}

func readLoop(ctx context.Context, ch *Channel, dec Decoder, h Handler, call func(func() error) error) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := ch.conn.Read(buf)
		if n > 0 {
			frames, derr := dec.Decode(buf[:n])
			for _, frame := range frames {
				frame := frame
				if herr := call(func() error { return h.OnMessage(ctx, ch, frame) }); herr != nil {
					ch.CloseWithError(herr)
					return
				}
			}
			if derr != nil {
				ch.log.Warnf("Pipeline: decode: %v", derr)
			}
		}
		if err != nil {
			if !ch.IsOpen() {
				return
			}
			if errors.Is(err, io.EOF) {
				ch.CloseWithError(coreerrors.Wrap(err, coreerrors.CodeChannelClosed, "closed by peer"))
			} else {
				ch.CloseWithError(coreerrors.Wrap(err, coreerrors.CodeNetworkError, "read failed"))
			}
			return
		}
	}
}
