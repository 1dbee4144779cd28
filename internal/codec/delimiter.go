// Package codec 入站字节流解码器
package codec

import (
	"bytes"
	"sync/atomic"

	coreerrors "proxylink/internal/core/errors"
)

// DefaultMaxFrameLength 默认最大帧长
const DefaultMaxFrameLength = 8192

// DelimiterDecoder 按分隔符切帧的解码器
//
// 存在多个分隔符时取产生最短帧的那个。超过 MaxFrameLength 的内容被丢弃到下一个分隔符，
// 并报告 FRAME_TOO_LONG：failFast 时在发现超长时立即报告，否则在丢弃结束时报告。
// 处于代理握手阶段时不切帧，收到的字节原样作为一帧。
type DelimiterDecoder struct {
	delimiters     [][]byte
	maxFrameLength int
	stripDelimiter bool
	failFast       bool

	buf           []byte
	discarding    bool
	tooLongLength int
	inProxy       atomic.Bool
}

// NewDelimiterDecoder 创建分隔符解码器
func NewDelimiterDecoder(maxFrameLength int, stripDelimiter, failFast bool, delimiters ...[]byte) (*DelimiterDecoder, error) {
	if maxFrameLength <= 0 {
		return nil, coreerrors.Newf(coreerrors.CodeInvalidParam, "maxFrameLength must be a positive integer: %d", maxFrameLength)
	}
	if len(delimiters) == 0 {
		return nil, coreerrors.New(coreerrors.CodeInvalidParam, "empty delimiters")
	}
	d := &DelimiterDecoder{
		maxFrameLength: maxFrameLength,
		stripDelimiter: stripDelimiter,
		failFast:       failFast,
	}
	for _, delim := range delimiters {
		if len(delim) == 0 {
			return nil, coreerrors.New(coreerrors.CodeInvalidParam, "empty delimiter")
		}
		d.delimiters = append(d.delimiters, append([]byte(nil), delim...))
	}
	return d, nil
}

// NewLineDecoder 以 \n 或 \r\n 切帧
func NewLineDecoder(maxFrameLength int) (*DelimiterDecoder, error) {
	return NewDelimiterDecoder(maxFrameLength, true, true, []byte("\r\n"), []byte("\n"))
}

// NotifyProxyStateChange 实现 pipeline.ProxyStateNotifier
func (d *DelimiterDecoder) NotifyProxyStateChange(inProxy bool) {
	d.inProxy.Store(inProxy)
}

// InProxy 是否处于代理握手阶段
func (d *DelimiterDecoder) InProxy() bool {
	return d.inProxy.Load()
}

// Decode 实现 pipeline.Decoder
func (d *DelimiterDecoder) Decode(data []byte) ([][]byte, error) {
	if d.inProxy.Load() {
		frame := make([]byte, 0, len(d.buf)+len(data))
		frame = append(frame, d.buf...)
		frame = append(frame, data...)
		d.buf = d.buf[:0]
		if len(frame) == 0 {
			return nil, nil
		}
		return [][]byte{frame}, nil
	}

	d.buf = append(d.buf, data...)
	var (
		frames   [][]byte
		firstErr error
	)
	for {
		frame, progressed, err := d.decodeOne()
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if frame != nil {
			frames = append(frames, frame)
		}
		if !progressed {
			return frames, firstErr
		}
	}
}

func (d *DelimiterDecoder) decodeOne() ([]byte, bool, error) {
	minIdx, minDelim := -1, 0
	for _, delim := range d.delimiters {
		idx := bytes.Index(d.buf, delim)
		if idx >= 0 && (minIdx < 0 || idx < minIdx) {
			minIdx, minDelim = idx, len(delim)
		}
	}

	if minIdx < 0 {
		if !d.discarding {
			if len(d.buf) > d.maxFrameLength {
				d.tooLongLength = len(d.buf)
				d.buf = d.buf[:0]
				d.discarding = true
				if d.failFast {
					return nil, false, d.tooLong(d.tooLongLength)
				}
			}
		} else {
			d.tooLongLength += len(d.buf)
			d.buf = d.buf[:0]
		}
		return nil, false, nil
	}

	if d.discarding {
		d.discarding = false
		d.skip(minIdx + minDelim)
		n := d.tooLongLength
		d.tooLongLength = 0
		if !d.failFast {
			return nil, true, d.tooLong(n)
		}
		return nil, true, nil
	}

	if minIdx > d.maxFrameLength {
		d.skip(minIdx + minDelim)
		return nil, true, d.tooLong(minIdx)
	}

	end := minIdx
	if !d.stripDelimiter {
		end += minDelim
	}
	frame := append([]byte(nil), d.buf[:end]...)
	d.skip(minIdx + minDelim)
	return frame, true, nil
}

func (d *DelimiterDecoder) skip(n int) {
	d.buf = append(d.buf[:0], d.buf[n:]...)
}

func (d *DelimiterDecoder) tooLong(n int) error {
	return coreerrors.Newf(coreerrors.CodeFrameTooLong, "frame length exceeds %d: %d - discarded", d.maxFrameLength, n)
}

// RawDecoder 每次读取到的字节作为一帧
type RawDecoder struct{}

// Decode 实现 pipeline.Decoder
func (RawDecoder) Decode(data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	return [][]byte{append([]byte(nil), data...)}, nil
}
