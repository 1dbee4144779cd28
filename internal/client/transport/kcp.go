//go:build !no_kcp

package transport

import (
	"context"
	"net"

	"github.com/xtaci/kcp-go/v5"

	corelog "proxylink/internal/core/log"
)

// KCP 参数，需与对端保持一致
const (
	kcpDataShards   = 0
	kcpParityShards = 0
	kcpSndWnd       = 512
	kcpRcvWnd       = 512
	kcpNoDelay      = 1
	kcpInterval     = 10
	kcpResend       = 2
	kcpNC           = 1
	kcpMTU          = 1400
	kcpBufferSize   = 1 << 20
)

func init() {
	RegisterProtocol("kcp", 40, DialKCP)
}

// DialKCP 建立 KCP 会话（无加密、无 FEC）
func DialKCP(ctx context.Context, address string) (net.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sess, err := kcp.DialWithOptions(address, nil, kcpDataShards, kcpParityShards)
	if err != nil {
		return nil, err
	}
	sess.SetNoDelay(kcpNoDelay, kcpInterval, kcpResend, kcpNC)
	sess.SetWindowSize(kcpSndWnd, kcpRcvWnd)
	sess.SetMtu(kcpMTU)
	if err := sess.SetReadBuffer(kcpBufferSize); err != nil {
		corelog.Debugf("Transport: kcp SetReadBuffer failed: %v", err)
	}
	if err := sess.SetWriteBuffer(kcpBufferSize); err != nil {
		corelog.Debugf("Transport: kcp SetWriteBuffer failed: %v", err)
	}
	sess.SetACKNoDelay(true)
	corelog.Debugf("Transport: kcp session to %s", address)
	return sess, nil
}
