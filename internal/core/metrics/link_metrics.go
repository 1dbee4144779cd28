package metrics

// 会话链路指标辅助函数，未设置全局 Metrics 时为空操作

const (
	nameConnectAttempts   = "connect_attempts_total"
	nameReconnects        = "reconnects_scheduled_total"
	nameReconnectsDropped = "reconnects_exhausted_total"
	nameLinkState         = "link_state"
	nameBytesSent         = "bytes_sent_total"
	nameSendFailures      = "send_failures_total"
	nameProxyAuthErrors   = "proxy_auth_errors_total"
	nameConnectDuration   = "connect_duration_seconds"
)

// RecordConnectAttempt 记录一次连接尝试，result 为 ok / fail
func RecordConnectAttempt(transport, result string) error {
	m := GetGlobalMetrics()
	if m == nil {
		return nil
	}
	return m.IncrementCounter(nameConnectAttempts, map[string]string{"transport": transport, "result": result})
}

// RecordConnectDuration 记录 TCP 建连耗时
func RecordConnectDuration(transport string, seconds float64) error {
	m := GetGlobalMetrics()
	if m == nil {
		return nil
	}
	return m.ObserveHistogram(nameConnectDuration, seconds, map[string]string{"transport": transport})
}

// RecordReconnectScheduled 记录一次已调度的重连
func RecordReconnectScheduled() error {
	m := GetGlobalMetrics()
	if m == nil {
		return nil
	}
	return m.IncrementCounter(nameReconnects, nil)
}

// RecordReconnectExhausted 记录一次重连预算耗尽
func RecordReconnectExhausted() error {
	m := GetGlobalMetrics()
	if m == nil {
		return nil
	}
	return m.IncrementCounter(nameReconnectsDropped, nil)
}

// SetLinkState 以 0/1 标记链路所处状态
func SetLinkState(states []string, current string) error {
	m := GetGlobalMetrics()
	if m == nil {
		return nil
	}
	for _, s := range states {
		v := 0.0
		if s == current {
			v = 1
		}
		if err := m.SetGauge(nameLinkState, v, map[string]string{"state": s}); err != nil {
			return err
		}
	}
	return nil
}

// AddBytesSent 累加发送字节数
func AddBytesSent(n int) error {
	m := GetGlobalMetrics()
	if m == nil || n <= 0 {
		return nil
	}
	return m.AddCounter(nameBytesSent, float64(n), nil)
}

// RecordSendFailure 记录发送失败，reason 为 no_channel / write_error / queue_full / closed
func RecordSendFailure(reason string) error {
	m := GetGlobalMetrics()
	if m == nil {
		return nil
	}
	return m.IncrementCounter(nameSendFailures, map[string]string{"reason": reason})
}

// RecordProxyAuthError 记录代理认证失败
func RecordProxyAuthError() error {
	m := GetGlobalMetrics()
	if m == nil {
		return nil
	}
	return m.IncrementCounter(nameProxyAuthErrors, nil)
}
