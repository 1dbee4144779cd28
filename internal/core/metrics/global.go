package metrics

import (
	"errors"
	"sync"
)

var (
	globalMetrics Metrics
	globalMu      sync.RWMutex

	// ErrNilMetrics 传入 nil Metrics
	ErrNilMetrics = errors.New("metrics: SetGlobalMetrics called with nil")
)

// SetGlobalMetrics 设置全局 Metrics 实例
func SetGlobalMetrics(m Metrics) error {
	if m == nil {
		return ErrNilMetrics
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
	return nil
}

// ResetGlobalMetrics 清除全局实例，之后的上报成为空操作
func ResetGlobalMetrics() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = nil
}

// GetGlobalMetrics 获取全局 Metrics 实例，可能为 nil
func GetGlobalMetrics() Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}
