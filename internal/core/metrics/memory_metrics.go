package metrics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"proxylink/internal/core/dispose"
)

// MemoryMetrics 内存指标实现
type MemoryMetrics struct {
	*dispose.ResourceBase

	mu         sync.RWMutex
	counters   map[string]float64
	gauges     map[string]float64
	histograms map[string][]float64
}

// NewMemoryMetrics 创建内存指标收集器
func NewMemoryMetrics(parentCtx context.Context) *MemoryMetrics {
	return &MemoryMetrics{
		ResourceBase: dispose.NewResourceBase("MemoryMetrics", parentCtx),
		counters:     make(map[string]float64),
		gauges:       make(map[string]float64),
		histograms:   make(map[string][]float64),
	}
}

// IncrementCounter 计数器加一
func (m *MemoryMetrics) IncrementCounter(name string, labels map[string]string) error {
	return m.AddCounter(name, 1, labels)
}

// AddCounter 计数器增加指定值，负值视为错误
func (m *MemoryMetrics) AddCounter(name string, value float64, labels map[string]string) error {
	if value < 0 {
		return fmt.Errorf("counter %s cannot decrease", name)
	}
	key := buildKey(name, labels)
	m.mu.Lock()
	m.counters[key] += value
	m.mu.Unlock()
	return nil
}

// GetCounter 获取计数器值
func (m *MemoryMetrics) GetCounter(name string, labels map[string]string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[buildKey(name, labels)], nil
}

// SetGauge 设置 Gauge 值
func (m *MemoryMetrics) SetGauge(name string, value float64, labels map[string]string) error {
	m.mu.Lock()
	m.gauges[buildKey(name, labels)] = value
	m.mu.Unlock()
	return nil
}

// GetGauge 获取 Gauge 值
func (m *MemoryMetrics) GetGauge(name string, labels map[string]string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gauges[buildKey(name, labels)], nil
}

// ObserveHistogram 记录观测值
func (m *MemoryMetrics) ObserveHistogram(name string, value float64, labels map[string]string) error {
	key := buildKey(name, labels)
	m.mu.Lock()
	m.histograms[key] = append(m.histograms[key], value)
	m.mu.Unlock()
	return nil
}

// Observations 返回某个 histogram 的全部观测值
func (m *MemoryMetrics) Observations(name string, labels map[string]string) []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.histograms[buildKey(name, labels)]
	out := make([]float64, len(src))
	copy(out, src)
	return out
}

// Close 关闭指标收集器
func (m *MemoryMetrics) Close() error {
	m.ResourceBase.Close()
	return nil
}

// buildKey 按排序后的标签生成稳定键名
func buildKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := sortedLabelNames(labels)
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

func sortedLabelNames(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
