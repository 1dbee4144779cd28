// Package metrics 指标收集
//
// 组件通过 Metrics 接口或全局便捷函数上报；本地运行使用内存实现，
// 需要对外暴露时切换为 Prometheus 实现。
package metrics

// Metrics 指标收集接口
type Metrics interface {
	IncrementCounter(name string, labels map[string]string) error
	AddCounter(name string, value float64, labels map[string]string) error
	GetCounter(name string, labels map[string]string) (float64, error)

	SetGauge(name string, value float64, labels map[string]string) error
	GetGauge(name string, labels map[string]string) (float64, error)

	ObserveHistogram(name string, value float64, labels map[string]string) error

	Close() error
}
