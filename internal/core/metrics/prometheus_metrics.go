package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// DefaultNamespace Prometheus 指标命名空间
const DefaultNamespace = "proxylink"

// PrometheusMetrics 基于 client_golang 的指标实现
//
// 指标向量在首次使用时按名称创建，标签名取首次调用的标签集合，
// 之后同名指标必须使用相同的标签名。
type PrometheusMetrics struct {
	namespace string
	registry  *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusMetrics 创建 Prometheus 指标收集器，注册 Go 运行时与进程指标
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &PrometheusMetrics{
		namespace:  namespace,
		registry:   registry,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// Registry 返回底层注册表
func (p *PrometheusMetrics) Registry() *prometheus.Registry {
	return p.registry
}

// Handler 返回 /metrics 处理器
func (p *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (p *PrometheusMetrics) counterVec(name string, labels map[string]string) (*prometheus.CounterVec, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if vec, ok := p.counters[name]; ok {
		return vec, nil
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: p.namespace,
		Name:      name,
		Help:      fmt.Sprintf("Counter %s", name),
	}, sortedLabelNames(labels))
	if err := p.registry.Register(vec); err != nil {
		return nil, fmt.Errorf("register counter %s: %w", name, err)
	}
	p.counters[name] = vec
	return vec, nil
}

func (p *PrometheusMetrics) gaugeVec(name string, labels map[string]string) (*prometheus.GaugeVec, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if vec, ok := p.gauges[name]; ok {
		return vec, nil
	}
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: p.namespace,
		Name:      name,
		Help:      fmt.Sprintf("Gauge %s", name),
	}, sortedLabelNames(labels))
	if err := p.registry.Register(vec); err != nil {
		return nil, fmt.Errorf("register gauge %s: %w", name, err)
	}
	p.gauges[name] = vec
	return vec, nil
}

func (p *PrometheusMetrics) histogramVec(name string, labels map[string]string) (*prometheus.HistogramVec, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if vec, ok := p.histograms[name]; ok {
		return vec, nil
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: p.namespace,
		Name:      name,
		Help:      fmt.Sprintf("Histogram %s", name),
		Buckets:   prometheus.DefBuckets,
	}, sortedLabelNames(labels))
	if err := p.registry.Register(vec); err != nil {
		return nil, fmt.Errorf("register histogram %s: %w", name, err)
	}
	p.histograms[name] = vec
	return vec, nil
}

// IncrementCounter 计数器加一
func (p *PrometheusMetrics) IncrementCounter(name string, labels map[string]string) error {
	return p.AddCounter(name, 1, labels)
}

// AddCounter 计数器增加指定值
func (p *PrometheusMetrics) AddCounter(name string, value float64, labels map[string]string) error {
	if value < 0 {
		return fmt.Errorf("counter %s cannot decrease", name)
	}
	vec, err := p.counterVec(name, labels)
	if err != nil {
		return err
	}
	c, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return err
	}
	c.Add(value)
	return nil
}

// GetCounter 读取计数器当前值
func (p *PrometheusMetrics) GetCounter(name string, labels map[string]string) (float64, error) {
	p.mu.Lock()
	vec, ok := p.counters[name]
	p.mu.Unlock()
	if !ok {
		return 0, nil
	}
	c, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return 0, err
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0, err
	}
	return m.GetCounter().GetValue(), nil
}

// SetGauge 设置 Gauge 值
func (p *PrometheusMetrics) SetGauge(name string, value float64, labels map[string]string) error {
	vec, err := p.gaugeVec(name, labels)
	if err != nil {
		return err
	}
	g, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return err
	}
	g.Set(value)
	return nil
}

// GetGauge 读取 Gauge 当前值
func (p *PrometheusMetrics) GetGauge(name string, labels map[string]string) (float64, error) {
	p.mu.Lock()
	vec, ok := p.gauges[name]
	p.mu.Unlock()
	if !ok {
		return 0, nil
	}
	g, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return 0, err
	}
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		return 0, err
	}
	return m.GetGauge().GetValue(), nil
}

// ObserveHistogram 记录观测值
func (p *PrometheusMetrics) ObserveHistogram(name string, value float64, labels map[string]string) error {
	vec, err := p.histogramVec(name, labels)
	if err != nil {
		return err
	}
	o, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return err
	}
	o.Observe(value)
	return nil
}

// Close 注销全部自定义指标
func (p *PrometheusMetrics) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, vec := range p.counters {
		p.registry.Unregister(vec)
		delete(p.counters, name)
	}
	for name, vec := range p.gauges {
		p.registry.Unregister(vec)
		delete(p.gauges, name)
	}
	for name, vec := range p.histograms {
		p.registry.Unregister(vec)
		delete(p.histograms, name)
	}
	return nil
}
