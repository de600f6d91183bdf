// Package monitoring provides a Prometheus implementation of the
// batchcypher MetricsReporter interface.
package monitoring

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics Prometheus指标收集器，实现batchcypher.MetricsReporter接口
type PrometheusMetrics struct {
	// 批量执行指标
	executeDuration  *prometheus.HistogramVec
	executeTotal     *prometheus.CounterVec
	batchSize        prometheus.Histogram
	rowsWritten      *prometheus.CounterVec
	inflightBatches  prometheus.Gauge
	concurrencyLimit prometheus.Gauge

	// 错误指标
	errorTotal *prometheus.CounterVec

	registry *prometheus.Registry
	server   *http.Server
	mu       sync.Mutex
}

// NewPrometheusMetrics 创建Prometheus指标收集器
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		executeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "batchcypher_execute_duration_seconds",
				Help:    "Duration of batch transaction execution in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
			},
			[]string{"target", "status"},
		),

		executeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batchcypher_execute_total",
				Help: "Total number of batch transaction executions",
			},
			[]string{"target", "status"},
		),

		batchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "batchcypher_batch_size",
				Help:    "Size of batches submitted",
				Buckets: prometheus.ExponentialBuckets(1, 2, 15), // 1 to ~16k
			},
		),

		rowsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batchcypher_rows_written_total",
				Help: "Total number of rows committed",
			},
			[]string{"target"},
		),

		inflightBatches: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "batchcypher_inflight_batches",
				Help: "Number of batches currently being executed",
			},
		),

		concurrencyLimit: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "batchcypher_partition_concurrency",
				Help: "Configured partition concurrency limit (0 means unlimited)",
			},
		),

		errorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batchcypher_errors_total",
				Help: "Total number of batch errors by kind (retry:* / final:*)",
			},
			[]string{"target", "kind"},
		),

		registry: registry,
	}

	// 注册所有指标
	registry.MustRegister(
		pm.executeDuration,
		pm.executeTotal,
		pm.batchSize,
		pm.rowsWritten,
		pm.inflightBatches,
		pm.concurrencyLimit,
		pm.errorTotal,
	)

	return pm
}

// Registry 返回指标注册表（用于嵌入调用方自己的 /metrics 端点）
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

// ObserveExecuteDuration 实现MetricsReporter接口
func (pm *PrometheusMetrics) ObserveExecuteDuration(target string, batchSize int, duration time.Duration, status string) {
	pm.executeDuration.WithLabelValues(target, status).Observe(duration.Seconds())
	pm.executeTotal.WithLabelValues(target, status).Inc()
	if status == "success" {
		pm.rowsWritten.WithLabelValues(target).Add(float64(batchSize))
	}
}

// ObserveBatchSize 实现MetricsReporter接口
func (pm *PrometheusMetrics) ObserveBatchSize(n int) {
	pm.batchSize.Observe(float64(n))
}

// IncError 实现MetricsReporter接口
func (pm *PrometheusMetrics) IncError(target string, kind string) {
	pm.errorTotal.WithLabelValues(target, kind).Inc()
}

// IncInflight 实现MetricsReporter接口
func (pm *PrometheusMetrics) IncInflight() {
	pm.inflightBatches.Inc()
}

// DecInflight 实现MetricsReporter接口
func (pm *PrometheusMetrics) DecInflight() {
	pm.inflightBatches.Dec()
}

// SetConcurrency 实现MetricsReporter接口
func (pm *PrometheusMetrics) SetConcurrency(n int) {
	pm.concurrencyLimit.Set(float64(n))
}

// StartServer 启动Prometheus HTTP服务器
func (pm *PrometheusMetrics) StartServer(port int) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.server != nil {
		return fmt.Errorf("server already running")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{}))

	// 健康检查端点
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	pm.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		if err := pm.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Prometheus server error: %v\n", err)
		}
	}()

	return nil
}

// StopServer 停止Prometheus HTTP服务器
func (pm *PrometheusMetrics) StopServer() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.server == nil {
		return nil
	}

	err := pm.server.Close()
	pm.server = nil
	return err
}
