package batchcypher

import "time"

// MetricsReporter 性能监控报告器接口。
// kind 以 "retry:" 或 "final:" 前缀区分重试与最终失败。
type MetricsReporter interface {
	ObserveExecuteDuration(target string, batchSize int, duration time.Duration, status string)
	ObserveBatchSize(n int)
	IncError(target string, kind string)
	IncInflight()
	DecInflight()
	SetConcurrency(n int)
}

// NoopMetricsReporter 空实现，默认关闭监控
type NoopMetricsReporter struct{}

func (NoopMetricsReporter) ObserveExecuteDuration(target string, batchSize int, duration time.Duration, status string) {
}
func (NoopMetricsReporter) ObserveBatchSize(n int)              {}
func (NoopMetricsReporter) IncError(target string, kind string) {}
func (NoopMetricsReporter) IncInflight()                        {}
func (NoopMetricsReporter) DecInflight()                        {}
func (NoopMetricsReporter) SetConcurrency(n int)                {}
