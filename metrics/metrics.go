// Package metrics 定义批任务与在线推荐的 Prometheus 指标。
//
// 指标注册在包内的 Registry 上（而不是全局默认 registry），
// 由调用方决定是否暴露（promhttp.HandlerFor(metrics.Registry, ...)）。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 批任务状态标签
const (
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusConflict = "conflict"
)

// Registry 收集本模块全部指标
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// Batch Metrics
	BatchRuns = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoprec_batch_runs_total",
			Help: "Total number of batch precompute runs",
		},
		[]string{"kind", "status"},
	)

	BatchDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shoprec_batch_duration_seconds",
			Help:    "Duration of batch precompute runs in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"kind"},
	)

	BatchRows = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shoprec_batch_rows_written",
			Help: "Rows written by the last successful batch run",
		},
		[]string{"kind"},
	)

	// Online Metrics
	Fallbacks = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shoprec_fallback_total",
			Help: "Total number of online queries answered by a fallback path",
		},
		[]string{"reason"},
	)

	NodeDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shoprec_pipeline_node_duration_seconds",
			Help:    "Duration of pipeline node execution in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pipeline", "node"},
	)
)

// RecordBatch 记录一次批任务；只有成功的任务更新写入行数
func RecordBatch(kind, status string, duration time.Duration, rows int) {
	BatchRuns.WithLabelValues(kind, status).Inc()
	BatchDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if status == StatusSuccess {
		BatchRows.WithLabelValues(kind).Set(float64(rows))
	}
}

// RecordFallback 记录一次在线兜底
func RecordFallback(reason string) {
	Fallbacks.WithLabelValues(reason).Inc()
}

// ObserveNode 记录 Pipeline 节点耗时
func ObserveNode(pipeline, node string, elapsed time.Duration) {
	NodeDuration.WithLabelValues(pipeline, node).Observe(elapsed.Seconds())
}
