package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UploadsTotal считает завершённые попытки загрузки по исходу
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumashot_uploads_total",
		Help: "Completed upload attempts by outcome",
	}, []string{"outcome"})

	// CompressionRatio — распределение коэффициента сжатия в процентах
	CompressionRatio = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lumashot_compression_ratio_percent",
		Help:    "Compression ratio of committed uploads",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	// SandboxViolations считает отклонённые попытки выйти за префикс
	SandboxViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lumashot_sandbox_violations_total",
		Help: "Rejected operations with a path outside the tenant sandbox",
	})

	// DiagnosticsFailed — количество проваленных проверок в последнем прогоне
	DiagnosticsFailed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lumashot_diagnostics_failed_checks",
		Help: "Failed checks in the most recent diagnostics run",
	})
)
