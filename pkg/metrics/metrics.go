package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 通知派发计数
	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Total number of notification dispatch attempts",
		},
		[]string{"type", "outcome"}, // outcome: sent, failed
	)

	// 通知生成计数
	NotificationsDerived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_derived_total",
			Help: "Total number of notification records derived from tasks",
		},
		[]string{"type"},
	)

	// 清理删除计数
	NotificationsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_purged_total",
			Help: "Total number of sent notifications removed by the purge job",
		},
	)

	// 定时任务执行时长（秒）
	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sweep_duration_seconds",
			Help:    "Duration of notification sweep jobs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"job"}, // job: dispatch, overdue, purge
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of slow database queries",
		},
	)
)

// RecordDispatch 记录一次通知派发结果
func RecordDispatch(notifType, outcome string) {
	NotificationsDispatched.WithLabelValues(notifType, outcome).Inc()
}

// RecordDerived 记录一次通知生成
func RecordDerived(notifType string) {
	NotificationsDerived.WithLabelValues(notifType).Inc()
}

// RecordSweepDuration 记录定时任务时长
func RecordSweepDuration(job string, duration time.Duration) {
	SweepDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementSlowQuery 增加慢查询计数
func IncrementSlowQuery() {
	SlowQueryCount.Inc()
}
