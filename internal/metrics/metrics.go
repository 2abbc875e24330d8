// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// パイプラインとワーカー層から利用する。
type MetricsCollector interface {
	RecordSyncSuccess(accountID string)
	RecordSyncFailure(accountID string)
	RecordRetry(accountID string)
	RecordScrapeLatency(duration time.Duration)
	RecordAssignmentsUpserted(count int)
	RecordNotificationSent(notificationCase string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	syncSuccess        *prometheus.CounterVec
	syncFail           *prometheus.CounterVec
	retries            *prometheus.CounterVec
	scrapeLatency      prometheus.Histogram
	assignmentsUpsert  prometheus.Counter
	notificationsSent  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brightspace_agent_sync_success_total",
			Help: "同期成功の合計数",
		}, []string{"account_id"}),
		syncFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brightspace_agent_sync_fail_total",
			Help: "同期失敗の合計数",
		}, []string{"account_id"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brightspace_agent_retries_total",
			Help: "リトライ実行の合計数",
		}, []string{"account_id"}),
		scrapeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "brightspace_agent_scrape_latency_seconds",
			Help:    "スクレイピングのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		assignmentsUpsert: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brightspace_agent_assignments_upserted_total",
			Help: "アップサートされた課題の合計数",
		}),
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brightspace_agent_notifications_sent_total",
			Help: "送信された通知の合計数（ケース別）",
		}, []string{"case"}),
	}

	reg.MustRegister(
		c.syncSuccess,
		c.syncFail,
		c.retries,
		c.scrapeLatency,
		c.assignmentsUpsert,
		c.notificationsSent,
	)

	return c
}

// RecordSyncSuccess は同期成功を記録する。
func (c *Collector) RecordSyncSuccess(accountID string) {
	c.syncSuccess.WithLabelValues(accountID).Inc()
}

// RecordSyncFailure は同期失敗を記録する。
func (c *Collector) RecordSyncFailure(accountID string) {
	c.syncFail.WithLabelValues(accountID).Inc()
}

// RecordRetry はリトライ実行を記録する。
func (c *Collector) RecordRetry(accountID string) {
	c.retries.WithLabelValues(accountID).Inc()
}

// RecordScrapeLatency はスクレイピングのレイテンシを記録する。
func (c *Collector) RecordScrapeLatency(duration time.Duration) {
	c.scrapeLatency.Observe(duration.Seconds())
}

// RecordAssignmentsUpserted はアップサートされた課題数を記録する。
func (c *Collector) RecordAssignmentsUpserted(count int) {
	c.assignmentsUpsert.Add(float64(count))
}

// RecordNotificationSent は通知送信をケース別に記録する。
func (c *Collector) RecordNotificationSent(notificationCase string) {
	c.notificationsSent.WithLabelValues(notificationCase).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
