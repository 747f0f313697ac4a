// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 外部呼び出しの結果ラベル
const (
	OutcomeSuccess   = "success"
	OutcomeHTTPError = "http_error"
	OutcomeError     = "error"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、外部クライアント、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordUpstreamCall(service, outcome string, duration time.Duration)
	RecordPendingSyncsExpired(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus          *prometheus.CounterVec
	upstreamCalls       *prometheus.CounterVec
	upstreamLatency     *prometheus.HistogramVec
	pendingSyncsExpired prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travelplanner_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		upstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travelplanner_upstream_calls_total",
			Help: "外部サービス呼び出しの結果別の合計数",
		}, []string{"service", "outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "travelplanner_upstream_latency_seconds",
			Help:    "外部サービス呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
		pendingSyncsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "travelplanner_pending_syncs_expired_total",
			Help: "期限切れで削除されたカレンダー同期の保留リクエスト数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.upstreamCalls,
		c.upstreamLatency,
		c.pendingSyncsExpired,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordUpstreamCall は外部サービス呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordUpstreamCall(service, outcome string, duration time.Duration) {
	c.upstreamCalls.WithLabelValues(service, outcome).Inc()
	c.upstreamLatency.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordPendingSyncsExpired は期限切れで削除された保留リクエスト数を記録する。
func (c *Collector) RecordPendingSyncsExpired(count int64) {
	c.pendingSyncsExpired.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
