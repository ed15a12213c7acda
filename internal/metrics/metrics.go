// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 記事操作の種別。
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ログイン試行の結果。
const (
	LoginSuccess = "success"
	LoginFailure = "failure"
	LoginError   = "error"
)

// Collector はPrometheusメトリクスを収集する。
type Collector struct {
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	postOperations *prometheus.CounterVec
	loginAttempts  *prometheus.CounterVec
	importedPosts  prometheus.Counter
	importFailures *prometheus.CounterVec
}

// NewCollector はCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogman_http_requests_total",
			Help: "ルート・ステータス別のHTTPリクエスト数",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blogman_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		postOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogman_post_operations_total",
			Help: "管理画面での記事操作数",
		}, []string{"op"}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogman_login_attempts_total",
			Help: "結果別のログイン試行数",
		}, []string{"result"}),
		importedPosts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogman_feed_imported_posts_total",
			Help: "フィードインポートで作成された記事の合計数",
		}),
		importFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogman_feed_import_failures_total",
			Help: "原因別のフィードインポート失敗数",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.postOperations,
		c.loginAttempts,
		c.importedPosts,
		c.importFailures,
	)

	return c
}

// RecordPostOperation は記事の作成・更新・削除を記録する。
func (c *Collector) RecordPostOperation(op string) {
	c.postOperations.WithLabelValues(op).Inc()
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.loginAttempts.WithLabelValues(result).Inc()
}

// RecordImport はインポートで作成した記事数を記録する。
func (c *Collector) RecordImport(created int) {
	c.importedPosts.Add(float64(created))
}

// RecordImportFailure はインポート失敗を原因別に記録する。
func (c *Collector) RecordImportFailure(reason string) {
	c.importFailures.WithLabelValues(reason).Inc()
}

// Middleware はリクエスト数と処理時間を記録するミドルウェア。
// ラベルにはchiのルートパターンを使い、記事IDごとに系列が増えないようにする。
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := middleware.NewStatusRecorder(w)

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}

		c.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.Status)).Inc()
		c.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
