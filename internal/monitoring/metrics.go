package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
//
// 所有 Record 方法都允许在 nil 接收者上调用，便于在测试中省略指标。
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 搜索指标
	SearchCompiles       *prometheus.CounterVec // 按范围策略统计
	ScopeProbeFallbacks  *prometheus.CounterVec // 按失败阶段统计
	IdentityLookupErrors *prometheus.CounterVec // 按错误类型统计

	// 邮件指标
	MessagesIndexed prometheus.Counter

	// 迁移指标
	MigrationRecords  *prometheus.CounterVec // processed / modified
	MigrationBatches  prometheus.Counter
	MigrationRuns     *prometheus.CounterVec // 按结果统计
	MigrationDuration prometheus.Histogram

	// 错误指标
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标并注册到给定的注册表
//
// 参数:
//   - reg: 指标注册表，为 nil 时创建新的注册表
//
// 返回值:
//   - *Metrics: 监控指标
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailsearch_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailsearch_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		SearchCompiles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailsearch_search_compiles_total",
				Help: "Total number of compiled search filters by mailbox scope strategy",
			},
			[]string{"scope"},
		),

		ScopeProbeFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailsearch_scope_probe_fallbacks_total",
				Help: "Total number of mailbox scope probes that failed and fell back",
			},
			[]string{"stage"},
		),

		IdentityLookupErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailsearch_identity_lookup_errors_total",
				Help: "Total number of failed identity lookups during search compilation",
			},
			[]string{"type"},
		),

		MessagesIndexed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailsearch_messages_indexed_total",
				Help: "Total number of messages indexed on ingest",
			},
		),

		MigrationRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailsearch_migration_records_total",
				Help: "Total number of records handled by the search index migration",
			},
			[]string{"result"},
		),

		MigrationBatches: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailsearch_migration_batches_total",
				Help: "Total number of search index migration batches",
			},
		),

		MigrationRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailsearch_migration_runs_total",
				Help: "Total number of search index migration runs by outcome",
			},
			[]string{"outcome"},
		),

		MigrationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailsearch_migration_duration_seconds",
				Help:    "Search index migration run duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailsearch_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordSearchCompile 记录一次过滤器编译及其范围策略
func (m *Metrics) RecordSearchCompile(scope string) {
	if m == nil {
		return
	}
	m.SearchCompiles.WithLabelValues(scope).Inc()
}

// RecordScopeFallback 记录邮箱范围探测失败
func (m *Metrics) RecordScopeFallback(stage string) {
	if m == nil {
		return
	}
	m.ScopeProbeFallbacks.WithLabelValues(stage).Inc()
}

// RecordIdentityLookupError 记录身份查询失败
func (m *Metrics) RecordIdentityLookupError(errorType string) {
	if m == nil {
		return
	}
	m.IdentityLookupErrors.WithLabelValues(errorType).Inc()
}

// RecordMessageIndexed 记录入库时生成搜索字段
func (m *Metrics) RecordMessageIndexed() {
	if m == nil {
		return
	}
	m.MessagesIndexed.Inc()
}

// RecordMigrationBatch 记录迁移批次
func (m *Metrics) RecordMigrationBatch(processed, modified int64) {
	if m == nil {
		return
	}
	m.MigrationBatches.Inc()
	m.MigrationRecords.WithLabelValues("processed").Add(float64(processed))
	m.MigrationRecords.WithLabelValues("modified").Add(float64(modified))
}

// RecordMigrationRun 记录一次迁移运行
func (m *Metrics) RecordMigrationRun(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.MigrationRuns.WithLabelValues(outcome).Inc()
	m.MigrationDuration.Observe(duration.Seconds())
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	if m == nil {
		return
	}
	m.PanicsTotal.Inc()
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
