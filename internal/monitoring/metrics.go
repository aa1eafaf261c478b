package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 问题记录指标
	IssuesCreated      prometheus.Counter
	IssuesPatched      prometheus.Counter
	SolutionsSubmitted prometheus.Counter
	ExportsServed      prometheus.Counter

	// 附件指标
	AttachmentsStored  prometheus.Counter
	AttachmentsCleaned prometheus.Counter
	AttachmentSize     prometheus.Histogram

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		// HTTP 请求指标
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldreport_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fieldreport_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fieldreport_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fieldreport_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		// 问题记录指标
		IssuesCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fieldreport_issues_created_total",
				Help: "Total number of issues created",
			},
		),

		IssuesPatched: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fieldreport_issues_patched_total",
				Help: "Total number of issue metadata updates",
			},
		),

		SolutionsSubmitted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fieldreport_solutions_submitted_total",
				Help: "Total number of solutions submitted",
			},
		),

		ExportsServed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fieldreport_exports_served_total",
				Help: "Total number of issue archives exported",
			},
		),

		// 附件指标
		AttachmentsStored: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fieldreport_attachments_stored_total",
				Help: "Total number of attachment files stored",
			},
		),

		AttachmentsCleaned: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fieldreport_attachments_cleaned_total",
				Help: "Total number of orphan attachment files removed",
			},
		),

		AttachmentSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fieldreport_attachment_size_bytes",
				Help:    "Stored attachment size in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),

		// 错误指标
		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fieldreport_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fieldreport_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, requestSize, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// RecordIssueCreated 记录问题创建
func (m *Metrics) RecordIssueCreated() {
	m.IssuesCreated.Inc()
}

// RecordIssuePatched 记录元数据更新
func (m *Metrics) RecordIssuePatched() {
	m.IssuesPatched.Inc()
}

// RecordSolutionSubmitted 记录解决方案提交
func (m *Metrics) RecordSolutionSubmitted() {
	m.SolutionsSubmitted.Inc()
}

// RecordExportServed 记录归档导出
func (m *Metrics) RecordExportServed() {
	m.ExportsServed.Inc()
}

// RecordAttachmentStored 记录附件写入
func (m *Metrics) RecordAttachmentStored(sizeBytes int64) {
	m.AttachmentsStored.Inc()
	m.AttachmentSize.Observe(float64(sizeBytes))
}

// RecordAttachmentsCleaned 记录孤儿附件清理数量
func (m *Metrics) RecordAttachmentsCleaned(count int) {
	m.AttachmentsCleaned.Add(float64(count))
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// HTTPHandler 返回 Prometheus 指标处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
