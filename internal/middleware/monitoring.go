package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fieldreport/backend/internal/monitoring"
)

// MonitoringMiddleware HTTP 与业务指标采集中间件
func MonitoringMiddleware(metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestSize := c.Request.ContentLength
		if requestSize < 0 {
			requestSize = 0
		}

		c.Next()

		// 计算指标
		duration := time.Since(start)
		status := c.Writer.Status()
		statusCode := strconv.Itoa(status)
		responseSize := int64(c.Writer.Size())

		metrics.RecordHTTPRequest(
			c.Request.Method,
			c.FullPath(),
			statusCode,
			duration,
			requestSize,
			responseSize,
		)

		if status >= 400 {
			metrics.RecordError("http_error", "http")
		}

		// 只在成功响应时记录业务指标
		if status >= 300 {
			return
		}

		switch c.FullPath() {
		case "/v1/issues":
			if c.Request.Method == "POST" {
				metrics.RecordIssueCreated()
			}
		case "/v1/issues/:id":
			if c.Request.Method == "PATCH" {
				metrics.RecordIssuePatched()
			}
		case "/v1/issues/:id/solution":
			if c.Request.Method == "POST" {
				metrics.RecordSolutionSubmitted()
			}
		case "/v1/issues/:id/export":
			if c.Request.Method == "GET" {
				metrics.RecordExportServed()
			}
		}
	}
}
