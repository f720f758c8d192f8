package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailsearch/backend/internal/monitoring"
)

// MonitoringMiddleware 监控中间件
type MonitoringMiddleware struct {
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewMonitoringMiddleware 创建监控中间件
func NewMonitoringMiddleware(metrics *monitoring.Metrics, logger *zap.Logger) *MonitoringMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MonitoringMiddleware{
		metrics: metrics,
		logger:  logger,
	}
}

// HTTPMetrics HTTP 指标中间件，按路由模板聚合
//
// 处理过程中发生 panic 时按 500 记录后继续向外抛出，由恢复中间件处理。
func (mm *MonitoringMiddleware) HTTPMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		defer func() {
			status := c.Writer.Status()
			rec := recover()
			if rec != nil {
				status = http.StatusInternalServerError
			}

			endpoint := c.FullPath()
			if endpoint == "" {
				endpoint = "unmatched"
			}
			mm.metrics.RecordHTTPRequest(
				c.Request.Method,
				endpoint,
				strconv.Itoa(status),
				time.Since(start),
			)

			if rec != nil {
				panic(rec)
			}
		}()

		c.Next()
	}
}

// PanicRecovery Panic 恢复中间件，记录 panic 指标
func (mm *MonitoringMiddleware) PanicRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				mm.metrics.RecordPanic()

				mm.logger.Error("Panic recovered",
					zap.Any("error", err),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("ip", c.ClientIP()),
					zap.Stack("stack"),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code": http.StatusInternalServerError,
					"msg":  "服务器内部错误",
				})
			}
		}()

		c.Next()
	}
}
