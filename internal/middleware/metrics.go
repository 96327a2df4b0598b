package middleware

import (
	"time"

	"costrict-updater/internal/logger"
	"costrict-updater/services"

	"github.com/gin-gonic/gin"
)

/**
 * HTTP请求统计中间件
 * @description
 * - 按路由模板统计请求数量与处理时间
 * - 状态码 >= 400 的请求计入错误数
 */
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start).Seconds()

		// 标签取路由模板
		serviceName := c.FullPath()
		if serviceName == "" {
			serviceName = "unknown"
		}
		services.IncrementRequestCount(serviceName)
		services.RecordRequestDuration(serviceName, duration)
		if c.Writer.Status() >= 400 {
			services.IncrementErrorCount(serviceName)
		}
	}
}

// AccessLog writes one debug line per request through the application logger.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("%s %s from %s -> %d (%v)",
			c.Request.Method, c.Request.URL.Path, c.ClientIP(), c.Writer.Status(), time.Since(start))
	}
}

// GetTotalRequests returns the number of requests served since start.
func GetTotalRequests() int64 {
	return services.GetTotalRequestCount()
}

// GetErrorRequests returns the number of requests answered with an error status.
func GetErrorRequests() int64 {
	return services.GetTotalErrorCount()
}
