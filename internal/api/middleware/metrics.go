package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vecollab/backend/internal/metrics"
)

// Metrics records every request by its route template.
func Metrics() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(ctx.Request.Method, route, ctx.Writer.Status(), time.Since(start))
	}
}
