package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"auction-core/internal/identity"
	"auction-core/utils"
)

// RequestLoggerMiddleware logs incoming requests with timing and the resolved caller
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	fields := map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"route":   c.FullPath(),
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	}
	if userID := identity.UserID(c); userID != "" {
		fields["user_id"] = userID
	}
	if len(c.Errors) > 0 {
		fields["errors"] = c.Errors.String()
	}

	if c.Writer.Status() >= 500 {
		utils.Warn("HTTP Request", fields)
		return
	}
	utils.Info("HTTP Request", fields)
}
