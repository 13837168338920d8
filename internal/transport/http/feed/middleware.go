package feedhttp

import (
	"time"

	"datafeeder/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requestID echoes the caller's X-Request-ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeaderKey)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeaderKey, id)
		c.Set(requestIDKey, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path += "?" + q
		}
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s id=%s",
			c.Request.Method, path, c.Writer.Status(), c.ClientIP(), time.Since(start), c.GetString(requestIDKey))
	}
}
