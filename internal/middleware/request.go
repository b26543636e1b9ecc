package middleware

import (
  "time"

  "github.com/gin-gonic/gin"

  "github.com/cocoja/cocoja-backend/internal/errordata"
  "github.com/cocoja/cocoja-backend/internal/logger"
)

func AttachRequestContext() gin.HandlerFunc {
  return func(c *gin.Context) {
    ctx := c.Request.Context()
    ctx = errordata.WithErrorData(ctx)
    c.Request = c.Request.WithContext(ctx)
    c.Next()
  }
}

// RequestLogger logs one line per request once the handler chain is done,
// including the error a handler recorded in errordata.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
  requestLog := log.With("Middleware", "RequestLogger")
  return func(c *gin.Context) {
    start := time.Now()
    c.Next()

    status := c.Writer.Status()
    kv := []interface{}{
      "method", c.Request.Method,
      "path", c.Request.URL.Path,
      "status", status,
      "latency", time.Since(start),
      "clientIP", c.ClientIP(),
    }
    if ed := errordata.GetErrorData(c.Request.Context()); ed != nil && ed.HasMessage() {
      kv = append(kv, "error", ed.Message)
    }
    switch {
    case status >= 500:
      requestLog.Error("Request failed", kv...)
    case status >= 400:
      requestLog.Warn("Request rejected", kv...)
    default:
      requestLog.Info("Request served", kv...)
    }
  }
}
