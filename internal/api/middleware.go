package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-ID"
	headerSessionID = "X-Session-ID"

	loggerKey = "session_logger"
)

// SessionScope tags every request with the session it operates on. It
// echoes X-Request-ID (minting one when absent), answers with X-Session-ID
// and leaves a logger carrying both ids for the handlers.
func SessionScope(sessionID string, logger *slog.Logger) gin.HandlerFunc {
	base := logger.With("component", "api", "session_id", sessionID)
	return func(c *gin.Context) {
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(headerRequestID, requestID)
		c.Header(headerSessionID, sessionID)
		c.Set(loggerKey, base.With("request_id", requestID))
		c.Next()
	}
}

// requestLogger returns the logger SessionScope left on c.
func requestLogger(c *gin.Context) *slog.Logger {
	if l, ok := c.Get(loggerKey); ok {
		if logger, ok := l.(*slog.Logger); ok {
			return logger
		}
	}
	return slog.Default()
}

// AccessLog records each request once it completes. Commands that change
// the session (every POST) log at info; reads stay at debug unless they fail.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"latency", time.Since(start).String(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}
		requestLogger(c).Log(c.Request.Context(), accessLevel(c.Request.Method, status), "Request", attrs...)
	}
}

func accessLevel(method string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case method == http.MethodPost:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// CORS lets a local dashboard drive the session and read the id headers.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, "+headerRequestID)
		h.Set("Access-Control-Expose-Headers", headerRequestID+", "+headerSessionID)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
