package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/brettericmartin/teed-sub011/internal/logging"
	"github.com/brettericmartin/teed-sub011/internal/services"
)

const (
	headerRequestID   = "X-Request-ID"
	contextRequestID  = "request_id"
	maxRequestIDChars = 64
)

// RequestID assigns every request an id, reusing a well-formed incoming
// X-Request-ID header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerRequestID))
		if id == "" || len(id) > maxRequestIDChars || strings.ContainsAny(id, " \t\r\n") {
			id = uuid.NewString()
		}
		c.Set(contextRequestID, id)
		c.Header(headerRequestID, id)
		c.Request = c.Request.WithContext(services.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// RequestLogger logs one line per request. Server errors log at warn level.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	logger = logging.NewComponentLogger(logger, "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		attrs := []logging.Attr{
			logging.String("method", c.Request.Method),
			logging.String("path", c.FullPath()),
			logging.Int("status", status),
			logging.Duration("latency", time.Since(start)),
			logging.String("client_ip", c.ClientIP()),
			logging.String(contextRequestID, c.GetString(contextRequestID)),
		}
		if status >= http.StatusInternalServerError {
			logging.WarnWithContext(logger, "request failed", "http_request_failed",
				append(attrs, logging.String(logging.FieldImpact, "client received a server error"))...)
			return
		}
		logger.Info("request", logging.Args(attrs...)...)
	}
}

// Recovery converts panics into a 500 response and logs them.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	logger = logging.NewComponentLogger(logger, "http")
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.WarnWithContext(logger, "handler panicked", "http_panic",
			logging.Any("panic", recovered),
			logging.String("path", c.Request.URL.Path),
			logging.String(contextRequestID, c.GetString(contextRequestID)),
			logging.String(logging.FieldImpact, "request failed with an internal error"),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody(c, "internal", "internal server error"))
	})
}

// CORS allows the configured origins. An entry ending in "*" matches by
// prefix.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if isAllowedOrigin(origin, allowedOrigins) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			h.Set("Access-Control-Expose-Headers", headerRequestID)
			h.Set("Access-Control-Max-Age", "3600")
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func isAllowedOrigin(origin string, allowed []string) bool {
	if origin == "" {
		return false
	}
	for _, candidate := range allowed {
		if prefix, ok := strings.CutSuffix(candidate, "*"); ok {
			if strings.HasPrefix(origin, prefix) {
				return true
			}
		} else if origin == candidate {
			return true
		}
	}
	return false
}

// BodyLimit caps request bodies at limit bytes. Non-positive limits disable it.
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
