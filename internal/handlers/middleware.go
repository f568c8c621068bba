package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/logging"
)

const (
	headerRequestID = "X-Request-Id"
	headerAccountID = "X-Account-Id"
	headerAdminID   = "X-Admin-Id"

	ctxAccountID = "account_id"
	ctxAdminID   = "admin_id"
	ctxRequestID = "request_id"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "Duration of HTTP requests in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		},
		[]string{"method", "path"},
	)
)

func routeOf(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return "unmatched"
}

// Metrics records request counts and latency per route.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := routeOf(c)
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(float64(time.Since(start).Milliseconds()))
	}
}

// RequestLogger tags every request with an id and carries a request-scoped
// logger on the request context.
func RequestLogger(base *zap.Logger) gin.HandlerFunc {
	if base == nil {
		base = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(headerRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(headerRequestID, reqID)
		c.Set(ctxRequestID, reqID)

		logger := base.With(
			zap.String("request_id", reqID),
			zap.String("method", c.Request.Method),
			zap.String("route", routeOf(c)),
		)
		c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), logger))

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request completed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request completed", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}

// RequireAccount rejects requests without a customer identity. Authentication
// happens upstream; this layer only trusts the forwarded header.
func RequireAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerAccountID)
		if id == "" {
			abortError(c, http.StatusUnauthorized, "unauthenticated", "missing "+headerAccountID+" header")
			return
		}
		c.Set(ctxAccountID, id)
		c.Next()
	}
}

// RequireAdmin rejects requests without an admin identity.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerAdminID)
		if id == "" {
			abortError(c, http.StatusUnauthorized, "unauthenticated", "missing "+headerAdminID+" header")
			return
		}
		c.Set(ctxAdminID, id)
		c.Next()
	}
}
