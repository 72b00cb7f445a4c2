// Package middleware provides HTTP middleware for the decision API.
package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// CorrelationIDHeader is the header carrying the request correlation ID.
const CorrelationIDHeader = "X-Correlation-ID"

// CorrelationID attaches a correlation ID to every request, generating one
// when the caller did not supply it. The ID is echoed on the response and
// stored in the gin context for request-scoped logging.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("correlation_id", id)
		c.Header(CorrelationIDHeader, id)
		c.Next()
	}
}

// SecurityHeaders sets standard security response headers.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// CORS allows cross-origin access for incident command dashboards.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+CorrelationIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestLogger logs one structured line per request.
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.WithFields(logrus.Fields{
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"status":         c.Writer.Status(),
			"client_ip":      c.ClientIP(),
			"correlation_id": c.GetString("correlation_id"),
		}).Info("Request completed")
	}
}

// rateLimiters tracks one token bucket per client IP.
type rateLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func (r *rateLimiters) get(clientIP string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[clientIP]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[clientIP] = l
	}
	return l
}

// RateLimit rejects requests exceeding the per-client budget with 429.
func RateLimit(perSecond float64, burst int) gin.HandlerFunc {
	limiters := &rateLimiters{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}

	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "RATE_LIMIT_EXCEEDED",
					"message": "Too many requests",
				},
			})
			return
		}
		c.Next()
	}
}
