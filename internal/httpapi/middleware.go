package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xaenox/unimind/internal/auth"
)

// RequireTenant resolves the Authorization header and stores the tenant in
// the request context. Requests without a valid credential stop here.
func RequireTenant(resolver *auth.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := resolver.Resolve(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			msg := "Unauthorized"
			if errors.Is(err, auth.ErrInvalidToken) {
				msg = "Invalid token"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		c.Request = c.Request.WithContext(auth.WithTenant(c.Request.Context(), tenantID))
		c.Next()
	}
}

// tenantLimiter hands out one token bucket per tenant.
type tenantLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	limiters map[string]*tenantBucket
}

type tenantBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const pruneThreshold = 1024

func newTenantLimiter(reqPerSec float64, burst int) *tenantLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &tenantLimiter{
		limit:    rate.Limit(reqPerSec),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		limiters: make(map[string]*tenantBucket),
	}
}

func (l *tenantLimiter) allow(tenantID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if len(l.limiters) >= pruneThreshold {
		for id, b := range l.limiters {
			if now.Sub(b.lastSeen) > l.idleTTL {
				delete(l.limiters, id)
			}
		}
	}

	b, ok := l.limiters[tenantID]
	if !ok {
		b = &tenantBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[tenantID] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// RateLimit enforces a per-tenant request rate. It must run after RequireTenant.
// A non-positive reqPerSec disables limiting.
func RateLimit(reqPerSec float64, burst int) gin.HandlerFunc {
	if reqPerSec <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	limiter := newTenantLimiter(reqPerSec, burst)
	return func(c *gin.Context) {
		tenantID, _ := auth.TenantFromContext(c.Request.Context())
		if !limiter.allow(tenantID) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if tenantID, ok := auth.TenantFromContext(c.Request.Context()); ok {
			fields = append(fields, zap.String("tenant_id", tenantID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("Request failed", fields...)
			return
		}
		logger.Info("Request handled", fields...)
	}
}

// Recovery turns a handler panic into a 500 JSON response.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		logger.Error("Handler panicked",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprint(recovered)})
	})
}
