package http

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/xtouch/internal/common"
	"github.com/dmitrijs2005/xtouch/internal/logging"
	"github.com/dmitrijs2005/xtouch/internal/server/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const userIDKey = "userID"

// RequestLogger assigns a request id (reusing a client-supplied X-Request-ID),
// stores it in the request context and logs one line per request.
func RequestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := strings.TrimSpace(c.GetHeader(common.RequestIDHeaderName))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Writer.Header().Set(common.RequestIDHeaderName, requestID)
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		args := []any{
			"status", status,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error(ctx, "http request", args...)
		case status >= http.StatusBadRequest:
			log.Warn(ctx, "http request", args...)
		default:
			log.Info(ctx, "http request", args...)
		}
	}
}

// Recovery turns a handler panic into a 500 envelope.
func Recovery(log logging.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error(c.Request.Context(), "panic recovered", "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"status": statusError,
			"error":  http.StatusText(http.StatusInternalServerError),
		})
	})
}

// RequireAuth validates the bearer access token and stores the caller's user
// id for UserID.
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(common.AuthorizationHeaderName)
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": statusError, "error": "bearer token required"})
			return
		}

		claims, err := auth.ParseToken(strings.TrimSpace(token), secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": statusError, "error": err.Error()})
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}

// UserID returns the id stored by RequireAuth.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// RateLimiter enforces a per-client-IP request budget.
type RateLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter returns a limiter allowing requestsPerMinute per client, or
// nil when requestsPerMinute is not positive.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:     rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:     burst,
		idle:      5 * time.Minute,
		now:       time.Now,
		clients:   make(map[string]*clientLimiter),
		lastSweep: time.Now(),
	}
}

// Handler returns the gin middleware. A nil limiter lets everything through.
func (r *RateLimiter) Handler() gin.HandlerFunc {
	if r == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if !r.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"status": statusError, "error": common.ErrorThrottled.Error()})
			return
		}
		c.Next()
	}
}

func (r *RateLimiter) get(key string) *rate.Limiter {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	// Idle clients are dropped at most once per idle period.
	if now.Sub(r.lastSweep) > r.idle {
		for k, entry := range r.clients {
			if now.Sub(entry.lastSeen) > r.idle {
				delete(r.clients, k)
			}
		}
		r.lastSweep = now
	}

	if entry, ok := r.clients[key]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	limiter := rate.NewLimiter(r.limit, r.burst)
	r.clients[key] = &clientLimiter{limiter: limiter, lastSeen: now}
	return limiter
}
