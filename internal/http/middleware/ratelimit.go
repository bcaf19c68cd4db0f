package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type clientInfo struct {
	start time.Time
	count int
}

// SimpleRateLimit is the in-process fixed window limiter used when redis is not configured.
func SimpleRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	var mu sync.Mutex
	clients := make(map[string]*clientInfo)

	return func(c *gin.Context) {
		ident := identity(c)
		now := time.Now()

		mu.Lock()
		ci, ok := clients[ident]
		if !ok || now.Sub(ci.start) > window {
			ci = &clientInfo{start: now}
			clients[ident] = ci
		}
		ci.count++
		count := ci.count
		mu.Unlock()

		if count > maxRequests {
			RLBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		RLRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}

// identity prefers the authenticated address and falls back to the client IP.
func identity(c *gin.Context) string {
	if address, ok := Address(c); ok {
		return "addr:" + address
	}
	return "ip:" + c.ClientIP()
}
