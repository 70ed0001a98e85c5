package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/guttosm/tradeexport/internal/domain/dto"
)

// client represents a rate-limited client with request count and window start.
type client struct {
	windowStart time.Time
	count       int
}

// In-memory store for rate limiting, keyed by client IP.
var (
	clients         = make(map[string]*client)
	window          = time.Minute
	limit           = 30
	rateLimiterLock sync.Mutex
)

// RateLimiter limits the number of requests per client IP.
//
// Behavior:
//   - Allows up to `limit` requests per fixed `window` (default: 30 per minute).
//     The window starts at a client's first request and is not extended by
//     later ones.
//   - Identifies clients by their IP address.
//   - If the limit is exceeded, returns 429 with a dto.ErrorResponse.
//   - Entries idle for more than one window are pruned on the way.
func RateLimiter() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		rateLimiterLock.Lock()
		cl, ok := clients[ip]
		if !ok || now.Sub(cl.windowStart) >= window {
			cl = &client{windowStart: now}
			clients[ip] = cl
		}
		cl.count++
		exceeded := cl.count > limit
		retryAfter := window - now.Sub(cl.windowStart)
		if len(clients) > 1024 {
			for k, v := range clients {
				if now.Sub(v.windowStart) >= window {
					delete(clients, k)
				}
			}
		}
		rateLimiterLock.Unlock()

		if exceeded {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				dto.NewErrorResponse("rate limit exceeded", nil).WithCode("rate_limited"))
			return
		}

		c.Next()
	}
}
