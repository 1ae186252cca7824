package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/squill/backend/internal/interfaces/http/dto"
)

// defaultMaxClients bounds how many per-client buckets are remembered
const defaultMaxClients = 10000

// RateLimiter hands out one token bucket per client key. Buckets refill
// at limit/window and hold at most limit tokens. The least recently seen
// clients are evicted once maxClients is reached.
type RateLimiter struct {
	mu      sync.Mutex
	clients *lru.Cache[string, *rate.Limiter]
	limit   int
	every   rate.Limit
}

// NewRateLimiter creates a limiter allowing limit requests per window per client
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return NewRateLimiterWithSize(limit, window, defaultMaxClients)
}

// NewRateLimiterWithSize is NewRateLimiter with an explicit client bound
func NewRateLimiterWithSize(limit int, window time.Duration, maxClients int) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if maxClients <= 0 {
		maxClients = defaultMaxClients
	}
	// New only fails on a non-positive size
	clients, _ := lru.New[string, *rate.Limiter](maxClients)
	return &RateLimiter{
		clients: clients,
		limit:   limit,
		every:   rate.Every(window / time.Duration(limit)),
	}
}

func (rl *RateLimiter) bucket(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, ok := rl.clients.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(rl.every, rl.limit)
	rl.clients.Add(key, l)
	return l
}

// Allow consumes one token for key
func (rl *RateLimiter) Allow(key string) bool {
	return rl.bucket(key).Allow()
}

// Remaining returns the whole tokens left for key
func (rl *RateLimiter) Remaining(key string) int {
	tokens := rl.bucket(key).Tokens()
	return max(0, int(math.Floor(tokens)))
}

// Limit returns the bucket size
func (rl *RateLimiter) Limit() int {
	return rl.limit
}

// Clients returns how many client buckets are tracked
func (rl *RateLimiter) Clients() int {
	return rl.clients.Len()
}

// RateLimit limits requests per client IP
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return RateLimitByKey(limiter, func(c *gin.Context) string { return c.ClientIP() })
}

// RateLimitByKey limits requests per key returned by keyFunc
func RateLimitByKey(limiter *RateLimiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)

		if !limiter.Allow(key) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRateLimited,
				"Too many requests. Please try again later.",
				GetRequestID(c),
			))
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key)))
		c.Next()
	}
}
