package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bivex/subscription-renewals/internal/infrastructure/logging"
	"github.com/bivex/subscription-renewals/internal/interfaces/http/response"
)

// RateLimitConfig defines rate limiting parameters
type RateLimitConfig struct {
	Rate   int           // requests per Period
	Burst  int           // maximum burst size
	Period time.Duration // defaults to one second
}

func (c RateLimitConfig) limit() redis_rate.Limit {
	period := c.Period
	if period <= 0 {
		period = time.Second
	}
	return redis_rate.Limit{Rate: c.Rate, Burst: c.Burst, Period: period}
}

// RateLimiter manages rate limiting using Redis
type RateLimiter struct {
	limiter  *redis_rate.Limiter
	logger   *zap.Logger
	failOpen bool // if true, allow requests when Redis is unavailable
	prefix   string
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(redisClient redis.UniversalClient, failOpen bool) *RateLimiter {
	return &RateLimiter{
		limiter:  redis_rate.NewLimiter(redisClient),
		logger:   logging.WithComponent("rate_limiter"),
		failOpen: failOpen,
		prefix:   "ratelimit:",
	}
}

// Middleware returns a Gin middleware for rate limiting
func (r *RateLimiter) Middleware(keyFunc func(*gin.Context) string, config RateLimitConfig) gin.HandlerFunc {
	limit := config.limit()
	return func(c *gin.Context) {
		key := keyFunc(c)
		if key == "" {
			c.Next()
			return
		}

		res, err := r.limiter.Allow(c.Request.Context(), r.prefix+key, limit)
		if err != nil {
			r.logger.Error("rate limiter error", zap.Error(err))
			if r.failOpen {
				c.Next()
				return
			}
			response.ServiceUnavailable(c, "Rate limiting unavailable")
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Rate))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.ResetAfter).Unix(), 10))

		if res.Allowed == 0 {
			response.RateLimited(c, int(res.RetryAfter.Seconds())+1)
			c.Abort()
			return
		}

		c.Next()
	}
}

// ByIP limits requests by client IP address
func ByIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// ByOperator limits requests by authenticated operator, falling back to IP
func ByOperator(c *gin.Context) string {
	if id := c.GetString(ContextKeyOperatorID); id != "" {
		return "operator:" + id
	}
	return ByIP(c)
}

var (
	// AdminReadConfig allows 5 requests per second with bursts of 20
	AdminReadConfig = RateLimitConfig{Rate: 5, Burst: 20}

	// AdminWriteConfig allows 30 charge-triggering requests per minute
	AdminWriteConfig = RateLimitConfig{Rate: 30, Burst: 10, Period: time.Minute}
)
