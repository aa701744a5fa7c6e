package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/creditrail/creditrail/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// RateLimitMiddleware returns a fixed-window per-user request limiter backed
// by Redis. Without a configured Redis address it returns nil and the
// limiter is skipped. The limiter fails open: a Redis outage never blocks
// traffic.
func RateLimitMiddleware(cfg config.RedisConfig, limits config.RateLimitConfig) gin.HandlerFunc {
	if cfg.Addr == "" || limits.Requests <= 0 {
		return nil
	}
	window := time.Duration(limits.WindowS) * time.Second
	if window <= 0 {
		window = time.Minute
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return func(c *gin.Context) {
		val, exists := c.Get("userID")
		if !exists {
			c.Next()
			return
		}
		userID, ok := val.(uint64)
		if !ok || userID == 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("creditrail:rl:%d:%d", userID, time.Now().UTC().Unix()/int64(window.Seconds()))
		count, errIncr := client.Incr(c.Request.Context(), key).Result()
		if errIncr != nil {
			log.WithError(errIncr).Warn("rate limiter unavailable")
			c.Next()
			return
		}
		if count == 1 {
			client.Expire(c.Request.Context(), key, window)
		}
		if count > int64(limits.Requests) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
