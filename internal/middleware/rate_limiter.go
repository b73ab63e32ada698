package middleware

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/tourforge/backend/internal/config"
)

// RateLimiter caps the request rate per client IP over a fixed redis window.
// The counter is INCR-first so two racing requests cannot both see the last
// free slot. When redis is unreachable the limiter waves traffic through:
// throttling is protection for the publish and upload paths, not a hard
// dependency of the API.
func RateLimiter(redisClient *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := "ratelimit:ip:" + c.ClientIP()

		count, err := redisClient.Incr(ctx, key).Result()
		if err != nil {
			log.Printf("WARN: rate limiter unavailable, request passed through: %v", err)
			c.Next()
			return
		}
		if count == 1 {
			// first hit in this window starts the clock
			if err := redisClient.Expire(ctx, key, cfg.RateLimitDuration).Err(); err != nil {
				log.Printf("WARN: rate limiter failed to set window on %s: %v", key, err)
			}
		}

		limit := int64(cfg.RateLimitRequests)
		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > limit {
			ttl, _ := redisClient.TTL(ctx, key).Result()
			c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests",
				"retry_after": fmt.Sprintf("%.0f", ttl.Seconds()),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
