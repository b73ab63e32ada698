package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/tourforge/backend/internal/config"
)

// UploadRateLimit limits the number of asset uploads a user may perform per
// day. Keeps a single editor from flooding project storage.
func UploadRateLimit(redisClient *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()

		// Only apply to asset upload requests
		if c.Request.Method != "POST" || !isUploadEndpoint(c.Request.URL.Path) {
			c.Next()
			return
		}

		// Get user ID from context (set by Auth middleware)
		userID, ok := CurrentUserID(c)
		if !ok {
			c.Next()
			return
		}

		// Rate limit key: upload_limit:{user_id}:{date}
		// Resets daily at midnight for predictable behavior
		today := time.Now().Format("2006-01-02")
		key := fmt.Sprintf("upload_limit:%s:%s", userID.String(), today)

		// Check current count
		count, err := redisClient.Get(ctx, key).Int()
		if err == redis.Nil {
			// First upload today, set with expiration until midnight
			now := time.Now()
			midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
			ttl := midnight.Sub(now)
			err = redisClient.Set(ctx, key, 1, ttl).Err()
			if err != nil {
				// Log error but don't block upload
				c.Next()
				return
			}
		} else if err != nil {
			// Redis error - don't block upload
			c.Next()
			return
		} else if count >= cfg.UploadMaxPerDay {
			ttl, _ := redisClient.TTL(ctx, key).Result()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":               "upload_rate_limit_exceeded",
				"message":             "Too many uploads today. Please try again tomorrow.",
				"retry_after_hours":   int(ttl.Hours()),
				"uploads_today":       count,
				"max_uploads_per_day": cfg.UploadMaxPerDay,
			})
			c.Abort()
			return
		} else {
			// Increment counter
			redisClient.Incr(ctx, key)
		}

		c.Next()
	}
}

// isUploadEndpoint checks if the path is an asset upload endpoint
func isUploadEndpoint(path string) bool {
	return strings.HasPrefix(path, "/api/v1/projects/") && strings.HasSuffix(path, "/assets")
}
