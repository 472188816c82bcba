package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimit 以客戶端 IP 為鍵限制每秒請求次數（固定窗口）。
// Redis 不可用時放行請求。
func RateLimit(client *redis.Client, maxRequests int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ratelimit:" + c.ClientIP()
		ctx := c.Request.Context()

		count, err := client.Get(ctx, key).Int()
		if err != nil && err != redis.Nil {
			c.Next()
			return
		}
		if count >= maxRequests {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": "Too many requests",
			})
			c.Abort()
			return
		}

		client.Incr(ctx, key)
		client.Expire(ctx, key, time.Second)
		c.Next()
	}
}
