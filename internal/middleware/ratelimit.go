package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RateLimit 返回一个 Gin 中间件，按客户端 IP 限流。
// 计数器保存在 Redis 中，每次请求都会刷新窗口。
func RateLimit(redisClient redis.Cmdable, maxRequests int, window time.Duration) gin.HandlerFunc {
	if redisClient == nil {
		panic("Redis client cannot be nil for RateLimit middleware")
	}
	if maxRequests <= 0 {
		panic("maxRequests must be positive for RateLimit middleware")
	}
	if window <= 0 {
		panic("window duration must be positive for RateLimit middleware")
	}
	limit := strconv.Itoa(maxRequests)

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := "chat:ratelimit:" + c.ClientIP()

		var incrCmd *redis.IntCmd
		_, err := redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incrCmd = pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, window)
			return nil
		})
		if err != nil {
			// Redis 不可用时放行
			logrus.WithError(err).WithField("key", key).Error("RateLimit: Redis pipeline failed, allowing request")
			c.Next()
			return
		}

		count := incrCmd.Val()
		c.Header("X-RateLimit-Limit", limit)
		if remaining := int64(maxRequests) - count; remaining > 0 {
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		} else {
			c.Header("X-RateLimit-Remaining", "0")
		}
		if count > int64(maxRequests) {
			logrus.WithFields(logrus.Fields{"client_ip": c.ClientIP(), "count": count}).Warn("RateLimit: Too many requests")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
