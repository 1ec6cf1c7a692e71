package http

import (
	"net/http"

	"realtime-chat/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func ErrorResponse(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

func SuccessResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, data)
}

// currentUser 读取 Auth 中间件设置的用户 ID，缺失时直接写出 401
func currentUser(c *gin.Context) (string, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		logrus.WithField("path", c.FullPath()).Warn("User ID not found in context, auth middleware missing?")
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return "", false
	}
	return userID, true
}
