package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PresenceSource 是在线状态的只读视图，由 hub.Hub 实现
type PresenceSource interface {
	Online() []string
	ActiveGroups() []string
}

// PresenceHandler 暴露在线用户快照
type PresenceHandler struct {
	source PresenceSource
}

// NewPresenceHandler 创建 PresenceHandler 实例
func NewPresenceHandler(source PresenceSource) *PresenceHandler {
	if source == nil {
		panic("PresenceSource cannot be nil for PresenceHandler")
	}
	return &PresenceHandler{source: source}
}

// Online 返回当前在线的用户 ID
func (h *PresenceHandler) Online(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, gin.H{"userIds": h.source.Online()})
}

// Groups 返回当前至少有一个连接订阅的群组 (诊断用)
func (h *PresenceHandler) Groups(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, gin.H{"groupIds": h.source.ActiveGroups()})
}

// Ping 健康检查
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}
