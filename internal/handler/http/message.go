package http

import (
	"net/http"

	"realtime-chat/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// MessageHandler 处理私信相关的 HTTP 请求
type MessageHandler struct {
	messageService *service.MessageService
}

// NewMessageHandler 创建 MessageHandler 实例
func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// Users 返回侧边栏用户列表 (除自己以外的所有用户)
func (h *MessageHandler) Users(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	users, err := h.messageService.Users(c.Request.Context(), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, users)
}

// Conversation 返回与 :id 用户之间的私信记录
func (h *MessageHandler) Conversation(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	msgs, err := h.messageService.Conversation(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, msgs)
}

// Send 向 :id 用户发送私信 (multipart: text, image, file)
func (h *MessageHandler) Send(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	in, closeFiles, err := parseSendInput(c)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Handler.SendDirect: Invalid multipart form")
		HandleServiceError(c, err)
		return
	}
	defer closeFiles()

	msg, err := h.messageService.SendDirect(c.Request.Context(), userID, c.Param("id"), in)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, msg)
}

// Delete 删除一条私信并返回刷新后的会话
func (h *MessageHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	msgs, err := h.messageService.Delete(c.Request.Context(), userID, c.Param("messageId"), c.Param("receiverId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Message deleted", "messages": msgs})
}

// ToggleBlock 屏蔽或取消屏蔽 :id 用户
func (h *MessageHandler) ToggleBlock(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	blocked, err := h.messageService.ToggleBlock(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"blocked": blocked})
}
