package http

import (
	"net/http"

	"realtime-chat/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// GroupHandler 处理群组管理与群消息的 HTTP 请求
type GroupHandler struct {
	groupService *service.GroupService
}

// NewGroupHandler 创建 GroupHandler 实例
func NewGroupHandler(groupService *service.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

// CreateGroupRequest 是创建群组的请求体
type CreateGroupRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

// Create 创建群组，创建者成为管理员
func (h *GroupHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Handler.CreateGroup: Invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: name is required")
		return
	}
	group, err := h.groupService.Create(c.Request.Context(), userID, req.Name)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, group)
}

// Leave 退出 :id 群组
func (h *GroupHandler) Leave(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.groupService.Leave(c.Request.Context(), userID, c.Param("id")); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Left group"})
}

// List 返回当前用户所在的群组
func (h *GroupHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	groups, err := h.groupService.List(c.Request.Context(), userID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, groups)
}

// Members 返回 :id 群组的成员
func (h *GroupHandler) Members(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	members, err := h.groupService.Members(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, members)
}

// MakeAdmin 把 :target 设为 :id 群组的管理员
func (h *GroupHandler) MakeAdmin(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.groupService.MakeAdmin(c.Request.Context(), userID, c.Param("id"), c.Param("target")); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Member promoted to admin"})
}

// AddMember 按全名把 :target 加入 :id 群组
func (h *GroupHandler) AddMember(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	user, err := h.groupService.AddMember(c.Request.Context(), userID, c.Param("id"), c.Param("target"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, user)
}

// Send 向 :id 群组发送消息 (multipart: text, image, file)
func (h *GroupHandler) Send(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	in, closeFiles, err := parseSendInput(c)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Handler.SendGroup: Invalid multipart form")
		HandleServiceError(c, err)
		return
	}
	defer closeFiles()

	msg, err := h.groupService.Send(c.Request.Context(), userID, c.Param("id"), in)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, msg)
}

// Messages 返回 :id 群组的消息历史
func (h *GroupHandler) Messages(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	msgs, err := h.groupService.Messages(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, msgs)
}
