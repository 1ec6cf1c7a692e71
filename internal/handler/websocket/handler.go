package websocket

import (
	"net/http"

	"realtime-chat/internal/hub"
	"realtime-chat/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端注册
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。
// allowedOrigin 为空或 "*" 时接受任意来源。
func NewWebSocketHandler(h *hub.Hub, allowedOrigin string) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	return &WebSocketHandler{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigin),
		},
	}
}

func originChecker(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if allowed == "" || allowed == "*" {
			return true
		}
		origin := r.Header.Get("Origin")
		// 非浏览器客户端 (例如 chatctl) 不发送 Origin
		return origin == "" || origin == allowed
	}
}

// HandleConnection 处理 WebSocket 连接请求 (GET /ws)。
// 用户身份在握手时由 Auth 中间件确定，此后整个连接期间不变。
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		logrus.Warn("WS Handler: User ID not found in context")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	logCtx := logrus.WithField("user_id", userID)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写出了 HTTP 错误响应
		logCtx.WithError(err).Warn("WS Handler: Failed to upgrade connection")
		return
	}

	client := hub.NewClient(h.hub, conn, userID)
	logCtx = logCtx.WithField("conn_id", client.ID())
	if !h.hub.Register(client) {
		logCtx.Error("WS Handler: Hub unavailable, closing connection")
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"))
		conn.Close()
		return
	}
	client.Run()
	logCtx.Info("WS Handler: Client connected")
}
