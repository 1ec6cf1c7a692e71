package hub

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ConnState 是连接的生命周期状态: Connecting -> Active -> Disconnected
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateActive
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Client 代表一个连接到 Hub 的 WebSocket 客户端。
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	id     string // 连接 ID，每次连接都不同
	userID string // 握手时认证得到的用户 ID

	// send 从不关闭，Hub 与 HTTP goroutine 都可能向它写入；关闭信号通过 done 传递
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	state atomic.Int32

	groupsMu sync.Mutex
	groups   map[string]struct{}

	log *logrus.Entry
}

// NewClient 创建一个新的 Client 实例
func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	if hub == nil {
		panic("Hub cannot be nil for Client")
	}
	id := uuid.NewString()
	return &Client{
		hub:    hub,
		conn:   conn,
		id:     id,
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		groups: make(map[string]struct{}),
		log:    logrus.WithFields(logrus.Fields{"conn_id": id, "user_id": userID}),
	}
}

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// ReadPump 从 WebSocket 连接读取客户端事件并交给 Hub。
// 它在自己的 goroutine 中运行，退出时请求 Hub 注销此连接。
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
		c.log.Info("readPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				c.log.Debug("WebSocket connection closed normally or read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.log.Debugf("Received non-text message type: %d", messageType)
			continue
		}
		c.handleFrame(message)
	}
}

// handleFrame 解码一帧并转交给 Hub。解码失败只回复错误，不断开连接。
func (c *Client) handleFrame(raw []byte) {
	req, err := decodeInbound(raw)
	if err != nil {
		c.log.WithError(err).Warn("Rejecting malformed client event")
		c.notify(ErrorNotice{Message: err.Error()})
		return
	}
	switch r := req.(type) {
	case joinRequest:
		c.hub.requestJoin(c, r.groupID)
	case relayRequest:
		c.hub.queue(relayEvent{client: c, groupID: r.groupID, message: r.message}, c)
	}
}

// WritePump 将 send 通道中的帧写入 WebSocket 连接，并定期发送 Ping。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Info("writePump exited")
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.WithError(err).Warn("Failed to write message to websocket")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.WithError(err).Warn("Failed to send ping message")
				return
			}
		case <-c.done:
			// Hub 已注销此连接
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// push 非阻塞地把一帧放入发送队列。连接已关闭或队列已满时返回 false。
func (c *Client) push(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.log.Warn("Client send buffer full, dropping frame")
		return false
	}
}

// notify 向本连接单独发送一个事件
func (c *Client) notify(ev Outbound) {
	frame, err := Encode(ev)
	if err != nil {
		c.log.WithError(err).Error("Failed to encode notice")
		return
	}
	c.push(frame)
}

func (c *Client) shut() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) setState(s ConnState) { c.state.Store(int32(s)) }

func (c *Client) joined(groupID string) {
	c.groupsMu.Lock()
	c.groups[groupID] = struct{}{}
	c.groupsMu.Unlock()
}

// Groups 返回此连接已订阅的群组 (有序)
func (c *Client) Groups() []string {
	c.groupsMu.Lock()
	defer c.groupsMu.Unlock()
	out := make([]string, 0, len(c.groups))
	for g := range c.groups {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

func (c *Client) ID() string            { return c.id }
func (c *Client) UserID() string        { return c.userID }
func (c *Client) State() ConnState      { return ConnState(c.state.Load()) }
func (c *Client) Done() <-chan struct{} { return c.done }
