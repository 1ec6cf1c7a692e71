// Package client 是聊天服务的 WebSocket 客户端，把收到的事件交给 notify.Dispatcher。
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"realtime-chat/internal/domain"
	"realtime-chat/internal/hub"
	"realtime-chat/internal/notify"
)

const writeWait = 10 * time.Second

// ErrClosed 表示连接已关闭
var ErrClosed = errors.New("client: connection closed")

// Handlers 是可选的事件回调
type Handlers struct {
	Roster  func(userIDs []string)
	Error   func(message string)
	Outcome func(kind notify.Kind, msg domain.Message, outcome notify.Outcome)
}

// Client 是一个已连接的聊天客户端
type Client struct {
	conn       *websocket.Conn
	dispatcher *notify.Dispatcher
	handlers   Handlers
	log        *logrus.Entry

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial 连接到 serverURL (http(s):// 或 ws(s)://) 的 /ws 端点
func Dial(ctx context.Context, serverURL, token string, dispatcher *notify.Dispatcher, handlers Handlers) (*Client, error) {
	if dispatcher == nil {
		return nil, errors.New("client: dispatcher is required")
	}
	wsURL, err := websocketURL(serverURL)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("client: dial %s: %s: %w", wsURL, resp.Status, err)
		}
		return nil, fmt.Errorf("client: dial %s: %w", wsURL, err)
	}
	return &Client{
		conn:       conn,
		dispatcher: dispatcher,
		handlers:   handlers,
		log:        logrus.WithField("component", "chat_client"),
	}, nil
}

// websocketURL 把服务地址转换为 /ws 的 WebSocket 地址
func websocketURL(serverURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return "", fmt.Errorf("client: parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("client: unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws"
	return u.String(), nil
}

// Run 读取事件直到连接关闭或 ctx 取消
func (c *Client) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		c.Close()
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("client: read: %w", err)
		}
		c.handle(data)
	}
}

// handle 解析一帧服务端事件
func (c *Client) handle(data []byte) {
	ev := gjson.ParseBytes(data)
	payload := ev.Get("data")
	switch ev.Get("type").String() {
	case hub.EventOnlineRoster:
		if c.handlers.Roster == nil {
			return
		}
		ids := make([]string, 0)
		for _, id := range payload.Get("userIds").Array() {
			ids = append(ids, id.String())
		}
		c.handlers.Roster(ids)
	case hub.EventDirectMessage:
		var msg domain.Message
		if err := json.Unmarshal([]byte(payload.Get("message").Raw), &msg); err != nil {
			c.log.WithError(err).Warn("Dropping malformed direct message")
			return
		}
		outcome, err := c.dispatcher.HandleDirect(msg)
		c.report(notify.KindDirect, msg, outcome, err)
	case hub.EventGroupMessage:
		var msg domain.Message
		if err := json.Unmarshal([]byte(payload.Get("message").Raw), &msg); err != nil {
			c.log.WithError(err).Warn("Dropping malformed group message")
			return
		}
		outcome, err := c.dispatcher.HandleGroup(payload.Get("groupId").String(), msg)
		c.report(notify.KindGroup, msg, outcome, err)
	case hub.EventError:
		if c.handlers.Error != nil {
			c.handlers.Error(payload.Get("message").String())
		}
	default:
		c.log.WithField("type", ev.Get("type").String()).Debug("Ignoring unknown event")
	}
}

func (c *Client) report(kind notify.Kind, msg domain.Message, outcome notify.Outcome, err error) {
	if err != nil {
		c.log.WithError(err).WithField("message_id", msg.ID).Warn("Dispatcher rejected message")
		return
	}
	if c.handlers.Outcome != nil {
		c.handlers.Outcome(kind, msg, outcome)
	}
}

// JoinGroup 订阅群组房间
func (c *Client) JoinGroup(groupID string) error {
	return c.send(hub.EventJoinGroup, map[string]string{"groupId": groupID})
}

// Relay 请求服务端把一条已保存的群消息转发给房间内的连接
func (c *Client) Relay(groupID string, msg domain.Message) error {
	return c.send(hub.EventGroupRelay, struct {
		GroupID string         `json:"groupId"`
		Message domain.Message `json:"message"`
	}{groupID, msg})
}

func (c *Client) send(eventType string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("client: marshal %s: %w", eventType, err)
	}
	frame, err := json.Marshal(hub.Envelope{Type: eventType, Data: raw})
	if err != nil {
		return fmt.Errorf("client: marshal envelope: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return ErrClosed
		}
		return fmt.Errorf("client: write %s: %w", eventType, err)
	}
	return nil
}

// Close 发送关闭帧并关闭连接，可重复调用
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
