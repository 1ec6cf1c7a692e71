package hub

import (
	"encoding/json"
	"errors"
	"fmt"

	"realtime-chat/internal/domain"

	"github.com/tidwall/gjson"
)

// 连接边界上的事件名称
const (
	// 出站
	EventOnlineRoster  = "online-roster-changed"
	EventDirectMessage = "direct-message-delivered"
	EventGroupMessage  = "group-message-delivered"
	EventError         = "error"

	// 入站 (connect / disconnect 由传输层本身表示，没有对应的帧)
	EventJoinGroup  = "join-group"
	EventGroupRelay = "group-message-relay"
)

var (
	ErrMalformedEvent = errors.New("hub: malformed event")
	ErrUnknownEvent   = errors.New("hub: unknown event type")
	ErrMissingGroupID = errors.New("hub: event is missing groupId")
)

// Envelope 是所有 WebSocket 帧的外层结构：{"type": ..., "data": {...}}
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Outbound 是服务端推送给连接的事件
type Outbound interface {
	EventName() string
}

// RosterChanged 携带完整的在线用户列表 (全量替换，不是增量)
type RosterChanged struct {
	UserIDs []string `json:"userIds"`
}

func (RosterChanged) EventName() string { return EventOnlineRoster }

// DirectMessage 私信投递
type DirectMessage struct {
	Message *domain.Message `json:"message"`
}

func (DirectMessage) EventName() string { return EventDirectMessage }

// GroupMessage 群消息投递
type GroupMessage struct {
	GroupID string          `json:"groupId"`
	Message *domain.Message `json:"message"`
}

func (GroupMessage) EventName() string { return EventGroupMessage }

// ErrorNotice 发给单个连接的错误提示
type ErrorNotice struct {
	Message string `json:"message"`
}

func (ErrorNotice) EventName() string { return EventError }

// Encode 将出站事件序列化为一帧
func Encode(ev Outbound) ([]byte, error) {
	if ev == nil {
		return nil, errors.New("hub: cannot encode nil event")
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("hub: marshal %s payload: %w", ev.EventName(), err)
	}
	return json.Marshal(Envelope{Type: ev.EventName(), Data: data})
}

// --- 入站 ---

// inbound 是 Hub 事件循环处理的封闭事件集合
type inbound interface {
	isInbound()
}

type connectEvent struct{ client *Client }

type disconnectEvent struct{ client *Client }

type joinEvent struct {
	client  *Client
	groupID string
}

type relayEvent struct {
	client  *Client
	groupID string
	message *domain.Message
}

func (connectEvent) isInbound()    {}
func (disconnectEvent) isInbound() {}
func (joinEvent) isInbound()       {}
func (relayEvent) isInbound()      {}

// clientRequest 是客户端帧解码后的结果
type clientRequest interface {
	requestType() string
}

type joinRequest struct{ groupID string }

type relayRequest struct {
	groupID string
	message *domain.Message
}

func (joinRequest) requestType() string  { return EventJoinGroup }
func (relayRequest) requestType() string { return EventGroupRelay }

// decodeInbound 解析客户端发来的一帧。
// 先用 gjson 读取 type 和 groupId，只有 relay 才完整反序列化消息体。
func decodeInbound(raw []byte) (clientRequest, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrMalformedEvent
	}
	typ := gjson.GetBytes(raw, "type")
	if typ.Type != gjson.String {
		return nil, ErrMalformedEvent
	}
	groupID := gjson.GetBytes(raw, "data.groupId").String()

	switch typ.String() {
	case EventJoinGroup:
		if groupID == "" {
			return nil, ErrMissingGroupID
		}
		return joinRequest{groupID: groupID}, nil
	case EventGroupRelay:
		if groupID == "" {
			return nil, ErrMissingGroupID
		}
		msgRaw := gjson.GetBytes(raw, "data.message")
		if !msgRaw.IsObject() {
			return nil, fmt.Errorf("%w: relay without message", ErrMalformedEvent)
		}
		var msg domain.Message
		if err := json.Unmarshal([]byte(msgRaw.Raw), &msg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if msg.ID == "" {
			return nil, fmt.Errorf("%w: relayed message has no id", ErrMalformedEvent)
		}
		return relayRequest{groupID: groupID, message: &msg}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, typ.String())
	}
}
