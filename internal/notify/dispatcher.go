// Package notify 实现客户端一侧的投递约定：收到实时消息后，决定是追加到当前打开的会话，
// 还是生成一条通知，并负责去重和已读标记。
package notify

import (
	"errors"
	"sync"
	"time"

	"realtime-chat/internal/domain"

	"github.com/sirupsen/logrus"
)

// Kind 区分通知来源
type Kind string

const (
	KindDirect Kind = "direct-message"
	KindGroup  Kind = "group-message"
)

// Outcome 描述一条到达的消息被如何处理
type Outcome int

const (
	Ignored   Outcome = iota // 自己发出的消息，不通知
	Appended                 // 追加到当前会话
	Duplicate                // 当前会话中已有同 ID 消息
	Notified                 // 生成了新通知
)

func (o Outcome) String() string {
	switch o {
	case Ignored:
		return "ignored"
	case Appended:
		return "appended"
	case Duplicate:
		return "duplicate"
	case Notified:
		return "notified"
	default:
		return "unknown"
	}
}

var (
	ErrMissingGroupID = errors.New("notify: group message without group id")
	ErrEmptyMessageID = errors.New("notify: message without id")
)

// Notification 是一条本地通知，只存在于当前客户端会话中
type Notification struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName,omitempty"`
	GroupID    string    `json:"groupId,omitempty"`
	GroupName  string    `json:"groupName,omitempty"`
	Preview    string    `json:"preview,omitempty"`
	HasImage   bool      `json:"hasImage,omitempty"`
	FileName   string    `json:"fileName,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	Read       bool      `json:"read"`
}

// Conversation 标识当前打开的会话
type Conversation struct {
	Kind Kind
	ID   string // 私信为对方用户 ID，群聊为群组 ID
	Name string
}

type entry struct {
	msg     domain.Message
	tempID  string // 乐观插入时的临时 ID，确认后清空
	pending bool
}

// Option 配置 Dispatcher
type Option func(*Dispatcher)

// WithAlert 设置生成新通知时的提醒回调。回调在锁外调用。
func WithAlert(fn func(Notification)) Option {
	return func(d *Dispatcher) { d.alert = fn }
}

// WithClock 替换时间来源 (测试用)
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// Dispatcher 维护一个客户端会话的通知列表和当前会话的消息记录。
// 所有方法都可以并发调用。
type Dispatcher struct {
	mu sync.Mutex

	selfID string
	focus  *Conversation

	transcript []entry
	// notifications 按时间从新到旧排列
	notifications []Notification

	userNames  map[string]string
	groupNames map[string]string

	alert func(Notification)
	now   func() time.Time
	log   *logrus.Entry
}

// NewDispatcher 为用户 selfID 创建通知分发器
func NewDispatcher(selfID string, opts ...Option) *Dispatcher {
	if selfID == "" {
		panic("notify: selfID cannot be empty")
	}
	d := &Dispatcher{
		selfID:     selfID,
		userNames:  make(map[string]string),
		groupNames: make(map[string]string),
		now:        time.Now,
		log:        logrus.WithFields(logrus.Fields{"component": "notify", "user_id": selfID}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RememberUser 记录用户显示名，用于私信通知
func (d *Dispatcher) RememberUser(userID, name string) {
	d.mu.Lock()
	d.userNames[userID] = name
	d.mu.Unlock()
}

// RememberGroup 记录群组名称，用于群消息通知
func (d *Dispatcher) RememberGroup(groupID, name string) {
	d.mu.Lock()
	d.groupNames[groupID] = name
	d.mu.Unlock()
}

// HandleDirect 处理一条到达的私信
func (d *Dispatcher) HandleDirect(msg domain.Message) (Outcome, error) {
	if msg.ID == "" {
		return Ignored, ErrEmptyMessageID
	}
	d.mu.Lock()
	if msg.SenderID == d.selfID {
		d.mu.Unlock()
		return Ignored, nil
	}
	if d.focus != nil && d.focus.Kind == KindDirect && d.focus.ID == msg.SenderID {
		outcome := d.appendLocked(msg)
		d.mu.Unlock()
		return outcome, nil
	}
	n := Notification{
		ID:         msg.ID,
		Kind:       KindDirect,
		SenderID:   msg.SenderID,
		SenderName: d.userNames[msg.SenderID],
	}
	return d.notifyAndUnlock(n, msg)
}

// HandleGroup 处理一条到达的群消息。groupID 来自事件本身，不能为空。
func (d *Dispatcher) HandleGroup(groupID string, msg domain.Message) (Outcome, error) {
	if groupID == "" {
		return Ignored, ErrMissingGroupID
	}
	if msg.ID == "" {
		return Ignored, ErrEmptyMessageID
	}
	msg.GroupID = groupID

	d.mu.Lock()
	if d.focus != nil && d.focus.Kind == KindGroup && d.focus.ID == groupID {
		// 包括自己消息的回显：乐观插入的副本会在 Reconcile 时合并
		outcome := d.appendLocked(msg)
		d.mu.Unlock()
		return outcome, nil
	}
	if msg.SenderID == d.selfID {
		d.mu.Unlock()
		return Ignored, nil
	}
	n := Notification{
		ID:         msg.ID,
		Kind:       KindGroup,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		GroupID:    groupID,
		GroupName:  d.groupNames[groupID],
	}
	if n.SenderName == "" {
		n.SenderName = d.userNames[msg.SenderID]
	}
	return d.notifyAndUnlock(n, msg)
}

// notifyAndUnlock 在持有锁的情况下调用，负责释放锁并在锁外触发提醒
func (d *Dispatcher) notifyAndUnlock(n Notification, msg domain.Message) (Outcome, error) {
	for _, existing := range d.notifications {
		if existing.ID == n.ID {
			d.mu.Unlock()
			return Duplicate, nil
		}
	}
	n.Preview = msg.Text
	n.HasImage = msg.Image != ""
	if msg.File != nil {
		n.FileName = msg.File.OriginalName
	}
	n.CreatedAt = msg.CreatedAt
	if n.CreatedAt.IsZero() {
		n.CreatedAt = d.now()
	}
	d.notifications = append([]Notification{n}, d.notifications...)
	alert := d.alert
	d.mu.Unlock()

	d.log.WithFields(logrus.Fields{"notification_id": n.ID, "kind": n.Kind}).Debug("Notification created")
	if alert != nil {
		alert(n)
	}
	return Notified, nil
}

// appendLocked 把消息追加到当前会话；同 ID 的消息已存在时不做任何修改
func (d *Dispatcher) appendLocked(msg domain.Message) Outcome {
	if d.indexLocked(msg.ID) >= 0 {
		return Duplicate
	}
	d.transcript = append(d.transcript, entry{msg: msg})
	return Appended
}

func (d *Dispatcher) indexLocked(id string) int {
	for i, e := range d.transcript {
		if e.msg.ID == id {
			return i
		}
	}
	return -1
}

func (d *Dispatcher) tempIndexLocked(tempID string) int {
	for i, e := range d.transcript {
		if e.pending && e.tempID == tempID {
			return i
		}
	}
	return -1
}

// AppendOptimistic 在服务器确认前插入一条本地副本，tempID 作为占位 ID
func (d *Dispatcher) AppendOptimistic(tempID string, msg domain.Message) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if tempID == "" || d.focus == nil || d.tempIndexLocked(tempID) >= 0 {
		return false
	}
	msg.ID = tempID
	d.transcript = append(d.transcript, entry{msg: msg, tempID: tempID, pending: true})
	return true
}

// Reconcile 用服务器返回的消息替换乐观副本。
// 如果广播回显已经先到达，直接删除乐观副本。
func (d *Dispatcher) Reconcile(tempID string, stored domain.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.tempIndexLocked(tempID)
	if i < 0 {
		if d.focus != nil {
			d.appendLocked(stored)
		}
		return
	}
	if d.indexLocked(stored.ID) >= 0 {
		d.transcript = append(d.transcript[:i], d.transcript[i+1:]...)
		return
	}
	d.transcript[i] = entry{msg: stored}
}

// Discard 发送失败时删除乐观副本
func (d *Dispatcher) Discard(tempID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.tempIndexLocked(tempID)
	if i < 0 {
		return false
	}
	d.transcript = append(d.transcript[:i], d.transcript[i+1:]...)
	return true
}

// OpenDirect 打开与 peerID 的私信会话，用历史记录替换当前消息列表，并把对方的通知标为已读
func (d *Dispatcher) OpenDirect(peerID string, history []domain.Message) {
	d.open(Conversation{Kind: KindDirect, ID: peerID}, history)
}

// OpenGroup 打开群聊会话
func (d *Dispatcher) OpenGroup(groupID, name string, history []domain.Message) {
	if name != "" {
		d.RememberGroup(groupID, name)
	}
	d.open(Conversation{Kind: KindGroup, ID: groupID, Name: name}, history)
}

func (d *Dispatcher) open(conv Conversation, history []domain.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.focus = &conv
	d.transcript = d.transcript[:0]
	for _, m := range history {
		d.appendLocked(m)
	}
	d.markConversationLocked(conv.Kind, conv.ID)
}

// Close 关闭当前会话，之后所有消息都会生成通知
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.focus = nil
	d.transcript = nil
	d.mu.Unlock()
}

// Focus 返回当前打开的会话
func (d *Dispatcher) Focus() (Conversation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.focus == nil {
		return Conversation{}, false
	}
	return *d.focus, true
}

// MarkRead 把一条通知标为已读；已读的通知再次标记没有效果
func (d *Dispatcher) MarkRead(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.notifications {
		if d.notifications[i].ID == id {
			if d.notifications[i].Read {
				return false
			}
			d.notifications[i].Read = true
			return true
		}
	}
	return false
}

// MarkConversationRead 把属于某个会话的通知全部标为已读，返回新标记的数量
func (d *Dispatcher) MarkConversationRead(kind Kind, id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.markConversationLocked(kind, id)
}

func (d *Dispatcher) markConversationLocked(kind Kind, id string) int {
	marked := 0
	for i := range d.notifications {
		n := &d.notifications[i]
		if n.Kind != kind || n.Read {
			continue
		}
		if (kind == KindDirect && n.SenderID == id) || (kind == KindGroup && n.GroupID == id) {
			n.Read = true
			marked++
		}
	}
	return marked
}

// Remove 删除单条通知
func (d *Dispatcher) Remove(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.notifications {
		if d.notifications[i].ID == id {
			d.notifications = append(d.notifications[:i], d.notifications[i+1:]...)
			return true
		}
	}
	return false
}

// Clear 清空所有通知
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	d.notifications = nil
	d.mu.Unlock()
}

// Notifications 返回通知副本，从新到旧
func (d *Dispatcher) Notifications() []Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Notification, len(d.notifications))
	copy(out, d.notifications)
	return out
}

// Unread 返回未读通知数量
func (d *Dispatcher) Unread() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, x := range d.notifications {
		if !x.Read {
			n++
		}
	}
	return n
}

// Transcript 返回当前会话的消息副本，包括尚未确认的乐观副本
func (d *Dispatcher) Transcript() []domain.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.Message, len(d.transcript))
	for i, e := range d.transcript {
		out[i] = e.msg
	}
	return out
}
