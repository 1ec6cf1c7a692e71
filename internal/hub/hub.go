package hub

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// 客户端只发送 join / relay，4KB 足够
	maxMessageSize = 4096

	// 每个连接发送队列的长度
	sendBufferSize = 256
)

// MembershipChecker 查询持久化的群成员关系，用于在加入房间前做校验。
type MembershipChecker interface {
	IsDurableMember(ctx context.Context, groupID, userID string) (bool, error)
}

// Options 配置 Hub 的行为
type Options struct {
	// RequireMembership 为 true 时，只有群组的持久成员才能订阅该群组房间
	RequireMembership bool
	// QueueSize 是事件通道的缓冲大小
	QueueSize int
	// JoinTimeout 是成员校验的超时时间
	JoinTimeout time.Duration
}

// Hub 拥有在线表和房间表，串行处理连接生命周期事件，并负责消息投递。
type Hub struct {
	// 所有生命周期事件都进入这个通道，由 Run 单个 goroutine 顺序处理
	events chan inbound

	presence *Presence
	rooms    *Rooms

	// 所有活跃连接：connID -> Client
	clients   map[string]*Client
	clientsMu sync.RWMutex

	members           MembershipChecker
	requireMembership bool
	joinTimeout       time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	log *logrus.Entry
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub(members MembershipChecker, opts Options) *Hub {
	// 启动时检查依赖注入是否有效
	if opts.RequireMembership && members == nil {
		panic("MembershipChecker cannot be nil when RequireMembership is enabled")
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 512
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = 5 * time.Second
	}
	return &Hub{
		events:            make(chan inbound, opts.QueueSize),
		presence:          NewPresence(),
		rooms:             NewRooms(),
		clients:           make(map[string]*Client),
		members:           members,
		requireMembership: opts.RequireMembership,
		joinTimeout:       opts.JoinTimeout,
		stop:              make(chan struct{}),
		done:              make(chan struct{}),
		log:               logrus.WithField("component", "hub"),
	}
}

// Run 启动 Hub 的主事件循环，应该在单独的 goroutine 中运行。
func (h *Hub) Run() {
	h.log.Info("Hub is running...")
	defer close(h.done)
	for {
		select {
		case ev := <-h.events:
			h.handle(ev)
		case <-h.stop:
			h.shutdown()
			h.log.Info("Hub is shutting down...")
			return
		}
	}
}

// Stop 通知事件循环退出并断开所有连接。可以重复调用。
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Done 在事件循环退出后关闭
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) handle(ev inbound) {
	switch e := ev.(type) {
	case connectEvent:
		h.connect(e.client)
	case disconnectEvent:
		h.disconnect(e.client, true)
	case joinEvent:
		h.join(e.client, e.groupID)
	case relayEvent:
		h.relay(e)
	default:
		h.log.Warnf("Hub: Received unknown event %T", ev)
	}
}

// connect: Connecting -> Active，登记在线状态并广播在线列表
func (h *Hub) connect(c *Client) {
	if c == nil {
		h.log.Error("Hub: Attempted to register a nil client")
		return
	}
	logCtx := h.log.WithFields(logrus.Fields{"conn_id": c.ID(), "user_id": c.UserID()})
	if c.State() != StateConnecting {
		logCtx.Warnf("Hub: Ignoring connect for client in state %s", c.State())
		return
	}

	h.clientsMu.Lock()
	h.clients[c.ID()] = c
	h.clientsMu.Unlock()
	c.setState(StateActive)

	if previous, replaced := h.presence.Register(c.UserID(), c.ID()); replaced {
		// 旧连接仍然存活，但之后不再接收私信
		logCtx.WithField("previous_conn_id", previous).Info("Presence taken over by newer connection")
	}
	logCtx.Info("Client registered to Hub")
	h.broadcastRoster()
}

// disconnect: -> Disconnected (终态)。只有当在线表仍指向本连接时才删除映射。
func (h *Hub) disconnect(c *Client, announce bool) {
	if c == nil {
		h.log.Error("Hub: Attempted to unregister a nil client")
		return
	}
	logCtx := h.log.WithFields(logrus.Fields{"conn_id": c.ID(), "user_id": c.UserID()})

	h.clientsMu.Lock()
	if _, ok := h.clients[c.ID()]; !ok {
		h.clientsMu.Unlock()
		// 从未完成注册或已经注销过
		c.setState(StateDisconnected)
		c.shut()
		logCtx.Debug("Client not found in hub during unregister")
		return
	}
	delete(h.clients, c.ID())
	h.clientsMu.Unlock()

	c.setState(StateDisconnected)
	c.shut()

	removed := h.presence.UnregisterIf(c.UserID(), c.ID())
	left := h.rooms.LeaveAll(c.ID())
	logCtx.WithFields(logrus.Fields{
		"presence_removed": removed,
		"rooms_left":       len(left),
	}).Info("Client unregistered from Hub")

	if announce {
		h.broadcastRoster()
	}
}

func (h *Hub) join(c *Client, groupID string) {
	logCtx := h.log.WithFields(logrus.Fields{"conn_id": c.ID(), "user_id": c.UserID(), "group_id": groupID})
	// 成员校验和入队之间连接可能已经断开
	if c.State() != StateActive {
		logCtx.Debug("Dropping join for inactive client")
		return
	}
	if h.rooms.Join(groupID, c.ID()) {
		c.joined(groupID)
		logCtx.Info("Client joined group room")
	}
}

// relay 转发客户端发起的群消息广播 (包括发送者本人)。
// 只接受已订阅该房间、且消息发送者就是本连接用户的请求。
func (h *Hub) relay(e relayEvent) {
	c := e.client
	logCtx := h.log.WithFields(logrus.Fields{"conn_id": c.ID(), "user_id": c.UserID(), "group_id": e.groupID})
	if c.State() != StateActive {
		return
	}
	if !h.rooms.Contains(e.groupID, c.ID()) {
		logCtx.Warn("Rejecting relay to a room the client has not joined")
		c.notify(ErrorNotice{Message: "join the group before relaying messages"})
		return
	}
	if e.message.SenderID != c.UserID() {
		logCtx.WithField("sender_id", e.message.SenderID).Warn("Rejecting relay with foreign sender")
		c.notify(ErrorNotice{Message: "relayed message must be sent by you"})
		return
	}
	e.message.GroupID = e.groupID
	n := h.DeliverToGroup(e.groupID, GroupMessage{GroupID: e.groupID, Message: e.message})
	logCtx.WithField("recipients", n).Debug("Relayed group message")
}

// shutdown 断开所有连接并清空注册表，不再广播在线列表
func (h *Hub) shutdown() {
	for _, c := range h.snapshotClients() {
		h.disconnect(c, false)
	}
}

// --- 投递 (Delivery Router) ---
// 这些方法可以在任意 goroutine 中调用 (例如 HTTP handler)。

// DeliverToUser 将事件推送给用户当前的连接。
// 用户不在线时什么也不做并返回 false：消息已经持久化，在线推送只是尽力而为。
func (h *Hub) DeliverToUser(userID string, ev Outbound) bool {
	connID, ok := h.presence.Lookup(userID)
	if !ok {
		return false
	}
	c := h.client(connID)
	if c == nil {
		return false
	}
	frame, err := Encode(ev)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("Failed to encode event for user")
		return false
	}
	return c.push(frame)
}

// DeliverToGroup 将事件推送给群组房间内的所有连接 (包括发送者自己)，返回成功入队的数量。
// 不同接收者之间没有顺序保证。
func (h *Hub) DeliverToGroup(groupID string, ev Outbound) int {
	connIDs := h.rooms.MembersOf(groupID)
	if len(connIDs) == 0 {
		return 0
	}
	frame, err := Encode(ev)
	if err != nil {
		h.log.WithError(err).WithField("group_id", groupID).Error("Failed to encode event for group")
		return 0
	}
	delivered := 0
	for _, connID := range connIDs {
		if c := h.client(connID); c != nil && c.push(frame) {
			delivered++
		}
	}
	h.log.WithFields(logrus.Fields{
		"group_id":        groupID,
		"event":           ev.EventName(),
		"recipient_count": delivered,
	}).Debug("Broadcasting event to group room")
	return delivered
}

// broadcastRoster 向所有连接广播完整的在线用户列表
func (h *Hub) broadcastRoster() {
	frame, err := Encode(RosterChanged{UserIDs: h.presence.Snapshot()})
	if err != nil {
		h.log.WithError(err).Error("Failed to encode online roster")
		return
	}
	for _, c := range h.snapshotClients() {
		c.push(frame)
	}
}

// Online 返回在线用户 ID
func (h *Hub) Online() []string { return h.presence.Snapshot() }

// ActiveGroups 返回当前有订阅者的群组 ID
func (h *Hub) ActiveGroups() []string { return h.rooms.Groups() }

func (h *Hub) client(connID string) *Client {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return h.clients[connID]
}

func (h *Hub) snapshotClients() []*Client {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

// --- 入队 ---

// Register 请求 Hub 注册新连接。Hub 已停止或队列已满时返回 false。
func (h *Hub) Register(c *Client) bool {
	select {
	case h.events <- connectEvent{client: c}:
		return true
	case <-h.stop:
		return false
	default:
		h.log.WithField("conn_id", c.ID()).Warn("Hub event channel full, rejecting connection")
		return false
	}
}

// unregister 由连接的读 goroutine 在退出时调用。
// 注销事件不能丢弃，所以这里阻塞直到入队或 Hub 停止。
func (h *Hub) unregister(c *Client) {
	select {
	case h.events <- disconnectEvent{client: c}:
	case <-h.stop:
	}
}

// queue 非阻塞地投递客户端请求，队列满时丢弃
func (h *Hub) queue(ev inbound, c *Client) bool {
	select {
	case h.events <- ev:
		return true
	default:
		h.log.WithFields(logrus.Fields{"conn_id": c.ID(), "user_id": c.UserID()}).Warn("Hub event channel full, dropping client request")
		return false
	}
}

// requestJoin 在连接自己的 goroutine 中完成成员校验，再把加入事件交给事件循环。
func (h *Hub) requestJoin(c *Client, groupID string) {
	if h.requireMembership {
		ctx, cancel := context.WithTimeout(context.Background(), h.joinTimeout)
		defer cancel()
		ok, err := h.members.IsDurableMember(ctx, groupID, c.UserID())
		if err != nil {
			h.log.WithError(err).WithFields(logrus.Fields{"user_id": c.UserID(), "group_id": groupID}).Error("Membership check failed")
			c.notify(ErrorNotice{Message: "could not verify group membership"})
			return
		}
		if !ok {
			h.log.WithFields(logrus.Fields{"user_id": c.UserID(), "group_id": groupID}).Warn("Rejecting join from non-member")
			c.notify(ErrorNotice{Message: "not a member of this group"})
			return
		}
	}
	h.queue(joinEvent{client: c, groupID: groupID}, c)
}
