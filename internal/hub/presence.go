package hub

import (
	"sort"
	"sync"
)

// Presence 记录用户当前可达的连接：userID -> connID。
// 每个用户同一时刻最多一条映射，新连接直接覆盖旧连接 (last-connect-wins)，
// 因此同一用户多个标签页时只有最新的连接能收到私信。
type Presence struct {
	mu     sync.RWMutex
	byUser map[string]string
}

// NewPresence 创建一个空的在线表
func NewPresence() *Presence {
	return &Presence{byUser: make(map[string]string)}
}

// Register 无条件覆盖 userID 的映射，返回被覆盖的旧连接 (如果有)。
func (p *Presence) Register(userID, connID string) (previous string, replaced bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	previous, replaced = p.byUser[userID]
	p.byUser[userID] = connID
	return previous, replaced
}

// Lookup 查询用户当前的连接 ID。
func (p *Presence) Lookup(userID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	connID, ok := p.byUser[userID]
	return connID, ok
}

// Unregister 删除用户的映射，不检查它指向哪个连接。
// 断开连接时应使用 UnregisterIf，否则旧连接的断开会抹掉新连接的在线状态。
func (p *Presence) Unregister(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byUser[userID]; !ok {
		return false
	}
	delete(p.byUser, userID)
	return true
}

// UnregisterIf 仅当 userID 仍然映射到 connID 时才删除。
func (p *Presence) UnregisterIf(userID, connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	current, ok := p.byUser[userID]
	if !ok || current != connID {
		return false
	}
	delete(p.byUser, userID)
	return true
}

// Snapshot 返回当前所有在线用户 ID (已排序)。
func (p *Presence) Snapshot() []string {
	p.mu.RLock()
	ids := make([]string, 0, len(p.byUser))
	for userID := range p.byUser {
		ids = append(ids, userID)
	}
	p.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Len 返回在线用户数
func (p *Presence) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byUser)
}
