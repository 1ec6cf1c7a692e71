package hub

import (
	"sort"
	"sync"
)

// Rooms 记录每个群组房间当前订阅的连接：groupID -> set(connID)。
// 这里的订阅只在本次连接内有效，和数据库里的持久群成员无关。
type Rooms struct {
	mu      sync.RWMutex
	byGroup map[string]map[string]struct{}
}

// NewRooms 创建空的房间表
func NewRooms() *Rooms {
	return &Rooms{byGroup: make(map[string]map[string]struct{})}
}

// Join 把连接加入群组房间，重复加入没有副作用。
// 返回 true 表示这次调用确实新增了订阅。
func (r *Rooms) Join(groupID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.byGroup[groupID]
	if !ok {
		members = make(map[string]struct{})
		r.byGroup[groupID] = members
	}
	if _, exists := members[connID]; exists {
		return false
	}
	members[connID] = struct{}{}
	return true
}

// LeaveAll 把连接从所有房间中移除，返回它离开的群组 ID。
// 需要遍历所有房间 (O(groups))，单实例几十个群组的规模下可以接受。
func (r *Rooms) LeaveAll(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var left []string
	for groupID, members := range r.byGroup {
		if _, ok := members[connID]; !ok {
			continue
		}
		delete(members, connID)
		left = append(left, groupID)
		// 房间变空则删除，避免 map 无限增长
		if len(members) == 0 {
			delete(r.byGroup, groupID)
		}
	}
	sort.Strings(left)
	return left
}

// MembersOf 返回房间内的连接 ID 副本；未知群组返回空切片。
func (r *Rooms) MembersOf(groupID string) []string {
	r.mu.RLock()
	members := r.byGroup[groupID]
	ids := make([]string, 0, len(members))
	for connID := range members {
		ids = append(ids, connID)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Contains 判断连接是否已订阅该群组
func (r *Rooms) Contains(groupID, connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byGroup[groupID][connID]
	return ok
}

// Groups 返回当前至少有一个订阅者的群组 ID
func (r *Rooms) Groups() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.byGroup))
	for groupID := range r.byGroup {
		ids = append(ids, groupID)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
