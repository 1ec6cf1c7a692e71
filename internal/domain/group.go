package domain

import "time"

// Group 表示一个持久化的群组。
// 注意：群组的持久成员 (GroupMember) 与 Hub 中的房间订阅是两回事。
type Group struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"type:varchar(191);not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 避开 MySQL 8 的保留字 GROUPS
func (Group) TableName() string { return "chat_groups" }

// GroupMember 是群组与用户之间的持久成员关系。
type GroupMember struct {
	GroupID  string    `gorm:"primaryKey;size:36" json:"groupId"`
	UserID   string    `gorm:"primaryKey;size:36;index" json:"userId"`
	IsAdmin  bool      `gorm:"not null;default:false" json:"isAdmin"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joinedAt"`
}
