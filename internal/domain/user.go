// Package domain 定义了聊天服务中使用的核心数据结构 (数据库模型)。
package domain

import "time"

// User 表示应用程序中的用户。
type User struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"` // 用户唯一标识符 (UUID)
	FullName   string    `gorm:"type:varchar(191);index:idx_full_name;not null" json:"fullName"`
	Email      string    `gorm:"type:varchar(191);uniqueIndex:idx_email;not null" json:"email"`
	Password   string    `gorm:"type:text;not null" json:"-"` // 存储的是 bcrypt 哈希后的密码
	ProfilePic string    `gorm:"type:text" json:"profilePic,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// Block 记录一个用户屏蔽了另一个用户。
// 被屏蔽者无法再向屏蔽者发送私信。
type Block struct {
	UserID    string    `gorm:"primaryKey;size:36"` // 执行屏蔽的用户
	BlockedID string    `gorm:"primaryKey;size:36"` // 被屏蔽的用户
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
