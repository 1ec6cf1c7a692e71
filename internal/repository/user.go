package repository

import (
	"context"

	"realtime-chat/internal/domain"
)

// UserRepository 定义了用户数据的存储和检索操作。
type UserRepository interface {
	// FindByID 根据用户 ID 查找用户。
	// 如果用户不存在，返回 ErrUserNotFound。
	FindByID(ctx context.Context, id string) (*domain.User, error)

	// FindByIDs 批量查找用户，不存在的 ID 会被忽略。
	FindByIDs(ctx context.Context, ids []string) ([]domain.User, error)

	// FindByEmail 根据邮箱查找用户 (登录)。
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// FindByFullName 根据全名查找用户 (添加群成员时使用)。
	FindByFullName(ctx context.Context, fullName string) (*domain.User, error)

	// Save 保存用户信息。邮箱重复时返回 ErrDuplicateEntry。
	Save(ctx context.Context, user *domain.User) error

	// ListExcept 返回除 userID 以外的所有用户 (侧边栏)。
	ListExcept(ctx context.Context, userID string) ([]domain.User, error)

	// IsBlocked 判断 userID 是否屏蔽了 blockedID。
	IsBlocked(ctx context.Context, userID, blockedID string) (bool, error)

	// Block / Unblock 维护屏蔽列表，二者都是幂等的。
	Block(ctx context.Context, userID, blockedID string) error
	Unblock(ctx context.Context, userID, blockedID string) error
}
