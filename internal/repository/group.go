package repository

import (
	"context"

	"realtime-chat/internal/domain"
)

// GroupRepository 定义了群组及其持久成员关系的存储操作。
type GroupRepository interface {
	// Create 在同一个事务中创建群组并把创建者加为管理员。
	Create(ctx context.Context, group *domain.Group, creatorID string) error

	// FindByID 根据 ID 查找群组，不存在时返回 ErrGroupNotFound。
	FindByID(ctx context.Context, id string) (*domain.Group, error)

	// ListForUser 返回用户所属的全部群组。
	ListForUser(ctx context.Context, userID string) ([]domain.Group, error)

	// Members 返回群组的全部持久成员。
	Members(ctx context.Context, groupID string) ([]domain.GroupMember, error)

	// FindMember 查找单个成员关系，不存在时返回 ErrMemberNotFound。
	FindMember(ctx context.Context, groupID, userID string) (*domain.GroupMember, error)

	// AddMember 添加成员，已是成员时返回 ErrDuplicateEntry。
	AddMember(ctx context.Context, member *domain.GroupMember) error

	// RemoveMember 删除成员关系 (连同管理员标记)，不是成员时返回 ErrMemberNotFound。
	RemoveMember(ctx context.Context, groupID, userID string) error

	// SetAdmin 修改成员的管理员标记。
	SetAdmin(ctx context.Context, groupID, userID string, isAdmin bool) error
}
