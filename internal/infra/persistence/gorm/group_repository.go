package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"realtime-chat/internal/domain"
	"realtime-chat/internal/repository"
)

// GormGroupRepository 是 GroupRepository 接口的 GORM 实现
type GormGroupRepository struct {
	db *gorm.DB
}

// NewGormGroupRepository 创建 GormGroupRepository 实例
func NewGormGroupRepository(db *gorm.DB) *GormGroupRepository {
	if db == nil {
		panic("database connection cannot be nil for GormGroupRepository")
	}
	return &GormGroupRepository{db: db}
}

// Create 在事务中创建群组，并把创建者加为管理员
func (r *GormGroupRepository) Create(ctx context.Context, group *domain.Group, creatorID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return err
		}
		owner := domain.GroupMember{GroupID: group.ID, UserID: creatorID, IsAdmin: true}
		return tx.Create(&owner).Error
	})
	if err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create group '%s': %w", group.Name, err)
	}
	return nil
}

// FindByID 实现根据 ID 查找群组
func (r *GormGroupRepository) FindByID(ctx context.Context, id string) (*domain.Group, error) {
	var group domain.Group
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrGroupNotFound
		}
		return nil, fmt.Errorf("gorm: find group by id '%s': %w", id, err)
	}
	return &group, nil
}

// ListForUser 返回用户所属的群组，按名称排序
func (r *GormGroupRepository) ListForUser(ctx context.Context, userID string) ([]domain.Group, error) {
	var groups []domain.Group
	err := r.db.WithContext(ctx).
		Joins("JOIN group_members ON group_members.group_id = chat_groups.id").
		Where("group_members.user_id = ?", userID).
		Order("chat_groups.name ASC").
		Find(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list groups for user '%s': %w", userID, err)
	}
	return groups, nil
}

// Members 返回群组的全部成员，按加入时间排序
func (r *GormGroupRepository) Members(ctx context.Context, groupID string) ([]domain.GroupMember, error) {
	var members []domain.GroupMember
	err := r.db.WithContext(ctx).Where("group_id = ?", groupID).Order("joined_at ASC").Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list members of group '%s': %w", groupID, err)
	}
	return members, nil
}

// FindMember 查找单个成员关系
func (r *GormGroupRepository) FindMember(ctx context.Context, groupID, userID string) (*domain.GroupMember, error) {
	var member domain.GroupMember
	err := r.db.WithContext(ctx).Where("group_id = ? AND user_id = ?", groupID, userID).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrMemberNotFound
		}
		return nil, fmt.Errorf("gorm: find member (group: %s, user: %s): %w", groupID, userID, err)
	}
	return &member, nil
}

// AddMember 添加成员
func (r *GormGroupRepository) AddMember(ctx context.Context, member *domain.GroupMember) error {
	if err := r.db.WithContext(ctx).Create(member).Error; err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: add member (group: %s, user: %s): %w", member.GroupID, member.UserID, err)
	}
	return nil
}

// RemoveMember 删除成员关系
func (r *GormGroupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	result := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&domain.GroupMember{})
	if result.Error != nil {
		return fmt.Errorf("gorm: remove member (group: %s, user: %s): %w", groupID, userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrMemberNotFound
	}
	return nil
}

// SetAdmin 修改管理员标记
func (r *GormGroupRepository) SetAdmin(ctx context.Context, groupID, userID string, isAdmin bool) error {
	result := r.db.WithContext(ctx).Model(&domain.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Update("is_admin", isAdmin)
	if result.Error != nil {
		return fmt.Errorf("gorm: set admin (group: %s, user: %s): %w", groupID, userID, result.Error)
	}
	if result.RowsAffected == 0 {
		// 值没有变化时 MySQL 也会返回 0 行，需要再确认成员是否存在
		if _, err := r.FindMember(ctx, groupID, userID); err != nil {
			return err
		}
	}
	return nil
}
