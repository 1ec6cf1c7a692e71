package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"realtime-chat/internal/domain"
	"realtime-chat/internal/repository"
)

// GormUserRepository 是 UserRepository 接口的 GORM 实现
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository 创建 GormUserRepository 实例
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	if db == nil {
		panic("database connection cannot be nil for GormUserRepository")
	}
	return &GormUserRepository{db: db}
}

// FindByID 实现根据用户 ID 查找用户
func (r *GormUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("gorm: find user by id '%s': %w", id, err)
	}
	return &user, nil
}

// FindByIDs 批量查找用户
func (r *GormUserRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	var users []domain.User
	if len(ids) == 0 {
		return users, nil // 避免空的 IN 查询
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("full_name ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("gorm: find users by ids: %w", err)
	}
	return users, nil
}

// FindByEmail 实现根据邮箱查找用户
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("gorm: find user by email '%s': %w", email, err)
	}
	return &user, nil
}

// FindByFullName 根据全名查找用户；重名时返回最早注册的一个
func (r *GormUserRepository) FindByFullName(ctx context.Context, fullName string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("full_name = ?", fullName).Order("created_at ASC").First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("gorm: find user by full name '%s': %w", fullName, err)
	}
	return &user, nil
}

// Save 实现保存用户信息（创建或更新）
func (r *GormUserRepository) Save(ctx context.Context, user *domain.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save user (id: %s, email: %s): %w", user.ID, user.Email, err)
	}
	return nil
}

// ListExcept 返回除自己以外的所有用户，按全名排序
func (r *GormUserRepository) ListExcept(ctx context.Context, userID string) ([]domain.User, error) {
	var users []domain.User
	err := r.db.WithContext(ctx).Where("id <> ?", userID).Order("full_name ASC").Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list users except '%s': %w", userID, err)
	}
	return users, nil
}

// IsBlocked 判断 userID 是否屏蔽了 blockedID
func (r *GormUserRepository) IsBlocked(ctx context.Context, userID, blockedID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Block{}).
		Where("user_id = ? AND blocked_id = ?", userID, blockedID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: check block (%s -> %s): %w", userID, blockedID, err)
	}
	return count > 0, nil
}

// Block 添加屏蔽记录，已存在时忽略
func (r *GormUserRepository) Block(ctx context.Context, userID, blockedID string) error {
	block := domain.Block{UserID: userID, BlockedID: blockedID}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&block).Error
	if err != nil {
		return fmt.Errorf("gorm: block user (%s -> %s): %w", userID, blockedID, err)
	}
	return nil
}

// Unblock 删除屏蔽记录
func (r *GormUserRepository) Unblock(ctx context.Context, userID, blockedID string) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND blocked_id = ?", userID, blockedID).
		Delete(&domain.Block{}).Error
	if err != nil {
		return fmt.Errorf("gorm: unblock user (%s -> %s): %w", userID, blockedID, err)
	}
	return nil
}
