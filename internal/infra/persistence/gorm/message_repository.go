package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"realtime-chat/internal/domain"
	"realtime-chat/internal/repository"
)

// GormMessageRepository 是 MessageRepository 接口的 GORM 实现
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository 创建 GormMessageRepository 实例
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	if db == nil {
		panic("database connection cannot be nil for GormMessageRepository")
	}
	return &GormMessageRepository{db: db}
}

// Create 保存消息
func (r *GormMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create message (id: %s): %w", msg.ID, err)
	}
	return nil
}

// FindByID 根据 ID 查找消息
func (r *GormMessageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	var msg domain.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrMessageNotFound
		}
		return nil, fmt.Errorf("gorm: find message by id '%s': %w", id, err)
	}
	return &msg, nil
}

// ListConversation 返回两个用户之间的私信，按时间升序
func (r *GormMessageRepository) ListConversation(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	var msgs []domain.Message
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", userA, userB, userB, userA).
		Order("created_at ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list conversation (%s, %s): %w", userA, userB, err)
	}
	return msgs, nil
}

// ListGroup 返回群消息，按时间升序
func (r *GormMessageRepository) ListGroup(ctx context.Context, groupID string) ([]domain.Message, error) {
	var msgs []domain.Message
	err := r.db.WithContext(ctx).Where("group_id = ?", groupID).Order("created_at ASC").Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list group messages '%s': %w", groupID, err)
	}
	return msgs, nil
}

// Delete 硬删除消息
func (r *GormMessageRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Message{})
	if result.Error != nil {
		return fmt.Errorf("gorm: delete message '%s': %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrMessageNotFound
	}
	return nil
}
