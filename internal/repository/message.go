package repository

import (
	"context"

	"realtime-chat/internal/domain"
)

// MessageRepository 定义了消息的持久化操作。
// 有 SQL (gorm) 和 MongoDB 两种实现，由 MESSAGE_STORE 选择。
type MessageRepository interface {
	// Create 保存一条新消息，ID 和 CreatedAt 由调用方或实现填充。
	Create(ctx context.Context, msg *domain.Message) error

	// FindByID 查找消息，不存在时返回 ErrMessageNotFound。
	FindByID(ctx context.Context, id string) (*domain.Message, error)

	// ListConversation 返回两个用户之间的私信，按创建时间升序。
	ListConversation(ctx context.Context, userA, userB string) ([]domain.Message, error)

	// ListGroup 返回群组的全部消息，按创建时间升序。
	ListGroup(ctx context.Context, groupID string) ([]domain.Message, error)

	// Delete 硬删除一条消息，不存在时返回 ErrMessageNotFound。
	Delete(ctx context.Context, id string) error
}
