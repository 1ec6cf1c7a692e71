package mocks

import (
	"context"

	"realtime-chat/internal/domain"

	"github.com/stretchr/testify/mock"
)

// MessageRepository 是 repository.MessageRepository 的 testify mock
type MessageRepository struct {
	mock.Mock
}

func (m *MessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *MessageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	args := m.Called(ctx, id)
	msg, _ := args.Get(0).(*domain.Message)
	return msg, args.Error(1)
}

func (m *MessageRepository) ListConversation(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	args := m.Called(ctx, userA, userB)
	msgs, _ := args.Get(0).([]domain.Message)
	return msgs, args.Error(1)
}

func (m *MessageRepository) ListGroup(ctx context.Context, groupID string) ([]domain.Message, error) {
	args := m.Called(ctx, groupID)
	msgs, _ := args.Get(0).([]domain.Message)
	return msgs, args.Error(1)
}

func (m *MessageRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
