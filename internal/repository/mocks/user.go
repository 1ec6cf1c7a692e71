package mocks

import (
	"context"

	"realtime-chat/internal/domain"

	"github.com/stretchr/testify/mock"
)

// UserRepository 是 repository.UserRepository 的 testify mock
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *UserRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	args := m.Called(ctx, ids)
	users, _ := args.Get(0).([]domain.User)
	return users, args.Error(1)
}

func (m *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *UserRepository) FindByFullName(ctx context.Context, fullName string) (*domain.User, error) {
	args := m.Called(ctx, fullName)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *UserRepository) Save(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepository) ListExcept(ctx context.Context, userID string) ([]domain.User, error) {
	args := m.Called(ctx, userID)
	users, _ := args.Get(0).([]domain.User)
	return users, args.Error(1)
}

func (m *UserRepository) IsBlocked(ctx context.Context, userID, blockedID string) (bool, error) {
	args := m.Called(ctx, userID, blockedID)
	return args.Bool(0), args.Error(1)
}

func (m *UserRepository) Block(ctx context.Context, userID, blockedID string) error {
	return m.Called(ctx, userID, blockedID).Error(0)
}

func (m *UserRepository) Unblock(ctx context.Context, userID, blockedID string) error {
	return m.Called(ctx, userID, blockedID).Error(0)
}
