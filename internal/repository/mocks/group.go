package mocks

import (
	"context"

	"realtime-chat/internal/domain"

	"github.com/stretchr/testify/mock"
)

// GroupRepository 是 repository.GroupRepository 的 testify mock
type GroupRepository struct {
	mock.Mock
}

func (m *GroupRepository) Create(ctx context.Context, group *domain.Group, creatorID string) error {
	return m.Called(ctx, group, creatorID).Error(0)
}

func (m *GroupRepository) FindByID(ctx context.Context, id string) (*domain.Group, error) {
	args := m.Called(ctx, id)
	group, _ := args.Get(0).(*domain.Group)
	return group, args.Error(1)
}

func (m *GroupRepository) ListForUser(ctx context.Context, userID string) ([]domain.Group, error) {
	args := m.Called(ctx, userID)
	groups, _ := args.Get(0).([]domain.Group)
	return groups, args.Error(1)
}

func (m *GroupRepository) Members(ctx context.Context, groupID string) ([]domain.GroupMember, error) {
	args := m.Called(ctx, groupID)
	members, _ := args.Get(0).([]domain.GroupMember)
	return members, args.Error(1)
}

func (m *GroupRepository) FindMember(ctx context.Context, groupID, userID string) (*domain.GroupMember, error) {
	args := m.Called(ctx, groupID, userID)
	member, _ := args.Get(0).(*domain.GroupMember)
	return member, args.Error(1)
}

func (m *GroupRepository) AddMember(ctx context.Context, member *domain.GroupMember) error {
	return m.Called(ctx, member).Error(0)
}

func (m *GroupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	return m.Called(ctx, groupID, userID).Error(0)
}

func (m *GroupRepository) SetAdmin(ctx context.Context, groupID, userID string, isAdmin bool) error {
	return m.Called(ctx, groupID, userID, isAdmin).Error(0)
}
