package service_test

import (
	"context"
	"errors"
	"testing"

	"realtime-chat/internal/domain"
	"realtime-chat/internal/hub"
	"realtime-chat/internal/repository"
	"realtime-chat/internal/repository/mocks"
	"realtime-chat/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type groupFixture struct {
	groups    *mocks.GroupRepository
	users     *mocks.UserRepository
	messages  *mocks.MessageRepository
	deliverer *mockDeliverer
	svc       *service.GroupService
}

func newGroupFixture(t *testing.T) *groupFixture {
	f := &groupFixture{
		groups:    new(mocks.GroupRepository),
		users:     new(mocks.UserRepository),
		messages:  new(mocks.MessageRepository),
		deliverer: new(mockDeliverer),
	}
	f.svc = service.NewGroupService(f.groups, f.users, f.messages, newLocalStore(t), nil)
	f.svc.SetDeliverer(f.deliverer)
	return f
}

// expectMember 设置群组存在且 userID 是成员的预期
func (f *groupFixture) expectMember(ctx context.Context, groupID, userID string, admin bool) {
	f.groups.On("FindByID", ctx, groupID).Return(&domain.Group{ID: groupID, Name: "Team"}, nil).Once()
	f.groups.On("FindMember", ctx, groupID, userID).
		Return(&domain.GroupMember{GroupID: groupID, UserID: userID, IsAdmin: admin}, nil).Once()
}

func TestGroupService_Create(t *testing.T) {
	f := newGroupFixture(t)
	ctx := context.Background()

	f.groups.On("Create", ctx, mock.MatchedBy(func(g *domain.Group) bool {
		return g.Name == "Team" && len(g.ID) == 36
	}), "alice").Return(nil).Once()

	group, err := f.svc.Create(ctx, "alice", "  Team ")
	require.NoError(t, err)
	assert.Equal(t, "Team", group.Name)

	_, err = f.svc.Create(ctx, "alice", " ")
	assert.True(t, errors.Is(err, service.ErrInvalidInput))
	f.groups.AssertExpectations(t)
}

func TestGroupService_Send_BroadcastsToRoom(t *testing.T) {
	f := newGroupFixture(t)
	ctx := context.Background()
	f.expectMember(ctx, "g1", "alice", false)
	f.users.On("FindByID", ctx, "alice").Return(&domain.User{ID: "alice", FullName: "Alice A"}, nil).Once()
	f.messages.On("Create", ctx, mock.AnythingOfType("*domain.Message")).Return(nil).Once()
	f.deliverer.On("DeliverToGroup", "g1", mock.MatchedBy(func(ev hub.Outbound) bool {
		gm, ok := ev.(hub.GroupMessage)
		return ok && gm.GroupID == "g1" && gm.Message.SenderName == "Alice A"
	})).Return(2).Once()

	msg, err := f.svc.Send(ctx, "alice", "g1", service.SendInput{Text: "hi team"})

	require.NoError(t, err)
	assert.Equal(t, "g1", msg.GroupID)
	assert.Equal(t, "Alice A", msg.SenderName)
	assert.True(t, msg.IsGroup())
	f.groups.AssertExpectations(t)
	f.deliverer.AssertExpectations(t)
}

func TestGroupService_Send_RequiresMembership(t *testing.T) {
	f := newGroupFixture(t)
	ctx := context.Background()
	f.groups.On("FindByID", ctx, "g1").Return(&domain.Group{ID: "g1"}, nil).Once()
	f.groups.On("FindMember", ctx, "g1", "mallory").Return(nil, repository.ErrMemberNotFound).Once()

	_, err := f.svc.Send(ctx, "mallory", "g1", service.SendInput{Text: "let me in"})

	assert.True(t, errors.Is(err, service.ErrNotGroupMember))
	f.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.deliverer.AssertNotCalled(t, "DeliverToGroup", mock.Anything, mock.Anything)
}

func TestGroupService_UnknownGroup(t *testing.T) {
	f := newGroupFixture(t)
	ctx := context.Background()
	f.groups.On("FindByID", ctx, "nope").Return(nil, repository.ErrGroupNotFound).Twice()

	_, err := f.svc.Messages(ctx, "alice", "nope")
	assert.True(t, errors.Is(err, service.ErrGroupNotFound))
	assert.True(t, errors.Is(f.svc.Leave(ctx, "alice", "nope"), service.ErrGroupNotFound))
}

func TestGroupService_MakeAdmin(t *testing.T) {
	f := newGroupFixture(t)
	ctx := context.Background()

	// 非管理员不能提升他人
	f.expectMember(ctx, "g1", "bob", false)
	assert.True(t, errors.Is(f.svc.MakeAdmin(ctx, "bob", "g1", "carol"), service.ErrNotGroupAdmin))

	// 目标必须是成员
	f.expectMember(ctx, "g1", "alice", true)
	f.groups.On("FindByID", ctx, "g1").Return(&domain.Group{ID: "g1"}, nil).Once()
	f.groups.On("FindMember", ctx, "g1", "zed").Return(nil, repository.ErrMemberNotFound).Once()
	assert.True(t, errors.Is(f.svc.MakeAdmin(ctx, "alice", "g1", "zed"), service.ErrNotGroupMember))

	f.expectMember(ctx, "g1", "alice", true)
	f.expectMember(ctx, "g1", "bob", false)
	f.groups.On("SetAdmin", ctx, "g1", "bob", true).Return(nil).Once()
	assert.NoError(t, f.svc.MakeAdmin(ctx, "alice", "g1", "bob"))

	f.groups.AssertExpectations(t)
}

func TestGroupService_AddMemberByFullNameIsIdempotent(t *testing.T) {
	f := newGroupFixture(t)
	ctx := context.Background()

	f.expectMember(ctx, "g1", "alice", true)
	f.users.On("FindByFullName", ctx, "Bob B").Return(&domain.User{ID: "bob", FullName: "Bob B", Password: "hash"}, nil).Once()
	f.groups.On("AddMember", ctx, &domain.GroupMember{GroupID: "g1", UserID: "bob"}).Return(nil).Once()

	added, err := f.svc.AddMember(ctx, "alice", "g1", "Bob B")
	require.NoError(t, err)
	assert.Equal(t, "bob", added.ID)
	assert.Empty(t, added.Password)

	// 已是成员
	f.expectMember(ctx, "g1", "alice", true)
	f.users.On("FindByFullName", ctx, "Bob B").Return(&domain.User{ID: "bob", FullName: "Bob B"}, nil).Once()
	f.groups.On("AddMember", ctx, mock.Anything).Return(repository.ErrDuplicateEntry).Once()
	_, err = f.svc.AddMember(ctx, "alice", "g1", "Bob B")
	assert.NoError(t, err)

	f.expectMember(ctx, "g1", "alice", true)
	f.users.On("FindByFullName", ctx, "Nobody").Return(nil, repository.ErrUserNotFound).Once()
	_, err = f.svc.AddMember(ctx, "alice", "g1", "Nobody")
	assert.True(t, errors.Is(err, service.ErrUserNotFound))

	f.groups.AssertExpectations(t)
	f.users.AssertExpectations(t)
}

func TestGroupService_LeaveRemovesMembership(t *testing.T) {
	f := newGroupFixture(t)
	ctx := context.Background()
	f.groups.On("FindByID", ctx, "g1").Return(&domain.Group{ID: "g1"}, nil).Twice()
	f.groups.On("RemoveMember", ctx, "g1", "bob").Return(nil).Once()
	f.groups.On("RemoveMember", ctx, "g1", "bob").Return(repository.ErrMemberNotFound).Once()

	assert.NoError(t, f.svc.Leave(ctx, "bob", "g1"))
	assert.True(t, errors.Is(f.svc.Leave(ctx, "bob", "g1"), service.ErrNotGroupMember))
	f.groups.AssertExpectations(t)
}

func TestGroupService_MembersJoinsProfiles(t *testing.T) {
	f := newGroupFixture(t)
	ctx := context.Background()
	f.expectMember(ctx, "g1", "alice", true)
	f.groups.On("Members", ctx, "g1").Return([]domain.GroupMember{
		{GroupID: "g1", UserID: "alice", IsAdmin: true},
		{GroupID: "g1", UserID: "bob"},
	}, nil).Once()
	f.users.On("FindByIDs", ctx, []string{"alice", "bob"}).Return([]domain.User{
		{ID: "alice", FullName: "Alice A"},
		{ID: "bob", FullName: "Bob B"},
	}, nil).Once()

	members, err := f.svc.Members(ctx, "alice", "g1")
	require.NoError(t, err)
	assert.Equal(t, []service.MemberView{
		{ID: "alice", FullName: "Alice A", IsAdmin: true},
		{ID: "bob", FullName: "Bob B"},
	}, members)
}

func TestGroupService_IsDurableMember(t *testing.T) {
	f := newGroupFixture(t)
	ctx := context.Background()
	boom := errors.New("db down")
	f.groups.On("FindMember", ctx, "g1", "alice").Return(&domain.GroupMember{}, nil).Once()
	f.groups.On("FindMember", ctx, "g1", "mallory").Return(nil, repository.ErrMemberNotFound).Once()
	f.groups.On("FindMember", ctx, "g1", "carol").Return(nil, boom).Once()

	ok, err := f.svc.IsDurableMember(ctx, "g1", "alice")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.IsDurableMember(ctx, "g1", "mallory")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, err = f.svc.IsDurableMember(ctx, "g1", "carol")
	assert.ErrorIs(t, err, boom)
}
