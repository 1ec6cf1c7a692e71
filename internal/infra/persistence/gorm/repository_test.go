package gormpersistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"realtime-chat/internal/domain"
	gormpersistence "realtime-chat/internal/infra/persistence/gorm"
	"realtime-chat/internal/repository"
)

// newTestDB 打开一个独立的内存 SQLite 数据库并迁移所有表
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存库只存在于单个连接中
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.Block{}, &domain.Group{}, &domain.GroupMember{}, &domain.Message{}))
	return db
}

func seedUsers(t *testing.T, repo *gormpersistence.GormUserRepository, names ...string) []domain.User {
	t.Helper()
	ctx := context.Background()
	users := make([]domain.User, 0, len(names))
	for i, name := range names {
		u := domain.User{
			ID:        name + "-id",
			FullName:  name,
			Email:     name + "@example.com",
			Password:  "hash",
			CreatedAt: time.Date(2024, 1, 1, 0, i, 0, 0, time.UTC),
		}
		require.NoError(t, repo.Save(ctx, &u))
		users = append(users, u)
	}
	return users
}

// --- UserRepository ---

func TestGormUserRepository_FindAndDuplicate(t *testing.T) {
	repo := gormpersistence.NewGormUserRepository(newTestDB(t))
	ctx := context.Background()
	seedUsers(t, repo, "alice", "bob")

	u, err := repo.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice-id", u.ID)

	u, err = repo.FindByFullName(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob-id", u.ID)

	_, err = repo.FindByID(ctx, "nobody")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	dup := domain.User{ID: "other-id", FullName: "Alice 2", Email: "alice@example.com", Password: "x"}
	assert.ErrorIs(t, repo.Save(ctx, &dup), repository.ErrDuplicateEntry)

	users, err := repo.FindByIDs(ctx, []string{"alice-id", "bob-id", "ghost"})
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestGormUserRepository_ListExceptAndBlocks(t *testing.T) {
	repo := gormpersistence.NewGormUserRepository(newTestDB(t))
	ctx := context.Background()
	seedUsers(t, repo, "alice", "bob", "carol")

	users, err := repo.ListExcept(ctx, "alice-id")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "bob", users[0].FullName)
	assert.Equal(t, "carol", users[1].FullName)

	blocked, err := repo.IsBlocked(ctx, "alice-id", "bob-id")
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, repo.Block(ctx, "alice-id", "bob-id"))
	require.NoError(t, repo.Block(ctx, "alice-id", "bob-id"), "blocking twice is a no-op")
	blocked, err = repo.IsBlocked(ctx, "alice-id", "bob-id")
	require.NoError(t, err)
	assert.True(t, blocked)

	// 屏蔽是单向的
	blocked, err = repo.IsBlocked(ctx, "bob-id", "alice-id")
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, repo.Unblock(ctx, "alice-id", "bob-id"))
	blocked, err = repo.IsBlocked(ctx, "alice-id", "bob-id")
	require.NoError(t, err)
	assert.False(t, blocked)
}

// --- GroupRepository ---

func TestGormGroupRepository_CreateAndMembership(t *testing.T) {
	db := newTestDB(t)
	users := gormpersistence.NewGormUserRepository(db)
	repo := gormpersistence.NewGormGroupRepository(db)
	ctx := context.Background()
	seedUsers(t, users, "alice", "bob")

	group := domain.Group{ID: "g1", Name: "Team"}
	require.NoError(t, repo.Create(ctx, &group, "alice-id"))

	owner, err := repo.FindMember(ctx, "g1", "alice-id")
	require.NoError(t, err)
	assert.True(t, owner.IsAdmin)

	require.NoError(t, repo.AddMember(ctx, &domain.GroupMember{GroupID: "g1", UserID: "bob-id"}))
	assert.ErrorIs(t, repo.AddMember(ctx, &domain.GroupMember{GroupID: "g1", UserID: "bob-id"}), repository.ErrDuplicateEntry)

	members, err := repo.Members(ctx, "g1")
	require.NoError(t, err)
	assert.Len(t, members, 2)

	groups, err := repo.ListForUser(ctx, "bob-id")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Team", groups[0].Name)

	require.NoError(t, repo.SetAdmin(ctx, "g1", "bob-id", true))
	bob, err := repo.FindMember(ctx, "g1", "bob-id")
	require.NoError(t, err)
	assert.True(t, bob.IsAdmin)
	assert.ErrorIs(t, repo.SetAdmin(ctx, "g1", "ghost", true), repository.ErrMemberNotFound)

	require.NoError(t, repo.RemoveMember(ctx, "g1", "bob-id"))
	assert.ErrorIs(t, repo.RemoveMember(ctx, "g1", "bob-id"), repository.ErrMemberNotFound)
	_, err = repo.FindMember(ctx, "g1", "bob-id")
	assert.ErrorIs(t, err, repository.ErrMemberNotFound)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrGroupNotFound)
}

// --- MessageRepository ---

func TestGormMessageRepository_ConversationOrderingAndDelete(t *testing.T) {
	repo := gormpersistence.NewGormMessageRepository(newTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	msgs := []domain.Message{
		{ID: "m2", SenderID: "b", ReceiverID: "a", Text: "second", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "m1", SenderID: "a", ReceiverID: "b", Text: "first", CreatedAt: base.Add(time.Minute)},
		{ID: "m3", SenderID: "a", ReceiverID: "c", Text: "other", CreatedAt: base},
		{ID: "m4", SenderID: "a", GroupID: "g1", SenderName: "A", CreatedAt: base,
			File: &domain.FileAttachment{URL: "http://f/x.pdf", OriginalName: "x.pdf", MimeType: "application/pdf", Size: 12, IsDocument: true}},
	}
	for i := range msgs {
		require.NoError(t, repo.Create(ctx, &msgs[i]))
	}

	conv, err := repo.ListConversation(ctx, "b", "a")
	require.NoError(t, err)
	require.Len(t, conv, 2)
	assert.Equal(t, "m1", conv[0].ID)
	assert.Equal(t, "m2", conv[1].ID)

	group, err := repo.ListGroup(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, group, 1)
	require.NotNil(t, group[0].File)
	assert.Equal(t, "x.pdf", group[0].File.OriginalName)
	assert.True(t, group[0].File.IsDocument)

	found, err := repo.FindByID(ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, found.File)

	require.NoError(t, repo.Delete(ctx, "m1"))
	assert.ErrorIs(t, repo.Delete(ctx, "m1"), repository.ErrMessageNotFound)
	_, err = repo.FindByID(ctx, "m1")
	assert.ErrorIs(t, err, repository.ErrMessageNotFound)
}
