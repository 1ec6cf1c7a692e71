package service_test

import (
	"context"
	"testing"

	"realtime-chat/internal/hub"
	"realtime-chat/internal/infra/storage"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockDeliverer 记录投递调用
type mockDeliverer struct {
	mock.Mock
}

func (m *mockDeliverer) DeliverToUser(userID string, ev hub.Outbound) bool {
	return m.Called(userID, ev).Bool(0)
}

func (m *mockDeliverer) DeliverToGroup(groupID string, ev hub.Outbound) int {
	return m.Called(groupID, ev).Int(0)
}

type mockCleaner struct {
	mock.Mock
}

func (m *mockCleaner) EnqueueAttachmentCleanup(ctx context.Context, urls []string) error {
	return m.Called(ctx, urls).Error(0)
}

func newLocalStore(t *testing.T) *storage.LocalStore {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)
	return store
}
