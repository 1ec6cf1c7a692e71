package service

import (
	"context"

	"realtime-chat/internal/hub"
)

// Deliverer 是实时投递的出口，由 hub.Hub 实现。
// 投递总是在持久化成功之后调用，失败 (对方不在线) 不影响请求结果。
type Deliverer interface {
	DeliverToUser(userID string, ev hub.Outbound) bool
	DeliverToGroup(groupID string, ev hub.Outbound) int
}

// AttachmentCleaner 异步删除不再被引用的附件
type AttachmentCleaner interface {
	EnqueueAttachmentCleanup(ctx context.Context, urls []string) error
}

// Compile-time check
var _ Deliverer = (*hub.Hub)(nil)
