package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"realtime-chat/internal/infra/storage"
	"realtime-chat/internal/tasks"
)

// AttachmentCleanupHandler 处理附件删除任务
type AttachmentCleanupHandler struct {
	store storage.Store
}

// NewAttachmentCleanupHandler 创建 Handler 实例
func NewAttachmentCleanupHandler(store storage.Store) *AttachmentCleanupHandler {
	if store == nil {
		panic("Store cannot be nil for AttachmentCleanupHandler")
	}
	return &AttachmentCleanupHandler{store: store}
}

// ProcessTask 实现 asynq.Handler 接口。
// 任一对象删除失败时返回错误让 asynq 重试；已删除的对象再次删除是无害的。
func (h *AttachmentCleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)

	payload, err := tasks.ParseAttachmentCleanup(t)
	if err != nil {
		logCtx.WithError(err).Error("Failed to parse attachment cleanup payload")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	var failed int
	for _, url := range payload.URLs {
		err := h.store.Delete(ctx, url)
		switch {
		case err == nil:
			logCtx.WithField("url", url).Debug("Attachment deleted")
		case errors.Is(err, storage.ErrForeignURL), errors.Is(err, storage.ErrInvalidKey):
			// 不属于本存储的地址，重试也无济于事
			logCtx.WithError(err).WithField("url", url).Warn("Skipping attachment outside of storage")
		default:
			failed++
			logCtx.WithError(err).WithField("url", url).Error("Failed to delete attachment")
		}
	}
	if failed > 0 {
		return fmt.Errorf("worker: %d of %d attachments not deleted", failed, len(payload.URLs))
	}
	logCtx.WithField("count", len(payload.URLs)).Info("Attachment cleanup task processed successfully")
	return nil
}

// PresenceSource 提供在线状态的只读视图，由 hub.Hub 实现
type PresenceSource interface {
	Online() []string
	ActiveGroups() []string
}

// PresenceReportHandler 周期性记录在线用户与活跃群组数量
type PresenceReportHandler struct {
	source PresenceSource
}

// NewPresenceReportHandler 创建 Handler 实例
func NewPresenceReportHandler(source PresenceSource) *PresenceReportHandler {
	if source == nil {
		panic("PresenceSource cannot be nil for PresenceReportHandler")
	}
	return &PresenceReportHandler{source: source}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *PresenceReportHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	online := h.source.Online()
	groups := h.source.ActiveGroups()
	taskLogger(ctx, t).WithFields(logrus.Fields{
		"online_users":  len(online),
		"active_groups": len(groups),
	}).Info("Presence report")
	return nil
}

func taskLogger(ctx context.Context, t *asynq.Task) *logrus.Entry {
	fields := logrus.Fields{"task_type": t.Type()}
	if id, ok := asynq.GetTaskID(ctx); ok {
		fields["task_id"] = id
	}
	if q, ok := asynq.GetQueueName(ctx); ok {
		fields["queue"] = q
	}
	if n, ok := asynq.GetRetryCount(ctx); ok {
		fields["retry"] = n
	}
	return logrus.WithFields(fields)
}
