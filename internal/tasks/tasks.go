package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// 任务类型常量
const (
	TypeAttachmentCleanup = "attachment:delete" // 删除消息附件
)

// ErrNoURLs 表示清理任务没有任何需要删除的对象
var ErrNoURLs = errors.New("tasks: attachment cleanup needs at least one url")

// AttachmentCleanupPayload 是附件清理任务的数据结构
type AttachmentCleanupPayload struct {
	URLs []string `json:"urls"`
}

// NewAttachmentCleanupTask 创建一个附件清理任务
func NewAttachmentCleanupTask(urls []string) (*asynq.Task, error) {
	if len(urls) == 0 {
		return nil, ErrNoURLs
	}
	payload, err := json.Marshal(AttachmentCleanupPayload{URLs: urls})
	if err != nil {
		return nil, fmt.Errorf("tasks: marshal cleanup payload: %w", err)
	}
	// 对象存储短暂不可用时多重试几次
	return asynq.NewTask(TypeAttachmentCleanup, payload, asynq.MaxRetry(5), asynq.Timeout(time.Minute)), nil
}

// ParseAttachmentCleanup 解析任务 payload
func ParseAttachmentCleanup(t *asynq.Task) (AttachmentCleanupPayload, error) {
	var payload AttachmentCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("tasks: unmarshal cleanup payload: %w", err)
	}
	if len(payload.URLs) == 0 {
		return payload, ErrNoURLs
	}
	return payload, nil
}

// Enqueuer 抽象 asynq.Client 的入队能力，方便测试
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqCleaner 通过 asynq 异步删除附件
type AsynqCleaner struct {
	client Enqueuer
	queue  string
}

// NewAsynqCleaner 创建 AsynqCleaner，queue 为空时使用 "low" 队列
func NewAsynqCleaner(client Enqueuer, queue string) *AsynqCleaner {
	if client == nil {
		panic("asynq client cannot be nil for AsynqCleaner")
	}
	if queue == "" {
		queue = "low"
	}
	return &AsynqCleaner{client: client, queue: queue}
}

// EnqueueAttachmentCleanup 实现 service.AttachmentCleaner
func (c *AsynqCleaner) EnqueueAttachmentCleanup(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	task, err := NewAttachmentCleanupTask(urls)
	if err != nil {
		return err
	}
	info, err := c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	if err != nil {
		return fmt.Errorf("tasks: enqueue attachment cleanup: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"task_id": info.ID,
		"queue":   info.Queue,
		"count":   len(urls),
	}).Debug("Attachment cleanup task enqueued")
	return nil
}

// TypePresenceReport 是周期性在线状态报告任务
const TypePresenceReport = "presence:report"

// NewPresenceReportTask 创建周期性报告任务，没有 payload
func NewPresenceReportTask() *asynq.Task {
	return asynq.NewTask(TypePresenceReport, nil, asynq.MaxRetry(0))
}
