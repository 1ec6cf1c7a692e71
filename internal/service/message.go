package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"realtime-chat/internal/domain"
	"realtime-chat/internal/hub"
	"realtime-chat/internal/infra/storage"
	"realtime-chat/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MessageService 负责私信的发送、查询、删除以及屏蔽列表。
type MessageService struct {
	userRepo    repository.UserRepository
	messageRepo repository.MessageRepository
	store       storage.Store
	deliverer   Deliverer
	cleaner     AttachmentCleaner
}

// NewMessageService 创建 MessageService 实例。cleaner 可以为 nil，此时不清理附件。
func NewMessageService(
	userRepo repository.UserRepository,
	messageRepo repository.MessageRepository,
	store storage.Store,
	deliverer Deliverer,
	cleaner AttachmentCleaner,
) *MessageService {
	if userRepo == nil || messageRepo == nil || store == nil || deliverer == nil {
		panic("Repositories, storage and deliverer cannot be nil for MessageService")
	}
	return &MessageService{
		userRepo:    userRepo,
		messageRepo: messageRepo,
		store:       store,
		deliverer:   deliverer,
		cleaner:     cleaner,
	}
}

// Users 返回侧边栏中的用户 (除自己以外的所有人)
func (s *MessageService) Users(ctx context.Context, userID string) ([]domain.User, error) {
	users, err := s.userRepo.ListExcept(ctx, userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to list sidebar users")
		return nil, ErrInternalServer
	}
	for i := range users {
		users[i].Password = ""
	}
	return users, nil
}

// SendDirect 保存一条私信，然后推送给接收者当前的连接 (如果在线)。
func (s *MessageService) SendDirect(ctx context.Context, senderID, receiverID string, in SendInput) (*domain.Message, error) {
	logCtx := logrus.WithFields(logrus.Fields{"sender_id": senderID, "receiver_id": receiverID})

	if in.empty() {
		return nil, ErrEmptyMessage
	}
	if _, err := s.userRepo.FindByID(ctx, receiverID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		logCtx.WithError(err).Error("Failed to look up receiver")
		return nil, ErrInternalServer
	}

	// 接收者屏蔽了发送者时拒绝发送
	blocked, err := s.userRepo.IsBlocked(ctx, receiverID, senderID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to check block list")
		return nil, ErrInternalServer
	}
	if blocked {
		logCtx.Info("Direct message rejected: sender is blocked")
		return nil, ErrBlocked
	}

	msg := &domain.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       strings.TrimSpace(in.Text),
	}
	uploaded, err := attach(ctx, s.store, msg, in)
	if err != nil {
		cleanup(ctx, s.cleaner, uploaded)
		if errors.Is(err, ErrInvalidInput) {
			return nil, err
		}
		logCtx.WithError(err).Error("Failed to store attachment")
		return nil, ErrInternalServer
	}

	// 先持久化，再推送
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		cleanup(ctx, s.cleaner, uploaded)
		logCtx.WithError(err).Error("Failed to persist direct message")
		return nil, ErrInternalServer
	}

	delivered := s.deliverer.DeliverToUser(receiverID, hub.DirectMessage{Message: msg})
	logCtx.WithFields(logrus.Fields{"message_id": msg.ID, "delivered": delivered}).Info("Direct message sent")
	return msg, nil
}

// Conversation 返回当前用户与 peerID 之间的私信，按时间升序
func (s *MessageService) Conversation(ctx context.Context, userID, peerID string) ([]domain.Message, error) {
	msgs, err := s.messageRepo.ListConversation(ctx, userID, peerID)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"user_id": userID, "peer_id": peerID}).Error("Failed to load conversation")
		return nil, ErrInternalServer
	}
	return msgs, nil
}

// Delete 硬删除一条私信 (只有发送者或接收者可以删除)，返回删除后的会话。
func (s *MessageService) Delete(ctx context.Context, userID, messageID, peerID string) ([]domain.Message, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "message_id": messageID})

	msg, err := s.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, ErrMessageNotFound
		}
		logCtx.WithError(err).Error("Failed to load message for deletion")
		return nil, ErrInternalServer
	}
	if !msg.IsDirect() || (msg.SenderID != userID && msg.ReceiverID != userID) {
		logCtx.Warn("Rejecting delete of a message the user does not own")
		return nil, ErrForbidden
	}

	if err := s.messageRepo.Delete(ctx, messageID); err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, ErrMessageNotFound
		}
		logCtx.WithError(err).Error("Failed to delete message")
		return nil, ErrInternalServer
	}
	cleanup(ctx, s.cleaner, attachmentURLs(msg))
	logCtx.Info("Message deleted")

	return s.Conversation(ctx, userID, peerID)
}

// ToggleBlock 屏蔽或取消屏蔽 targetID，返回操作后的屏蔽状态
func (s *MessageService) ToggleBlock(ctx context.Context, userID, targetID string) (bool, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "target_id": targetID})
	if userID == targetID {
		return false, fmt.Errorf("%w: cannot block yourself", ErrInvalidInput)
	}
	if _, err := s.userRepo.FindByID(ctx, targetID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return false, ErrUserNotFound
		}
		logCtx.WithError(err).Error("Failed to look up block target")
		return false, ErrInternalServer
	}

	blocked, err := s.userRepo.IsBlocked(ctx, userID, targetID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to check block list")
		return false, ErrInternalServer
	}
	if blocked {
		err = s.userRepo.Unblock(ctx, userID, targetID)
	} else {
		err = s.userRepo.Block(ctx, userID, targetID)
	}
	if err != nil {
		logCtx.WithError(err).Error("Failed to update block list")
		return false, ErrInternalServer
	}
	logCtx.WithField("blocked", !blocked).Info("Block list updated")
	return !blocked, nil
}
