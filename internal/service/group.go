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

// MemberView 是群成员列表中的一项
type MemberView struct {
	ID         string `json:"id"`
	FullName   string `json:"fullName"`
	ProfilePic string `json:"profilePic,omitempty"`
	IsAdmin    bool   `json:"isAdmin"`
}

// GroupService 负责群组管理和群消息。它同时为 Hub 提供持久成员校验。
type GroupService struct {
	groupRepo   repository.GroupRepository
	userRepo    repository.UserRepository
	messageRepo repository.MessageRepository
	store       storage.Store
	deliverer   Deliverer
	cleaner     AttachmentCleaner
}

// NewGroupService 创建 GroupService 实例。
// deliverer 可以稍后通过 SetDeliverer 设置，因为 Hub 依赖本服务做成员校验。
func NewGroupService(
	groupRepo repository.GroupRepository,
	userRepo repository.UserRepository,
	messageRepo repository.MessageRepository,
	store storage.Store,
	cleaner AttachmentCleaner,
) *GroupService {
	if groupRepo == nil || userRepo == nil || messageRepo == nil || store == nil {
		panic("Repositories and storage cannot be nil for GroupService")
	}
	return &GroupService{
		groupRepo:   groupRepo,
		userRepo:    userRepo,
		messageRepo: messageRepo,
		store:       store,
		cleaner:     cleaner,
	}
}

// SetDeliverer 设置实时投递出口
func (s *GroupService) SetDeliverer(d Deliverer) {
	s.deliverer = d
}

// Create 创建群组，创建者自动成为成员和管理员
func (s *GroupService) Create(ctx context.Context, creatorID, name string) (*domain.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: group name is required", ErrInvalidInput)
	}
	group := &domain.Group{ID: uuid.NewString(), Name: name}
	if err := s.groupRepo.Create(ctx, group, creatorID); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"user_id": creatorID, "name": name}).Error("Failed to create group")
		return nil, ErrInternalServer
	}
	logrus.WithFields(logrus.Fields{"user_id": creatorID, "group_id": group.ID}).Info("Group created")
	return group, nil
}

// Leave 退出群组，同时失去管理员身份
func (s *GroupService) Leave(ctx context.Context, userID, groupID string) error {
	if err := s.ensureGroup(ctx, groupID); err != nil {
		return err
	}
	if err := s.groupRepo.RemoveMember(ctx, groupID, userID); err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return ErrNotGroupMember
		}
		logrus.WithError(err).WithFields(logrus.Fields{"user_id": userID, "group_id": groupID}).Error("Failed to leave group")
		return ErrInternalServer
	}
	logrus.WithFields(logrus.Fields{"user_id": userID, "group_id": groupID}).Info("User left group")
	return nil
}

// List 返回用户所属的群组
func (s *GroupService) List(ctx context.Context, userID string) ([]domain.Group, error) {
	groups, err := s.groupRepo.ListForUser(ctx, userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Failed to list groups")
		return nil, ErrInternalServer
	}
	return groups, nil
}

// Members 返回群成员列表，只有成员可以查看
func (s *GroupService) Members(ctx context.Context, userID, groupID string) ([]MemberView, error) {
	if _, err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	members, err := s.groupRepo.Members(ctx, groupID)
	if err != nil {
		logrus.WithError(err).WithField("group_id", groupID).Error("Failed to list group members")
		return nil, ErrInternalServer
	}

	ids := make([]string, len(members))
	admins := make(map[string]bool, len(members))
	for i, m := range members {
		ids[i] = m.UserID
		admins[m.UserID] = m.IsAdmin
	}
	users, err := s.userRepo.FindByIDs(ctx, ids)
	if err != nil {
		logrus.WithError(err).WithField("group_id", groupID).Error("Failed to load group member profiles")
		return nil, ErrInternalServer
	}
	views := make([]MemberView, 0, len(users))
	for _, u := range users {
		views = append(views, MemberView{ID: u.ID, FullName: u.FullName, ProfilePic: u.ProfilePic, IsAdmin: admins[u.ID]})
	}
	return views, nil
}

// MakeAdmin 由管理员把另一位成员设为管理员
func (s *GroupService) MakeAdmin(ctx context.Context, actorID, groupID, targetID string) error {
	actor, err := s.requireMember(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin {
		return ErrNotGroupAdmin
	}
	if _, err := s.requireMember(ctx, groupID, targetID); err != nil {
		return err
	}
	if err := s.groupRepo.SetAdmin(ctx, groupID, targetID, true); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"group_id": groupID, "target_id": targetID}).Error("Failed to promote member")
		return ErrInternalServer
	}
	logrus.WithFields(logrus.Fields{"user_id": actorID, "group_id": groupID, "target_id": targetID}).Info("Member promoted to admin")
	return nil
}

// AddMember 按全名把用户加入群组。已是成员时直接返回该用户。
func (s *GroupService) AddMember(ctx context.Context, actorID, groupID, targetFullName string) (*domain.User, error) {
	if _, err := s.requireMember(ctx, groupID, actorID); err != nil {
		return nil, err
	}
	target, err := s.userRepo.FindByFullName(ctx, strings.TrimSpace(targetFullName))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		logrus.WithError(err).WithField("full_name", targetFullName).Error("Failed to look up user by name")
		return nil, ErrInternalServer
	}
	target.Password = ""

	err = s.groupRepo.AddMember(ctx, &domain.GroupMember{GroupID: groupID, UserID: target.ID})
	if err != nil && !errors.Is(err, repository.ErrDuplicateEntry) {
		logrus.WithError(err).WithFields(logrus.Fields{"group_id": groupID, "target_id": target.ID}).Error("Failed to add member")
		return nil, ErrInternalServer
	}
	logrus.WithFields(logrus.Fields{"user_id": actorID, "group_id": groupID, "target_id": target.ID}).Info("Member added to group")
	return target, nil
}

// Send 保存一条群消息，然后广播给已订阅该群组房间的连接 (包括发送者)。
func (s *GroupService) Send(ctx context.Context, senderID, groupID string, in SendInput) (*domain.Message, error) {
	logCtx := logrus.WithFields(logrus.Fields{"sender_id": senderID, "group_id": groupID})
	if in.empty() {
		return nil, ErrEmptyMessage
	}
	if _, err := s.requireMember(ctx, groupID, senderID); err != nil {
		return nil, err
	}
	sender, err := s.userRepo.FindByID(ctx, senderID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		logCtx.WithError(err).Error("Failed to load sender")
		return nil, ErrInternalServer
	}

	msg := &domain.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		GroupID:    groupID,
		Text:       strings.TrimSpace(in.Text),
		SenderName: sender.FullName,
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
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		cleanup(ctx, s.cleaner, uploaded)
		logCtx.WithError(err).Error("Failed to persist group message")
		return nil, ErrInternalServer
	}

	if s.deliverer != nil {
		n := s.deliverer.DeliverToGroup(groupID, hub.GroupMessage{GroupID: groupID, Message: msg})
		logCtx.WithFields(logrus.Fields{"message_id": msg.ID, "recipients": n}).Info("Group message sent")
	}
	return msg, nil
}

// Messages 返回群消息历史，只有成员可以查看
func (s *GroupService) Messages(ctx context.Context, userID, groupID string) ([]domain.Message, error) {
	if _, err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.messageRepo.ListGroup(ctx, groupID)
	if err != nil {
		logrus.WithError(err).WithField("group_id", groupID).Error("Failed to load group messages")
		return nil, ErrInternalServer
	}
	return msgs, nil
}

// IsDurableMember 实现 hub.MembershipChecker
func (s *GroupService) IsDurableMember(ctx context.Context, groupID, userID string) (bool, error) {
	_, err := s.groupRepo.FindMember(ctx, groupID, userID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, repository.ErrMemberNotFound) {
		return false, nil
	}
	return false, err
}

// --- 私有辅助函数 ---

func (s *GroupService) ensureGroup(ctx context.Context, groupID string) error {
	if _, err := s.groupRepo.FindByID(ctx, groupID); err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			return ErrGroupNotFound
		}
		logrus.WithError(err).WithField("group_id", groupID).Error("Failed to load group")
		return ErrInternalServer
	}
	return nil
}

// requireMember 确认群组存在且 userID 是成员
func (s *GroupService) requireMember(ctx context.Context, groupID, userID string) (*domain.GroupMember, error) {
	if err := s.ensureGroup(ctx, groupID); err != nil {
		return nil, err
	}
	member, err := s.groupRepo.FindMember(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return nil, ErrNotGroupMember
		}
		logrus.WithError(err).WithFields(logrus.Fields{"group_id": groupID, "user_id": userID}).Error("Failed to check membership")
		return nil, ErrInternalServer
	}
	return member, nil
}

// Compile-time check
var _ hub.MembershipChecker = (*GroupService)(nil)
