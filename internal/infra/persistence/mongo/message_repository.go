// Package mongopersistence 提供基于 MongoDB 的消息存储 (MESSAGE_STORE=mongo)。
package mongopersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"realtime-chat/internal/domain"
	"realtime-chat/internal/repository"
)

// MessageCollectionName 是消息集合的名称
const MessageCollectionName = "messages"

// MongoMessageRepository 是 MessageRepository 接口的 MongoDB 实现
type MongoMessageRepository struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// NewMongoMessageRepository 创建 MongoMessageRepository 实例
func NewMongoMessageRepository(db *mongo.Database, timeout time.Duration) *MongoMessageRepository {
	if db == nil {
		panic("mongo database cannot be nil for MongoMessageRepository")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MongoMessageRepository{coll: db.Collection(MessageCollectionName), timeout: timeout}
}

// EnsureIndexes 创建会话查询和群消息查询所需的索引
func (r *MongoMessageRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("messages_conversation"),
		},
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("messages_group"),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo: create message indexes: %w", err)
	}
	return nil
}

// Create 插入一条消息
func (r *MongoMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now
	if _, err := r.coll.InsertOne(ctx, msg); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("mongo: insert message (id: %s): %w", msg.ID, err)
	}
	return nil
}

// FindByID 根据 ID 查找消息
func (r *MongoMessageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	var msg domain.Message
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrMessageNotFound
		}
		return nil, fmt.Errorf("mongo: find message by id '%s': %w", id, err)
	}
	return &msg, nil
}

// ListConversation 返回两个用户之间的私信，按时间升序
func (r *MongoMessageRepository) ListConversation(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	msgs, err := r.find(ctx, conversationFilter(userA, userB))
	if err != nil {
		return nil, fmt.Errorf("mongo: list conversation (%s, %s): %w", userA, userB, err)
	}
	return msgs, nil
}

// ListGroup 返回群消息，按时间升序
func (r *MongoMessageRepository) ListGroup(ctx context.Context, groupID string) ([]domain.Message, error) {
	msgs, err := r.find(ctx, bson.D{{Key: "group_id", Value: groupID}})
	if err != nil {
		return nil, fmt.Errorf("mongo: list group messages '%s': %w", groupID, err)
	}
	return msgs, nil
}

// Delete 硬删除消息
func (r *MongoMessageRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	result, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("mongo: delete message '%s': %w", id, err)
	}
	if result.DeletedCount == 0 {
		return repository.ErrMessageNotFound
	}
	return nil
}

func (r *MongoMessageRepository) find(ctx context.Context, filter bson.D) ([]domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0)
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// conversationFilter 匹配 A->B 和 B->A 两个方向的私信
func conversationFilter(userA, userB string) bson.D {
	return bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "sender_id", Value: userA}, {Key: "receiver_id", Value: userB}},
		bson.D{{Key: "sender_id", Value: userB}, {Key: "receiver_id", Value: userA}},
	}}}
}
