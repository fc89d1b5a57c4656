package repository

import (
	"context"
	"sync/atomic"
	"time"

	"marketplace_chat_service/internal/chat/domain"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepository definition message collection
type MessageRepository interface {
	EnsureIndexes(ctx context.Context) error
	Insert(ctx context.Context, conversationID, sender, content string) (*domain.Message, error)
	FindByConversation(ctx context.Context, conversationID string) ([]domain.Message, error)
	DeleteByConversation(ctx context.Context, conversationID string) error
}

type messageRepository struct {
	coll      *mongo.Collection
	retention time.Duration
	seq       atomic.Int64
}

// NewMongoMessageRepository create message repository on db.messages; messages
// older than retention expire through a TTL index
func NewMongoMessageRepository(db *mongo.Database, retention time.Duration) MessageRepository {
	r := &messageRepository{
		coll:      db.Collection("messages"),
		retention: retention,
	}
	// seeded from the clock so sequences keep increasing across restarts
	r.seq.Store(time.Now().UnixNano())
	return r
}

func (r *messageRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "seq", Value: 1}}},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(r.retention.Seconds())),
		},
	})
	return err
}

func (r *messageRepository) Insert(ctx context.Context, conversationID, sender, content string) (*domain.Message, error) {
	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		CreatedAt:      time.Now().UTC().Truncate(time.Millisecond),
		Seq:            r.seq.Add(1),
	}
	if _, err := r.coll.InsertOne(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// FindByConversation TTL sweeps run about once a minute, so expired rows are filtered here too
func (r *messageRepository) FindByConversation(ctx context.Context, conversationID string) ([]domain.Message, error) {
	filter := bson.M{
		"conversation_id": conversationID,
		"created_at":      bson.M{"$gte": time.Now().UTC().Add(-r.retention)},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "seq", Value: 1}})

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	msgs := []domain.Message{}
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepository) DeleteByConversation(ctx context.Context, conversationID string) error {
	_, err := r.coll.DeleteMany(ctx, bson.M{"conversation_id": conversationID})
	return err
}
