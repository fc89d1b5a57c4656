package repository

import (
	"context"
	"errors"
	"time"

	"marketplace_chat_service/internal/chat/domain"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConversationRepository definition conversation collection
type ConversationRepository interface {
	EnsureIndexes(ctx context.Context) error
	Create(ctx context.Context, participants []string) (*domain.Conversation, error)
	FindByID(ctx context.Context, id string) (*domain.Conversation, error)
	// AddParticipant $addToSet userID and bump last_active_at, returns the stored document
	AddParticipant(ctx context.Context, id, userID string) (*domain.Conversation, error)
	Touch(ctx context.Context, id string) error
	SetDraining(ctx context.Context, id string, since time.Time) error
	ClearDraining(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	FindByParticipant(ctx context.Context, userID string) ([]domain.Conversation, error)
	CountCreatedSince(ctx context.Context, userID string, since time.Time) (int64, error)
	FindDrainingSince(ctx context.Context, before time.Time) ([]domain.Conversation, error)
}

type conversationRepository struct {
	coll *mongo.Collection
}

// NewMongoConversationRepository create conversation repository on db.conversations
func NewMongoConversationRepository(db *mongo.Database) ConversationRepository {
	return &conversationRepository{coll: db.Collection("conversations")}
}

func (r *conversationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "last_active_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_by", Value: 1}, {Key: "created_at", Value: -1}}},
		{
			Keys:    bson.D{{Key: "draining_since", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	})
	return err
}

func (r *conversationRepository) Create(ctx context.Context, participants []string) (*domain.Conversation, error) {
	if len(participants) == 0 {
		return nil, errors.New("conversation needs at least one participant")
	}
	now := time.Now().UTC()
	conv := &domain.Conversation{
		ID:           uuid.New().String(),
		Participants: append([]string(nil), participants...),
		CreatedBy:    participants[0],
		CreatedAt:    now,
		LastActiveAt: now,
	}
	if _, err := r.coll.InsertOne(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (r *conversationRepository) FindByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) AddParticipant(ctx context.Context, id, userID string) (*domain.Conversation, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var conv domain.Conversation
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{
			"$addToSet": bson.M{"participants": userID},
			"$set":      bson.M{"last_active_at": time.Now().UTC()},
		},
		opts,
	).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) Touch(ctx context.Context, id string) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"last_active_at": time.Now().UTC()}})
}

func (r *conversationRepository) SetDraining(ctx context.Context, id string, since time.Time) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"draining_since": since.UTC()}})
}

func (r *conversationRepository) ClearDraining(ctx context.Context, id string) error {
	return r.updateOne(ctx, id, bson.M{"$unset": bson.M{"draining_since": ""}})
}

func (r *conversationRepository) updateOne(ctx context.Context, id string, update bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

func (r *conversationRepository) Delete(ctx context.Context, id string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *conversationRepository) FindByParticipant(ctx context.Context, userID string) ([]domain.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_active_at", Value: -1}})
	return r.find(ctx, bson.M{"participants": userID}, opts)
}

func (r *conversationRepository) CountCreatedSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{
		"created_by": userID,
		"created_at": bson.M{"$gte": since.UTC()},
	})
}

// FindDrainingSince conversations marked draining at or before the given time; unmarked ones never match
func (r *conversationRepository) FindDrainingSince(ctx context.Context, before time.Time) ([]domain.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "draining_since", Value: 1}})
	return r.find(ctx, bson.M{"draining_since": bson.M{"$lte": before.UTC()}}, opts)
}

func (r *conversationRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.Conversation, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	convs := []domain.Conversation{}
	if err := cur.All(ctx, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}
