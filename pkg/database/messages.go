package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/PancyStudios/PancyChatGo/pkg/models"
)

// MessageStore persists direct messages
type MessageStore struct {
	db *Database
}

func NewMessageStore(db *Database) *MessageStore {
	return &MessageStore{db: db}
}

func (s *MessageStore) col() (*mongo.Collection, error) {
	if s.db == nil || !s.db.Connected() {
		return nil, ErrNotConnected
	}
	col := s.db.GetCollection(MessagesCollection)
	if col == nil {
		return nil, ErrNotConnected
	}
	return col, nil
}

// Insert assigns an id and timestamp when missing and stores the message
func (s *MessageStore) Insert(ctx context.Context, msg *models.Message) (*models.Message, error) {
	col, err := s.col()
	if err != nil {
		return nil, err
	}

	stored := *msg
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	if _, err := col.InsertOne(ctx, &stored); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &stored, nil
}

// Conversation returns the messages exchanged between two users, oldest first
func (s *MessageStore) Conversation(ctx context.Context, userA, userB string) ([]models.Message, error) {
	col, err := s.col()
	if err != nil {
		return nil, err
	}

	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": userA, "receiver_id": userB},
		bson.M{"sender_id": userB, "receiver_id": userA},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cursor.Close(ctx) }()

	out := make([]models.Message, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
