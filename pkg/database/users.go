package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/PancyStudios/PancyChatGo/pkg/models"
)

// UserStore holds accounts. Profile reads go through a cached DataManager;
// credentials, moderation fields and the session version are always read
// from the database.
type UserStore struct {
	db       *Database
	profiles *DataManager[models.Profile]
}

// NewUserStore creates a UserStore on the users collection
func NewUserStore(db *Database) *UserStore {
	return &UserStore{
		db:       db,
		profiles: NewDataManager[models.Profile](UsersCollection, db),
	}
}

func (s *UserStore) col() (*mongo.Collection, error) {
	if s.db == nil || !s.db.Connected() {
		return nil, ErrNotConnected
	}
	col := s.db.GetCollection(UsersCollection)
	if col == nil {
		return nil, ErrNotConnected
	}
	return col, nil
}

// NormalizeEmail lowercases and trims an address before storage and lookup
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a new account with default moderation state
func (s *UserStore) Create(ctx context.Context, fullName, email, passwordHash string) (*models.User, error) {
	col, err := s.col()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &models.User{
		Profile: models.Profile{
			ID:        uuid.New().String(),
			FullName:  strings.TrimSpace(fullName),
			Email:     NormalizeEmail(email),
			CreatedAt: now,
		},
		PasswordHash: passwordHash,
		UpdatedAt:    now,
	}

	if _, err := col.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// FindByEmail returns the full account document for a login
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": NormalizeEmail(email)})
}

// FindByID returns the full account document
func (s *UserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	col, err := s.col()
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := col.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Profile returns the cached public profile of a user
func (s *UserStore) Profile(ctx context.Context, id string) (*models.Profile, error) {
	p, err := s.profiles.Get(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrUserNotFound
	}
	return p, nil
}

// ListProfiles returns every profile except the given user, sorted by name
func (s *UserStore) ListProfiles(ctx context.Context, exceptID string) ([]*models.Profile, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "full_name", Value: 1}}).
		SetProjection(bson.M{"full_name": 1, "email": 1, "profile_pic": 1, "created_at": 1})
	return s.profiles.GetAll(ctx, bson.M{"_id": bson.M{"$ne": exceptID}}, opts)
}

// UpdateProfilePic stores a new avatar URL
func (s *UserStore) UpdateProfilePic(ctx context.Context, id, url string) (*models.Profile, error) {
	p, err := s.profiles.Set(ctx, bson.M{"_id": id}, bson.M{
		"profile_pic": url,
		"updated_at":  time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotConnected
	}
	return p, nil
}

// SessionVersion returns the current session version of a user
func (s *UserStore) SessionVersion(ctx context.Context, id string) (int, error) {
	col, err := s.col()
	if err != nil {
		return 0, err
	}

	var doc struct {
		SessionVersion int `bson:"session_version"`
	}
	err = col.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"session_version": 1})).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return doc.SessionVersion, nil
}

// Revoke invalidates every token issued to the user by bumping the session version
func (s *UserStore) Revoke(ctx context.Context, id string) error {
	col, err := s.col()
	if err != nil {
		return err
	}

	res, err := col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"session_version": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}
