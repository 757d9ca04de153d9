package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/PancyStudios/PancyChatGo/pkg/logger"
	"github.com/PancyStudios/PancyChatGo/pkg/models"
)

// ModerationStore reads and conditionally updates the moderation fields of a
// user document and appends to the moderation_events audit trail.
type ModerationStore struct {
	db *Database
}

func NewModerationStore(db *Database) *ModerationStore {
	return &ModerationStore{db: db}
}

func (s *ModerationStore) collections() (users, events *mongo.Collection, err error) {
	if s.db == nil || !s.db.Connected() {
		return nil, nil, ErrNotConnected
	}
	users = s.db.GetCollection(UsersCollection)
	events = s.db.GetCollection(EventsCollection)
	if users == nil || events == nil {
		return nil, nil, ErrNotConnected
	}
	return users, events, nil
}

var stateProjection = bson.M{"flag_count": 1, "banned": 1, "suspended_until": 1, "ban_source": 1}

// LoadState returns the stored moderation state. Missing fields decode as the
// zero state.
func (s *ModerationStore) LoadState(ctx context.Context, userID string) (models.ModerationState, error) {
	users, _, err := s.collections()
	if err != nil {
		return models.ModerationState{}, err
	}

	var state models.ModerationState
	err = users.FindOne(ctx, bson.M{"_id": userID}, options.FindOne().SetProjection(stateProjection)).Decode(&state)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.ModerationState{}, ErrUserNotFound
		}
		return models.ModerationState{}, err
	}
	return state, nil
}

// swapFilter matches the user only while its flag count, ban flag and
// suspension still equal prev. Documents created before the moderation fields
// existed match a zero prev.
func swapFilter(userID string, prev models.ModerationState) bson.M {
	filter := bson.M{"_id": userID}

	if prev.FlagCount == 0 {
		filter["flag_count"] = bson.M{"$in": bson.A{0, nil}}
	} else {
		filter["flag_count"] = prev.FlagCount
	}

	if prev.Banned {
		filter["banned"] = true
	} else {
		filter["banned"] = bson.M{"$ne": true}
	}

	// null matches both a cleared and a missing suspended_until
	if prev.SuspendedUntil == nil {
		filter["suspended_until"] = nil
	} else {
		filter["suspended_until"] = *prev.SuspendedUntil
	}

	return filter
}

func stateUpdate(next models.ModerationState, now time.Time) bson.M {
	return bson.M{"$set": bson.M{
		"flag_count":      next.FlagCount,
		"banned":          next.Banned,
		"suspended_until": next.SuspendedUntil,
		"ban_source":      next.BanSource,
		"updated_at":      now,
	}}
}

// SwapState writes next if the stored state still matches prev. It returns
// ErrStateConflict when another writer got there first and ErrUserNotFound
// when the user does not exist. The event is recorded after the swap; a failed
// audit insert is logged and does not undo the transition.
func (s *ModerationStore) SwapState(ctx context.Context, userID string, prev, next models.ModerationState, event models.ModerationEvent) error {
	users, events, err := s.collections()
	if err != nil {
		return err
	}

	res, err := users.UpdateOne(ctx, swapFilter(userID, prev), stateUpdate(next, time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("update moderation state: %w", err)
	}

	if res.MatchedCount == 0 {
		count, err := users.CountDocuments(ctx, bson.M{"_id": userID}, options.Count().SetLimit(1))
		if err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		if count == 0 {
			return ErrUserNotFound
		}
		return ErrStateConflict
	}

	if _, err := events.InsertOne(ctx, event); err != nil {
		logger.Error(fmt.Sprintf("Could not record %s event for %s: %v", event.Kind, userID, err), "Moderation")
	}
	return nil
}

// Events returns the newest audit entries for a user, newest first
func (s *ModerationStore) Events(ctx context.Context, userID string, limit int64) ([]models.ModerationEvent, error) {
	_, events, err := s.collections()
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := events.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cursor.Close(ctx) }()

	out := make([]models.ModerationEvent, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
