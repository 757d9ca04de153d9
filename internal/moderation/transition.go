package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/PancyStudios/PancyChatGo/pkg/database"
	"github.com/PancyStudios/PancyChatGo/pkg/logger"
	"github.com/PancyStudios/PancyChatGo/pkg/models"
)

// maxSwapAttempts bounds the read-modify-write loop on concurrent updates
const maxSwapAttempts = 3

// stepFunc computes the next state and its audit event from the current state
type stepFunc func(prev models.ModerationState, now time.Time) (models.ModerationState, models.ModerationEvent, error)

// commitTransition applies step to state and stores the result with a
// compare-and-swap. When another writer changed the state first the state is
// reloaded and step re-applied, at most maxSwapAttempts times in total.
func commitTransition(ctx context.Context, store StateStore, clock func() time.Time, userID string, state models.ModerationState, step stepFunc) (models.ModerationEvent, error) {
	for attempt := 1; ; attempt++ {
		next, event, err := step(state, clock())
		if err != nil {
			return models.ModerationEvent{}, err
		}

		err = store.SwapState(ctx, userID, state, next, event)
		if err == nil {
			return event, nil
		}
		if !errors.Is(err, database.ErrStateConflict) || attempt >= maxSwapAttempts {
			return models.ModerationEvent{}, err
		}

		logger.Debug(fmt.Sprintf("Moderation state of %s changed concurrently, retrying (%d/%d)", userID, attempt, maxSwapAttempts), "Moderation")
		if state, err = store.LoadState(ctx, userID); err != nil {
			return models.ModerationEvent{}, err
		}
	}
}

func newEvent(userID string, kind models.ModerationEventKind, actor, reason string, prev, next models.ModerationState, now time.Time) models.ModerationEvent {
	return models.ModerationEvent{
		ID:        uuid.New().String(),
		UserID:    userID,
		Kind:      kind,
		Actor:     actor,
		Reason:    reason,
		Previous:  prev,
		Current:   next,
		CreatedAt: now,
	}
}
