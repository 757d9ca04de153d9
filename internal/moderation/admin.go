package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PancyStudios/PancyChatGo/pkg/logger"
	"github.com/PancyStudios/PancyChatGo/pkg/models"
)

var (
	// ErrInvalidDuration rejects manual suspensions that are not in the future
	ErrInvalidDuration = errors.New("suspension duration must be positive")
	// ErrAlreadyBanned rejects a timed suspension of a banned user
	ErrAlreadyBanned = errors.New("user is permanently banned")
)

// MaxManualSuspension caps administrative suspensions
const MaxManualSuspension = 365 * 24 * time.Hour

// Action is an administrative moderation request
type Action struct {
	UserID   string
	Actor    string
	Reason   string
	Duration time.Duration // Suspend only
}

// Admin applies manual moderation actions through the same conditional
// update path as the automatic escalation.
type Admin struct {
	store    StateStore
	sessions SessionRevoker
	events   EventSink
	now      func() time.Time
}

func NewAdmin(store StateStore, sessions SessionRevoker) *Admin {
	return &Admin{store: store, sessions: sessions, now: time.Now}
}

// WithEventSink sets the receiver of moderation events
func (a *Admin) WithEventSink(sink EventSink) *Admin {
	a.events = sink
	return a
}

// WithClock replaces the time source
func (a *Admin) WithClock(now func() time.Time) *Admin {
	a.now = now
	return a
}

// Ban sets the ban flag and clears any timed suspension. The flag count is kept.
func (a *Admin) Ban(ctx context.Context, act Action) (models.ModerationState, error) {
	return a.apply(ctx, act, models.EventBan, true, func(prev models.ModerationState, _ time.Time) (models.ModerationState, error) {
		return models.ModerationState{
			FlagCount: prev.FlagCount,
			Banned:    true,
			BanSource: models.BanSourceAdmin,
		}, nil
	})
}

// Unban lifts the ban and any suspension but keeps the flag count, so the
// next violation escalates from where the user left off.
func (a *Admin) Unban(ctx context.Context, act Action) (models.ModerationState, error) {
	return a.apply(ctx, act, models.EventUnban, false, func(prev models.ModerationState, _ time.Time) (models.ModerationState, error) {
		return models.ModerationState{FlagCount: prev.FlagCount}, nil
	})
}

// Suspend blocks the user for act.Duration from now
func (a *Admin) Suspend(ctx context.Context, act Action) (models.ModerationState, error) {
	if act.Duration <= 0 || act.Duration > MaxManualSuspension {
		return models.ModerationState{}, ErrInvalidDuration
	}
	return a.apply(ctx, act, models.EventSuspend, true, func(prev models.ModerationState, now time.Time) (models.ModerationState, error) {
		if prev.Banned {
			return models.ModerationState{}, ErrAlreadyBanned
		}
		until := now.Add(act.Duration)
		return models.ModerationState{FlagCount: prev.FlagCount, SuspendedUntil: &until}, nil
	})
}

// Reset restores the default state
func (a *Admin) Reset(ctx context.Context, act Action) (models.ModerationState, error) {
	return a.apply(ctx, act, models.EventReset, false, func(models.ModerationState, time.Time) (models.ModerationState, error) {
		return models.ModerationState{}, nil
	})
}

func (a *Admin) apply(
	ctx context.Context,
	act Action,
	kind models.ModerationEventKind,
	revoke bool,
	next func(prev models.ModerationState, now time.Time) (models.ModerationState, error),
) (models.ModerationState, error) {
	state, err := a.store.LoadState(ctx, act.UserID)
	if err != nil {
		return models.ModerationState{}, err
	}

	event, err := commitTransition(ctx, a.store, a.now, act.UserID, state,
		func(prev models.ModerationState, now time.Time) (models.ModerationState, models.ModerationEvent, error) {
			n, err := next(prev, now)
			if err != nil {
				return models.ModerationState{}, models.ModerationEvent{}, err
			}
			return n, newEvent(act.UserID, kind, act.Actor, act.Reason, prev, n, now), nil
		})
	if err != nil {
		return models.ModerationState{}, err
	}

	logger.Info(fmt.Sprintf("%s applied to %s by %s", kind, act.UserID, act.Actor), "Moderation")

	if revoke && a.sessions != nil {
		if err := a.sessions.Revoke(ctx, act.UserID); err != nil {
			logger.Error(fmt.Sprintf("Could not end session of %s: %v", act.UserID, err), "Moderation")
		}
	}
	if a.events != nil {
		a.events.Publish(ctx, event)
	}
	return event.Current, nil
}
