package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PancyStudios/PancyChatGo/pkg/classifier"
	"github.com/PancyStudios/PancyChatGo/pkg/logger"
	"github.com/PancyStudios/PancyChatGo/pkg/models"
)

// StateStore reads and conditionally writes a user's moderation state.
type StateStore interface {
	LoadState(ctx context.Context, userID string) (models.ModerationState, error)
	// SwapState stores next only if the stored flag count, ban flag and
	// suspension still match prev, returning database.ErrStateConflict otherwise. The event is
	// appended to the audit trail on success.
	SwapState(ctx context.Context, userID string, prev, next models.ModerationState, event models.ModerationEvent) error
}

type Classifier interface {
	Classify(ctx context.Context, text string) (classifier.Verdict, error)
}

// SessionRevoker ends every active session of a user
type SessionRevoker interface {
	Revoke(ctx context.Context, userID string) error
}

// Deliverer persists an accepted message and pushes it to the receiver
type Deliverer interface {
	Deliver(ctx context.Context, msg *models.Message) (*models.Message, error)
}

// EventSink is told about every persisted moderation transition
type EventSink interface {
	Publish(ctx context.Context, event models.ModerationEvent)
}

// Attempt is a single send request
type Attempt struct {
	SenderID   string
	ReceiverID string
	Text       string
	Image      string
}

// Gate decides whether a send attempt is delivered
type Gate struct {
	store      StateStore
	classifier Classifier
	sessions   SessionRevoker
	delivery   Deliverer
	events     EventSink
	now        func() time.Time
}

// NewGate wires a gate to its collaborators
func NewGate(store StateStore, cls Classifier, sessions SessionRevoker, delivery Deliverer) *Gate {
	return &Gate{
		store:      store,
		classifier: cls,
		sessions:   sessions,
		delivery:   delivery,
		now:        time.Now,
	}
}

// WithEventSink sets the receiver of moderation events
func (g *Gate) WithEventSink(sink EventSink) *Gate {
	g.events = sink
	return g
}

// WithClock replaces the time source
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Send runs one attempt through validation, block check, classification and
// delivery. Every rejection is returned as one of the package's error types.
func (g *Gate) Send(ctx context.Context, a Attempt) (*models.Message, error) {
	text := strings.TrimSpace(a.Text)
	image := strings.TrimSpace(a.Image)
	if text == "" && image == "" {
		return nil, ErrEmptyContent
	}

	state, err := g.store.LoadState(ctx, a.SenderID)
	if err != nil {
		return nil, &StateLoadError{Err: err}
	}

	if block := EvaluateBlock(state, g.now()); block.Blocked {
		logger.Warn(fmt.Sprintf("Blocked send from %s: %s", a.SenderID, block.Reason), "Gate")
		g.revoke(ctx, a.SenderID)
		return nil, &BlockedError{Reason: block.Reason, Until: block.Until}
	}

	if text != "" {
		verdict, err := g.classifier.Classify(ctx, text)
		if err != nil {
			logger.Error(fmt.Sprintf("Classifier failed for %s: %v", a.SenderID, err), "Gate")
			if errors.Is(err, classifier.ErrMalformedResponse) {
				return nil, ErrClassifierMalformedResponse
			}
			return nil, ErrClassifierUnavailable
		}

		switch verdict {
		case classifier.VerdictSafe:
		case classifier.VerdictHarmful:
			return nil, g.recordViolation(ctx, a.SenderID, state)
		default:
			return nil, ErrClassifierMalformedResponse
		}
	}

	msg, err := g.delivery.Deliver(ctx, &models.Message{
		SenderID:   a.SenderID,
		ReceiverID: a.ReceiverID,
		Text:       text,
		Image:      image,
	})
	if err != nil {
		logger.Error(fmt.Sprintf("Delivery failed %s -> %s: %v", a.SenderID, a.ReceiverID, err), "Gate")
		return nil, &DeliveryError{Err: err}
	}
	return msg, nil
}

// recordViolation escalates the sender's state and always returns a non-nil error
func (g *Gate) recordViolation(ctx context.Context, userID string, state models.ModerationState) error {
	event, err := commitTransition(ctx, g.store, g.now, userID, state, violationStep(userID))
	if err != nil {
		logger.Critical(fmt.Sprintf("Could not persist violation for %s: %v", userID, err), "Gate")
		return &SuspensionPersistError{Err: err}
	}

	next := event.Current
	tier := TierFor(next.FlagCount)
	logger.Warn(fmt.Sprintf("Harmful message from %s, flag count %d (tier %d)", userID, next.FlagCount, tier.Level), "Gate")

	g.revoke(ctx, userID)
	if g.events != nil {
		g.events.Publish(ctx, event)
	}

	return &HarmfulContentError{Tier: tier, State: next}
}

func (g *Gate) revoke(ctx context.Context, userID string) {
	if g.sessions == nil {
		return
	}
	if err := g.sessions.Revoke(ctx, userID); err != nil {
		logger.Error(fmt.Sprintf("Could not end session of %s: %v", userID, err), "Gate")
	}
}

func violationStep(userID string) stepFunc {
	return func(prev models.ModerationState, now time.Time) (models.ModerationState, models.ModerationEvent, error) {
		next := ApplyViolation(prev, now)
		// a longer suspension set by an operator is not shortened
		if prev.SuspendedUntil != nil && next.SuspendedUntil != nil && prev.SuspendedUntil.After(*next.SuspendedUntil) {
			until := *prev.SuspendedUntil
			next.SuspendedUntil = &until
		}
		kind := models.EventViolation
		if next.Banned && !prev.Banned {
			kind = models.EventBan
		}
		return next, newEvent(userID, kind, models.ActorSystem, "harmful content", prev, next, now), nil
	}
}
