package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PancyStudios/PancyChatGo/internal/moderation"
	"github.com/PancyStudios/PancyChatGo/pkg/logger"
	"github.com/PancyStudios/PancyChatGo/pkg/models"
	"github.com/PancyStudios/PancyChatGo/pkg/mqtt"
)

// Moderation request topics, relative to the request prefix
const (
	TopicBan     = "moderation/ban"
	TopicUnban   = "moderation/unban"
	TopicSuspend = "moderation/suspend"
	TopicReset   = "moderation/reset"
)

const requestTimeout = 10 * time.Second

// actorPrefix tags MQTT operators in the audit trail; alone it is recorded
// when a request does not name its operator
const actorPrefix = "mqtt"

var errMissingUser = errors.New("userId is required")

type moderationAction func(ctx context.Context, act moderation.Action) (models.ModerationState, error)

// RegisterModerationRequests exposes the administrative actions on MQTT
func RegisterModerationRequests(bus Registrar, admin *moderation.Admin) error {
	handlers := map[string]mqtt.RequestHandler{
		TopicBan:     ModerationHandler(admin.Ban, false),
		TopicUnban:   ModerationHandler(admin.Unban, false),
		TopicSuspend: ModerationHandler(admin.Suspend, true),
		TopicReset:   ModerationHandler(admin.Reset, false),
	}

	for topic, h := range handlers {
		if err := bus.On(topic, h); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}

// ModerationHandler adapts an admin action to an MQTT request handler.
// Payload: {"userId": "...", "actor": "...", "reason": "...", "minutes": 30}
func ModerationHandler(action moderationAction, needsMinutes bool) mqtt.RequestHandler {
	return func(payload map[string]interface{}) (interface{}, error) {
		act, err := parseAction(payload, needsMinutes)
		if err != nil {
			return nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		state, err := action(ctx, act)
		if err != nil {
			logger.Warn(fmt.Sprintf("MQTT %v request for %s failed: %v", payload["_topic"], act.UserID, err), "Events")
			return nil, err
		}
		return state, nil
	}
}

func parseAction(payload map[string]interface{}, needsMinutes bool) (moderation.Action, error) {
	userID, _ := payload["userId"].(string)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return moderation.Action{}, errMissingUser
	}

	act := moderation.Action{UserID: userID, Actor: actorPrefix}
	if actor, ok := payload["actor"].(string); ok && strings.TrimSpace(actor) != "" {
		act.Actor = actorPrefix + ":" + strings.TrimSpace(actor)
	}
	if reason, ok := payload["reason"].(string); ok {
		act.Reason = strings.TrimSpace(reason)
	}

	if needsMinutes {
		minutes, ok := payload["minutes"].(float64)
		if !ok || minutes <= 0 || minutes > moderation.MaxManualSuspension.Minutes() || minutes != float64(int64(minutes)) {
			return moderation.Action{}, moderation.ErrInvalidDuration
		}
		act.Duration = time.Duration(minutes) * time.Minute
	}
	return act, nil
}
