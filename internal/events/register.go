// Package events connects the moderation core to the message bus: it fans
// moderation events out to subscribers and serves operator requests.
package events

import (
	"github.com/PancyStudios/PancyChatGo/internal/moderation"
	"github.com/PancyStudios/PancyChatGo/pkg/logger"
	"github.com/PancyStudios/PancyChatGo/pkg/mqtt"
)

// Registrar subscribes request handlers on a topic
type Registrar interface {
	On(requestTopic string, callback mqtt.RequestHandler) error
}

// RegisterAll registers every MQTT request handler
func RegisterAll(bus Registrar, admin *moderation.Admin) {
	logger.System("Registering MQTT request handlers...", "Events")

	if err := RegisterModerationRequests(bus, admin); err != nil {
		logger.Warn("Moderation requests unavailable: "+err.Error(), "Events")
		return
	}

	logger.Success("MQTT request handlers registered", "Events")
}
