package events

import (
	"context"
	"fmt"

	"github.com/PancyStudios/PancyChatGo/internal/moderation"
	"github.com/PancyStudios/PancyChatGo/pkg/logger"
	"github.com/PancyStudios/PancyChatGo/pkg/models"
	"github.com/PancyStudios/PancyChatGo/pkg/mqtt"
)

// Publisher sends a JSON payload to a topic
type Publisher interface {
	Publish(topic string, payload interface{}) error
}

// MQTTSink publishes moderation events on pancychat/moderation/{kind}
type MQTTSink struct {
	pub Publisher
}

func NewMQTTSink(pub Publisher) *MQTTSink {
	return &MQTTSink{pub: pub}
}

func (s *MQTTSink) Publish(_ context.Context, event models.ModerationEvent) {
	topic := fmt.Sprintf("%s/%s", mqtt.TopicModeration, event.Kind)
	if err := s.pub.Publish(topic, event); err != nil {
		logger.Debug(fmt.Sprintf("Moderation event %s not published: %v", event.ID, err), "Events")
	}
}

// Fanout forwards every event to each sink in order
type Fanout []moderation.EventSink

func (f Fanout) Publish(ctx context.Context, event models.ModerationEvent) {
	for _, sink := range f {
		if sink != nil {
			sink.Publish(ctx, event)
		}
	}
}
