// Package chat delivers accepted messages: it stores them and pushes them to
// the receiver's open connections.
package chat

import (
	"context"
	"fmt"

	"github.com/PancyStudios/PancyChatGo/pkg/logger"
	"github.com/PancyStudios/PancyChatGo/pkg/models"
	"github.com/PancyStudios/PancyChatGo/pkg/realtime"
)

// MessageWriter stores a message and returns the stored record
type MessageWriter interface {
	Insert(ctx context.Context, msg *models.Message) (*models.Message, error)
}

// Pusher sends an event to every open connection of a user
type Pusher interface {
	SendToUser(userID, event string, data interface{}) int
}

// Delivery persists messages, then pushes them to an online receiver.
type Delivery struct {
	store  MessageWriter
	pusher Pusher
}

func NewDelivery(store MessageWriter, pusher Pusher) *Delivery {
	return &Delivery{store: store, pusher: pusher}
}

// Deliver returns once the message is stored. The push is best effort and a
// receiver without connections simply reads the message later.
func (d *Delivery) Deliver(ctx context.Context, msg *models.Message) (*models.Message, error) {
	stored, err := d.store.Insert(ctx, msg)
	if err != nil {
		return nil, err
	}

	if d.pusher != nil {
		if n := d.pusher.SendToUser(stored.ReceiverID, realtime.EventNewMessage, stored); n > 0 {
			logger.Debug(fmt.Sprintf("Pushed message %s to %d connection(s) of %s", stored.ID, n, stored.ReceiverID), "Chat")
		}
	}
	return stored, nil
}
