package models

import "time"

// Message is a delivered direct message
type Message struct {
	ID         string    `bson:"_id" json:"_id"`
	SenderID   string    `bson:"sender_id" json:"senderId"`
	ReceiverID string    `bson:"receiver_id" json:"receiverId"`
	Text       string    `bson:"text,omitempty" json:"text,omitempty"`
	Image      string    `bson:"image,omitempty" json:"image,omitempty"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}

// SendMessageRequest is the body of POST /api/messages/send/:id
type SendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}
