package models

import "time"

// BanSource records who set the ban flag
type BanSource string

const (
	BanSourceNone      BanSource = ""
	BanSourceAutomatic BanSource = "automatic"
	BanSourceAdmin     BanSource = "admin"
)

// ModerationState is the persisted per-user moderation record.
//
// Banned implies SuspendedUntil == nil. A nil SuspendedUntil means the user is
// not time-suspended.
type ModerationState struct {
	FlagCount      int        `bson:"flag_count" json:"flagCount"`
	Banned         bool       `bson:"banned" json:"banned"`
	SuspendedUntil *time.Time `bson:"suspended_until" json:"suspendedUntil"`
	BanSource      BanSource  `bson:"ban_source,omitempty" json:"banSource,omitempty"`
}

// ModerationEventKind names the transition recorded in the audit trail
type ModerationEventKind string

const (
	EventViolation ModerationEventKind = "violation"
	EventBan       ModerationEventKind = "ban"
	EventUnban     ModerationEventKind = "unban"
	EventSuspend   ModerationEventKind = "suspend"
	EventReset     ModerationEventKind = "reset"
)

// ModerationEvent is one entry of the append-only audit trail
type ModerationEvent struct {
	ID        string              `bson:"_id" json:"id"`
	UserID    string              `bson:"user_id" json:"userId"`
	Kind      ModerationEventKind `bson:"kind" json:"kind"`
	Actor     string              `bson:"actor" json:"actor"` // "system" or the admin's user id
	Reason    string              `bson:"reason,omitempty" json:"reason,omitempty"`
	Previous  ModerationState     `bson:"previous" json:"previous"`
	Current   ModerationState     `bson:"current" json:"current"`
	CreatedAt time.Time           `bson:"created_at" json:"createdAt"`
}

// ActorSystem marks transitions applied by the automatic escalation path
const ActorSystem = "system"
