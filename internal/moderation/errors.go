package moderation

import (
	"errors"
	"fmt"
	"time"

	"github.com/PancyStudios/PancyChatGo/pkg/models"
)

var (
	// ErrEmptyContent rejects attempts carrying neither text nor image
	ErrEmptyContent = errors.New("message cannot be empty")
	// ErrClassifierUnavailable means the classifier call failed; nothing was recorded
	ErrClassifierUnavailable = errors.New("content classifier unavailable")
	// ErrClassifierMalformedResponse means the classifier answered without a usable verdict
	ErrClassifierMalformedResponse = errors.New("content classifier returned a malformed response")
)

// BlockedError is returned when the sender is banned or suspended
type BlockedError struct {
	Reason BlockReason
	Until  *time.Time
}

func (e *BlockedError) Error() string {
	if e.Reason == TemporarySuspension && e.Until != nil {
		return fmt.Sprintf("sender suspended until %s", e.Until.UTC().Format(time.RFC3339))
	}
	return "sender permanently banned"
}

// Block converts the error back into the block it was built from
func (e *BlockedError) Block() Block {
	return Block{Blocked: true, Reason: e.Reason, Until: e.Until}
}

// HarmfulContentError is returned after a violation was recorded and persisted
type HarmfulContentError struct {
	Tier  Tier
	State models.ModerationState
}

func (e *HarmfulContentError) Error() string {
	return fmt.Sprintf("harmful content rejected (tier %d)", e.Tier.Level)
}

// SuspensionPersistError means the content was rejected as harmful but the new
// moderation state could not be stored; the stored state may be stale.
type SuspensionPersistError struct {
	Err error
}

func (e *SuspensionPersistError) Error() string {
	return "failed to persist suspension: " + e.Err.Error()
}

func (e *SuspensionPersistError) Unwrap() error { return e.Err }

// StateLoadError means the sender's moderation state could not be read
type StateLoadError struct {
	Err error
}

func (e *StateLoadError) Error() string {
	return "failed to load moderation state: " + e.Err.Error()
}

func (e *StateLoadError) Unwrap() error { return e.Err }

// DeliveryError means clean content could not be stored or pushed
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return "failed to deliver message: " + e.Err.Error()
}

func (e *DeliveryError) Unwrap() error { return e.Err }
