// Package moderation holds the suspension state machine and the message gate
// that applies it to every send attempt.
package moderation

import (
	"fmt"
	"time"

	"github.com/PancyStudios/PancyChatGo/pkg/models"
)

// BanThreshold is the violation count at which a user is banned permanently
const BanThreshold = 5

// Tier is one step of the escalation table
type Tier struct {
	Level    int
	Duration time.Duration // zero for the permanent ban
	Message  string
}

// Permanent reports whether the tier bans instead of suspending
func (t Tier) Permanent() bool {
	return t.Level >= BanThreshold
}

var tiers = []Tier{
	{Level: 1, Duration: 5 * time.Minute, Message: "You have been suspended for 5 minutes."},
	{Level: 2, Duration: time.Hour, Message: "You have been suspended for 1 hour."},
	{Level: 3, Duration: 5 * time.Hour, Message: "You have been suspended for 5 hours."},
	{Level: 4, Duration: 24 * time.Hour, Message: "You have been suspended for 24 hours."},
}

var banTier = Tier{Level: BanThreshold, Message: "You have been permanently banned."}

// TierFor returns the consequence of reaching flagCount violations.
// Counts below 1 are treated as the first tier.
func TierFor(flagCount int) Tier {
	if flagCount >= BanThreshold {
		return banTier
	}
	if flagCount < 1 {
		flagCount = 1
	}
	return tiers[flagCount-1]
}

// BlockReason says why sending is currently refused
type BlockReason int

const (
	NotBlocked BlockReason = iota
	PermanentBan
	TemporarySuspension
)

func (r BlockReason) String() string {
	switch r {
	case PermanentBan:
		return "permanent_ban"
	case TemporarySuspension:
		return "temporary_suspension"
	default:
		return "not_blocked"
	}
}

// Block is the result of EvaluateBlock
type Block struct {
	Blocked bool
	Reason  BlockReason
	Until   *time.Time // set for TemporarySuspension
}

// EvaluateBlock decides whether state currently prevents sending. It has no side effects.
func EvaluateBlock(state models.ModerationState, now time.Time) Block {
	if state.Banned {
		return Block{Blocked: true, Reason: PermanentBan}
	}
	if state.SuspendedUntil != nil && state.SuspendedUntil.After(now) {
		until := *state.SuspendedUntil
		return Block{Blocked: true, Reason: TemporarySuspension, Until: &until}
	}
	return Block{Reason: NotBlocked}
}

// ApplyViolation returns the state after one more confirmed violation.
// The input is never modified; a negative (corrupt) count restarts at zero.
func ApplyViolation(state models.ModerationState, now time.Time) models.ModerationState {
	count := state.FlagCount
	if count < 0 {
		count = 0
	}
	next := models.ModerationState{FlagCount: count + 1}

	tier := TierFor(next.FlagCount)
	if tier.Permanent() {
		next.Banned = true
		next.BanSource = models.BanSourceAutomatic
		return next
	}

	// An administrative ban survives further violations.
	if state.Banned {
		next.Banned = true
		next.BanSource = state.BanSource
		return next
	}

	until := now.Add(tier.Duration)
	next.SuspendedUntil = &until
	return next
}

// Describe renders a block for users
func (b Block) Describe() string {
	switch b.Reason {
	case PermanentBan:
		return "You are permanently banned from sending messages."
	case TemporarySuspension:
		return fmt.Sprintf("You are currently suspended until %s. Try again later.", b.Until.UTC().Format(time.RFC1123))
	default:
		return ""
	}
}
