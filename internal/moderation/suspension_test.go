package moderation

import (
	"testing"
	"time"

	"github.com/PancyStudios/PancyChatGo/pkg/models"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func ptr(t time.Time) *time.Time { return &t }

func TestApplyViolationTiers(t *testing.T) {
	tests := []struct {
		count    int
		duration time.Duration
		banned   bool
		message  string
	}{
		{0, 5 * time.Minute, false, "You have been suspended for 5 minutes."},
		{1, time.Hour, false, "You have been suspended for 1 hour."},
		{2, 5 * time.Hour, false, "You have been suspended for 5 hours."},
		{3, 24 * time.Hour, false, "You have been suspended for 24 hours."},
		{4, 0, true, "You have been permanently banned."},
		{9, 0, true, "You have been permanently banned."},
	}

	for _, tt := range tests {
		got := ApplyViolation(models.ModerationState{FlagCount: tt.count}, testNow)

		if got.FlagCount != tt.count+1 {
			t.Errorf("count %d: FlagCount = %d, want %d", tt.count, got.FlagCount, tt.count+1)
		}
		if got.Banned != tt.banned {
			t.Errorf("count %d: Banned = %v, want %v", tt.count, got.Banned, tt.banned)
		}
		if tt.banned {
			if got.SuspendedUntil != nil {
				t.Errorf("count %d: SuspendedUntil = %v, want nil", tt.count, got.SuspendedUntil)
			}
			if got.BanSource != models.BanSourceAutomatic {
				t.Errorf("count %d: BanSource = %q", tt.count, got.BanSource)
			}
		} else {
			if got.SuspendedUntil == nil || !got.SuspendedUntil.Equal(testNow.Add(tt.duration)) {
				t.Errorf("count %d: SuspendedUntil = %v, want %v", tt.count, got.SuspendedUntil, testNow.Add(tt.duration))
			}
		}
		if msg := TierFor(got.FlagCount).Message; msg != tt.message {
			t.Errorf("count %d: message = %q, want %q", tt.count, msg, tt.message)
		}
	}
}

func TestApplyViolationNeverDecreases(t *testing.T) {
	state := models.ModerationState{}
	for i := 0; i < 12; i++ {
		next := ApplyViolation(state, testNow)
		if next.FlagCount != state.FlagCount+1 {
			t.Fatalf("step %d: FlagCount %d -> %d", i, state.FlagCount, next.FlagCount)
		}
		if state.Banned && !next.Banned {
			t.Fatalf("step %d: ban was lifted", i)
		}
		if next.Banned && next.SuspendedUntil != nil {
			t.Fatalf("step %d: banned state carries a suspension", i)
		}
		if (next.FlagCount >= BanThreshold) != next.Banned {
			t.Fatalf("step %d: FlagCount %d with Banned %v", i, next.FlagCount, next.Banned)
		}
		state = next
	}
}

func TestApplyViolationKeepsAdminBan(t *testing.T) {
	state := models.ModerationState{FlagCount: 1, Banned: true, BanSource: models.BanSourceAdmin}
	got := ApplyViolation(state, testNow)

	if !got.Banned || got.BanSource != models.BanSourceAdmin {
		t.Errorf("admin ban lost: %+v", got)
	}
	if got.SuspendedUntil != nil {
		t.Errorf("SuspendedUntil = %v, want nil", got.SuspendedUntil)
	}
	if got.FlagCount != 2 {
		t.Errorf("FlagCount = %d, want 2", got.FlagCount)
	}
}

func TestApplyViolationDoesNotMutateInput(t *testing.T) {
	until := testNow.Add(time.Minute)
	state := models.ModerationState{FlagCount: 2, SuspendedUntil: &until}
	_ = ApplyViolation(state, testNow)

	if state.FlagCount != 2 || !state.SuspendedUntil.Equal(testNow.Add(time.Minute)) {
		t.Errorf("input modified: %+v", state)
	}
}

func TestApplyViolationNegativeCount(t *testing.T) {
	got := ApplyViolation(models.ModerationState{FlagCount: -3}, testNow)
	if got.FlagCount != 1 {
		t.Errorf("FlagCount = %d, want 1", got.FlagCount)
	}
}

func TestEvaluateBlock(t *testing.T) {
	tests := []struct {
		name   string
		state  models.ModerationState
		reason BlockReason
	}{
		{"clean", models.ModerationState{}, NotBlocked},
		{"banned", models.ModerationState{Banned: true}, PermanentBan},
		{"banned with future suspension", models.ModerationState{Banned: true, SuspendedUntil: ptr(testNow.Add(time.Hour))}, PermanentBan},
		{"banned with past suspension", models.ModerationState{Banned: true, SuspendedUntil: ptr(testNow.Add(-time.Hour))}, PermanentBan},
		{"suspension expired", models.ModerationState{SuspendedUntil: ptr(testNow.Add(-time.Second))}, NotBlocked},
		{"suspension ends now", models.ModerationState{SuspendedUntil: ptr(testNow)}, NotBlocked},
		{"suspension active", models.ModerationState{SuspendedUntil: ptr(testNow.Add(time.Second))}, TemporarySuspension},
		{"flagged but free", models.ModerationState{FlagCount: 3}, NotBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := EvaluateBlock(tt.state, testNow)
			second := EvaluateBlock(tt.state, testNow)

			if first.Reason != tt.reason {
				t.Errorf("Reason = %v, want %v", first.Reason, tt.reason)
			}
			if first.Blocked != (tt.reason != NotBlocked) {
				t.Errorf("Blocked = %v for reason %v", first.Blocked, first.Reason)
			}
			if first.Reason != second.Reason || first.Blocked != second.Blocked {
				t.Errorf("results differ: %+v vs %+v", first, second)
			}
			if tt.reason == TemporarySuspension && (first.Until == nil || !first.Until.Equal(*tt.state.SuspendedUntil)) {
				t.Errorf("Until = %v, want %v", first.Until, tt.state.SuspendedUntil)
			}
		})
	}
}

func TestTierFor(t *testing.T) {
	if TierFor(0).Level != 1 {
		t.Errorf("TierFor(0).Level = %d, want 1", TierFor(0).Level)
	}
	if !TierFor(BanThreshold).Permanent() {
		t.Error("ban tier should be permanent")
	}
	if TierFor(4).Permanent() {
		t.Error("tier 4 should not be permanent")
	}
}

func TestBlockDescribe(t *testing.T) {
	b := Block{Blocked: true, Reason: TemporarySuspension, Until: ptr(testNow)}
	if got := b.Describe(); got != "You are currently suspended until Sat, 14 Mar 2026 12:00:00 UTC. Try again later." {
		t.Errorf("Describe() = %q", got)
	}
	if got := (Block{Reason: NotBlocked}).Describe(); got != "" {
		t.Errorf("Describe() = %q, want empty", got)
	}
	if PermanentBan.String() != "permanent_ban" || TemporarySuspension.String() != "temporary_suspension" {
		t.Error("unexpected reason strings")
	}
}
