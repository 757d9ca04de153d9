package discord

import (
	"testing"
	"time"

	"github.com/PancyStudios/PancyChatGo/pkg/models"
)

func TestParseWebhookURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		id      string
		token   string
		wantErr bool
	}{
		{"discord.com", "https://discord.com/api/webhooks/123/abc-DEF", "123", "abc-DEF", false},
		{"versioned", "https://discord.com/api/v10/webhooks/9/tok", "9", "tok", false},
		{"missing token", "https://discord.com/api/webhooks/123", "", "", true},
		{"not a url", "::", "", "", true},
		{"no host", "/api/webhooks/1/2", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, token, err := ParseWebhookURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseWebhookURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if id != tt.id || token != tt.token {
				t.Errorf("ParseWebhookURL() = %q, %q; want %q, %q", id, token, tt.id, tt.token)
			}
		})
	}
}

func TestNewNotifierRejectsBadURL(t *testing.T) {
	if _, err := NewNotifier("https://example.com/hook"); err != ErrInvalidWebhookURL {
		t.Errorf("NewNotifier() error = %v, want ErrInvalidWebhookURL", err)
	}
}

func TestBuildEmbed(t *testing.T) {
	until := time.Date(2026, 3, 14, 12, 5, 0, 0, time.UTC)
	event := models.ModerationEvent{
		UserID:    "u1",
		Kind:      models.EventViolation,
		Actor:     models.ActorSystem,
		Reason:    "harmful content",
		Previous:  models.ModerationState{},
		Current:   models.ModerationState{FlagCount: 1, SuspendedUntil: &until},
		CreatedAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}

	embed := BuildEmbed(event)

	if embed.Title != "Moderation: violation" {
		t.Errorf("Title = %q", embed.Title)
	}
	if embed.Color != colorViolation {
		t.Errorf("Color = %x", embed.Color)
	}
	if embed.Description != "harmful content" {
		t.Errorf("Description = %q", embed.Description)
	}
	if embed.Timestamp != "2026-03-14T12:00:00Z" {
		t.Errorf("Timestamp = %q", embed.Timestamp)
	}
	if got := embed.Fields[2].Value; got != "0 -> 1" {
		t.Errorf("Flags = %q", got)
	}
	if got := embed.Fields[3].Value; got != "suspended until Sat, 14 Mar 2026 12:05:00 UTC" {
		t.Errorf("State = %q", got)
	}
}

func TestDescribeState(t *testing.T) {
	if got := DescribeState(models.ModerationState{Banned: true, BanSource: models.BanSourceAdmin}); got != "banned (admin)" {
		t.Errorf("DescribeState() = %q", got)
	}
	if got := DescribeState(models.ModerationState{}); got != "active" {
		t.Errorf("DescribeState() = %q", got)
	}
	if embedColor(models.EventUnban) != colorLift || embedColor(models.EventBan) != colorBan {
		t.Error("unexpected colors")
	}
}
