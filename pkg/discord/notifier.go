package discord

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/PancyStudios/PancyChatGo/pkg/logger"
	"github.com/PancyStudios/PancyChatGo/pkg/models"
)

var ErrInvalidWebhookURL = errors.New("invalid discord webhook url")

// Embed colors per event kind
const (
	colorBan       = 0xFF0000
	colorViolation = 0xFFA500
	colorSuspend   = 0xFFFF00
	colorLift      = 0x00FF00
)

// Notifier sends one embed per moderation event
type Notifier struct {
	session   *discordgo.Session
	webhookID string
	token     string
	timeout   time.Duration
}

// NewNotifier creates a Notifier for a webhook URL of the form
// https://discord.com/api/webhooks/{id}/{token}
func NewNotifier(webhookURL string) (*Notifier, error) {
	id, token, err := ParseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}

	// webhooks need no bot token
	session, err := discordgo.New("")
	if err != nil {
		return nil, err
	}
	session.LogLevel = discordgo.LogWarning

	return &Notifier{
		session:   session,
		webhookID: id,
		token:     token,
		timeout:   10 * time.Second,
	}, nil
}

// ParseWebhookURL extracts the webhook id and token
func ParseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", "", ErrInvalidWebhookURL
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", ErrInvalidWebhookURL
}

// Publish sends the alert in the background. Failures are logged only.
func (n *Notifier) Publish(_ context.Context, event models.ModerationEvent) {
	params := &discordgo.WebhookParams{
		Username: "PancyChat Moderation",
		Embeds:   []*discordgo.MessageEmbed{BuildEmbed(event)},
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		if _, err := n.session.WebhookExecute(n.webhookID, n.token, false, params, discordgo.WithContext(ctx)); err != nil {
			logger.Error(fmt.Sprintf("Could not post moderation alert: %v", err), "Discord")
		}
	}()
}

// BuildEmbed renders a moderation event as a Discord embed
func BuildEmbed(event models.ModerationEvent) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("Moderation: %s", event.Kind),
		Color:     embedColor(event.Kind),
		Timestamp: event.CreatedAt.UTC().Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: "PancyChat Go"},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: event.UserID, Inline: true},
			{Name: "Actor", Value: event.Actor, Inline: true},
			{Name: "Flags", Value: fmt.Sprintf("%d -> %d", event.Previous.FlagCount, event.Current.FlagCount), Inline: true},
			{Name: "State", Value: DescribeState(event.Current)},
		},
	}
	if event.Reason != "" {
		embed.Description = event.Reason
	}
	return embed
}

func embedColor(kind models.ModerationEventKind) int {
	switch kind {
	case models.EventBan:
		return colorBan
	case models.EventViolation:
		return colorViolation
	case models.EventSuspend:
		return colorSuspend
	default:
		return colorLift
	}
}

// DescribeState summarizes a moderation state in one line
func DescribeState(s models.ModerationState) string {
	switch {
	case s.Banned:
		return fmt.Sprintf("banned (%s)", s.BanSource)
	case s.SuspendedUntil != nil:
		return "suspended until " + s.SuspendedUntil.UTC().Format(time.RFC1123)
	default:
		return "active"
	}
}
