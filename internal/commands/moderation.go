// Package commands holds the operator slash commands served by the Discord bot.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/PancyStudios/PancyChatGo/internal/moderation"
	"github.com/PancyStudios/PancyChatGo/pkg/database"
	"github.com/PancyStudios/PancyChatGo/pkg/discord"
	"github.com/PancyStudios/PancyChatGo/pkg/logger"
	"github.com/PancyStudios/PancyChatGo/pkg/models"
)

const (
	commandTimeout = 10 * time.Second
	historyLimit   = 10
	maxMinutes     = int64(moderation.MaxManualSuspension / time.Minute)
)

const (
	colorOK    = 0x00FF00
	colorError = 0xFF0000
	colorInfo  = 0x5865F2
)

// Action names a moderation subcommand
type Action string

const (
	ActionBan     Action = "ban"
	ActionUnban   Action = "unban"
	ActionSuspend Action = "suspend"
	ActionReset   Action = "reset"
)

// Moderator applies administrative actions
type Moderator interface {
	Ban(ctx context.Context, act moderation.Action) (models.ModerationState, error)
	Unban(ctx context.Context, act moderation.Action) (models.ModerationState, error)
	Suspend(ctx context.Context, act moderation.Action) (models.ModerationState, error)
	Reset(ctx context.Context, act moderation.Action) (models.ModerationState, error)
}

// AuditLog lists a user's moderation events
type AuditLog interface {
	Events(ctx context.Context, userID string, limit int64) ([]models.ModerationEvent, error)
}

// UserLookup resolves the target of a command
type UserLookup interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Service runs operator commands against the chat's moderation state
type Service struct {
	admin Moderator
	audit AuditLog
	users UserLookup
}

func NewService(admin Moderator, audit AuditLog, users UserLookup) *Service {
	return &Service{admin: admin, audit: audit, users: users}
}

// resolveUser accepts a chat user id or an account email
func (s *Service) resolveUser(ctx context.Context, ref string) (*models.User, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, database.ErrUserNotFound
	}
	if strings.Contains(ref, "@") {
		return s.users.FindByEmail(ctx, ref)
	}
	return s.users.FindByID(ctx, ref)
}

// Apply runs one administrative action and renders the outcome
func (s *Service) Apply(ctx context.Context, action Action, ref, actor, reason string, minutes int64) *discordgo.MessageEmbed {
	user, err := s.resolveUser(ctx, ref)
	if err != nil {
		return s.failure(ref, err)
	}

	act := moderation.Action{UserID: user.ID, Actor: actor, Reason: strings.TrimSpace(reason)}

	var state models.ModerationState
	switch action {
	case ActionBan:
		state, err = s.admin.Ban(ctx, act)
	case ActionUnban:
		state, err = s.admin.Unban(ctx, act)
	case ActionSuspend:
		act.Duration = time.Duration(minutes) * time.Minute
		state, err = s.admin.Suspend(ctx, act)
	case ActionReset:
		state, err = s.admin.Reset(ctx, act)
	default:
		err = fmt.Errorf("unknown action %q", action)
	}
	if err != nil {
		return s.failure(ref, err)
	}

	logger.Info(fmt.Sprintf("%s applied %s to %s", actor, action, user.ID), "Commands")
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("✅ %s applied", action),
		Description: fmt.Sprintf("**%s** (%s)", user.FullName, user.ID),
		Color:       colorOK,
		Fields:      stateFields(state),
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

// Status shows a user's current moderation state
func (s *Service) Status(ctx context.Context, ref string) *discordgo.MessageEmbed {
	user, err := s.resolveUser(ctx, ref)
	if err != nil {
		return s.failure(ref, err)
	}

	return &discordgo.MessageEmbed{
		Title:       "📋 Moderation status",
		Description: fmt.Sprintf("**%s** (%s)", user.FullName, user.ID),
		Color:       colorInfo,
		Fields:      stateFields(user.ModerationState),
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

// History lists a user's most recent moderation events
func (s *Service) History(ctx context.Context, ref string) *discordgo.MessageEmbed {
	user, err := s.resolveUser(ctx, ref)
	if err != nil {
		return s.failure(ref, err)
	}

	events, err := s.audit.Events(ctx, user.ID, historyLimit)
	if err != nil {
		return s.failure(ref, err)
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🗂️ Moderation history",
		Description: fmt.Sprintf("**%s** (%s)", user.FullName, user.ID),
		Color:       colorInfo,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	if len(events) == 0 {
		embed.Description += "\nNo moderation events."
		return embed
	}

	for _, e := range events {
		value := fmt.Sprintf("by %s: %s", e.Actor, discord.DescribeState(e.Current))
		if e.Reason != "" {
			value += "\n" + e.Reason
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("%s · %s", e.Kind, e.CreatedAt.UTC().Format("2006-01-02 15:04")),
			Value: value,
		})
	}
	return embed
}

func (s *Service) failure(ref string, err error) *discordgo.MessageEmbed {
	var msg string
	switch {
	case errors.Is(err, database.ErrUserNotFound):
		msg = fmt.Sprintf("No chat user matches `%s`.", ref)
	case errors.Is(err, moderation.ErrInvalidDuration):
		msg = "Minutes must be a positive number."
	case errors.Is(err, moderation.ErrAlreadyBanned):
		msg = "The user is permanently banned. Unban them first."
	default:
		logger.Error(fmt.Sprintf("Operator command on %s failed: %v", ref, err), "Commands")
		msg = "The command failed. Check the server logs."
	}

	return &discordgo.MessageEmbed{
		Title:       "❌ Error",
		Description: msg,
		Color:       colorError,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

func stateFields(s models.ModerationState) []*discordgo.MessageEmbedField {
	return []*discordgo.MessageEmbedField{
		{Name: "Flags", Value: fmt.Sprintf("%d", s.FlagCount), Inline: true},
		{Name: "State", Value: discord.DescribeState(s), Inline: true},
	}
}

// operatorActor records the Discord operator in the audit trail
func operatorActor(ctx *discord.CommandContext) string {
	if u := ctx.User(); u != nil {
		return "discord:" + u.ID
	}
	return "discord"
}

func userOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "user",
		Description: "Chat user id or email",
		Required:    true,
	}
}

func reasonOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "reason",
		Description: "Reason recorded in the audit trail",
	}
}

// RegisterModerationCommands adds the /chat command group to the bot
func RegisterModerationCommands(bot *discord.Bot, svc *Service) {
	minMinutes := 1.0

	bot.CommandHandler.RegisterCommandGroup("chat", "PancyChat moderation",
		discord.NewCommand("ban", "Permanently ban a chat user", svc.actionHandler(ActionBan)).
			WithOptions(userOption(), reasonOption()),
		discord.NewCommand("unban", "Lift a chat user's ban", svc.actionHandler(ActionUnban)).
			WithOptions(userOption(), reasonOption()),
		discord.NewCommand("suspend", "Suspend a chat user for a number of minutes", svc.actionHandler(ActionSuspend)).
			WithOptions(
				userOption(),
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "minutes",
					Description: "Suspension length in minutes",
					Required:    true,
					MinValue:    &minMinutes,
					MaxValue:    float64(maxMinutes),
				},
				reasonOption(),
			),
		discord.NewCommand("reset", "Clear a chat user's flags, ban and suspension", svc.actionHandler(ActionReset)).
			WithOptions(userOption(), reasonOption()),
		discord.NewCommand("history", "Show a chat user's moderation history", svc.historyHandler).
			WithOptions(userOption()),
		discord.NewCommand("status", "Show a chat user's moderation state", svc.statusHandler).
			WithOptions(userOption()),
	)
}

func (s *Service) actionHandler(action Action) discord.CommandRunFunc {
	return func(ctx *discord.CommandContext) error {
		c, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		embed := s.Apply(c, action,
			ctx.GetStringOption("user"),
			operatorActor(ctx),
			ctx.GetStringOption("reason"),
			ctx.GetIntOption("minutes"),
		)
		return ctx.ReplyEphemeralEmbed(embed)
	}
}

func (s *Service) historyHandler(ctx *discord.CommandContext) error {
	c, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return ctx.ReplyEphemeralEmbed(s.History(c, ctx.GetStringOption("user")))
}

func (s *Service) statusHandler(ctx *discord.CommandContext) error {
	c, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return ctx.ReplyEphemeralEmbed(s.Status(c, ctx.GetStringOption("user")))
}
