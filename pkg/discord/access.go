package discord

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/PancyStudios/PancyChatGo/pkg/logger"
)

var errAccessDenied = errors.New("operator access denied")

// Authorizer decides whether an interaction's author may run commands
type Authorizer func(user *discordgo.User, member *discordgo.Member) bool

// OperatorAccess allows listed users, and guild members allowed to time out members
func OperatorAccess(isOperator func(discordUserID string) bool) Authorizer {
	return func(user *discordgo.User, member *discordgo.Member) bool {
		if user != nil && isOperator != nil && isOperator(user.ID) {
			return true
		}
		return member != nil && member.Permissions&discordgo.PermissionModerateMembers != 0
	}
}

// checkAccess replies with a denial and returns an error when the author is not an operator
func (b *Bot) checkAccess(ctx *CommandContext) error {
	if b.authorize(ctx.User(), ctx.Member()) {
		return nil
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🚫 Access denied",
		Description: "Only PancyChat operators can use moderation commands.",
		Color:       colorBan,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	if err := ctx.ReplyEphemeralEmbed(embed); err != nil {
		logger.Debug("Could not send access denial: "+err.Error(), "Access")
	}

	userID := "unknown"
	if u := ctx.User(); u != nil {
		userID = u.ID
	}
	logger.Warn(fmt.Sprintf("Non-operator %s tried to run a moderation command", userID), "Access")
	return errAccessDenied
}
