package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/PancyStudios/PancyChatGo/pkg/logger"
)

// CommandHandler keeps the slash command definitions and pushes them to Discord
type CommandHandler struct {
	bot           *Bot
	slashCommands []*discordgo.ApplicationCommand
}

// NewCommandHandler creates a new CommandHandler
func NewCommandHandler(bot *Bot) *CommandHandler {
	return &CommandHandler{
		bot:           bot,
		slashCommands: make([]*discordgo.ApplicationCommand, 0),
	}
}

// RegisterCommand adds a top-level command
func (ch *CommandHandler) RegisterCommand(cmd *Command) {
	ch.bot.Commands.Set(cmd.Name, cmd)
	ch.slashCommands = append(ch.slashCommands, cmd.ToApplicationCommand())
	logger.Debug("Command registered: "+cmd.Name, "CommandHandler")
}

// RegisterCommandGroup adds a command made of subcommands, each routed as "name.sub"
func (ch *CommandHandler) RegisterCommandGroup(name, description string, subcommands ...*Command) *discordgo.ApplicationCommand {
	options := make([]*discordgo.ApplicationCommandOption, 0, len(subcommands))

	for _, cmd := range subcommands {
		ch.bot.Commands.Set(name+"."+cmd.Name, cmd)

		options = append(options, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        cmd.Name,
			Description: cmd.Description,
			Options:     cmd.Options,
		})
	}

	group := &discordgo.ApplicationCommand{
		Name:        name,
		Description: description,
		Options:     options,
	}
	ch.slashCommands = append(ch.slashCommands, group)
	logger.Debug(fmt.Sprintf("Command group registered: %s (%d subcommands)", name, len(subcommands)), "CommandHandler")
	return group
}

// Definitions returns the commands that RegisterCommands pushes
func (ch *CommandHandler) Definitions() []*discordgo.ApplicationCommand {
	return ch.slashCommands
}

// applicationID works before and after the gateway is open
func (ch *CommandHandler) applicationID() (string, error) {
	s := ch.bot.Session
	if s.State != nil && s.State.User != nil {
		return s.State.User.ID, nil
	}
	me, err := s.User("@me")
	if err != nil {
		return "", err
	}
	return me.ID, nil
}

// RegisterCommands replaces the commands in guildID (global when empty) with
// the current definitions. Stale commands are removed in the same call.
func (ch *CommandHandler) RegisterCommands(guildID string) error {
	appID, err := ch.applicationID()
	if err != nil {
		return err
	}

	logger.Info(fmt.Sprintf("🔄 Syncing %d command(s) %s...", len(ch.slashCommands), scope(guildID)), "CommandHandler")
	if _, err := ch.bot.Session.ApplicationCommandBulkOverwrite(appID, guildID, ch.slashCommands); err != nil {
		return err
	}
	logger.Success("✅ Commands synced.", "CommandHandler")
	return nil
}

// ListCommands returns the commands Discord currently has registered
func (ch *CommandHandler) ListCommands(guildID string) ([]*discordgo.ApplicationCommand, error) {
	appID, err := ch.applicationID()
	if err != nil {
		return nil, err
	}
	return ch.bot.Session.ApplicationCommands(appID, guildID)
}

// UnregisterCommands removes every command in guildID (global when empty)
func (ch *CommandHandler) UnregisterCommands(guildID string) error {
	appID, err := ch.applicationID()
	if err != nil {
		return err
	}

	if _, err := ch.bot.Session.ApplicationCommandBulkOverwrite(appID, guildID, []*discordgo.ApplicationCommand{}); err != nil {
		return err
	}
	logger.Success(fmt.Sprintf("Commands removed %s.", scope(guildID)), "CommandHandler")
	return nil
}

func scope(guildID string) string {
	if guildID == "" {
		return "globally"
	}
	return "in guild " + guildID
}
