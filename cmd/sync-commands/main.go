// Package main syncs the operator bot's slash commands with Discord over REST,
// without opening a gateway connection.
//
// Usage:
//
//	go run ./cmd/sync-commands [options]
//
// Options:
//
//	-list           List the commands Discord has registered
//	-clean          Remove all commands without registering new ones
//	-guild <id>     Target a guild instead of OPERATOR_GUILD_ID (use -global for global)
//	-global         Target global commands
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/PancyStudios/PancyChatGo/internal/commands"
	"github.com/PancyStudios/PancyChatGo/pkg/config"
	"github.com/PancyStudios/PancyChatGo/pkg/discord"
	"github.com/PancyStudios/PancyChatGo/pkg/logger"
)

func main() {
	listCmd := flag.Bool("list", false, "List registered commands")
	cleanCmd := flag.Bool("clean", false, "Remove all commands without registering new ones")
	guildFlag := flag.String("guild", "", "Target guild (defaults to OPERATOR_GUILD_ID)")
	global := flag.Bool("global", false, "Target global commands")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(cfg.ErrorWebhook, cfg.LogsWebhook)
	defer log.Close()

	if cfg.BotToken == "" {
		logger.Critical("BOT_TOKEN is not set", "SyncCommands")
		os.Exit(1)
	}

	guildID := cfg.OperatorGuildID
	if *guildFlag != "" {
		guildID = *guildFlag
	}
	if *global {
		guildID = ""
	}

	bot, err := discord.NewBot(cfg.BotToken, guildID, nil)
	if err != nil {
		logger.Critical(fmt.Sprintf("Error creating Discord session: %v", err), "SyncCommands")
		os.Exit(1)
	}

	// Handlers never run here, only the definitions are needed
	commands.RegisterModerationCommands(bot, commands.NewService(nil, nil, nil))

	switch {
	case *listCmd:
		err = listCommands(bot, guildID)
	case *cleanCmd:
		err = bot.CommandHandler.UnregisterCommands(guildID)
	default:
		err = bot.CommandHandler.RegisterCommands(guildID)
	}
	if err != nil {
		logger.Error(fmt.Sprintf("Command sync failed: %v", err), "SyncCommands")
		os.Exit(1)
	}
}

func listCommands(bot *discord.Bot, guildID string) error {
	cmds, err := bot.CommandHandler.ListCommands(guildID)
	if err != nil {
		return err
	}

	if len(cmds) == 0 {
		logger.Info("No commands registered", "SyncCommands")
		return nil
	}

	logger.Info(fmt.Sprintf("Commands found: %d", len(cmds)), "SyncCommands")
	for i, cmd := range cmds {
		logger.Info(fmt.Sprintf("  %d. /%s - %s (ID: %s)", i+1, cmd.Name, cmd.Description, cmd.ID), "SyncCommands")
		for _, sub := range cmd.Options {
			logger.Info(fmt.Sprintf("       %s - %s", sub.Name, sub.Description), "SyncCommands")
		}
	}
	return nil
}
