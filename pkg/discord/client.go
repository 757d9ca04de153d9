// Package discord connects PancyChat moderation to Discord. It provides the
// webhook notifier for moderation events and an optional operator bot that
// serves moderation slash commands.
package discord

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/PancyStudios/PancyChatGo/pkg/errors"
	"github.com/PancyStudios/PancyChatGo/pkg/logger"
)

// discordgo.Logger is a function, not an interface
func init() {
	discordgo.Logger = func(msgL int, caller int, format string, a ...interface{}) {
		logger.Info(fmt.Sprintf(format, a...), "DiscordGo")
	}
}

// Bot wraps discordgo.Session with the operator command framework
type Bot struct {
	Session        *discordgo.Session
	Commands       *CommandCollection
	CommandHandler *CommandHandler
	StartTime      time.Time

	guildID   string
	authorize Authorizer
	mu        sync.RWMutex
	isReady   bool
}

// CommandCollection holds registered commands keyed by full name ("chat.ban")
type CommandCollection struct {
	commands map[string]*Command
	mu       sync.RWMutex
}

// NewCommandCollection creates a new CommandCollection
func NewCommandCollection() *CommandCollection {
	return &CommandCollection{
		commands: make(map[string]*Command),
	}
}

// Set adds or updates a command
func (cc *CommandCollection) Set(name string, cmd *Command) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.commands[name] = cmd
}

// Get retrieves a command by name
func (cc *CommandCollection) Get(name string) (*Command, bool) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	cmd, ok := cc.commands[name]
	return cmd, ok
}

// Size returns the number of commands
func (cc *CommandCollection) Size() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.commands)
}

// NewBot creates a bot whose commands live in guildID (global when empty).
// A nil authorize lets nobody run commands.
func NewBot(token, guildID string, authorize Authorizer) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds
	session.SyncEvents = false
	session.StateEnabled = true
	session.LogLevel = discordgo.LogWarning

	if authorize == nil {
		authorize = func(*discordgo.User, *discordgo.Member) bool { return false }
	}

	b := &Bot{
		Session:   session,
		Commands:  NewCommandCollection(),
		guildID:   guildID,
		authorize: authorize,
	}
	b.CommandHandler = NewCommandHandler(b)
	return b, nil
}

// Start opens the gateway. Commands are pushed to Discord once ready.
func (b *Bot) Start() error {
	b.Session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.mu.Lock()
		b.isReady = true
		b.mu.Unlock()

		logger.Success("Operator bot connected as: "+r.User.Username, "Client")

		if err := b.CommandHandler.RegisterCommands(b.guildID); err != nil {
			logger.Error("Failed to register commands: "+err.Error(), "Client")
		}
	})

	b.Session.AddHandler(b.handleInteraction)

	b.StartTime = time.Now()
	return b.Session.Open()
}

// handleInteraction routes slash commands to their handlers
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	commandName := CommandName(i.ApplicationCommandData())
	cmd, ok := b.Commands.Get(commandName)
	if !ok {
		logger.Warn("Command not found: "+commandName, "Client")
		return
	}

	ctx := &CommandContext{
		Session:     s,
		Interaction: i,
		Bot:         b,
	}

	if err := b.checkAccess(ctx); err != nil {
		return
	}

	defer errors.RecoverMiddleware()()
	if err := cmd.Run(ctx); err != nil {
		logger.Error("Error executing command "+commandName+": "+err.Error(), "Client")
	}
}

// Stop closes the session
func (b *Bot) Stop() error {
	b.mu.Lock()
	b.isReady = false
	b.mu.Unlock()

	if b.Session != nil {
		return b.Session.Close()
	}
	return nil
}

// IsReady returns true once the gateway is ready. It is nil-safe.
func (b *Bot) IsReady() bool {
	if b == nil {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.isReady
}
