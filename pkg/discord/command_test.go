package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func newTestBot(t *testing.T, authorize Authorizer) *Bot {
	t.Helper()
	bot, err := NewBot("test-token", "guild", authorize)
	if err != nil {
		t.Fatalf("NewBot() error = %v", err)
	}
	return bot
}

// TestCommandCreation verifies that commands can be created with the builder pattern
func TestCommandCreation(t *testing.T) {
	handler := func(ctx *CommandContext) error {
		return nil
	}

	option := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "user",
		Description: "Chat user id or email",
		Required:    true,
	}

	cmd := NewCommand("ban", "Ban a chat user", handler).WithOptions(option)

	if cmd.Name != "ban" || cmd.Description != "Ban a chat user" {
		t.Errorf("NewCommand() = %q, %q", cmd.Name, cmd.Description)
	}
	if cmd.Run == nil {
		t.Error("Run function is nil")
	}

	appCmd := cmd.ToApplicationCommand()
	if appCmd.Name != "ban" || len(appCmd.Options) != 1 || appCmd.Options[0].Name != "user" {
		t.Errorf("ToApplicationCommand() = %+v", appCmd)
	}
}

func TestCommandName(t *testing.T) {
	tests := []struct {
		name string
		data discordgo.ApplicationCommandInteractionData
		want string
	}{
		{"top level", discordgo.ApplicationCommandInteractionData{Name: "ping"}, "ping"},
		{
			"subcommand",
			discordgo.ApplicationCommandInteractionData{
				Name: "chat",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{Name: "ban", Type: discordgo.ApplicationCommandOptionSubCommand},
				},
			},
			"chat.ban",
		},
		{
			"subcommand group",
			discordgo.ApplicationCommandInteractionData{
				Name: "chat",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{
						Name: "audit",
						Type: discordgo.ApplicationCommandOptionSubCommandGroup,
						Options: []*discordgo.ApplicationCommandInteractionDataOption{
							{Name: "list", Type: discordgo.ApplicationCommandOptionSubCommand},
						},
					},
				},
			},
			"chat.audit.list",
		},
		{
			"plain option",
			discordgo.ApplicationCommandInteractionData{
				Name: "status",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{Name: "user", Type: discordgo.ApplicationCommandOptionString, Value: "u1"},
				},
			},
			"status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CommandName(tt.data); got != tt.want {
				t.Errorf("CommandName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegisterCommandGroup(t *testing.T) {
	bot := newTestBot(t, nil)
	run := func(*CommandContext) error { return nil }

	group := bot.CommandHandler.RegisterCommandGroup("chat", "Moderate chat users",
		NewCommand("ban", "Ban", run),
		NewCommand("reset", "Reset", run),
	)

	if len(group.Options) != 2 || group.Options[0].Type != discordgo.ApplicationCommandOptionSubCommand {
		t.Fatalf("group options = %+v", group.Options)
	}
	if _, ok := bot.Commands.Get("chat.ban"); !ok {
		t.Error("chat.ban not routed")
	}
	if bot.Commands.Size() != 2 {
		t.Errorf("Commands.Size() = %d, want 2", bot.Commands.Size())
	}
	if defs := bot.CommandHandler.Definitions(); len(defs) != 1 || defs[0].Name != "chat" {
		t.Errorf("Definitions() = %+v", defs)
	}
}

func TestFindOptionNested(t *testing.T) {
	opts := []*discordgo.ApplicationCommandInteractionDataOption{
		{
			Name: "suspend",
			Type: discordgo.ApplicationCommandOptionSubCommand,
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: "minutes", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(30)},
			},
		},
	}

	opt := findOption(opts, "minutes")
	if opt == nil || opt.IntValue() != 30 {
		t.Errorf("findOption() = %+v", opt)
	}
	if findOption(opts, "reason") != nil {
		t.Error("findOption() found a missing option")
	}
}

func TestOperatorAccess(t *testing.T) {
	allow := OperatorAccess(func(id string) bool { return id == "42" })

	tests := []struct {
		name   string
		user   *discordgo.User
		member *discordgo.Member
		want   bool
	}{
		{"listed operator", &discordgo.User{ID: "42"}, nil, true},
		{"moderator member", &discordgo.User{ID: "7"}, &discordgo.Member{Permissions: discordgo.PermissionModerateMembers}, true},
		{"plain member", &discordgo.User{ID: "7"}, &discordgo.Member{Permissions: discordgo.PermissionSendMessages}, false},
		{"unknown dm user", &discordgo.User{ID: "7"}, nil, false},
		{"nobody", nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := allow(tt.user, tt.member); got != tt.want {
				t.Errorf("OperatorAccess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNilAuthorizerDeniesEveryone(t *testing.T) {
	bot := newTestBot(t, nil)
	if bot.authorize(&discordgo.User{ID: "42"}, &discordgo.Member{Permissions: discordgo.PermissionAdministrator}) {
		t.Error("nil authorizer should deny")
	}

	var missing *Bot
	if missing.IsReady() {
		t.Error("nil bot should not be ready")
	}
}
