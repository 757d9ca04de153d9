// Package main is the entry point for the PancyChat Go server.
// It initializes all systems and serves the HTTP API and websocket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PancyStudios/PancyChatGo/internal/commands"
	"github.com/PancyStudios/PancyChatGo/internal/events"
	"github.com/PancyStudios/PancyChatGo/internal/handlers"
	"github.com/PancyStudios/PancyChatGo/internal/moderation"
	"github.com/PancyStudios/PancyChatGo/pkg/auth"
	"github.com/PancyStudios/PancyChatGo/pkg/chat"
	"github.com/PancyStudios/PancyChatGo/pkg/classifier"
	"github.com/PancyStudios/PancyChatGo/pkg/config"
	"github.com/PancyStudios/PancyChatGo/pkg/database"
	"github.com/PancyStudios/PancyChatGo/pkg/discord"
	"github.com/PancyStudios/PancyChatGo/pkg/errors"
	"github.com/PancyStudios/PancyChatGo/pkg/logger"
	"github.com/PancyStudios/PancyChatGo/pkg/mqtt"
	"github.com/PancyStudios/PancyChatGo/pkg/realtime"
	"github.com/PancyStudios/PancyChatGo/pkg/web"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.Init(cfg.ErrorWebhook, cfg.LogsWebhook)
	defer log.Close()

	logger.System(fmt.Sprintf("Starting PancyChat Go %s (built %s)...", config.Version, config.BuildTime), "Main")

	if err := cfg.Validate(); err != nil {
		logger.Critical(err.Error(), "Main")
		os.Exit(1)
	}

	// Initialize error handler
	var (
		webServer *web.Server
		hub       *realtime.Hub
		bot       *discord.Bot
	)
	errors.Init(cfg.ErrorWebhook, func() {
		if bot != nil {
			_ = bot.Stop()
		}
		if hub != nil {
			hub.Close()
		}
		if webServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = webServer.Shutdown(ctx)
		}
	})

	// Initialize database. It keeps reconnecting in the background on failure.
	db, err := database.Init(cfg.MongoDBURL, cfg.DBName)
	if err != nil {
		logger.Error(fmt.Sprintf("Error connecting to database: %v", err), "Main")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := db.EnsureIndexes(ctx); err != nil {
			logger.Warn(fmt.Sprintf("Error creating indexes: %v", err), "Main")
		}
		cancel()
	}
	defer func() {
		if err := db.Disconnect(); err != nil {
			logger.Warn(fmt.Sprintf("Error disconnecting database: %v", err), "Main")
		}
	}()

	users := database.NewUserStore(db)
	messages := database.NewMessageStore(db)
	modStore := database.NewModerationStore(db)

	// Initialize MQTT
	mqttClientID := "pancychat"
	if !cfg.IsProd() {
		mqttClientID = "pancychat_canary"
	}
	mqttClient := mqtt.Init(cfg.MQTTHost, cfg.MQTTPort, cfg.MQTTUser, cfg.MQTTPassword, mqttClientID)
	defer mqttClient.Destroy()

	// Presence and websocket hub
	var presence realtime.Presence = realtime.NewMemoryPresence()
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rp, err := realtime.NewRedisPresence(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.Warn(fmt.Sprintf("Redis unavailable, presence stays in memory: %v", err), "Main")
		} else {
			presence = rp
			defer rp.Close()
			logger.Success("Presence shared through Redis", "Main")
		}
	}

	var origins []string
	if cfg.ClientOrigin != "" {
		origins = []string{cfg.ClientOrigin}
	}
	hub = realtime.NewHub(presence, origins).WithPublisher(mqttClient)
	defer hub.Close()

	// Moderation
	sinks := events.Fanout{events.NewMQTTSink(mqttClient)}
	if cfg.ModerationWebhook != "" {
		notifier, err := discord.NewNotifier(cfg.ModerationWebhook)
		if err != nil {
			logger.Warn(fmt.Sprintf("Moderation webhook disabled: %v", err), "Main")
		} else {
			sinks = append(sinks, notifier)
		}
	}

	sessions := chat.NewSessions(users, hub)
	gate := moderation.NewGate(
		modStore,
		classifier.NewClient(cfg.ClassifierURL, cfg.ClassifierTimeout),
		sessions,
		chat.NewDelivery(messages, hub),
	).WithEventSink(sinks)
	admin := moderation.NewAdmin(modStore, sessions).WithEventSink(sinks)

	// Operator requests over MQTT
	events.RegisterAll(mqttClient, admin)

	status := web.StatusSources{Database: db, Bus: mqttClient, Presence: hub}

	// Operator bot
	if cfg.BotToken != "" {
		bot, err = discord.NewBot(cfg.BotToken, cfg.OperatorGuildID, discord.OperatorAccess(cfg.IsOperator))
		if err != nil {
			logger.Error(fmt.Sprintf("Error creating operator bot: %v", err), "Main")
		} else {
			commands.RegisterModerationCommands(bot, commands.NewService(admin, modStore, users))
			if err := bot.Start(); err != nil {
				logger.Error(fmt.Sprintf("Error starting operator bot: %v", err), "Main")
			}
			status.Bot = bot
		}
	}

	// Initialize web server
	tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL, cfg.IsProd())
	webServer = web.Init(web.Options{AllowedOrigins: origins, Debug: !cfg.IsProd()})
	web.SetupAPIRoutes(webServer, status)
	handlers.New(handlers.Deps{
		Auth:          tokens,
		Users:         users,
		Conversations: messages,
		Gate:          gate,
		Admin:         admin,
		Audit:         modStore,
		Sockets:       hub,
		IsAdmin:       cfg.IsAdmin,
	}).RegisterAll(webServer)
	webServer.StartAsync(cfg.Port)

	logger.Success("PancyChat Go started!", "Main")

	// Wait for interrupt signal
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	logger.System("Shutting down PancyChat Go...", "Main")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := webServer.Shutdown(ctx); err != nil {
		logger.Warn(fmt.Sprintf("Error stopping web server: %v", err), "Main")
	}
	if bot != nil {
		if err := bot.Stop(); err != nil {
			logger.Warn(fmt.Sprintf("Error stopping operator bot: %v", err), "Main")
		}
	}
	errors.Get().Stop()
}
