// Package main provides an operator utility to moderate users over MQTT.
// It sends a request to the running server and prints the resulting state.
//
// Usage:
//
//	go run ./cmd/modctl -action <ban|unban|suspend|reset> -user <id> [options]
//	go run ./cmd/modctl -watch
//
// Options:
//
//	-minutes <n>    Suspension length, required for suspend
//	-reason <text>  Recorded in the audit trail
//	-actor <name>   Operator name recorded as the actor (default: $USER)
//	-timeout <d>    How long to wait for the server (default 10s)
//	-watch          Print moderation events as the server publishes them
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"github.com/PancyStudios/PancyChatGo/internal/events"
	"github.com/PancyStudios/PancyChatGo/pkg/config"
	"github.com/PancyStudios/PancyChatGo/pkg/discord"
	"github.com/PancyStudios/PancyChatGo/pkg/logger"
	"github.com/PancyStudios/PancyChatGo/pkg/models"
	"github.com/PancyStudios/PancyChatGo/pkg/mqtt"
)

var actionTopics = map[string]string{
	"ban":     events.TopicBan,
	"unban":   events.TopicUnban,
	"suspend": events.TopicSuspend,
	"reset":   events.TopicReset,
}

func main() {
	action := flag.String("action", "", "ban, unban, suspend or reset")
	userID := flag.String("user", "", "Target user id")
	minutes := flag.Int("minutes", 0, "Suspension length in minutes (suspend only)")
	reason := flag.String("reason", "", "Reason recorded in the audit trail")
	actor := flag.String("actor", os.Getenv("USER"), "Operator name recorded as the actor")
	timeout := flag.Duration("timeout", 10*time.Second, "How long to wait for the server")
	watch := flag.Bool("watch", false, "Print moderation events until interrupted")
	flag.Parse()

	var (
		payload map[string]interface{}
		topic   string
		err     error
	)
	if !*watch {
		payload, topic, err = buildRequest(*action, *userID, *minutes, *reason, *actor)
		if err != nil {
			fmt.Fprintf(os.Stderr, "modctl: %v\n", err)
			flag.Usage()
			os.Exit(2)
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(cfg.ErrorWebhook, "")
	defer log.Close()

	client := mqtt.NewMqttCommunicator(cfg.MQTTHost, cfg.MQTTPort, cfg.MQTTUser, cfg.MQTTPassword, "pancychat_modctl")
	defer client.Destroy()

	if !client.IsConnected() {
		logger.Critical("Could not reach the MQTT broker", "ModCtl")
		os.Exit(1)
	}

	if *watch {
		watchEvents(client)
		return
	}

	logger.System(fmt.Sprintf("Sending %s for %s...", *action, payload["userId"]), "ModCtl")

	data, err := client.Request(topic, payload, *timeout)
	if err != nil {
		logger.Error(fmt.Sprintf("Request failed: %v", err), "ModCtl")
		os.Exit(1)
	}

	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		logger.Error(fmt.Sprintf("Unreadable response: %v", err), "ModCtl")
		os.Exit(1)
	}
	fmt.Println(string(out))
}

// buildRequest validates the flags and returns the request payload and topic
func buildRequest(action, userID string, minutes int, reason, actor string) (map[string]interface{}, string, error) {
	action = strings.ToLower(strings.TrimSpace(action))
	topic, ok := actionTopics[action]
	if !ok {
		return nil, "", fmt.Errorf("unknown action %q", action)
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, "", fmt.Errorf("-user is required")
	}

	payload := map[string]interface{}{"userId": userID}
	if actor = strings.TrimSpace(actor); actor != "" {
		payload["actor"] = actor
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		payload["reason"] = reason
	}

	if action == "suspend" {
		if minutes <= 0 {
			return nil, "", fmt.Errorf("-minutes must be positive for suspend")
		}
		payload["minutes"] = minutes
	}
	return payload, topic, nil
}

// watchEvents prints every moderation event until SIGINT or SIGTERM
func watchEvents(client *mqtt.MqttCommunicator) {
	topic := mqtt.TopicModeration + "/#"
	err := client.Subscribe(topic, func(t string, payload []byte) {
		fmt.Println(formatEvent(t, payload))
	})
	if err != nil {
		logger.Error(fmt.Sprintf("Could not subscribe to %s: %v", topic, err), "ModCtl")
		os.Exit(1)
	}
	defer client.Unsubscribe(topic)

	logger.System("Watching moderation events, Ctrl+C to stop", "ModCtl")

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc
}

// formatEvent renders one published event as a single line
func formatEvent(topic string, payload []byte) string {
	var event models.ModerationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Sprintf("%s %s", topic, payload)
	}

	line := fmt.Sprintf("%s %-9s user=%s actor=%s flags=%d->%d %s",
		event.CreatedAt.UTC().Format(time.RFC3339),
		event.Kind,
		event.UserID,
		event.Actor,
		event.Previous.FlagCount,
		event.Current.FlagCount,
		discord.DescribeState(event.Current),
	)
	if event.Reason != "" {
		line += fmt.Sprintf(" reason=%q", event.Reason)
	}
	return line
}
