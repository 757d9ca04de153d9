// Package config provides configuration management for the chat server.
// It loads environment variables and makes them available throughout the application.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the server
type Config struct {
	// MongoDB
	MongoDBURL string
	DBName     string

	// Redis (optional, shared presence)
	RedisURL string

	// MQTT
	MQTTHost     string
	MQTTPort     string
	MQTTUser     string
	MQTTPassword string

	// Web Server
	Port         string
	ClientOrigin string

	// Auth
	JWTSecret   string
	JWTTTL      time.Duration
	AdminEmails []string

	// Content classifier
	ClassifierURL     string
	ClassifierTimeout time.Duration

	// Environment
	Environment string

	// Webhooks
	ErrorWebhook      string
	LogsWebhook       string
	ModerationWebhook string

	// Discord operator bot (optional)
	BotToken         string
	OperatorGuildID  string
	DiscordOperators []string
}

const defaultJWTSecret = "change-me"

// ErrInsecureSecret is returned by Validate when production runs on the default JWT secret
var ErrInsecureSecret = errors.New("JWT_SECRET must be set in production")

var (
	Version   = "Dev-Local"
	BuildTime = "Today"
)

var (
	cfg     *Config
	cfgOnce sync.Once
)

// resetForTesting resets the configuration for testing purposes.
// This function should only be called from test code.
func resetForTesting() {
	cfg = nil
	cfgOnce = sync.Once{}
}

func loadConfig() {
	// .env is optional
	_ = godotenv.Load()

	cfg = &Config{
		MongoDBURL: getEnv("mongodbUrl", "mongodb://localhost:27017"),
		DBName:     getEnv("dbName", "PancyChat"),

		RedisURL: getEnv("REDIS_URL", ""),

		MQTTHost:     getEnv("MQTT_Host", "localhost"),
		MQTTPort:     getEnv("MQTT_Port", "1883"),
		MQTTUser:     getEnv("MQTT_User", ""),
		MQTTPassword: getEnv("MQTT_Password", ""),

		Port:         getEnv("PORT", "5001"),
		ClientOrigin: getEnv("CLIENT_ORIGIN", "http://localhost:5173"),

		JWTSecret:   getEnv("JWT_SECRET", defaultJWTSecret),
		JWTTTL:      time.Duration(getEnvInt("JWT_TTL_HOURS", 7*24)) * time.Hour,
		AdminEmails: splitList(getEnv("ADMIN_EMAILS", "")),

		ClassifierURL:     getEnv("CLASSIFIER_URL", "http://127.0.0.1:5002/predict"),
		ClassifierTimeout: time.Duration(getEnvInt("CLASSIFIER_TIMEOUT_MS", 3000)) * time.Millisecond,

		Environment: getEnv("environment", "dev"),

		ErrorWebhook:      getEnv("errorWebhook", ""),
		LogsWebhook:       getEnv("logsWebhook", ""),
		ModerationWebhook: getEnv("moderationWebhook", ""),

		BotToken:         getEnv("botToken", ""),
		OperatorGuildID:  getEnv("operatorGuildId", ""),
		DiscordOperators: splitList(getEnv("discordOperators", "")),
	}
}

// Load initializes the configuration from environment variables
func Load() (*Config, error) {
	cfgOnce.Do(loadConfig)
	return cfg, nil
}

// Get returns the current configuration
func Get() *Config {
	cfgOnce.Do(loadConfig)
	return cfg
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt falls back to the default when the value is missing or not a positive integer
func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}

// IsProd returns true if the environment is production
func (c *Config) IsProd() bool {
	return c.Environment == "prod"
}

// Validate rejects configurations that must not reach production
func (c *Config) Validate() error {
	if c.IsProd() && (c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret) {
		return ErrInsecureSecret
	}
	return nil
}

// IsOperator reports whether a Discord user may run moderation commands
func (c *Config) IsOperator(discordUserID string) bool {
	for _, id := range c.DiscordOperators {
		if id == discordUserID {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the email belongs to a configured administrator
func (c *Config) IsAdmin(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, admin := range c.AdminEmails {
		if admin == email {
			return true
		}
	}
	return false
}
