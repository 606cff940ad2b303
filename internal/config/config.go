// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"statusbot/internal/fetcher"
)

// Config holds the application configuration.
type Config struct {
	DiscordBotToken string
	DatabasePath    string
	CachePath       string
	StatusURL       string
	CommandPrefix   string
	LogLevel        string
	AdminUsers      []string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("DISCORD_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/bot.db"
	}

	cachePath := os.Getenv("CACHE_PATH")
	if cachePath == "" {
		cachePath = "./data/status_cache.json"
	}

	statusURL := os.Getenv("STATUS_URL")
	if statusURL == "" {
		statusURL = fetcher.DefaultURL
	}

	prefix := os.Getenv("COMMAND_PREFIX")
	if prefix == "" {
		prefix = "!"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	var adminUsers []string
	if raw := os.Getenv("ADMIN_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			adminUsers = append(adminUsers, s)
		}
	}

	return &Config{
		DiscordBotToken: token,
		DatabasePath:    dbPath,
		CachePath:       cachePath,
		StatusURL:       statusURL,
		CommandPrefix:   prefix,
		LogLevel:        logLevel,
		AdminUsers:      adminUsers,
	}, nil
}

// IsAdmin checks whether a user ID is in the admin allow list. An empty
// list grants nobody; guild permission checks still apply separately.
func (c *Config) IsAdmin(userID string) bool {
	for _, id := range c.AdminUsers {
		if id == userID {
			return true
		}
	}
	return false
}
